package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RangGames/CreeperPrefixSystem/internal/config"
	"github.com/RangGames/CreeperPrefixSystem/internal/logger"
	"github.com/RangGames/CreeperPrefixSystem/internal/registry"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Check the definition files and list skipped entries",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runValidate,
	}
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	log := logger.New()
	dir := ""
	if len(args) == 1 {
		dir = args[0]
	} else {
		cfg, err := config.Load(log)
		if err != nil {
			return err
		}
		dir = cfg.RegistryDir
	}

	cat, problems := registry.Load(os.DirFS(dir), log)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d stats, %d titles, %d sets\n", len(cat.Stats()), len(cat.Titles()), len(cat.Sets()))
	if len(problems) == 0 {
		fmt.Fprintln(out, "No issues found.")
		return nil
	}
	for _, p := range problems {
		fmt.Fprintf(out, "  - %v\n", p)
	}
	return fmt.Errorf("%d invalid entries", len(problems))
}
