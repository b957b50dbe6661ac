package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
)

const (
	StatsFile        = "stats.yml"
	TitlesFile       = "titles.yml"
	SetsFile         = "sets.yml"
	AchievementsFile = "achievements.yml"
)

// ConfigurationError describes one registry entry that could not be used.
type ConfigurationError struct {
	Kind string
	ID   string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Kind, e.ID, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

type rawStat struct {
	Display  string  `yaml:"display"`
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
	Default  float64 `yaml:"default"`
	Stacking string  `yaml:"stacking"`
}

type rawEffect struct {
	Type      string  `yaml:"type"`
	Stat      string  `yaml:"stat"`
	Op        string  `yaml:"op"`
	Value     float64 `yaml:"value"`
	Potion    string  `yaml:"potion"`
	Level     int     `yaml:"level"`
	Attribute string  `yaml:"attribute"`
	Command   string  `yaml:"command"`
}

type rawRequirement struct {
	Type     string `yaml:"type"`
	Key      string `yaml:"key"`
	Material string `yaml:"material"`
	Amount   int64  `yaml:"amount"`
	Meta     string `yaml:"meta"`
}

type rawSkin struct {
	Prefix  string `yaml:"prefix"`
	Nametag string `yaml:"nametag"`
}

type rawTitle struct {
	Display      string          `yaml:"display"`
	Rarity       string          `yaml:"rarity"`
	Type         string          `yaml:"type"`
	Seasonal     bool            `yaml:"seasonal"`
	Weekly       bool            `yaml:"weekly"`
	Requirements *rawRequirement `yaml:"requirements"`
	Effects      []rawEffect     `yaml:"effects"`
	Skin         *rawSkin        `yaml:"skin"`
}

type rawSet struct {
	Name    string      `yaml:"name"`
	Members []string    `yaml:"members"`
	Effects []rawEffect `yaml:"effects"`
}

type rawAchievement struct {
	Display     string `yaml:"display"`
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
	Target      int    `yaml:"target"`
	Amount      int    `yaml:"amount"`
}

type loader struct {
	fsys     fs.FS
	logger   zerolog.Logger
	problems []error
}

// Load reads every registry file from fsys. It always returns a usable
// Catalog; missing files yield empty sections and invalid entries are
// skipped. Each skipped entry is logged and returned as a problem.
func Load(fsys fs.FS, logger zerolog.Logger) (*Catalog, []error) {
	l := &loader{fsys: fsys, logger: logger}

	var stats []domain.StatDefinition
	l.each(StatsFile, "stats", "stat", func(id string, node *yaml.Node) error {
		s, err := parseStat(id, node)
		if err == nil {
			stats = append(stats, s)
		}
		return err
	})

	var titles []domain.TitleDefinition
	l.each(TitlesFile, "titles", "title", func(id string, node *yaml.Node) error {
		t, err := l.parseTitle(id, node)
		if err == nil {
			titles = append(titles, t)
		}
		return err
	})

	var sets []domain.SetDefinition
	l.each(SetsFile, "sets", "set", func(id string, node *yaml.Node) error {
		s, err := l.parseSet(id, node)
		if err == nil {
			sets = append(sets, s)
		}
		return err
	})

	var achievements []domain.AchievementDefinition
	l.each(AchievementsFile, "achievements", "achievement", func(id string, node *yaml.Node) error {
		a, err := parseAchievement(id, node)
		if err == nil {
			achievements = append(achievements, a)
		}
		return err
	})

	return NewCatalog(stats, titles, sets, achievements), l.problems
}

func (l *loader) problem(err error) {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		l.logger.Warn().Err(cfgErr.Err).Str("kind", cfgErr.Kind).Str("id", cfgErr.ID).Msg("skipping registry entry")
	} else {
		l.logger.Error().Err(err).Msg("registry file unusable")
	}
	l.problems = append(l.problems, err)
}

// each decodes the mapping under section in file and calls fn for every
// entry in id order.
func (l *loader) each(file, section, kind string, fn func(id string, node *yaml.Node) error) {
	raw, err := fs.ReadFile(l.fsys, file)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn().Str("file", file).Msg("registry file not found")
		return
	}
	if err != nil {
		l.problem(fmt.Errorf("read %s: %w", file, err))
		return
	}

	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		l.problem(fmt.Errorf("%s: %w", file, err))
		return
	}
	root, ok := doc[section]
	if !ok {
		l.logger.Warn().Str("file", file).Str("section", section).Msg("no section defined")
		return
	}
	var entries map[string]yaml.Node
	if err := root.Decode(&entries); err != nil {
		l.problem(fmt.Errorf("%s: section %s: %w", file, section, err))
		return
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		node := entries[id]
		if err := fn(id, &node); err != nil {
			l.problem(&ConfigurationError{Kind: kind, ID: id, Err: err})
		}
	}
}

func parseStat(id string, node *yaml.Node) (domain.StatDefinition, error) {
	var raw rawStat
	if err := node.Decode(&raw); err != nil {
		return domain.StatDefinition{}, err
	}
	stacking := domain.OpAdd
	if raw.Stacking != "" {
		op, err := domain.ParseOperation(raw.Stacking)
		if err != nil {
			return domain.StatDefinition{}, err
		}
		stacking = op
	}
	if raw.Max < raw.Min {
		return domain.StatDefinition{}, fmt.Errorf("max %v is below min %v", raw.Max, raw.Min)
	}
	return domain.StatDefinition{
		ID:       id,
		Display:  orDefault(raw.Display, id),
		Min:      raw.Min,
		Max:      raw.Max,
		Default:  raw.Default,
		Stacking: stacking,
	}, nil
}

func (l *loader) parseTitle(id string, node *yaml.Node) (domain.TitleDefinition, error) {
	var raw rawTitle
	if err := node.Decode(&raw); err != nil {
		return domain.TitleDefinition{}, err
	}

	rarity := domain.RarityCommon
	if raw.Rarity != "" {
		r, err := domain.ParseRarity(raw.Rarity)
		if err != nil {
			return domain.TitleDefinition{}, err
		}
		rarity = r
	}

	def := domain.TitleDefinition{
		ID:              id,
		Display:         orDefault(raw.Display, id),
		Rarity:          rarity,
		Type:            orDefault(raw.Type, "GENERAL"),
		Seasonal:        raw.Seasonal,
		WeeklyExclusive: raw.Weekly,
		Requirement:     domain.TitleRequirement{Kind: domain.RequirementEvent},
	}

	if raw.Requirements != nil {
		req, err := parseRequirement(*raw.Requirements)
		if err != nil {
			return domain.TitleDefinition{}, err
		}
		def.Requirement = req
	}
	if raw.Skin != nil {
		def.Skin = &domain.TitleSkin{Prefix: raw.Skin.Prefix, Nametag: raw.Skin.Nametag}
	}
	def.Effects = l.parseEffects("title", id, raw.Effects)
	return def, nil
}

func parseRequirement(raw rawRequirement) (domain.TitleRequirement, error) {
	kind := domain.RequirementEvent
	if raw.Type != "" {
		k, err := domain.ParseRequirementKind(raw.Type)
		if err != nil {
			return domain.TitleRequirement{}, err
		}
		kind = k
	}
	if raw.Amount < 0 {
		return domain.TitleRequirement{}, fmt.Errorf("negative requirement amount %d", raw.Amount)
	}
	key := raw.Key
	if key == "" {
		key = raw.Material
	}
	return domain.TitleRequirement{
		Kind:   kind,
		Key:    strings.ToUpper(strings.TrimSpace(key)),
		Amount: raw.Amount,
		Meta:   raw.Meta,
	}, nil
}

func (l *loader) parseSet(id string, node *yaml.Node) (domain.SetDefinition, error) {
	var raw rawSet
	if err := node.Decode(&raw); err != nil {
		return domain.SetDefinition{}, err
	}
	if len(raw.Members) == 0 {
		return domain.SetDefinition{}, errors.New("set has no members")
	}
	return domain.SetDefinition{
		ID:      id,
		Display: orDefault(raw.Name, id),
		Members: raw.Members,
		Effects: l.parseEffects("set", id, raw.Effects),
	}, nil
}

// parseEffects keeps the valid effects of an entry. An invalid effect is
// reported but does not discard its owner.
func (l *loader) parseEffects(kind, owner string, raws []rawEffect) []domain.Effect {
	var out []domain.Effect
	for i, raw := range raws {
		e, err := parseEffect(raw)
		if err != nil {
			l.problem(&ConfigurationError{Kind: kind + " effect", ID: fmt.Sprintf("%s#%d", owner, i), Err: err})
			continue
		}
		out = append(out, e)
	}
	return out
}

func parseEffect(raw rawEffect) (domain.Effect, error) {
	switch strings.ToUpper(strings.TrimSpace(raw.Type)) {
	case "STAT_MOD":
		if raw.Stat == "" {
			return nil, errors.New("stat modifier is missing stat id")
		}
		op := domain.OpAdd
		if raw.Op != "" {
			parsed, err := domain.ParseOperation(raw.Op)
			if err != nil {
				return nil, err
			}
			op = parsed
		}
		return domain.StatModEffect{StatID: raw.Stat, Op: op, Value: raw.Value}, nil
	case "POTION":
		kind := strings.ToUpper(strings.TrimSpace(raw.Potion))
		if kind == "" {
			kind = "SPEED"
		}
		level := raw.Level
		if level <= 0 {
			level = 1
		}
		return domain.PotionEffect{Kind: kind, Level: level}, nil
	case "ATTRIBUTE":
		if raw.Attribute == "" {
			return nil, errors.New("attribute effect is missing attribute")
		}
		return domain.AttributeEffect{Attribute: raw.Attribute, Value: raw.Value}, nil
	case "COMMAND":
		if strings.TrimSpace(raw.Command) == "" {
			return nil, errors.New("command effect is empty")
		}
		return domain.CommandEffect{Template: raw.Command}, nil
	case "":
		return nil, errors.New("effect type is missing")
	default:
		return nil, fmt.Errorf("unsupported effect type %q", raw.Type)
	}
}

func parseAchievement(id string, node *yaml.Node) (domain.AchievementDefinition, error) {
	var raw rawAchievement
	if err := node.Decode(&raw); err != nil {
		return domain.AchievementDefinition{}, err
	}
	typ := domain.AchievementCollectionCount
	if raw.Type != "" {
		if t := domain.AchievementType(strings.ToUpper(strings.TrimSpace(raw.Type))); t != domain.AchievementCollectionCount {
			return domain.AchievementDefinition{}, fmt.Errorf("unknown achievement type %q", raw.Type)
		}
	}
	target := raw.Target
	if target == 0 {
		target = raw.Amount
	}
	if target <= 0 {
		return domain.AchievementDefinition{}, errors.New("achievement target must be positive")
	}
	return domain.AchievementDefinition{
		ID:          id,
		Display:     orDefault(raw.Display, id),
		Description: raw.Description,
		Type:        typ,
		Target:      target,
	}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
