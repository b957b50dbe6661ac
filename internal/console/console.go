// Package console forwards rendered command directives to the game
// server's console endpoint.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/RangGames/CreeperPrefixSystem/internal/config"
	"github.com/RangGames/CreeperPrefixSystem/internal/constants"
)

type Console struct {
	endpoint string
	token    string
	nodeID   string
	client   *fasthttp.Client
	logger   zerolog.Logger
}

type directive struct {
	Command string `json:"command"`
	Node    string `json:"node"`
}

func New(cfg *config.Config, logger zerolog.Logger) *Console {
	return &Console{
		endpoint: strings.TrimSpace(cfg.ConsoleEndpoint),
		token:    cfg.ConsoleToken,
		nodeID:   cfg.NodeID,
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         constants.ConsoleTimeout,
			WriteTimeout:        constants.ConsoleTimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger.With().Str("component", "console").Logger(),
	}
}

// Dispatch posts one directive. With no endpoint configured the directive
// is only logged.
func (c *Console) Dispatch(ctx context.Context, command string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil
	}
	if c.endpoint == "" {
		c.logger.Info().Str("command", command).Msg("console directive")
		return nil
	}

	body, err := json.Marshal(directive{Command: command, Node: c.nodeID})
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(constants.ConsoleTimeout)
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("console request failed: %w", err)
	}

	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return fmt.Errorf("console error: %d", code)
	}
	c.logger.Debug().Str("command", command).Msg("directive sent")
	return nil
}
