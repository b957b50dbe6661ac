package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/config"
	"github.com/RangGames/CreeperPrefixSystem/internal/constants"
	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
	"github.com/RangGames/CreeperPrefixSystem/internal/events"
	"github.com/RangGames/CreeperPrefixSystem/internal/worker"
)

const weeklyHintPrefix = "weekly:"

// WeekKey is the ISO week-based year followed by the two-digit ISO week.
func WeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d%02d", year, week)
}

type WeeklyService struct {
	store         WeeklyStore
	pool          *worker.Pool
	bus           *events.Bus
	publisher     Publisher
	titles        *TitleService
	defaultMetric string
	clock         func() time.Time
	logger        zerolog.Logger

	mu           sync.RWMutex
	weekKey      string
	standings    map[string][]domain.WeeklyStanding
	top3ByMetric map[string]map[uuid.UUID]struct{}
	top3         map[uuid.UUID]struct{}
	lastMetric   string
}

func NewWeeklyService(
	cfg *config.Config,
	stores Stores,
	pool *worker.Pool,
	bus *events.Bus,
	publisher Publisher,
	titles *TitleService,
	logger zerolog.Logger,
) *WeeklyService {
	s := &WeeklyService{
		store:         stores.Weekly,
		pool:          pool,
		bus:           bus,
		publisher:     publisher,
		titles:        titles,
		defaultMetric: cfg.WeeklyDefaultMetric,
		clock:         time.Now,
		logger:        logger.With().Str("component", "weekly").Logger(),
		standings:     make(map[string][]domain.WeeklyStanding),
		top3ByMetric:  make(map[string]map[uuid.UUID]struct{}),
		top3:          make(map[uuid.UUID]struct{}),
	}
	s.weekKey = WeekKey(s.clock())
	return s
}

// SetClock replaces the time source and recomputes the week key.
func (s *WeeklyService) SetClock(clock func() time.Time) {
	s.clock = clock
	s.RefreshWeekKey()
}

func (s *WeeklyService) WeekKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weekKey
}

func (s *WeeklyService) DefaultMetric() string {
	return s.defaultMetric
}

// RefreshWeekKey recomputes the week key and reports whether it changed.
func (s *WeeklyService) RefreshWeekKey() bool {
	key := WeekKey(s.clock())
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == s.weekKey {
		return false
	}
	s.logger.Info().Str("previous", s.weekKey).Str("week_key", key).Msg("week rolled over")
	s.weekKey = key
	return true
}

// IncrementMetric adds delta to the player's counter for the current week.
func (s *WeeklyService) IncrementMetric(player uuid.UUID, metric string, delta int64) {
	if delta == 0 {
		return
	}
	weekKey := s.WeekKey()
	s.pool.SubmitKeyed(player.String(), "increment weekly metric", func(ctx context.Context) error {
		return s.store.IncrementMetric(ctx, weekKey, player, metric, delta)
	})
}

func (s *WeeklyService) IncrementDefault(player uuid.UUID, delta int64) {
	s.IncrementMetric(player, s.defaultMetric, delta)
}

// Evaluate loads the current leaderboard for metric, lets hooks adjust it,
// then caches and publishes the result.
func (s *WeeklyService) Evaluate(ctx context.Context, metric string) ([]domain.WeeklyStanding, error) {
	published, weekKey, err := s.evaluate(ctx, metric)
	if err != nil {
		return nil, err
	}
	if s.publisher.Enabled() {
		s.publisher.PublishHint(fmt.Sprintf("%s%s:%s", weeklyHintPrefix, metric, weekKey))
	}
	return published, nil
}

// HandleHint re-evaluates a metric another node just published for the
// current week. Nothing is published back.
func (s *WeeklyService) HandleHint(ctx context.Context, hint string) {
	rest, ok := strings.CutPrefix(hint, weeklyHintPrefix)
	if !ok {
		return
	}
	idx := strings.LastIndex(rest, ":")
	if idx <= 0 {
		s.logger.Warn().Str("hint", hint).Msg("malformed weekly hint")
		return
	}
	metric, weekKey := rest[:idx], rest[idx+1:]
	if weekKey != s.WeekKey() {
		return
	}
	if _, _, err := s.evaluate(ctx, metric); err != nil {
		s.logger.Warn().Err(err).Str("metric", metric).Msg("refresh after hint failed")
	}
}

func (s *WeeklyService) evaluate(ctx context.Context, metric string) ([]domain.WeeklyStanding, string, error) {
	weekKey := s.WeekKey()
	standings, err := await(ctx, s.pool, metric, "load weekly standings", func(ctx context.Context) ([]domain.WeeklyStanding, error) {
		return s.store.TopStandings(ctx, weekKey, metric, constants.LeaderboardLimit)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("metric", metric).Str("week_key", weekKey).Msg("failed to load standings")
		return nil, weekKey, err
	}

	// Handlers get their own copy. A timed-out handler may still be running
	// and ev must not be read after Dispatch fails.
	ev := &events.WeeklyRankEvaluate{
		Metric:    metric,
		WeekKey:   weekKey,
		Standings: append([]domain.WeeklyStanding(nil), standings...),
	}
	hookCtx, cancel := context.WithTimeout(ctx, constants.HookTimeout)
	err = s.bus.WeeklyRankEvaluate.Dispatch(hookCtx, ev)
	cancel()
	published := standings
	if err != nil {
		s.logger.Warn().Err(err).Str("metric", metric).Msg("rank evaluate hook failed, publishing unmodified standings")
	} else {
		published = append([]domain.WeeklyStanding(nil), ev.Standings...)
	}

	top := make(map[uuid.UUID]struct{}, constants.TopN)
	for i, st := range published {
		if i >= constants.TopN {
			break
		}
		top[st.PlayerID] = struct{}{}
	}

	s.mu.Lock()
	s.standings[metric] = published
	s.top3ByMetric[metric] = top
	s.top3 = top
	s.lastMetric = metric
	s.mu.Unlock()

	s.logger.Info().Str("metric", metric).Str("week_key", weekKey).Int("entries", len(published)).Msg("weekly standings evaluated")
	return published, weekKey, nil
}

// IsTop3 checks the top three of the most recently evaluated metric.
func (s *WeeklyService) IsTop3(player uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.top3[player]
	return ok
}

func (s *WeeklyService) IsTop3For(metric string, player uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.top3ByMetric[metric][player]
	return ok
}

func (s *WeeklyService) LastEvaluatedMetric() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastMetric
}

func (s *WeeklyService) CachedStandings(metric string) []domain.WeeklyStanding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.WeeklyStanding(nil), s.standings[metric]...)
}

// RecordAwards stores the current top three of metric as this week's
// awards. titleIDs[i] is granted to rank i+1; ranks without a title are
// skipped. It returns the number of awards recorded.
func (s *WeeklyService) RecordAwards(ctx context.Context, metric string, titleIDs []string) int {
	weekKey := s.WeekKey()
	standings := s.CachedStandings(metric)

	awarded := 0
	for i, st := range standings {
		if i >= constants.TopN || i >= len(titleIDs) {
			break
		}
		rank, player, titleID := i+1, st.PlayerID, titleIDs[i]
		if titleID == "" {
			continue
		}
		s.pool.Submit("save weekly award", func(ctx context.Context) error {
			return s.store.SaveAward(ctx, weekKey, rank, player, titleID)
		})
		s.titles.GrantTitle(ctx, player, titleID)
		awarded++
		s.logger.Info().Str("metric", metric).Str("week_key", weekKey).Int("rank", rank).Str("player", player.String()).Str("title", titleID).Msg("weekly award recorded")
	}
	return awarded
}
