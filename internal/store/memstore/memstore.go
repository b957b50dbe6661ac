// Package memstore is an in-memory implementation of every service store.
// It backs DB_DRIVER=memory and the service tests.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
)

var ErrInjected = errors.New("memstore: injected failure")

type statKey struct {
	player uuid.UUID
	stat   string
}

type modKey struct {
	player uuid.UUID
	stat   string
	source string
}

type titleKey struct {
	player uuid.UUID
	title  string
}

type metricKey struct {
	week   string
	player uuid.UUID
	metric string
}

type awardKey struct {
	week string
	rank int
}

type Award struct {
	Player  uuid.UUID
	TitleID string
}

type collectionRow struct {
	id    int64
	entry domain.CollectionEntry
}

type achievementRow struct {
	id         int64
	completion domain.AchievementCompletion
}

type Store struct {
	mu sync.Mutex

	bases     map[statKey]float64
	modifiers map[modKey]domain.StatModifier
	titles    map[titleKey]bool
	progress  map[titleKey]int64
	seasons   []domain.SeasonSnapshot
	metrics   map[metricKey]int64
	awards    map[awardKey]Award

	collection   map[uuid.UUID]map[string]collectionRow
	achievements map[uuid.UUID]map[string]achievementRow
	collectionID int64
	achieveID    int64

	failWrites bool
	writes     int
}

func New() *Store {
	return &Store{
		bases:        make(map[statKey]float64),
		modifiers:    make(map[modKey]domain.StatModifier),
		titles:       make(map[titleKey]bool),
		progress:     make(map[titleKey]int64),
		metrics:      make(map[metricKey]int64),
		awards:       make(map[awardKey]Award),
		collection:   make(map[uuid.UUID]map[string]collectionRow),
		achievements: make(map[uuid.UUID]map[string]achievementRow),
	}
}

// FailWrites makes every subsequent write return ErrInjected.
func (s *Store) FailWrites(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = fail
}

// Writes counts the write calls received so far, failed ones included.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Store) write() error {
	s.writes++
	if s.failWrites {
		return ErrInjected
	}
	return nil
}

func (s *Store) LoadStats(_ context.Context, player uuid.UUID) (map[string]float64, []domain.StatModifier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bases := make(map[string]float64)
	for k, v := range s.bases {
		if k.player == player {
			bases[k.stat] = v
		}
	}
	var mods []domain.StatModifier
	for k, m := range s.modifiers {
		if k.player == player {
			mods = append(mods, m)
		}
	}
	sort.Slice(mods, func(i, j int) bool {
		if mods[i].StatID != mods[j].StatID {
			return mods[i].StatID < mods[j].StatID
		}
		return mods[i].SourceID < mods[j].SourceID
	})
	return bases, mods, nil
}

func (s *Store) SaveBaseStat(_ context.Context, player uuid.UUID, statID string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return err
	}
	s.bases[statKey{player, statID}] = value
	return nil
}

func (s *Store) UpsertModifier(_ context.Context, m domain.StatModifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return err
	}
	s.modifiers[modKey{m.PlayerID, m.StatID, m.SourceID}] = m
	return nil
}

func (s *Store) DeleteModifier(_ context.Context, player uuid.UUID, statID, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return err
	}
	delete(s.modifiers, modKey{player, statID, sourceID})
	return nil
}

// HasModifier reports whether the modifier is durably stored.
func (s *Store) HasModifier(player uuid.UUID, statID, sourceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.modifiers[modKey{player, statID, sourceID}]
	return ok
}

func (s *Store) LoadTitles(_ context.Context, player uuid.UUID) ([]string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var owned []string
	equipped := ""
	for k, eq := range s.titles {
		if k.player != player {
			continue
		}
		owned = append(owned, k.title)
		if eq {
			equipped = k.title
		}
	}
	sort.Strings(owned)
	return owned, equipped, nil
}

func (s *Store) InsertTitle(_ context.Context, player uuid.UUID, titleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return err
	}
	key := titleKey{player, titleID}
	if _, ok := s.titles[key]; !ok {
		s.titles[key] = false
	}
	return nil
}

func (s *Store) EquipTitle(_ context.Context, player uuid.UUID, titleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return err
	}
	for k := range s.titles {
		if k.player == player {
			s.titles[k] = false
		}
	}
	s.titles[titleKey{player, titleID}] = true
	return nil
}

func (s *Store) ClearEquipped(_ context.Context, player uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return err
	}
	for k := range s.titles {
		if k.player == player {
			s.titles[k] = false
		}
	}
	return nil
}

func (s *Store) DeleteTitle(_ context.Context, player uuid.UUID, titleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return err
	}
	delete(s.titles, titleKey{player, titleID})
	return nil
}

func (s *Store) LoadProgress(_ context.Context, player uuid.UUID) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64)
	for k, v := range s.progress {
		if k.player == player {
			out[k.title] = v
		}
	}
	return out, nil
}

func (s *Store) SetProgress(_ context.Context, player uuid.UUID, titleID string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return err
	}
	s.progress[titleKey{player, titleID}] = value
	return nil
}

func (s *Store) IncrementProgress(_ context.Context, player uuid.UUID, titleID string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return err
	}
	s.progress[titleKey{player, titleID}] += delta
	return nil
}

func (s *Store) LatestSeason(_ context.Context) (domain.SeasonSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.seasons) == 0 {
		return domain.SeasonSnapshot{}, false, nil
	}
	return s.seasons[len(s.seasons)-1], true, nil
}

func (s *Store) CreateSeason(_ context.Context, name string, state domain.SeasonState) (domain.SeasonSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return domain.SeasonSnapshot{}, err
	}
	now := time.Now().UTC()
	snap := domain.SeasonSnapshot{
		ID:      int64(len(s.seasons) + 1),
		Name:    name,
		StartAt: &now,
		State:   state,
	}
	s.seasons = append(s.seasons, snap)
	return snap, nil
}

func (s *Store) UpdateSeasonState(_ context.Context, id int64, state domain.SeasonState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return err
	}
	for i := range s.seasons {
		if s.seasons[i].ID == id {
			s.seasons[i].State = state
		}
	}
	return nil
}

func (s *Store) IncrementMetric(_ context.Context, weekKey string, player uuid.UUID, metric string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return err
	}
	s.metrics[metricKey{weekKey, player, metric}] += delta
	return nil
}

func (s *Store) TopStandings(_ context.Context, weekKey, metric string, limit int) ([]domain.WeeklyStanding, error) {
	s.mu.Lock()
	var out []domain.WeeklyStanding
	for k, v := range s.metrics {
		if k.week == weekKey && k.metric == metric {
			out = append(out, domain.WeeklyStanding{PlayerID: k.player, Metric: metric, Value: v})
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].PlayerID.String() < out[j].PlayerID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SaveAward(_ context.Context, weekKey string, rank int, player uuid.UUID, titleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return err
	}
	s.awards[awardKey{weekKey, rank}] = Award{Player: player, TitleID: titleID}
	return nil
}

func (s *Store) Award(weekKey string, rank int) (Award, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.awards[awardKey{weekKey, rank}]
	return a, ok
}

func (s *Store) LoadCollection(_ context.Context, player uuid.UUID) ([]domain.CollectionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CollectionEntry
	for _, row := range s.collection[player] {
		e := row.entry
		e.GlobalRank = row.id
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerRank < out[j].PlayerRank })
	return out, nil
}

func (s *Store) InsertCollectionEntry(_ context.Context, player uuid.UUID, e domain.CollectionEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return 0, err
	}
	rows, ok := s.collection[player]
	if !ok {
		rows = make(map[string]collectionRow)
		s.collection[player] = rows
	}
	if _, dup := rows[e.Key]; dup {
		return 0, nil
	}
	s.collectionID++
	rows[e.Key] = collectionRow{id: s.collectionID, entry: e}
	return s.collectionID, nil
}

func (s *Store) LoadAchievements(_ context.Context, player uuid.UUID) ([]domain.AchievementCompletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AchievementCompletion
	for _, row := range s.achievements[player] {
		c := row.completion
		c.GlobalRank = row.id
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(out[j].CompletedAt) })
	return out, nil
}

func (s *Store) InsertAchievement(_ context.Context, player uuid.UUID, c domain.AchievementCompletion) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return 0, err
	}
	rows, ok := s.achievements[player]
	if !ok {
		rows = make(map[string]achievementRow)
		s.achievements[player] = rows
	}
	if _, dup := rows[c.AchievementID]; dup {
		return 0, nil
	}
	s.achieveID++
	rows[c.AchievementID] = achievementRow{id: s.achieveID, completion: c}
	return s.achieveID, nil
}
