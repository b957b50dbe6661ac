package domain

import (
	"sort"
	"sync"
	"time"
)

// PlayerStatState holds base values and modifiers grouped by stat then
// source. Individual reads and writes are atomic.
type PlayerStatState struct {
	mu        sync.RWMutex
	base      map[string]float64
	modifiers map[string]map[string]StatModifier
}

func NewPlayerStatState() *PlayerStatState {
	return &PlayerStatState{
		base:      make(map[string]float64),
		modifiers: make(map[string]map[string]StatModifier),
	}
}

func (s *PlayerStatState) Base(statID string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.base[statID]
	return v, ok
}

func (s *PlayerStatState) SetBase(statID string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base[statID] = value
}

func (s *PlayerStatState) PutModifier(m StatModifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bySource, ok := s.modifiers[m.StatID]
	if !ok {
		bySource = make(map[string]StatModifier)
		s.modifiers[m.StatID] = bySource
	}
	bySource[m.SourceID] = m
}

func (s *PlayerStatState) RemoveModifier(statID, sourceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(statID, sourceID, func(StatModifier) bool { return true })
}

// RemoveExpired removes the modifier only if the one currently stored under
// sourceID has expired at now. A replacement put after the caller's snapshot
// is left alone.
func (s *PlayerStatState) RemoveExpired(statID, sourceID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(statID, sourceID, func(m StatModifier) bool { return m.Expired(now) })
}

func (s *PlayerStatState) removeLocked(statID, sourceID string, match func(StatModifier) bool) bool {
	bySource, ok := s.modifiers[statID]
	if !ok {
		return false
	}
	m, ok := bySource[sourceID]
	if !ok || !match(m) {
		return false
	}
	delete(bySource, sourceID)
	if len(bySource) == 0 {
		delete(s.modifiers, statID)
	}
	return true
}

// Modifiers returns a snapshot of the stat's modifiers sorted by source id.
func (s *PlayerStatState) Modifiers(statID string) []StatModifier {
	s.mu.RLock()
	out := make([]StatModifier, 0, len(s.modifiers[statID]))
	for _, m := range s.modifiers[statID] {
		out = append(out, m)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

// PlayerTitleState tracks owned titles and the equipped one.
type PlayerTitleState struct {
	mu         sync.RWMutex
	owned      map[string]struct{}
	seasonal   map[string]struct{}
	weekly     map[string]struct{}
	equipped   string
	lastSynced time.Time
}

func NewPlayerTitleState() *PlayerTitleState {
	return &PlayerTitleState{
		owned:    make(map[string]struct{}),
		seasonal: make(map[string]struct{}),
		weekly:   make(map[string]struct{}),
	}
}

// AddOwned adds titleID and reports whether it was newly added.
func (s *PlayerTitleState) AddOwned(titleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owned[titleID]; ok {
		return false
	}
	s.owned[titleID] = struct{}{}
	return true
}

func (s *PlayerTitleState) RemoveOwned(titleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seasonal, titleID)
	delete(s.weekly, titleID)
	if _, ok := s.owned[titleID]; !ok {
		return false
	}
	delete(s.owned, titleID)
	return true
}

func (s *PlayerTitleState) IsOwned(titleID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.owned[titleID]
	return ok
}

// OwnsAll reports whether every id in ids is owned. An empty list is never
// considered owned.
func (s *PlayerTitleState) OwnsAll(ids []string) bool {
	if len(ids) == 0 {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range ids {
		if _, ok := s.owned[id]; !ok {
			return false
		}
	}
	return true
}

func (s *PlayerTitleState) Owned() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.owned)
}

func (s *PlayerTitleState) Equipped() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.equipped, s.equipped != ""
}

func (s *PlayerTitleState) SetEquipped(titleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.equipped = titleID
}

func (s *PlayerTitleState) MarkSeasonal(titleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seasonal[titleID] = struct{}{}
}

func (s *PlayerTitleState) MarkWeekly(titleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weekly[titleID] = struct{}{}
}

func (s *PlayerTitleState) Seasonal() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.seasonal)
}

func (s *PlayerTitleState) Weekly() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.weekly)
}

func (s *PlayerTitleState) LastSynced() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSynced
}

func (s *PlayerTitleState) SetLastSynced(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSynced = t
}

// PlayerProgressState maps title id to a non-negative progress counter.
type PlayerProgressState struct {
	mu       sync.Mutex
	progress map[string]int64
}

func NewPlayerProgressState() *PlayerProgressState {
	return &PlayerProgressState{progress: make(map[string]int64)}
}

func (s *PlayerProgressState) Set(titleID string, value int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[titleID] = value
}

// Add increases the counter and returns the new value. Non-positive
// amounts leave it unchanged.
func (s *PlayerProgressState) Add(titleID string, amount int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount > 0 {
		s.progress[titleID] += amount
	}
	return s.progress[titleID]
}

func (s *PlayerProgressState) Get(titleID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress[titleID]
}

// ActiveSets is the derived set of currently active sets for a player. It
// keeps the definition each set was activated with so its effects can be
// cleared after a registry reload.
type ActiveSets struct {
	mu   sync.RWMutex
	sets map[string]SetDefinition
}

func NewActiveSets() *ActiveSets {
	return &ActiveSets{sets: make(map[string]SetDefinition)}
}

func (a *ActiveSets) Add(def SetDefinition) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sets[def.ID] = def
}

func (a *ActiveSets) Remove(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sets, id)
}

func (a *ActiveSets) Get(id string) (SetDefinition, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	def, ok := a.sets[id]
	return def, ok
}

func (a *ActiveSets) Has(id string) bool {
	_, ok := a.Get(id)
	return ok
}

func (a *ActiveSets) IDs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.sets))
	for id := range a.sets {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type PlayerCollectionState struct {
	mu      sync.RWMutex
	entries map[string]*CollectionEntry
}

func NewPlayerCollectionState() *PlayerCollectionState {
	return &PlayerCollectionState{entries: make(map[string]*CollectionEntry)}
}

// Add stores e unless its key is already registered.
func (s *PlayerCollectionState) Add(e CollectionEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.Key]; ok {
		return false
	}
	s.entries[e.Key] = &e
	return true
}

func (s *PlayerCollectionState) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok
}

func (s *PlayerCollectionState) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *PlayerCollectionState) SetGlobalRank(key string, rank int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		e.GlobalRank = rank
	}
}

// Entries returns the entries ordered by player rank.
func (s *PlayerCollectionState) Entries() []CollectionEntry {
	s.mu.RLock()
	out := make([]CollectionEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerRank < out[j].PlayerRank })
	return out
}

type PlayerAchievementState struct {
	mu          sync.RWMutex
	completions map[string]*AchievementCompletion
}

func NewPlayerAchievementState() *PlayerAchievementState {
	return &PlayerAchievementState{completions: make(map[string]*AchievementCompletion)}
}

func (s *PlayerAchievementState) Add(c AchievementCompletion) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.completions[c.AchievementID]; ok {
		return false
	}
	s.completions[c.AchievementID] = &c
	return true
}

func (s *PlayerAchievementState) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.completions[id]
	return ok
}

func (s *PlayerAchievementState) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.completions)
}

func (s *PlayerAchievementState) SetGlobalRank(id string, rank int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.completions[id]; ok {
		c.GlobalRank = rank
	}
}

func (s *PlayerAchievementState) Completions() []AchievementCompletion {
	s.mu.RLock()
	out := make([]AchievementCompletion, 0, len(s.completions))
	for _, c := range s.completions {
		out = append(out, *c)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(out[j].CompletedAt) })
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
