// Package live is the boundary to players that are currently connected to
// this node. Methods on Player are only called from the authority context.
package live

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

type Player interface {
	ID() uuid.UUID
	Name() string
	SendMessage(msg string)
	StatChanged(statID string)
	ApplyPotion(kind string, level int)
	ClearPotion(kind string)
	SetAttribute(attribute string, value float64)
	ResetAttribute(attribute string)
	GiveExperience(amount int)
}

type Directory interface {
	Lookup(id uuid.UUID) (Player, bool)
}

const inboxSize = 50

// Avatar is the in-process Player used by the admin surface and tests. It
// records what was applied so it can be inspected.
type Avatar struct {
	mu         sync.Mutex
	id         uuid.UUID
	name       string
	inbox      []string
	potions    map[string]int
	attributes map[string]float64
	statPings  map[string]int
	experience int
}

func NewAvatar(id uuid.UUID, name string) *Avatar {
	return &Avatar{
		id:         id,
		name:       name,
		potions:    make(map[string]int),
		attributes: make(map[string]float64),
		statPings:  make(map[string]int),
	}
}

func (a *Avatar) ID() uuid.UUID { return a.id }
func (a *Avatar) Name() string  { return a.name }

func (a *Avatar) SendMessage(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inbox = append(a.inbox, msg)
	if len(a.inbox) > inboxSize {
		a.inbox = a.inbox[len(a.inbox)-inboxSize:]
	}
}

func (a *Avatar) StatChanged(statID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.statPings[statID]++
}

func (a *Avatar) ApplyPotion(kind string, level int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.potions[kind] = level
}

func (a *Avatar) ClearPotion(kind string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.potions, kind)
}

func (a *Avatar) SetAttribute(attribute string, value float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attributes[attribute] = value
}

func (a *Avatar) ResetAttribute(attribute string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.attributes, attribute)
}

func (a *Avatar) GiveExperience(amount int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.experience += amount
}

func (a *Avatar) Experience() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.experience
}

func (a *Avatar) Messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.inbox...)
}

func (a *Avatar) Potions() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int, len(a.potions))
	for k, v := range a.potions {
		out[k] = v
	}
	return out
}

func (a *Avatar) Attributes() map[string]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]float64, len(a.attributes))
	for k, v := range a.attributes {
		out[k] = v
	}
	return out
}

func (a *Avatar) StatPings(statID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.statPings[statID]
}

// Roster is a Directory of connected avatars.
type Roster struct {
	mu      sync.RWMutex
	players map[uuid.UUID]*Avatar
}

func NewRoster() *Roster {
	return &Roster{players: make(map[uuid.UUID]*Avatar)}
}

func (r *Roster) Join(id uuid.UUID, name string) *Avatar {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.players[id]; ok {
		return a
	}
	a := NewAvatar(id, name)
	r.players[id] = a
	return a
}

func (r *Roster) Leave(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[id]; !ok {
		return false
	}
	delete(r.players, id)
	return true
}

func (r *Roster) Lookup(id uuid.UUID) (Player, bool) {
	a, ok := r.Avatar(id)
	if !ok {
		return nil, false
	}
	return a, true
}

func (r *Roster) Avatar(id uuid.UUID) (*Avatar, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.players[id]
	return a, ok
}

// Online returns the connected player ids in string order.
func (r *Roster) Online() []uuid.UUID {
	r.mu.RLock()
	out := make([]uuid.UUID, 0, len(r.players))
	for id := range r.players {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
