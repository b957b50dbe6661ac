package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Operation string

const (
	OpAdd  Operation = "ADD"
	OpMult Operation = "MULT"
	OpSet  Operation = "SET"
)

func ParseOperation(s string) (Operation, error) {
	switch op := Operation(strings.ToUpper(strings.TrimSpace(s))); op {
	case OpAdd, OpMult, OpSet:
		return op, nil
	}
	return "", fmt.Errorf("unknown stat operation %q", s)
}

type StatDefinition struct {
	ID       string
	Display  string
	Min      float64
	Max      float64
	Default  float64
	Stacking Operation // informational
}

func (d StatDefinition) Clamp(v float64) float64 {
	if v < d.Min {
		return d.Min
	}
	if v > d.Max {
		return d.Max
	}
	return v
}

type StatModifier struct {
	PlayerID uuid.UUID
	StatID   string
	SourceID string
	Op       Operation
	Value    float64
	ExpireAt *time.Time
}

func (m StatModifier) Expired(now time.Time) bool {
	return m.ExpireAt != nil && !now.Before(*m.ExpireAt)
}

type Rarity int

const (
	RarityCommon Rarity = iota
	RarityUncommon
	RarityRare
	RarityEpic
	RarityLegendary
	RarityMythic
)

var rarityNames = []string{"COMMON", "UNCOMMON", "RARE", "EPIC", "LEGENDARY", "MYTHIC"}

func (r Rarity) String() string {
	if r < 0 || int(r) >= len(rarityNames) {
		return fmt.Sprintf("Rarity(%d)", int(r))
	}
	return rarityNames[r]
}

func ParseRarity(s string) (Rarity, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range rarityNames {
		if name == up {
			return Rarity(i), nil
		}
	}
	return 0, fmt.Errorf("unknown rarity %q", s)
}

type RequirementKind string

const (
	RequirementSell    RequirementKind = "SELL"
	RequirementBreak   RequirementKind = "BREAK"
	RequirementEvent   RequirementKind = "EVENT"
	RequirementCommand RequirementKind = "COMMAND"
)

func ParseRequirementKind(s string) (RequirementKind, error) {
	switch k := RequirementKind(strings.ToUpper(strings.TrimSpace(s))); k {
	case RequirementSell, RequirementBreak, RequirementEvent, RequirementCommand:
		return k, nil
	}
	return "", fmt.Errorf("unknown requirement type %q", s)
}

// TitleRequirement is the unlock condition of a title. Key is the
// trigger target (an item or material id) and may be empty.
type TitleRequirement struct {
	Kind   RequirementKind
	Key    string
	Amount int64
	Meta   string
}

// Indexed reports whether gameplay triggers drive this requirement.
func (r TitleRequirement) Indexed() bool {
	return (r.Kind == RequirementBreak || r.Kind == RequirementSell) && r.Key != ""
}

type TitleSkin struct {
	Prefix  string
	Nametag string
}

type TitleDefinition struct {
	ID              string
	Display         string
	Rarity          Rarity
	Type            string
	Requirement     TitleRequirement
	Effects         []Effect
	Skin            *TitleSkin
	Seasonal        bool
	WeeklyExclusive bool
}

type SetDefinition struct {
	ID      string
	Display string
	Members []string
	Effects []Effect
}

type SeasonState string

const (
	SeasonPreparing SeasonState = "PREPARING"
	SeasonRunning   SeasonState = "RUNNING"
	SeasonPaused    SeasonState = "PAUSED"
	SeasonEnded     SeasonState = "ENDED"
)

func ParseSeasonState(s string) (SeasonState, error) {
	switch st := SeasonState(strings.ToUpper(strings.TrimSpace(s))); st {
	case SeasonPreparing, SeasonRunning, SeasonPaused, SeasonEnded:
		return st, nil
	}
	return "", fmt.Errorf("unknown season state %q", s)
}

type SeasonSnapshot struct {
	ID      int64
	Name    string
	StartAt *time.Time
	EndAt   *time.Time
	State   SeasonState
}

type WeeklyStanding struct {
	PlayerID   uuid.UUID
	Metric     string
	Value      int64
	Annotation string // set by evaluate hooks
}

type CollectionEntry struct {
	Key          string
	RegisteredAt time.Time
	PlayerRank   int
	GlobalRank   int64 // 0 until the store assigns one
}

type AchievementType string

const (
	AchievementCollectionCount AchievementType = "COLLECTION_COUNT"
)

type AchievementDefinition struct {
	ID          string
	Display     string
	Description string
	Type        AchievementType
	Target      int
}

func (d AchievementDefinition) MatchesCollectionCount(count int) bool {
	return d.Type == AchievementCollectionCount && count >= d.Target
}

type AchievementCompletion struct {
	AchievementID string
	CompletedAt   time.Time
	GlobalRank    int64
}
