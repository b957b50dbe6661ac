package domain

// Effect is a side-effect attached to a title or set. The set of kinds is
// closed: StatModEffect, PotionEffect, AttributeEffect and CommandEffect.
type Effect interface {
	effect()
}

type StatModEffect struct {
	StatID string
	Op     Operation
	Value  float64
}

type PotionEffect struct {
	Kind  string
	Level int
}

type AttributeEffect struct {
	Attribute string
	Value     float64
}

// CommandEffect runs Template once when applied. "{player}" is replaced
// with the player's name, or id when the name is unknown.
type CommandEffect struct {
	Template string
}

func (StatModEffect) effect()   {}
func (PotionEffect) effect()    {}
func (AttributeEffect) effect() {}
func (CommandEffect) effect()   {}
