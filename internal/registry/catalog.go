package registry

import (
	"sort"

	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
)

// Catalog is an immutable snapshot of every loaded definition. A reload
// builds a new Catalog instead of mutating the current one.
type Catalog struct {
	stats        map[string]domain.StatDefinition
	titles       map[string]domain.TitleDefinition
	sets         map[string]domain.SetDefinition
	achievements map[string]domain.AchievementDefinition
}

func NewCatalog(
	stats []domain.StatDefinition,
	titles []domain.TitleDefinition,
	sets []domain.SetDefinition,
	achievements []domain.AchievementDefinition,
) *Catalog {
	c := &Catalog{
		stats:        make(map[string]domain.StatDefinition, len(stats)),
		titles:       make(map[string]domain.TitleDefinition, len(titles)),
		sets:         make(map[string]domain.SetDefinition, len(sets)),
		achievements: make(map[string]domain.AchievementDefinition, len(achievements)),
	}
	for _, s := range stats {
		c.stats[s.ID] = s
	}
	for _, t := range titles {
		c.titles[t.ID] = t
	}
	for _, s := range sets {
		c.sets[s.ID] = s
	}
	for _, a := range achievements {
		c.achievements[a.ID] = a
	}
	return c
}

func Empty() *Catalog {
	return NewCatalog(nil, nil, nil, nil)
}

func (c *Catalog) Stat(id string) (domain.StatDefinition, bool) {
	s, ok := c.stats[id]
	return s, ok
}

func (c *Catalog) Title(id string) (domain.TitleDefinition, bool) {
	t, ok := c.titles[id]
	return t, ok
}

func (c *Catalog) Set(id string) (domain.SetDefinition, bool) {
	s, ok := c.sets[id]
	return s, ok
}

func (c *Catalog) Achievement(id string) (domain.AchievementDefinition, bool) {
	a, ok := c.achievements[id]
	return a, ok
}

func (c *Catalog) Stats() []domain.StatDefinition {
	out := make([]domain.StatDefinition, 0, len(c.stats))
	for _, s := range c.stats {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) Titles() []domain.TitleDefinition {
	out := make([]domain.TitleDefinition, 0, len(c.titles))
	for _, t := range c.titles {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) Sets() []domain.SetDefinition {
	out := make([]domain.SetDefinition, 0, len(c.sets))
	for _, s := range c.sets {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AchievementsByType returns the achievements of kind t ordered by target.
func (c *Catalog) AchievementsByType(t domain.AchievementType) []domain.AchievementDefinition {
	var out []domain.AchievementDefinition
	for _, a := range c.achievements {
		if a.Type == t {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Target != out[j].Target {
			return out[i].Target < out[j].Target
		}
		return out[i].ID < out[j].ID
	})
	return out
}
