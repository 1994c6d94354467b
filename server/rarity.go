package main

import (
	"fmt"
	"sort"
	"time"
)

// Rarity tiers shipped by default
const (
	RarityCommon = "common"
	RarityRare   = "rare"
	RarityEpic   = "epic"
)

// CatalogObject is one collectible a rarity tier can spawn.
type CatalogObject struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Image string `yaml:"image" json:"image"`
}

// RarityDef holds the stats for a rarity tier
type RarityDef struct {
	Name         string          `yaml:"name" json:"name"`
	Weight       float64         `yaml:"weight" json:"weight"`
	Points       int             `yaml:"points" json:"points"`
	Despawn      time.Duration   `yaml:"despawn" json:"-"`
	CaptureRange float64         `yaml:"captureRange" json:"captureRange"`
	Color        string          `yaml:"color" json:"color"`
	Objects      []CatalogObject `yaml:"objects" json:"objects"`
}

// DefaultRarities returns the stock tiers, most common first.
func DefaultRarities() []RarityDef {
	return []RarityDef{
		{
			Name: RarityCommon, Weight: 0.70, Points: 10, Despawn: 25 * time.Second,
			CaptureRange: 2.2, Color: "#00ff88",
			Objects: []CatalogObject{{ID: "iqu", Name: "IQU", Image: "common/IQU.png"}},
		},
		{
			Name: RarityRare, Weight: 0.25, Points: 25, Despawn: 20 * time.Second,
			CaptureRange: 2.0, Color: "#ffd700",
			Objects: []CatalogObject{{ID: "bob", Name: "Bob", Image: "rare/Bob.png"}},
		},
		{
			Name: RarityEpic, Weight: 0.05, Points: 50, Despawn: 15 * time.Second,
			CaptureRange: 1.8, Color: "#ff6b35",
			Objects: []CatalogObject{{ID: "dora", Name: "Dora", Image: "epic/Dora.png"}},
		},
	}
}

// RarityTable draws tiers by cumulative weight. Weights are normalised to
// sum to 1 at construction.
type RarityTable struct {
	defs       []RarityDef
	cumulative []float64
	byName     map[string]RarityDef
}

// NewRarityTable validates defs and builds the cumulative distribution.
func NewRarityTable(defs []RarityDef) (*RarityTable, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("no rarity tiers")
	}
	total := 0.0
	byName := make(map[string]RarityDef, len(defs))
	for _, d := range defs {
		switch {
		case d.Name == "":
			return nil, fmt.Errorf("rarity tier without a name")
		case d.Weight < 0:
			return nil, fmt.Errorf("rarity %s: negative weight", d.Name)
		case d.Points < 0:
			return nil, fmt.Errorf("rarity %s: negative points", d.Name)
		case d.Despawn <= 0:
			return nil, fmt.Errorf("rarity %s: despawn must be positive", d.Name)
		case d.CaptureRange <= 0:
			return nil, fmt.Errorf("rarity %s: capture range must be positive", d.Name)
		case len(d.Objects) == 0:
			return nil, fmt.Errorf("rarity %s: empty object catalogue", d.Name)
		}
		if _, dup := byName[d.Name]; dup {
			return nil, fmt.Errorf("rarity %s defined twice", d.Name)
		}
		byName[d.Name] = d
		total += d.Weight
	}
	if total <= 0 {
		return nil, fmt.Errorf("rarity weights sum to zero")
	}

	t := &RarityTable{
		defs:       append([]RarityDef(nil), defs...),
		cumulative: make([]float64, len(defs)),
		byName:     byName,
	}
	acc := 0.0
	for i, d := range t.defs {
		acc += d.Weight / total
		t.cumulative[i] = acc
	}
	t.cumulative[len(t.cumulative)-1] = 1
	return t, nil
}

// Pick maps a uniform draw r in [0,1) to a tier.
func (t *RarityTable) Pick(r float64) RarityDef {
	i := sort.SearchFloat64s(t.cumulative, r)
	// SearchFloat64s finds the first cumulative >= r; a draw equal to a
	// boundary belongs to the next tier
	for i < len(t.cumulative)-1 && t.cumulative[i] <= r {
		i++
	}
	if i >= len(t.defs) {
		i = len(t.defs) - 1
	}
	return t.defs[i]
}

// Get returns a tier by name.
func (t *RarityTable) Get(name string) (RarityDef, bool) {
	d, ok := t.byName[name]
	return d, ok
}

// Defs returns the tiers in configured order.
func (t *RarityTable) Defs() []RarityDef {
	return t.defs
}

// Probability returns the normalised weight of a tier.
func (t *RarityTable) Probability(name string) float64 {
	prev := 0.0
	for i, d := range t.defs {
		if d.Name == name {
			return t.cumulative[i] - prev
		}
		prev = t.cumulative[i]
	}
	return 0
}
