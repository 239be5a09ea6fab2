package pipeline

import (
	"math"
	"strings"

	"eliggi/internal"
)

// Textual overrides beat color: a cell that literally says the stock
// state is authoritative no matter how it is painted.
var (
	affirmativeWords = map[string]struct{}{
		"SI": {}, "HAY": {}, "STOCK": {}, "DISPONIBLE": {},
	}
	negativeWords = map[string]struct{}{
		"NO": {}, "SIN": {}, "AGOTADO": {},
	}
)

// ClassifierConfig holds the reference palettes, the strict-less-than
// tolerance, and the order in which states are checked. Fill colors are
// hand-picked and inconsistent, so the tolerance circles of pale shades
// overlap; the priority order is what resolves those ties.
type ClassifierConfig struct {
	Tolerance float64
	Priority  []internal.StockState
	Palettes  map[internal.StockState][]RGB

	// ThemeStates maps default-theme accent indices to states. Theme
	// fills never resolve to RGB, this table is the only signal.
	ThemeStates map[int]internal.StockState
}

func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Tolerance: 100,
		Priority: []internal.StockState{
			internal.StateHasStock,
			internal.StateAsk,
			internal.StateNoStock,
		},
		Palettes: map[internal.StockState][]RGB{
			internal.StateHasStock: {
				{R: 0, G: 255, B: 0},
				{R: 0, G: 176, B: 80},
				{R: 144, G: 238, B: 144},
			},
			internal.StateAsk: {
				{R: 255, G: 255, B: 0},
				{R: 255, G: 230, B: 0},
				{R: 255, G: 255, B: 153},
			},
			internal.StateNoStock: {
				{R: 255, G: 0, B: 0},
				{R: 192, G: 0, B: 0},
				{R: 255, G: 102, B: 102},
			},
		},
		ThemeStates: map[int]internal.StockState{
			9: internal.StateHasStock,
			7: internal.StateAsk,
			5: internal.StateNoStock,
		},
	}
}

type Classifier struct {
	cfg ClassifierConfig
}

func NewClassifier(cfg ClassifierConfig) *Classifier {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultClassifierConfig().Tolerance
	}
	if len(cfg.Priority) == 0 {
		cfg.Priority = DefaultClassifierConfig().Priority
	}
	if cfg.Palettes == nil {
		cfg.Palettes = DefaultClassifierConfig().Palettes
	}
	if cfg.ThemeStates == nil {
		cfg.ThemeStates = DefaultClassifierConfig().ThemeStates
	}
	return &Classifier{cfg: cfg}
}

// Classify maps a color token plus the cell's literal text to a stock
// state. It always returns a state: ambiguity degrades to DESCONOCIDO,
// absence of color to NO DEFINIDO.
func (c *Classifier) Classify(token ColorToken, text string) internal.StockState {
	word := strings.ToUpper(strings.TrimSpace(text))
	if _, ok := affirmativeWords[word]; ok {
		return internal.StateHasStock
	}
	if _, ok := negativeWords[word]; ok {
		return internal.StateNoStock
	}

	switch token.Kind {
	case ColorNone:
		return internal.StateUndefined
	case ColorTheme:
		if state, ok := c.cfg.ThemeStates[token.Index]; ok {
			return state
		}
		return internal.StateUnknown
	case ColorUnresolved:
		return internal.StateUnknown
	}

	for _, state := range c.cfg.Priority {
		for _, ref := range c.cfg.Palettes[state] {
			if colorDistance(token.RGB, ref) < c.cfg.Tolerance {
				return state
			}
		}
	}
	return internal.StateUnknown
}

func colorDistance(a, b RGB) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}
