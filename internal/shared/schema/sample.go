package schema

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// boundary values per scalar kind; index 0 is the zero value
var boundaries = map[Kind][]any{
	KindString:  {"", "a", "line\nbreak", "ünïcødé", "x-0123456789-abcdefghijklmnopqrstuvwxyz"},
	KindInteger: {int64(0), int64(1), int64(-1), int64(math.MaxInt32), int64(math.MinInt32)},
	KindFloat:   {0.0, -1.5, 1e9, 3.25, -0.001},
	KindBoolean: {false, true},
}

// Sampler produces deterministic sample values that conform to a schema
type Sampler struct {
	rng *rand.Rand
}

// NewSampler creates a sampler seeded for reproducible output
func NewSampler(seed uint64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Samples returns boundary samples followed by random samples, n in total (at least one)
func (sp *Sampler) Samples(s *Schema, n int) []any {
	if n < 1 {
		n = 1
	}
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		if i < boundaryCount(s) {
			out = append(out, sp.boundary(s, i))
			continue
		}
		out = append(out, sp.random(s, 0))
	}
	return out
}

// Invalid returns a value that does not conform to the schema
func (sp *Sampler) Invalid(s *Schema) any {
	if s == nil {
		return nil
	}
	switch s.Kind {
	case KindRecord:
		m := map[string]any{}
		for _, f := range s.Fields {
			if !f.Required {
				m[f.Name] = sp.random(f.Schema, 0)
			}
		}
		if len(m) == len(s.Fields) {
			return "not-a-record"
		}
		return m
	case KindString:
		return int64(42)
	case KindList:
		return map[string]any{"not": "a list"}
	default:
		return "not-a-" + string(s.Kind)
	}
}

func boundaryCount(s *Schema) int {
	if s == nil {
		return 1
	}
	switch s.Kind {
	case KindRecord:
		count := 2
		for _, f := range s.Fields {
			if c := boundaryCount(f.Schema); c > count {
				count = c
			}
		}
		return count
	case KindList:
		return 2
	case KindAny:
		return 1
	default:
		return len(boundaries[s.Kind])
	}
}

func (sp *Sampler) boundary(s *Schema, i int) any {
	if s == nil {
		return nil
	}
	switch s.Kind {
	case KindRecord:
		m := make(map[string]any, len(s.Fields))
		for _, f := range s.Fields {
			// odd indices exercise the minimal shape
			if !f.Required && i%2 == 1 {
				continue
			}
			m[f.Name] = sp.boundary(f.Schema, i%boundaryCount(f.Schema))
		}
		return m
	case KindList:
		if i == 0 {
			return []any{}
		}
		return []any{sp.boundary(s.Elem, 0), sp.random(s.Elem, 1)}
	case KindAny:
		return map[string]any{"value": "any"}
	default:
		values := boundaries[s.Kind]
		return values[i%len(values)]
	}
}

func (sp *Sampler) random(s *Schema, depth int) any {
	if s == nil {
		return nil
	}
	switch s.Kind {
	case KindString:
		return fmt.Sprintf("s%08x", sp.rng.Uint32())
	case KindInteger:
		return sp.rng.Int64N(2_000_001) - 1_000_000
	case KindFloat:
		return math.Round((sp.rng.Float64()*2e6-1e6)*1000) / 1000
	case KindBoolean:
		return sp.rng.IntN(2) == 1
	case KindList:
		size := 0
		if depth < 3 {
			size = sp.rng.IntN(4)
		}
		items := make([]any, size)
		for i := range items {
			items[i] = sp.random(s.Elem, depth+1)
		}
		return items
	case KindRecord:
		m := make(map[string]any, len(s.Fields))
		for _, f := range s.Fields {
			if !f.Required && sp.rng.IntN(2) == 0 {
				continue
			}
			m[f.Name] = sp.random(f.Schema, depth+1)
		}
		return m
	default:
		return map[string]any{"value": sp.rng.Uint32()}
	}
}
