package pipeline

import (
	"github.com/GriffinCanCode/bpforge/internal/domain/blueprint"
	"github.com/GriffinCanCode/bpforge/internal/domain/healing"
	"github.com/GriffinCanCode/bpforge/internal/domain/validation"
)

// Options is the immutable configuration of a pipeline
type Options struct {
	Threshold         float64
	MaxPasses         int
	SynthesisAttempts int
	Workers           int
	SampleCount       int
	Seed              uint64
	SchemaVersions    []blueprint.Version
}

// DefaultOptions returns the pipeline defaults
func DefaultOptions() Options {
	v := validation.DefaultOptions()
	h := healing.DefaultOptions()
	return Options{
		Threshold:         v.Threshold,
		MaxPasses:         h.MaxPasses,
		SynthesisAttempts: h.SynthesisAttempts,
		Workers:           4,
		SampleCount:       v.SampleCount,
		Seed:              v.Seed,
		SchemaVersions:    append([]blueprint.Version(nil), blueprint.DefaultSchemaVersions...),
	}
}

// withDefaults fills zero values
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Threshold <= 0 || o.Threshold > 1 {
		o.Threshold = def.Threshold
	}
	if o.MaxPasses <= 0 {
		o.MaxPasses = def.MaxPasses
	}
	if o.SynthesisAttempts <= 0 {
		o.SynthesisAttempts = def.SynthesisAttempts
	}
	if o.Workers <= 0 {
		o.Workers = def.Workers
	}
	if o.SampleCount <= 0 {
		o.SampleCount = def.SampleCount
	}
	if len(o.SchemaVersions) == 0 {
		o.SchemaVersions = def.SchemaVersions
	}
	return o
}

func (o Options) gate() validation.Options {
	return validation.Options{Threshold: o.Threshold, SampleCount: o.SampleCount, Seed: o.Seed}
}

func (o Options) healing() healing.Options {
	return healing.Options{MaxPasses: o.MaxPasses, SynthesisAttempts: o.SynthesisAttempts}
}
