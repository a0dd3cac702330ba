package recipe

import (
	"fmt"
	"sort"
)

// Trait names
const (
	TraitPersistence  = "persistence"
	TraitIdempotency  = "idempotency"
	TraitRateLimiting = "rate_limiting"
	TraitValidation   = "validation"
)

// Trait is a named bundle of extra config fields, ports and behavioral obligations.
// A component delegates to each of its traits independently.
type Trait interface {
	Name() string
	ConfigFields() []FieldSpec
	Ports(cfg Config) []PortTemplate
	Obligations(cfg Config) []string
}

type persistenceTrait struct{}

func (persistenceTrait) Name() string { return TraitPersistence }

func (persistenceTrait) ConfigFields() []FieldSpec {
	return []FieldSpec{{Name: "durable", Type: TypeBool, Default: true}}
}

// Ports adds the transactional control input carrying commit/rollback signals
func (persistenceTrait) Ports(Config) []PortTemplate {
	return []PortTemplate{{Name: "txn", Direction: Input, Class: ClassControl, Schema: "TxnSignal"}}
}

func (persistenceTrait) Obligations(Config) []string {
	return []string{"records every accepted message with this.persist(key, value)"}
}

type idempotencyTrait struct{}

func (idempotencyTrait) Name() string { return TraitIdempotency }

func (idempotencyTrait) ConfigFields() []FieldSpec {
	return []FieldSpec{{Name: "dedupe_key", Type: TypeString, Default: "id"}}
}

func (idempotencyTrait) Ports(Config) []PortTemplate { return nil }

func (idempotencyTrait) Obligations(cfg Config) []string {
	return []string{fmt.Sprintf("processing the same message twice persists it once, keyed by %q", cfg.String("dedupe_key"))}
}

type rateLimitingTrait struct{}

func (rateLimitingTrait) Name() string { return TraitRateLimiting }

func (rateLimitingTrait) ConfigFields() []FieldSpec {
	return []FieldSpec{
		{Name: "rate_per_second", Type: TypeNumber, Default: int64(100)},
		{Name: "burst", Type: TypeInteger, Default: int64(10)},
	}
}

func (rateLimitingTrait) Ports(Config) []PortTemplate {
	return []PortTemplate{{Name: "throttled", Direction: Output, Class: ClassMetrics, Schema: "Metrics"}}
}

func (rateLimitingTrait) Obligations(cfg Config) []string {
	return []string{fmt.Sprintf("emits at most %g messages per second (burst %d); reports drops on out_throttled",
		cfg.Float("rate_per_second"), cfg.Int("burst"))}
}

type validationTrait struct{}

func (validationTrait) Name() string { return TraitValidation }

func (validationTrait) ConfigFields() []FieldSpec {
	return []FieldSpec{{Name: "strict", Type: TypeBool, Default: false}}
}

func (validationTrait) Ports(Config) []PortTemplate {
	return []PortTemplate{{Name: "rejected", Direction: Output, Class: ClassError, Schema: "ErrorRecord"}}
}

func (validationTrait) Obligations(Config) []string {
	return []string{"routes malformed input to out_rejected instead of throwing"}
}

var traits = map[string]Trait{
	TraitPersistence:  persistenceTrait{},
	TraitIdempotency:  idempotencyTrait{},
	TraitRateLimiting: rateLimitingTrait{},
	TraitValidation:   validationTrait{},
}

// LookupTrait returns the trait registered under name
func LookupTrait(name string) (Trait, bool) {
	t, ok := traits[name]
	return t, ok
}

// TraitNames lists registered traits
func TraitNames() []string {
	names := make([]string, 0, len(traits))
	for name := range traits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
