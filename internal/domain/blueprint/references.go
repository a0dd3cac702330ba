package blueprint

import (
	"fmt"

	"github.com/GriffinCanCode/bpforge/internal/domain/finding"
)

// ValidateBindingReferences returns one finding per binding endpoint that names
// a component the blueprint does not declare. It does not modify bp.
func ValidateBindingReferences(bp *Blueprint) finding.List {
	if bp == nil {
		return nil
	}
	known := make(map[string]bool, len(bp.Components))
	for _, c := range bp.Components {
		known[c.Name] = true
	}

	var out finding.List
	check := func(i int, role string, ep Endpoint) {
		if known[ep.Component] {
			return
		}
		out = append(out, finding.Finding{
			Tier:      finding.TierStructural,
			Severity:  finding.SeverityError,
			Pattern:   "dangling_reference",
			Component: ep.Component,
			Port:      ep.Port,
			Symbol:    fmt.Sprintf("bindings[%d].%s", i, role),
			Message:   fmt.Sprintf("binding %d %s endpoint %s references unknown component %q", i, role, ep, ep.Component),
		})
	}
	for i, b := range bp.Bindings {
		check(i, "from", b.From)
		for _, to := range b.To {
			check(i, "to", to)
		}
	}
	return out
}
