package healing

import (
	"time"

	"github.com/GriffinCanCode/bpforge/internal/domain/finding"
	"github.com/GriffinCanCode/bpforge/internal/domain/validation"
	"github.com/GriffinCanCode/bpforge/internal/shared/digest"
	"github.com/GriffinCanCode/bpforge/internal/shared/id"
)

// Checkpoint is an immutable snapshot of an artifact and its verdict.
// Rolling back restores exactly these bytes and findings.
type Checkpoint struct {
	ID        id.CheckpointID     `json:"id"`
	Pass      int                 `json:"pass"`
	State     State               `json:"state"`
	Artifact  string              `json:"artifact"`
	Digest    string              `json:"digest"`
	Score     float64             `json:"score"`
	Passed    bool                `json:"passed"`
	Findings  finding.List        `json:"findings"`
	Verdict   *validation.Verdict `json:"-"`
	CreatedAt time.Time           `json:"created_at"`
}

func newCheckpoint(state State, pass int, source string, v *validation.Verdict) Checkpoint {
	return Checkpoint{
		ID:        id.NewCheckpointID(),
		Pass:      pass,
		State:     state,
		Artifact:  source,
		Digest:    digest.Artifact(source),
		Score:     v.Score,
		Passed:    v.Passed,
		Findings:  append(finding.List(nil), v.Findings...),
		Verdict:   v,
		CreatedAt: time.Now(),
	}
}
