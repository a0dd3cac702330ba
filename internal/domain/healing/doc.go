/*
Package healing repairs artifacts that fail validation.

The Engine walks a fixed state machine:

	Checkpointed -> PatternHealing -> TypeHealing -> StructuralHealing -> SynthesizerAssisted -> Resolved | Escalated

A healing state only runs when the current findings carry one of its tags.
Every rewrite is re-validated; improvements become new checkpoints and
anything else is rolled back to the latest checkpoint.
*/
package healing
