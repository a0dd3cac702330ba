/*
Package pipeline runs a blueprint end to end.

A run parses the blueprint, expands every component, builds the port graph and
then, for each component in parallel, synthesizes an artifact, validates it and
heals it until it is Resolved, Escalated or Cancelled. Failures are isolated per
component and the result always reports partial success explicitly.
*/
package pipeline
