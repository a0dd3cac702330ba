/*
Package validation implements the validation gate for synthesized artifacts.

Tiers run in a fixed order and every tier always runs, so a single verdict
carries the complete diagnostic picture:

  - structural: the artifact compiles, defines the contract class on the right
    base, constructs, and exposes its entry points
  - logic: a static rule table flags placeholder bodies, forbidden constructs
    and other patterns the healer knows how to repair
  - integration: the ports the artifact declares match the graph exactly
  - semantic: the artifact runs against schema-derived samples in the sandbox
    and its outputs conform to the declared output schemas

Each tier yields passed and total check counts. The score is the weighted
mean of tier ratios. A verdict passes when the score reaches the threshold
and no finding is fatal.
*/
package validation
