/*
Package schema describes the structural types carried on component ports.

A schema is either a scalar (string, integer, float, boolean), a list, a
record of named fields, or "any". Schemas are parsed from the loose form used
in blueprint config, compared for structural compatibility when bindings are
resolved, and used to generate deterministic sample inputs for the semantic
validation tier.

Compatibility rules:
  - records are structural subtypes: the source must carry every field the
    destination requires, with compatible types
  - scalars must match exactly, except integer widens to float
  - lists compare element types
*/
package schema
