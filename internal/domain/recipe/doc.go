/*
Package recipe maps high-level component kinds onto primitive shapes.

A Recipe names one primitive (Source, Sink, Transformer, Splitter, Merger), the
traits the kind carries, its typed config fields, and templates for its ports.
The built-in table is embedded as YAML and loaded once.

Expansion applies a recipe to a ComponentSpec:
  - the config is typed with go-cty; every offending field is reported
  - port templates are instantiated, with schemas taken from config where the
    template says "$config.<field>" and repeated per item for "each" templates
  - traits contribute config fields and ports; a trait port may not reuse an
    existing port name

Expanding the same (kind, config) pair always yields the same ports in the same
order, so expansions are cached by kind and config hash.
*/
package recipe
