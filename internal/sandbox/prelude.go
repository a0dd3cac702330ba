package sandbox

import _ "embed"

// prelude defines the Component base classes (Source, Sink, Transformer,
// Splitter, Merger) that artifacts extend
//
//go:embed prelude.js
var prelude string

// BaseClasses lists the primitive base classes installed by the prelude
var BaseClasses = []string{"Source", "Sink", "Transformer", "Splitter", "Merger"}
