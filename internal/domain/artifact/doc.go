/*
Package artifact describes what a synthesized component artifact must look like.

A Contract is derived from an expanded component and its place in the graph.
It names the class the artifact defines, the prelude base class it extends,
the ports it declares and the schemas flowing through them. The validation
gate checks artifacts against a Contract and the healer rewrites artifacts
toward it.

The package also carries a small source scanner for artifact JavaScript. It
tracks brace depth while skipping strings and comments, which is enough to
locate classes and methods for targeted rewrites without a full parser.
*/
package artifact
