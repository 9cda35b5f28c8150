/*
Package dsl provides a fluent builder for element documents.

It is the programmatic counterpart of the YAML state block of an easel
script, handy for seeding editors in code and tests:

	b := dsl.New("root", "page").Slice(domain.SlicePage, map[string]any{"title": "Home"})
	b.Root().Child("header", "section").Child("title", "heading").Data("text", "Hello")
	state, err := b.Build()

Build rejects documents whose children are undefined, shared between
parents, or unreachable from the root.
*/
package dsl
