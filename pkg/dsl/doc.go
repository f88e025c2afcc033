/*
Package dsl provides a Go DSL for declaring module manifests in code.

It builds the same manifests the YAML and Loam sources read, using a fluent
builder instead of external files. This is handy for hosts that ship their
core modules compiled in, and for tests.

Example usage:

	b := dsl.New()

	core := b.Module("core")
	menus := core.ExtensionPoint("/Workbench/Menus")
	menus.Type("Menu", "").Children("Item")
	menus.Type("Item", "MenuItem")

	file := core.Contribute("/Workbench/Menus").Add("Menu", "file")
	file.Child("Item", "open").Attr("label", "Open")
	file.Child("Item", "close").Attr("label", "Close")

	b.Module("git").DependsOn("core").Lazy().
		Contribute("/Workbench/Menus/file").
		Add("Item", "commit").Before("close").When("hasRepo")

	src, err := b.Build()
	// ... pass src to tree.Load(ctx, src)
*/
package dsl
