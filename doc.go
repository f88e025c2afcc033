/*
Package arbor is a declarative extension-tree merge engine for plugin hosts.

Independently loaded modules declare extension points (named tree locations
that accept a set of node types) and contribute nodes to them. Arbor merges
every contribution, in a deterministic order, into a single shared tree.

# Concept

A contribution is a target path plus an ordered list of node descriptions.
Descriptions can be positioned relative to existing siblings (insert_before,
insert_after), gated by boolean conditions (inline expressions, Condition
blocks and ComplexCondition blocks combining And, Or and Not) and nested.
Conditions are composed while merging and registered with the host; they are
never evaluated by Arbor.

Each node is backed by an extension object. Its concrete type is resolved
lazily from the module owning the node type, activating that module on demand,
and its attributes are bound through a declarative binding table.

# Usage

	tree := arbor.New(arbor.WithLogger(logging.New(slog.LevelInfo)))

	tree.Registry().Register("core", "MenuItem", func() domain.ExtensionObject {
		return &MenuItem{}
	}, menuItemBindings)

	if err := tree.Load(ctx, file.NewSource("./modules")); err != nil {
		log.Fatal(err) // malformed extension type
	}

	menu, _ := tree.Find("/Workbench/Menus")
	for _, item := range menu.Children() {
		fmt.Println(item.ID, item.Condition)
	}

Recoverable problems (unknown paths, disallowed nodes, missing types, invalid
condition blocks, nodes failing validation) never abort a merge: they are
reported and available from Tree.Errors. Only malformed extension types
(for instance two members bound to a custom payload) are returned as errors.

# Architecture

  - pkg/domain: tree, conditions, node types, bindings and errors.
  - internal/runtime: merge engine and node type resolver.
  - pkg/ports: collaborators the engine is embedded in.
  - pkg/adapters: in-memory host, YAML file and Loam manifest sources, Redis lock
    and snapshot store, HTTP inspection API and MCP server.
*/
package arbor
