/*
Package domain contains the core models of the Arbor extension tree.

It defines the merged tree, the condition algebra that gates node visibility,
the descriptions modules contribute and the node type descriptors that bind
those descriptions to concrete extension objects. This package is kept pure
and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - TreeNode: A node of the merged tree (ordered children, condition, bound object).
  - Condition: Literal, Function, And, Or and Not predicates, composed with Compose.
  - NodeDescription / Contribution: What a module declares for an extension point.
  - NodeType / Bindings: How a node-name resolves to an instantiable ExtensionType
    and how its attributes bind to that type's members.
*/
package domain
