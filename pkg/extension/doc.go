/*
Package extension provides the baseline extension object types and the
attribute binding used to populate them.

Every node merged into the tree gets an extension object. Node types that
declare no concrete type get a TypeNode; node types bound to a custom payload
get the PayloadNode / PayloadTypeNode variant built for that payload type by
NewPayloadType, so authors never subclass by hand.

Custom types embed Node (squashed for mapstructure) and register a
domain.Bindings table extending NodeBindings or TypeNodeBindings.
*/
package extension
