/*
Package ports defines the driven ports (interfaces) for the Arbor merge engine.

These interfaces decouple the merge core from the module runtime that hosts it,
allowing the engine to run against an in-memory host in tests, a manifest
directory in the CLI or a full plugin runtime.

# Key Interfaces

  - Host: Module table, node type lookup, lazy activation and error sink.
  - ExtensionContext: The shared tree (path lookup, condition index, notifications).
  - ManifestSource: Responsible for loading module manifests.
  - DistributedLocker: Serializes writers sharing one tree across processes.
*/
package ports
