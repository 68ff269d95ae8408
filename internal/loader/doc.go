// Package loader decodes HCL, JSON and YAML documents into tree.Tree values.
//
// Key order follows the source document. YAML aliases resolve to the
// container their anchor names, so a document reusing an anchored mapping
// holds one container reachable from two places. Merge keys (<<) copy the
// merged entries into the enclosing mapping instead, so they never share a
// container with their anchor.
package loader
