// ABOUTME: Core data types for a snapshotted object graph
// ABOUTME: Defines Node, NodeID, and the small Path type paths-to-roots returns

package graph

// NodeID identifies one object within a single Index. IDs are assigned by
// whoever builds the Index (ccms's Snapshot numbers objects from 1) and are
// only meaningful relative to that Index — two different snapshots of the
// same underlying heap may assign the same live object two different IDs.
// Adding a second node under an ID already present replaces the first.
type NodeID uint64

// Node is one object recorded into an Index: an identity, a descriptive
// type tag, a declared weight standing in for whatever "size" means to the
// snapshot builder, and the IDs of every node it points to.
type Node struct {
	ID    NodeID
	Type  string   // e.g. "cyclic", "acyclic"
	Size  uint64   // weight used by RetainedSize; not necessarily bytes
	Edges []NodeID // IDs this node points to
}

// Path is one route from a node back to one of an Index's declared roots,
// listed from the starting node to the root.
type Path struct {
	Nodes []NodeID
}
