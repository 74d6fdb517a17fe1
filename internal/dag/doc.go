// Package dag decides whether a node set plus a candidate edge set forms a
// directed acyclic graph. It is pure: callers hand in plain ids and edges and
// get back a cycle witness, never a partially built structure.
package dag
