// Package dag provides the directed acyclic graph used to describe the order
// in which pipeline steps consume each other's outputs. It only knows about
// string node IDs and edges; what a node means is up to the caller.
package dag
