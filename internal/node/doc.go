// Package node defines the vertices of the execution graph: nodes, their
// kind-specific configurations, the edges between them and the result each
// execution leaves behind.
package node
