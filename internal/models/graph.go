// Package models defines the domain types for Dagaz.
package models

// NodeType classifies a node in the dependency graph. Task nodes carry their
// own completion flag; gate nodes derive their value from their dependencies.
type NodeType string

const (
	TypeTask       NodeType = "Task"
	TypeAnd        NodeType = "And"
	TypeOr         NodeType = "Or"
	TypeNot        NodeType = "Not"
	TypeExactlyOne NodeType = "ExactlyOne"
)

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	switch t {
	case TypeTask, TypeAnd, TypeOr, TypeNot, TypeExactlyOne:
		return true
	}
	return false
}

// Node is a unit of work (or a gate) in the dependency graph.
// Completed is nil for gate nodes.
type Node struct {
	ID        string   `json:"id"`
	Type      NodeType `json:"node_type"`
	Text      string   `json:"text"`
	Completed *bool    `json:"completed"`
	Due       *int64   `json:"due"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
}

// Dependency is a directed edge meaning FromID depends on ToID.
type Dependency struct {
	ID     string `json:"id"`
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
}

// Step references a node from within a plan. Steps are ordered by Order,
// ties broken by insertion sequence.
type Step struct {
	NodeID string  `json:"node_id"`
	Order  float64 `json:"order"`
}

// Plan is a named ordered sequence of node references.
type Plan struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	Steps     []Step `json:"steps"`
}

// View is a named filter/layout over the node set. A nil Whitelist or
// Blacklist means the filter is unset; an empty slice is an explicit
// empty filter.
type View struct {
	ID        string               `json:"id"`
	Positions map[string][]float64 `json:"positions"`
	Whitelist []string             `json:"whitelist"`
	Blacklist []string             `json:"blacklist"`
	CreatedAt int64                `json:"created_at"`
	UpdatedAt int64                `json:"updated_at"`
}
