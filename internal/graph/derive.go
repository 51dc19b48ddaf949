package graph

import "github.com/starford/dagaz/internal/models"

// Derived holds the computed properties of a node. The calculated fields are
// nil when the graph has cycles, since propagation is undefined then;
// Parents and Children are always populated.
type Derived struct {
	CalculatedValue *bool
	CalculatedDue   *int64
	DepsClear       *bool
	IsActionable    *bool
	Parents         []string
	Children        []string
}

// Derive computes the derived properties for every node from the full node
// and edge sets, and reports whether the graph has cycles.
//
// calculated_value propagates through the dependency closure: a Task is
// effectively complete when its own flag is set and its dependencies are
// clear; a gate's value is its gate logic over its dependencies' values.
// calculated_due is the earliest due date among a node and everything that
// (transitively) depends on it.
func Derive(nodes []models.Node, deps []models.Dependency) (map[string]Derived, bool) {
	byID := make(map[string]models.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	fwd := make(map[string][]string)      // from -> its dependencies
	rev := make(map[string][]string)      // to -> its dependents
	parents := make(map[string][]string)  // to -> incident dep ids
	children := make(map[string][]string) // from -> incident dep ids
	for _, d := range deps {
		fwd[d.FromID] = append(fwd[d.FromID], d.ToID)
		rev[d.ToID] = append(rev[d.ToID], d.FromID)
		parents[d.ToID] = append(parents[d.ToID], d.ID)
		children[d.FromID] = append(children[d.FromID], d.ID)
	}

	out := make(map[string]Derived, len(nodes))
	cyclic := hasCycle(fwd)

	if cyclic {
		for _, n := range nodes {
			out[n.ID] = Derived{
				Parents:  orEmpty(parents[n.ID]),
				Children: orEmpty(children[n.ID]),
			}
		}
		return out, true
	}

	valueMemo := make(map[string]bool, len(nodes))
	var calcValue func(id string) bool
	calcValue = func(id string) bool {
		if v, ok := valueMemo[id]; ok {
			return v
		}
		n := byID[id]
		depVals := make([]bool, 0, len(fwd[id]))
		for _, dep := range fwd[id] {
			depVals = append(depVals, calcValue(dep))
		}
		v := gateLogic(n.Type, depVals)
		if n.Type == models.TypeTask {
			v = v && n.Completed != nil && *n.Completed
		}
		valueMemo[id] = v
		return v
	}

	dueMemo := make(map[string]*int64, len(nodes))
	var calcDue func(id string) *int64
	calcDue = func(id string) *int64 {
		if v, ok := dueMemo[id]; ok {
			return v
		}
		dueMemo[id] = nil // break accidental re-entry before recursing
		min := byID[id].Due
		for _, dependent := range rev[id] {
			d := calcDue(dependent)
			if d != nil && (min == nil || *d < *min) {
				min = d
			}
		}
		dueMemo[id] = min
		return min
	}

	for _, n := range nodes {
		value := calcValue(n.ID)
		depVals := make([]bool, 0, len(fwd[n.ID]))
		for _, dep := range fwd[n.ID] {
			depVals = append(depVals, calcValue(dep))
		}
		depsClear := gateLogic(n.Type, depVals)
		actionable := n.Type == models.TypeTask &&
			!(n.Completed != nil && *n.Completed) &&
			depsClear

		out[n.ID] = Derived{
			CalculatedValue: &value,
			CalculatedDue:   calcDue(n.ID),
			DepsClear:       &depsClear,
			IsActionable:    &actionable,
			Parents:         orEmpty(parents[n.ID]),
			Children:        orEmpty(children[n.ID]),
		}
	}
	return out, false
}

// gateLogic evaluates a node type's logic over its dependency values:
// Task and And require all dependencies true, Or requires at least one,
// Not requires none, ExactlyOne requires exactly one. A node with no
// dependencies is clear for Task/And/Not and not clear for Or/ExactlyOne.
func gateLogic(t models.NodeType, depVals []bool) bool {
	count := 0
	for _, v := range depVals {
		if v {
			count++
		}
	}
	switch t {
	case models.TypeTask, models.TypeAnd:
		return count == len(depVals)
	case models.TypeOr:
		return count > 0
	case models.TypeNot:
		return count == 0
	case models.TypeExactlyOne:
		return count == 1
	default:
		return true
	}
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
