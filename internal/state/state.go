// Package state assembles full observable-state snapshots from the graph
// store. Every snapshot is computed inside a single read transaction, so all
// of its fields reflect the store at one logical instant.
package state

import (
	"context"
	"fmt"

	"github.com/starford/dagaz/internal/graph"
	"github.com/starford/dagaz/internal/models"
)

// Kind selects which snapshot a consumer observes.
type Kind string

const (
	// KindTask covers nodes, dependencies, and the cycle flag.
	KindTask Kind = "task"
	// KindApp covers the task state plus plans.
	KindApp Kind = "app"
	// KindDisplay covers views.
	KindDisplay Kind = "display"
)

// NodeOut is a node enriched with its derived properties.
type NodeOut struct {
	ID              string          `json:"id"`
	Text            string          `json:"text"`
	NodeType        models.NodeType `json:"node_type"`
	Completed       *bool           `json:"completed"`
	Due             *int64          `json:"due"`
	CreatedAt       int64           `json:"created_at"`
	UpdatedAt       int64           `json:"updated_at"`
	CalculatedValue *bool           `json:"calculated_value"`
	CalculatedDue   *int64          `json:"calculated_due"`
	DepsClear       *bool           `json:"deps_clear"`
	IsActionable    *bool           `json:"is_actionable"`
	Parents         []string        `json:"parents"`
	Children        []string        `json:"children"`
}

// TaskState is the graph portion of the observable state.
type TaskState struct {
	Tasks        map[string]NodeOut           `json:"tasks"`
	Dependencies map[string]models.Dependency `json:"dependencies"`
	HasCycles    bool                         `json:"has_cycles"`
}

// AppState is the complete application state: graph plus plans.
type AppState struct {
	TaskState
	Plans map[string]models.Plan `json:"plans"`
}

// DisplayState is the display-layer state: views with their positions and
// filters.
type DisplayState struct {
	Views map[string]models.View `json:"views"`
}

// Aggregator computes snapshots from the store.
type Aggregator struct {
	store graph.Store
}

// NewAggregator creates an Aggregator over the given store.
func NewAggregator(store graph.Store) *Aggregator {
	return &Aggregator{store: store}
}

// Snapshot returns the snapshot of the requested kind. The result marshals to
// the wire shape streamed to subscribers.
func (a *Aggregator) Snapshot(ctx context.Context, kind Kind) (any, error) {
	switch kind {
	case KindTask:
		return a.TaskState(ctx)
	case KindApp:
		return a.AppState(ctx)
	case KindDisplay:
		return a.DisplayState(ctx)
	default:
		return nil, fmt.Errorf("state: unknown snapshot kind %q", kind)
	}
}

// TaskState returns the current graph snapshot.
func (a *Aggregator) TaskState(ctx context.Context) (*TaskState, error) {
	var ts *TaskState
	err := a.store.ReadTx(ctx, func(tx *graph.Tx) error {
		var err error
		ts, err = buildTaskState(tx)
		return err
	})
	return ts, err
}

// AppState returns the current graph-plus-plans snapshot.
func (a *Aggregator) AppState(ctx context.Context) (*AppState, error) {
	var as *AppState
	err := a.store.ReadTx(ctx, func(tx *graph.Tx) error {
		ts, err := buildTaskState(tx)
		if err != nil {
			return err
		}
		plans, err := tx.Plans()
		if err != nil {
			return err
		}
		planMap := make(map[string]models.Plan, len(plans))
		for _, p := range plans {
			planMap[p.ID] = p
		}
		as = &AppState{TaskState: *ts, Plans: planMap}
		return nil
	})
	return as, err
}

// DisplayState returns the current views snapshot.
func (a *Aggregator) DisplayState(ctx context.Context) (*DisplayState, error) {
	var ds *DisplayState
	err := a.store.ReadTx(ctx, func(tx *graph.Tx) error {
		views, err := tx.Views()
		if err != nil {
			return err
		}
		viewMap := make(map[string]models.View, len(views))
		for _, v := range views {
			viewMap[v.ID] = v
		}
		ds = &DisplayState{Views: viewMap}
		return nil
	})
	return ds, err
}

// GetNode returns a single node with derived properties.
func (a *Aggregator) GetNode(ctx context.Context, id string) (*NodeOut, error) {
	var out *NodeOut
	err := a.store.ReadTx(ctx, func(tx *graph.Tx) error {
		if _, err := tx.GetNode(id); err != nil {
			return err
		}
		// Derivation needs the dependency closure; computing over the whole
		// graph keeps the read consistent and is cheap at this scale.
		ts, err := buildTaskState(tx)
		if err != nil {
			return err
		}
		n := ts.Tasks[id]
		out = &n
		return nil
	})
	return out, err
}

func buildTaskState(tx *graph.Tx) (*TaskState, error) {
	nodes, err := tx.Nodes()
	if err != nil {
		return nil, err
	}
	deps, err := tx.Dependencies()
	if err != nil {
		return nil, err
	}

	derived, hasCycles := graph.Derive(nodes, deps)

	tasks := make(map[string]NodeOut, len(nodes))
	for _, n := range nodes {
		d := derived[n.ID]
		tasks[n.ID] = NodeOut{
			ID:              n.ID,
			Text:            n.Text,
			NodeType:        n.Type,
			Completed:       n.Completed,
			Due:             n.Due,
			CreatedAt:       n.CreatedAt,
			UpdatedAt:       n.UpdatedAt,
			CalculatedValue: d.CalculatedValue,
			CalculatedDue:   d.CalculatedDue,
			DepsClear:       d.DepsClear,
			IsActionable:    d.IsActionable,
			Parents:         d.Parents,
			Children:        d.Children,
		}
	}

	depMap := make(map[string]models.Dependency, len(deps))
	for _, d := range deps {
		depMap[d.ID] = d
	}

	return &TaskState{Tasks: tasks, Dependencies: depMap, HasCycles: hasCycles}, nil
}
