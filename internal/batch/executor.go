// Package batch applies ordered operation sequences to the graph store as
// all-or-nothing transactions.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/dagaz/internal/graph"
	"github.com/starford/dagaz/internal/op"
	"github.com/starford/dagaz/internal/state"
)

// OperationResult reports the outcome of one operation, positionally aligned
// with the submitted sequence.
type OperationResult struct {
	Op      string `json:"op"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Result is the outcome of a whole batch. Success is false whenever the
// transaction was rolled back; individual results identify the operation
// that caused it.
type Result struct {
	Success bool              `json:"success"`
	Results []OperationResult `json:"results"`
	Message string            `json:"message,omitempty"`
}

// Notifier is told about committed state changes, exactly once per batch.
type Notifier interface {
	StateChanged(kinds ...state.Kind)
}

// Executor runs operation batches against the store. It performs no locking
// of its own; atomicity and write serialization are delegated entirely to the
// store transaction.
type Executor struct {
	store    graph.Store
	notifier Notifier
}

// New creates an Executor. notifier may be nil.
func New(store graph.Store, notifier Notifier) *Executor {
	return &Executor{store: store, notifier: notifier}
}

// ApplyGraph decodes and applies a graph-family batch.
func (e *Executor) ApplyGraph(ctx context.Context, raws []json.RawMessage) Result {
	return e.apply(ctx, raws, op.DecodeGraph, execGraph, graphKinds)
}

// ApplyDisplay decodes and applies a display-family batch.
func (e *Executor) ApplyDisplay(ctx context.Context, raws []json.RawMessage) Result {
	return e.apply(ctx, raws, op.DecodeDisplay, execDisplay, displayKinds)
}

func (e *Executor) apply(
	ctx context.Context,
	raws []json.RawMessage,
	decode func(json.RawMessage) (op.Op, error),
	exec func(tx *graph.Tx, o op.Op) (string, error),
	kinds func(ops []op.Op) []state.Kind,
) Result {
	if len(raws) == 0 {
		return Result{Success: false, Message: "operations must not be empty"}
	}

	// Decode everything up front: malformed operations are rejected before
	// any store interaction.
	ops := make([]op.Op, len(raws))
	results := make([]OperationResult, len(raws))
	decodeFailed := -1
	for i, raw := range raws {
		o, err := decode(raw)
		if err != nil {
			var env op.Envelope
			_ = json.Unmarshal(raw, &env)
			results[i] = OperationResult{Op: env.Op, Success: false, Message: err.Error()}
			if decodeFailed < 0 {
				decodeFailed = i
			}
			continue
		}
		ops[i] = o
		results[i] = OperationResult{Op: o.Name(), Success: true}
	}
	if decodeFailed >= 0 {
		return Result{
			Success: false,
			Results: results,
			Message: fmt.Sprintf("operation %d failed to decode: %s", decodeFailed, results[decodeFailed].Message),
		}
	}

	var (
		failedIdx = -1
		failedErr error
	)
	err := e.store.WriteTx(ctx, func(tx *graph.Tx) error {
		for i, o := range ops {
			msg, err := exec(tx, o)
			if err != nil {
				failedIdx, failedErr = i, err
				return err
			}
			results[i].Message = msg
		}
		return nil
	})
	if err != nil {
		if failedIdx >= 0 {
			results[failedIdx] = OperationResult{
				Op:      ops[failedIdx].Name(),
				Success: false,
				Message: failedErr.Error(),
			}
			return Result{
				Success: false,
				Results: results,
				Message: fmt.Sprintf("operation %d (%s) failed: %s", failedIdx, ops[failedIdx].Name(), failedErr),
			}
		}
		// The transaction itself failed (begin/commit), not an operation.
		slog.Error("batch transaction failed", slog.String("error", err.Error()))
		return Result{Success: false, Results: results, Message: "transaction failed"}
	}

	// Exactly one notification per committed batch, never per operation:
	// subscribers observe the post-batch state only.
	if e.notifier != nil {
		e.notifier.StateChanged(kinds(ops)...)
	}
	return Result{Success: true, Results: results}
}

// graphKinds reports which snapshot kinds a committed graph batch affects.
// Deleting or renaming a node cascades into view positions, so those batches
// also touch the display state.
func graphKinds(ops []op.Op) []state.Kind {
	kinds := []state.Kind{state.KindTask, state.KindApp}
	for _, o := range ops {
		switch o.(type) {
		case *op.DeleteNode, *op.RenameNode:
			return append(kinds, state.KindDisplay)
		}
	}
	return kinds
}

func displayKinds([]op.Op) []state.Kind {
	return []state.Kind{state.KindDisplay}
}

func execGraph(tx *graph.Tx, o op.Op) (string, error) {
	switch v := o.(type) {
	case *op.CreateNode:
		return "", tx.CreateNode(graph.NodeCreate{
			ID:        v.ID,
			Type:      v.NodeType,
			Text:      v.Text,
			Completed: v.Completed,
			Due:       v.Due,
			Depends:   v.Depends,
			Blocks:    v.Blocks,
		})
	case *op.UpdateNode:
		return "", tx.UpdateNode(v.ID, graph.NodeUpdate{
			Text:      v.Text,
			Completed: v.Completed,
			Type:      v.NodeType,
			Due:       v.Due,
		})
	case *op.DeleteNode:
		found, err := tx.DeleteNode(v.ID)
		if err != nil {
			return "", err
		}
		if !found {
			return fmt.Sprintf("node %q already absent", v.ID), nil
		}
		return fmt.Sprintf("deleted node %q", v.ID), nil
	case *op.RenameNode:
		if err := tx.RenameNode(v.ID, v.NewID); err != nil {
			return "", err
		}
		return fmt.Sprintf("renamed %q to %q", v.ID, v.NewID), nil
	case *op.Link:
		if _, err := tx.Link(v.FromID, v.ToID); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s now depends on %s", v.FromID, v.ToID), nil
	case *op.Unlink:
		found, err := tx.Unlink(v.FromID, v.ToID)
		if err != nil {
			return "", err
		}
		if !found {
			return fmt.Sprintf("edge %s -> %s already absent", v.FromID, v.ToID), nil
		}
		return fmt.Sprintf("removed dependency %s -> %s", v.FromID, v.ToID), nil
	case *op.CreatePlan:
		return "", tx.CreatePlan(v.ID, v.Text, v.Steps)
	case *op.UpdatePlan:
		return "", tx.UpdatePlan(v.ID, graph.PlanUpdate{Text: v.Text, Steps: v.Steps})
	case *op.DeletePlan:
		found, err := tx.DeletePlan(v.ID)
		if err != nil {
			return "", err
		}
		if !found {
			return fmt.Sprintf("plan %q already absent", v.ID), nil
		}
		return fmt.Sprintf("deleted plan %q", v.ID), nil
	case *op.RenamePlan:
		if err := tx.RenamePlan(v.ID, v.NewID); err != nil {
			return "", err
		}
		return fmt.Sprintf("renamed %q to %q", v.ID, v.NewID), nil
	default:
		return "", errors.New("unsupported graph operation")
	}
}

func execDisplay(tx *graph.Tx, o op.Op) (string, error) {
	switch v := o.(type) {
	case *op.CreateView:
		return "", tx.CreateView(v.ID, v.Positions, v.Whitelist, v.Blacklist)
	case *op.DeleteView:
		found, err := tx.DeleteView(v.ID)
		if err != nil {
			return "", err
		}
		if !found {
			return fmt.Sprintf("view %q already absent", v.ID), nil
		}
		return fmt.Sprintf("deleted view %q", v.ID), nil
	case *op.UpdatePositions:
		return "", tx.UpdatePositions(v.ViewID, v.Positions)
	case *op.RemovePositions:
		return "", tx.RemovePositions(v.ViewID, v.NodeIDs)
	case *op.SetWhitelist:
		return "", tx.SetWhitelist(v.ViewID, v.Whitelist)
	case *op.SetBlacklist:
		return "", tx.SetBlacklist(v.ViewID, v.Blacklist)
	case *op.UpdateView:
		return "", tx.UpdateView(v.ID, graph.ViewUpdate{
			Positions: v.Positions,
			Whitelist: v.Whitelist,
			Blacklist: v.Blacklist,
		})
	default:
		return "", errors.New("unsupported display operation")
	}
}
