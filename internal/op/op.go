// Package op defines the closed set of batch operations and their wire
// encoding. Every operation is a tagged variant selected by the "op"
// discriminant; unknown or missing discriminants fail at decode time. Field
// names crossing the wire use the normalized underscore form (from_id, to_id,
// node_type, ...) regardless of the in-memory naming.
package op

import (
	"encoding/json"
	"fmt"
)

// Graph family discriminants.
const (
	OpCreateNode = "create_node"
	OpUpdateNode = "update_node"
	OpDeleteNode = "delete_node"
	OpRenameNode = "rename_node"
	OpLink       = "link"
	OpUnlink     = "unlink"
	OpCreatePlan = "create_plan"
	OpUpdatePlan = "update_plan"
	OpDeletePlan = "delete_plan"
	OpRenamePlan = "rename_plan"
)

// Display family discriminants.
const (
	OpCreateView      = "create_view"
	OpDeleteView      = "delete_view"
	OpUpdatePositions = "update_positions"
	OpRemovePositions = "remove_positions"
	OpSetWhitelist    = "set_whitelist"
	OpSetBlacklist    = "set_blacklist"
	OpUpdateView      = "update_view"
)

// Op is implemented by every operation variant.
type Op interface {
	// Name returns the wire discriminant of the variant.
	Name() string
	// Validate checks the payload shape before any store interaction.
	Validate() error
}

// Envelope carries just the discriminant, used to select the payload shape.
type Envelope struct {
	Op string `json:"op"`
}

// DecodeGraph decodes one raw graph-family operation.
func DecodeGraph(raw json.RawMessage) (Op, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("op: invalid operation object: %w", err)
	}

	var o Op
	switch env.Op {
	case OpCreateNode:
		o = &CreateNode{}
	case OpUpdateNode:
		o = &UpdateNode{}
	case OpDeleteNode:
		o = &DeleteNode{}
	case OpRenameNode:
		o = &RenameNode{}
	case OpLink:
		o = &Link{}
	case OpUnlink:
		o = &Unlink{}
	case OpCreatePlan:
		o = &CreatePlan{}
	case OpUpdatePlan:
		o = &UpdatePlan{}
	case OpDeletePlan:
		o = &DeletePlan{}
	case OpRenamePlan:
		o = &RenamePlan{}
	case "":
		return nil, fmt.Errorf("op: missing %q discriminant", "op")
	default:
		return nil, fmt.Errorf("op: unknown graph operation %q", env.Op)
	}
	return decodePayload(raw, o)
}

// DecodeDisplay decodes one raw display-family operation.
func DecodeDisplay(raw json.RawMessage) (Op, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("op: invalid operation object: %w", err)
	}

	var o Op
	switch env.Op {
	case OpCreateView:
		o = &CreateView{}
	case OpDeleteView:
		o = &DeleteView{}
	case OpUpdatePositions:
		o = &UpdatePositions{}
	case OpRemovePositions:
		o = &RemovePositions{}
	case OpSetWhitelist:
		o = &SetWhitelist{}
	case OpSetBlacklist:
		o = &SetBlacklist{}
	case OpUpdateView:
		o = &UpdateView{}
	case "":
		return nil, fmt.Errorf("op: missing %q discriminant", "op")
	default:
		return nil, fmt.Errorf("op: unknown display operation %q", env.Op)
	}
	return decodePayload(raw, o)
}

func decodePayload(raw json.RawMessage, o Op) (Op, error) {
	if err := json.Unmarshal(raw, o); err != nil {
		return nil, fmt.Errorf("op: decode %s: %w", o.Name(), err)
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("op: %s: %w", o.Name(), err)
	}
	return o, nil
}
