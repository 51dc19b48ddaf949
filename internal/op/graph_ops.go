package op

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dagaz/internal/models"
)

// CreateNode creates a node, optionally with initial edges: the new node
// depends on every id in Depends, and every id in Blocks depends on it.
type CreateNode struct {
	ID        string          `json:"id"`
	Text      string          `json:"text,omitempty"`
	Completed bool            `json:"completed,omitempty"`
	NodeType  models.NodeType `json:"node_type,omitempty"`
	Due       *int64          `json:"due,omitempty"`
	Depends   []string        `json:"depends,omitempty"`
	Blocks    []string        `json:"blocks,omitempty"`
}

// Name implements Op.
func (CreateNode) Name() string { return OpCreateNode }

// Validate implements Op.
func (o *CreateNode) Validate() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.ID, validation.Required),
		validation.Field(&o.NodeType, validNodeType),
	)
}

// UpdateNode partially updates a node. Absent fields are untouched; text,
// node_type, and due accept explicit null to clear. Completed has no clear
// semantic, so completed: null is a decode error.
type UpdateNode struct {
	ID        string                           `json:"id"`
	Text      models.Optional[string]          `json:"text,omitzero"`
	Completed models.Optional[bool]            `json:"completed,omitzero"`
	NodeType  models.Optional[models.NodeType] `json:"node_type,omitzero"`
	Due       models.Optional[int64]           `json:"due,omitzero"`
}

// Name implements Op.
func (UpdateNode) Name() string { return OpUpdateNode }

// Validate implements Op.
func (o *UpdateNode) Validate() error {
	if err := validation.ValidateStruct(o,
		validation.Field(&o.ID, validation.Required),
	); err != nil {
		return err
	}
	if o.Completed.IsNull() {
		return fmt.Errorf("completed: cannot be null")
	}
	if t, ok := o.NodeType.Get(); ok && !t.Valid() {
		return fmt.Errorf("node_type: invalid value %q", t)
	}
	return nil
}

// DeleteNode deletes a node and everything referencing it. Deleting an
// already-absent id is a no-op that reports success.
type DeleteNode struct {
	ID string `json:"id"`
}

// Name implements Op.
func (DeleteNode) Name() string { return OpDeleteNode }

// Validate implements Op.
func (o *DeleteNode) Validate() error {
	return validation.ValidateStruct(o, validation.Field(&o.ID, validation.Required))
}

// RenameNode changes a node's id, migrating every reference.
type RenameNode struct {
	ID    string `json:"id"`
	NewID string `json:"new_id"`
}

// Name implements Op.
func (RenameNode) Name() string { return OpRenameNode }

// Validate implements Op.
func (o *RenameNode) Validate() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.ID, validation.Required),
		validation.Field(&o.NewID, validation.Required),
	)
}

// Link creates the dependency from_id -> to_id.
type Link struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
}

// Name implements Op.
func (Link) Name() string { return OpLink }

// Validate implements Op.
func (o *Link) Validate() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.FromID, validation.Required),
		validation.Field(&o.ToID, validation.Required),
	)
}

// Unlink removes the dependency from_id -> to_id. Unlinking an absent edge is
// a no-op that reports success.
type Unlink struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
}

// Name implements Op.
func (Unlink) Name() string { return OpUnlink }

// Validate implements Op.
func (o *Unlink) Validate() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.FromID, validation.Required),
		validation.Field(&o.ToID, validation.Required),
	)
}

// CreatePlan creates a plan with an ordered step sequence.
type CreatePlan struct {
	ID    string        `json:"id"`
	Text  string        `json:"text,omitempty"`
	Steps []models.Step `json:"steps,omitempty"`
}

// Name implements Op.
func (CreatePlan) Name() string { return OpCreatePlan }

// Validate implements Op.
func (o *CreatePlan) Validate() error {
	if err := validation.ValidateStruct(o,
		validation.Field(&o.ID, validation.Required),
	); err != nil {
		return err
	}
	return validateSteps(o.Steps)
}

// UpdatePlan partially updates a plan; a present steps field replaces the
// whole sequence.
type UpdatePlan struct {
	ID    string                         `json:"id"`
	Text  models.Optional[string]        `json:"text,omitzero"`
	Steps models.Optional[[]models.Step] `json:"steps,omitzero"`
}

// Name implements Op.
func (UpdatePlan) Name() string { return OpUpdatePlan }

// Validate implements Op.
func (o *UpdatePlan) Validate() error {
	if err := validation.ValidateStruct(o,
		validation.Field(&o.ID, validation.Required),
	); err != nil {
		return err
	}
	if steps, ok := o.Steps.Get(); ok {
		return validateSteps(steps)
	}
	return nil
}

// DeletePlan deletes a plan and its steps.
type DeletePlan struct {
	ID string `json:"id"`
}

// Name implements Op.
func (DeletePlan) Name() string { return OpDeletePlan }

// Validate implements Op.
func (o *DeletePlan) Validate() error {
	return validation.ValidateStruct(o, validation.Field(&o.ID, validation.Required))
}

// RenamePlan changes a plan's id, migrating its steps.
type RenamePlan struct {
	ID    string `json:"id"`
	NewID string `json:"new_id"`
}

// Name implements Op.
func (RenamePlan) Name() string { return OpRenamePlan }

// Validate implements Op.
func (o *RenamePlan) Validate() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.ID, validation.Required),
		validation.Field(&o.NewID, validation.Required),
	)
}

var validNodeType = validation.By(func(value interface{}) error {
	t, _ := value.(models.NodeType)
	if t == "" || t.Valid() {
		return nil
	}
	return fmt.Errorf("invalid value %q", t)
})

func validateSteps(steps []models.Step) error {
	for i, s := range steps {
		if s.NodeID == "" {
			return fmt.Errorf("steps[%d]: node_id is required", i)
		}
	}
	return nil
}
