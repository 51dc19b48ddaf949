package op

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dagaz/internal/models"
)

// CreateView creates a view. Fails when the id already exists.
type CreateView struct {
	ID        string               `json:"id"`
	Positions map[string][]float64 `json:"positions,omitempty"`
	Whitelist []string             `json:"whitelist,omitempty"`
	Blacklist []string             `json:"blacklist,omitempty"`
}

// Name implements Op.
func (CreateView) Name() string { return OpCreateView }

// Validate implements Op.
func (o *CreateView) Validate() error {
	return validation.ValidateStruct(o, validation.Field(&o.ID, validation.Required))
}

// DeleteView deletes a view and its positions. Deleting an absent view is a
// no-op that reports success.
type DeleteView struct {
	ID string `json:"id"`
}

// Name implements Op.
func (DeleteView) Name() string { return OpDeleteView }

// Validate implements Op.
func (o *DeleteView) Validate() error {
	return validation.ValidateStruct(o, validation.Field(&o.ID, validation.Required))
}

// UpdatePositions upserts position entries on a view, creating the view when
// it does not exist yet.
type UpdatePositions struct {
	ViewID    string               `json:"view_id"`
	Positions map[string][]float64 `json:"positions"`
}

// Name implements Op.
func (UpdatePositions) Name() string { return OpUpdatePositions }

// Validate implements Op.
func (o *UpdatePositions) Validate() error {
	if err := validation.ValidateStruct(o,
		validation.Field(&o.ViewID, validation.Required),
	); err != nil {
		return err
	}
	if o.Positions == nil {
		return fmt.Errorf("positions: is required")
	}
	return nil
}

// RemovePositions deletes position entries for the given nodes.
type RemovePositions struct {
	ViewID  string   `json:"view_id"`
	NodeIDs []string `json:"node_ids"`
}

// Name implements Op.
func (RemovePositions) Name() string { return OpRemovePositions }

// Validate implements Op.
func (o *RemovePositions) Validate() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.ViewID, validation.Required),
		validation.Field(&o.NodeIDs, validation.Required),
	)
}

// SetWhitelist replaces a view's whitelist; an empty list clears it.
type SetWhitelist struct {
	ViewID    string   `json:"view_id"`
	Whitelist []string `json:"whitelist"`
}

// Name implements Op.
func (SetWhitelist) Name() string { return OpSetWhitelist }

// Validate implements Op.
func (o *SetWhitelist) Validate() error {
	return validation.ValidateStruct(o, validation.Field(&o.ViewID, validation.Required))
}

// SetBlacklist replaces a view's blacklist; an empty list clears it.
type SetBlacklist struct {
	ViewID    string   `json:"view_id"`
	Blacklist []string `json:"blacklist"`
}

// Name implements Op.
func (SetBlacklist) Name() string { return OpSetBlacklist }

// Validate implements Op.
func (o *SetBlacklist) Validate() error {
	return validation.ValidateStruct(o, validation.Field(&o.ViewID, validation.Required))
}

// UpdateView is the combined display update: it upserts the view and can set
// positions, whitelist, and blacklist in one call. Absent fields are
// untouched; null or empty clears.
type UpdateView struct {
	ID        string                                `json:"id"`
	Positions models.Optional[map[string][]float64] `json:"positions,omitzero"`
	Whitelist models.Optional[[]string]             `json:"whitelist,omitzero"`
	Blacklist models.Optional[[]string]             `json:"blacklist,omitzero"`
}

// Name implements Op.
func (UpdateView) Name() string { return OpUpdateView }

// Validate implements Op.
func (o *UpdateView) Validate() error {
	return validation.ValidateStruct(o, validation.Field(&o.ID, validation.Required))
}
