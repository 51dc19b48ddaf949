package graph

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
)

// PlanUpdate describes a partial plan update. A present Steps field replaces
// the plan's whole step sequence.
type PlanUpdate struct {
	Text  models.Optional[string]
	Steps models.Optional[[]models.Step]
}

// CreatePlan inserts a new plan with its steps.
func (t *Tx) CreatePlan(id, text string, steps []models.Step) error {
	exists, err := t.planExists(id)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("plan %q: %w", id, apperr.ErrAlreadyExists)
	}
	if _, err := t.tx.Exec(`
		INSERT INTO plans (id, text, created_at, updated_at) VALUES (?, ?, ?, ?)
	`, id, text, t.now, t.now); err != nil {
		return fmt.Errorf("graph: insert plan: %w", err)
	}
	return t.setSteps(id, steps)
}

// UpdatePlan applies a partial update to an existing plan.
func (t *Tx) UpdatePlan(id string, u PlanUpdate) error {
	exists, err := t.planExists(id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("plan %q: %w", id, apperr.ErrNotFound)
	}

	if u.Text.Present() {
		text, _ := u.Text.Get() // null clears to empty
		if _, err := t.tx.Exec(
			`UPDATE plans SET text = ?, updated_at = ? WHERE id = ?`, text, t.now, id,
		); err != nil {
			return fmt.Errorf("graph: update plan: %w", err)
		}
	}
	if u.Steps.Present() {
		steps, _ := u.Steps.Get()
		if err := t.setSteps(id, steps); err != nil {
			return err
		}
		if _, err := t.tx.Exec(
			`UPDATE plans SET updated_at = ? WHERE id = ?`, t.now, id,
		); err != nil {
			return fmt.Errorf("graph: touch plan: %w", err)
		}
	}
	return nil
}

// DeletePlan removes a plan; its steps cascade. Returns false when the plan
// did not exist.
func (t *Tx) DeletePlan(id string) (bool, error) {
	res, err := t.tx.Exec(`DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("graph: delete plan: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RenamePlan changes a plan's id; step references follow via cascade.
func (t *Tx) RenamePlan(oldID, newID string) error {
	if oldID == newID {
		return fmt.Errorf("graph: old and new ids are the same")
	}
	exists, err := t.planExists(newID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("rename to %q: %w", newID, apperr.ErrConflict)
	}
	res, err := t.tx.Exec(`UPDATE plans SET id = ?, updated_at = ? WHERE id = ?`, newID, t.now, oldID)
	if err != nil {
		return fmt.Errorf("graph: rename plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("plan %q: %w", oldID, apperr.ErrNotFound)
	}
	return nil
}

// Plans returns every plan with its ordered steps, most recently updated
// first.
func (t *Tx) Plans() ([]models.Plan, error) {
	rows, err := t.tx.Query(`
		SELECT id, text, created_at, updated_at FROM plans ORDER BY updated_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("graph: list plans: %w", err)
	}
	defer rows.Close()

	var out []models.Plan
	byID := make(map[string]int)
	for rows.Next() {
		var p models.Plan
		if err := rows.Scan(&p.ID, &p.Text, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Steps = []models.Step{}
		byID[p.ID] = len(out)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// rowid preserves insertion order as the tie-break within equal ord.
	stepRows, err := t.tx.Query(`
		SELECT plan_id, node_id, ord FROM steps ORDER BY plan_id, ord ASC, rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("graph: list steps: %w", err)
	}
	defer stepRows.Close()

	for stepRows.Next() {
		var (
			planID string
			s      models.Step
		)
		if err := stepRows.Scan(&planID, &s.NodeID, &s.Order); err != nil {
			return nil, err
		}
		if i, ok := byID[planID]; ok {
			out[i].Steps = append(out[i].Steps, s)
		}
	}
	return out, stepRows.Err()
}

// setSteps replaces the step sequence of a plan.
func (t *Tx) setSteps(planID string, steps []models.Step) error {
	seen := make(map[string]bool, len(steps))
	var dups []string
	for _, s := range steps {
		if seen[s.NodeID] {
			dups = append(dups, s.NodeID)
		}
		seen[s.NodeID] = true
	}
	if len(dups) > 0 {
		return fmt.Errorf("graph: duplicate node(s) in plan: %s", strings.Join(dups, ", "))
	}

	if _, err := t.tx.Exec(`DELETE FROM steps WHERE plan_id = ?`, planID); err != nil {
		return fmt.Errorf("graph: clear steps: %w", err)
	}
	for _, s := range steps {
		exists, err := t.NodeExists(s.NodeID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("node %q: %w", s.NodeID, apperr.ErrNotFound)
		}
		if _, err := t.tx.Exec(`
			INSERT INTO steps (id, plan_id, node_id, ord) VALUES (?, ?, ?, ?)
		`, uuid.NewString(), planID, s.NodeID, s.Order); err != nil {
			return fmt.Errorf("graph: insert step: %w", err)
		}
	}
	return nil
}

func (t *Tx) planExists(id string) (bool, error) {
	var one int
	err := t.tx.QueryRow(`SELECT 1 FROM plans WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("graph: plan exists: %w", err)
	}
	return true, nil
}
