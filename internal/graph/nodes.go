package graph

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
)

// NodeCreate holds the parameters for creating a node. Depends lists node ids
// the new node depends on; Blocks lists node ids that depend on the new node.
type NodeCreate struct {
	ID        string
	Type      models.NodeType
	Text      string
	Completed bool
	Due       *int64
	Depends   []string
	Blocks    []string
}

// NodeUpdate describes a partial node update. Absent fields leave the current
// value untouched; explicit null clears Type (back to Task), Text, and Due.
type NodeUpdate struct {
	Text      models.Optional[string]
	Completed models.Optional[bool]
	Type      models.Optional[models.NodeType]
	Due       models.Optional[int64]
}

// CreateNode inserts a new node and its initial edges.
func (t *Tx) CreateNode(c NodeCreate) error {
	if c.Type == "" {
		c.Type = models.TypeTask
	}
	if !c.Type.Valid() {
		return fmt.Errorf("graph: invalid node type %q", c.Type)
	}

	exists, err := t.NodeExists(c.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("node %q: %w", c.ID, apperr.ErrAlreadyExists)
	}

	// Only Task nodes carry a completed flag; gates store NULL.
	var completed any
	if c.Type == models.TypeTask {
		completed = c.Completed
	}

	_, err = t.tx.Exec(`
		INSERT INTO nodes (id, node_type, text, completed, due, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, string(c.Type), c.Text, completed, c.Due, t.now, t.now)
	if err != nil {
		return fmt.Errorf("graph: insert node: %w", err)
	}

	for _, depID := range c.Depends {
		if _, err := t.Link(c.ID, depID); err != nil {
			return err
		}
	}
	for _, blockID := range c.Blocks {
		if _, err := t.Link(blockID, c.ID); err != nil {
			return err
		}
	}
	return nil
}

// UpdateNode applies a partial update to an existing node. Marking a
// completed task incomplete propagates the incompletion to every completed
// task that (transitively) depends on it.
func (t *Tx) UpdateNode(id string, u NodeUpdate) error {
	var (
		curType   string
		curText   string
		completed sql.NullBool
		due       sql.NullInt64
	)
	err := t.tx.QueryRow(`SELECT node_type, text, completed, due FROM nodes WHERE id = ?`, id).
		Scan(&curType, &curText, &completed, &due)
	if err == sql.ErrNoRows {
		return fmt.Errorf("node %q: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("graph: load node: %w", err)
	}

	newType := models.NodeType(curType)
	if u.Type.Present() {
		if u.Type.IsNull() {
			newType = models.TypeTask
		} else {
			newType, _ = u.Type.Get()
		}
		if !newType.Valid() {
			return fmt.Errorf("graph: invalid node type %q", newType)
		}
	}

	if u.Completed.IsNull() {
		return fmt.Errorf("graph: completed cannot be null")
	}

	newText := curText
	if u.Text.Present() {
		newText, _ = u.Text.Get() // null clears to empty
	}

	newDue := due
	if u.Due.Present() {
		if v, ok := u.Due.Get(); ok {
			newDue = sql.NullInt64{Int64: v, Valid: true}
		} else {
			newDue = sql.NullInt64{}
		}
	}

	// Completed follows the type transition: converting to Task gains a flag
	// (explicit value or false), converting away from Task drops it.
	newCompleted := completed
	if v, ok := u.Completed.Get(); ok {
		newCompleted = sql.NullBool{Bool: v, Valid: true}
	}
	switch {
	case newType == models.TypeTask && !newCompleted.Valid:
		newCompleted = sql.NullBool{Bool: false, Valid: true}
	case newType != models.TypeTask:
		newCompleted = sql.NullBool{}
	}

	wasCompletedTask := curType == string(models.TypeTask) && completed.Valid && completed.Bool
	uncompleting := wasCompletedTask && newCompleted.Valid && !newCompleted.Bool

	_, err = t.tx.Exec(`
		UPDATE nodes SET node_type = ?, text = ?, completed = ?, due = ?, updated_at = ?
		WHERE id = ?
	`, string(newType), newText, nullBoolArg(newCompleted), nullInt64Arg(newDue), t.now, id)
	if err != nil {
		return fmt.Errorf("graph: update node: %w", err)
	}

	if uncompleting {
		if err := t.propagateUncompletion(id); err != nil {
			return err
		}
	}
	return nil
}

// propagateUncompletion marks every completed task that depends on id as
// incomplete, recursively, so the stored flags stay consistent with the
// derived completion values.
func (t *Tx) propagateUncompletion(id string) error {
	rows, err := t.tx.Query(`
		SELECT d.from_id FROM deps d
		JOIN nodes n ON n.id = d.from_id
		WHERE d.to_id = ? AND n.node_type = 'Task' AND n.completed = 1
	`, id)
	if err != nil {
		return fmt.Errorf("graph: find dependents: %w", err)
	}
	var dependents []string
	for rows.Next() {
		var dep string
		if err := rows.Scan(&dep); err != nil {
			rows.Close()
			return err
		}
		dependents = append(dependents, dep)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, dep := range dependents {
		if _, err := t.tx.Exec(
			`UPDATE nodes SET completed = 0, updated_at = ? WHERE id = ?`, t.now, dep,
		); err != nil {
			return fmt.Errorf("graph: uncomplete dependent: %w", err)
		}
		if err := t.propagateUncompletion(dep); err != nil {
			return err
		}
	}
	return nil
}

// DeleteNode removes a node. Incident edges, plan steps, and view positions
// cascade. Returns false when the node did not exist.
func (t *Tx) DeleteNode(id string) (bool, error) {
	res, err := t.tx.Exec(`DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("graph: delete node: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RenameNode changes a node's id. Edges, steps, and positions referencing the
// old id follow via the ON UPDATE CASCADE foreign keys.
func (t *Tx) RenameNode(oldID, newID string) error {
	if oldID == newID {
		return fmt.Errorf("graph: old and new ids are the same")
	}
	exists, err := t.NodeExists(newID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("rename to %q: %w", newID, apperr.ErrConflict)
	}
	res, err := t.tx.Exec(`UPDATE nodes SET id = ?, updated_at = ? WHERE id = ?`, newID, t.now, oldID)
	if err != nil {
		return fmt.Errorf("graph: rename node: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("node %q: %w", oldID, apperr.ErrNotFound)
	}
	return nil
}

// Link creates the dependency edge fromID -> toID (fromID depends on toID)
// and returns its id. Linking an existing edge is a no-op that returns the
// existing id. The edge is rejected when it would close a cycle. After a
// successful insert, edges made redundant by longer paths are removed
// (transitive reduction).
func (t *Tx) Link(fromID, toID string) (string, error) {
	if fromID == toID {
		return "", fmt.Errorf("graph: self-loop not allowed: %s", fromID)
	}
	for _, id := range []string{fromID, toID} {
		exists, err := t.NodeExists(id)
		if err != nil {
			return "", err
		}
		if !exists {
			return "", fmt.Errorf("node %q: %w", id, apperr.ErrNotFound)
		}
	}

	var existing string
	err := t.tx.QueryRow(`SELECT id FROM deps WHERE from_id = ? AND to_id = ?`, fromID, toID).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("graph: lookup edge: %w", err)
	}

	adj, err := t.adjacency()
	if err != nil {
		return "", err
	}
	if reachable(adj, toID, fromID) {
		return "", fmt.Errorf("link %s -> %s: %w: a path already exists from %s to %s",
			fromID, toID, apperr.ErrCycle, toID, fromID)
	}

	depID := uuid.NewString()
	if _, err := t.tx.Exec(
		`INSERT INTO deps (id, from_id, to_id) VALUES (?, ?, ?)`, depID, fromID, toID,
	); err != nil {
		return "", fmt.Errorf("graph: insert edge: %w", err)
	}

	adj[fromID] = append(adj[fromID], toID)
	if err := t.reduceTransitive(adj); err != nil {
		return "", err
	}
	return depID, nil
}

// reduceTransitive removes direct edges already implied by a longer path.
func (t *Tx) reduceTransitive(adj map[string][]string) error {
	type edge struct{ from, to string }
	var redundant []edge
	for from, tos := range adj {
		for _, to := range tos {
			for _, mid := range adj[from] {
				if mid == to {
					continue
				}
				if reachable(adj, mid, to) {
					redundant = append(redundant, edge{from, to})
					break
				}
			}
		}
	}
	for _, e := range redundant {
		if _, err := t.tx.Exec(
			`DELETE FROM deps WHERE from_id = ? AND to_id = ?`, e.from, e.to,
		); err != nil {
			return fmt.Errorf("graph: reduce edge: %w", err)
		}
	}
	return nil
}

// Unlink removes the edge fromID -> toID. Returns false when it did not exist.
func (t *Tx) Unlink(fromID, toID string) (bool, error) {
	res, err := t.tx.Exec(`DELETE FROM deps WHERE from_id = ? AND to_id = ?`, fromID, toID)
	if err != nil {
		return false, fmt.Errorf("graph: delete edge: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// NodeExists reports whether a node with the given id exists.
func (t *Tx) NodeExists(id string) (bool, error) {
	var one int
	err := t.tx.QueryRow(`SELECT 1 FROM nodes WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("graph: node exists: %w", err)
	}
	return true, nil
}

func (t *Tx) adjacency() (map[string][]string, error) {
	rows, err := t.tx.Query(`SELECT from_id, to_id FROM deps`)
	if err != nil {
		return nil, fmt.Errorf("graph: load edges: %w", err)
	}
	defer rows.Close()

	adj := make(map[string][]string)
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, err
		}
		adj[from] = append(adj[from], to)
	}
	return adj, rows.Err()
}

// reachable reports whether dst can be reached from src along dependency
// edges.
func reachable(adj map[string][]string, src, dst string) bool {
	seen := map[string]bool{src: true}
	stack := []string{src}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range adj[cur] {
			if next == dst {
				return true
			}
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

func nullBoolArg(b sql.NullBool) any {
	if !b.Valid {
		return nil
	}
	return b.Bool
}

func nullInt64Arg(i sql.NullInt64) any {
	if !i.Valid {
		return nil
	}
	return i.Int64
}
