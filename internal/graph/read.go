package graph

import (
	"database/sql"
	"fmt"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
)

// Nodes returns every node, most recently updated first.
func (t *Tx) Nodes() ([]models.Node, error) {
	rows, err := t.tx.Query(`
		SELECT id, node_type, text, completed, due, created_at, updated_at
		FROM nodes ORDER BY updated_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("graph: list nodes: %w", err)
	}
	defer rows.Close()

	var out []models.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// GetNode returns a single node by id.
func (t *Tx) GetNode(id string) (*models.Node, error) {
	row := t.tx.QueryRow(`
		SELECT id, node_type, text, completed, due, created_at, updated_at
		FROM nodes WHERE id = ?
	`, id)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("node %q: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(r rowScanner) (models.Node, error) {
	var (
		n         models.Node
		nodeType  string
		completed sql.NullBool
		due       sql.NullInt64
	)
	if err := r.Scan(&n.ID, &nodeType, &n.Text, &completed, &due, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return models.Node{}, err
	}
	n.Type = models.NodeType(nodeType)
	if completed.Valid {
		v := completed.Bool
		n.Completed = &v
	}
	if due.Valid {
		v := due.Int64
		n.Due = &v
	}
	return n, nil
}

// Dependencies returns every edge in a stable order.
func (t *Tx) Dependencies() ([]models.Dependency, error) {
	rows, err := t.tx.Query(`SELECT id, from_id, to_id FROM deps ORDER BY from_id, to_id`)
	if err != nil {
		return nil, fmt.Errorf("graph: list edges: %w", err)
	}
	defer rows.Close()

	var out []models.Dependency
	for rows.Next() {
		var d models.Dependency
		if err := rows.Scan(&d.ID, &d.FromID, &d.ToID); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// HasCycles reports whether the dependency relation contains a cycle. The
// link path rejects cycle-forming edges, so this should stay false; it is
// surfaced as a diagnostic for external writes to the database file.
func (t *Tx) HasCycles() (bool, error) {
	adj, err := t.adjacency()
	if err != nil {
		return false, err
	}
	return hasCycle(adj), nil
}

func hasCycle(adj map[string][]string) bool {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(adj))

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = visiting
		for _, next := range adj[id] {
			switch state[next] {
			case visiting:
				return true
			case done:
				continue
			default:
				if visit(next) {
					return true
				}
			}
		}
		state[id] = done
		return false
	}

	for id := range adj {
		if state[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}
