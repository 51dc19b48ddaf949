package graph

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
)

// ViewUpdate describes a combined view update. A present Positions field
// replaces the whole positions map; present Whitelist/Blacklist replace the
// corresponding filter, with null or empty clearing it.
type ViewUpdate struct {
	Positions models.Optional[map[string][]float64]
	Whitelist models.Optional[[]string]
	Blacklist models.Optional[[]string]
}

// CreateView inserts a new view.
func (t *Tx) CreateView(id string, positions map[string][]float64, whitelist, blacklist []string) error {
	exists, err := t.viewExists(id)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("view %q: %w", id, apperr.ErrAlreadyExists)
	}
	if _, err := t.tx.Exec(`
		INSERT INTO views (id, whitelist, blacklist, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, filterArg(whitelist), filterArg(blacklist), t.now, t.now); err != nil {
		return fmt.Errorf("graph: insert view: %w", err)
	}
	return t.putPositions(id, positions)
}

// DeleteView removes a view; its positions cascade. Returns false when the
// view did not exist.
func (t *Tx) DeleteView(id string) (bool, error) {
	res, err := t.tx.Exec(`DELETE FROM views WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("graph: delete view: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UpdatePositions upserts position entries on a view, creating the view if it
// does not exist yet. Entries for nodes not mentioned are left untouched.
func (t *Tx) UpdatePositions(viewID string, positions map[string][]float64) error {
	if err := t.ensureView(viewID); err != nil {
		return err
	}
	return t.putPositions(viewID, positions)
}

// RemovePositions deletes position entries for the given nodes. Removing from
// an absent view, or for nodes without an entry, is a no-op.
func (t *Tx) RemovePositions(viewID string, nodeIDs []string) error {
	for _, nodeID := range nodeIDs {
		if _, err := t.tx.Exec(
			`DELETE FROM positions WHERE view_id = ? AND node_id = ?`, viewID, nodeID,
		); err != nil {
			return fmt.Errorf("graph: remove position: %w", err)
		}
	}
	if _, err := t.tx.Exec(
		`UPDATE views SET updated_at = ? WHERE id = ?`, t.now, viewID,
	); err != nil {
		return fmt.Errorf("graph: touch view: %w", err)
	}
	return nil
}

// SetWhitelist replaces a view's whitelist, creating the view if absent. An
// empty list clears the filter.
func (t *Tx) SetWhitelist(viewID string, list []string) error {
	return t.setFilter(viewID, "whitelist", list)
}

// SetBlacklist replaces a view's blacklist, creating the view if absent. An
// empty list clears the filter.
func (t *Tx) SetBlacklist(viewID string, list []string) error {
	return t.setFilter(viewID, "blacklist", list)
}

// UpdateView applies a combined partial update, upserting the view.
func (t *Tx) UpdateView(id string, u ViewUpdate) error {
	if err := t.ensureView(id); err != nil {
		return err
	}
	if u.Positions.Present() {
		if _, err := t.tx.Exec(`DELETE FROM positions WHERE view_id = ?`, id); err != nil {
			return fmt.Errorf("graph: clear positions: %w", err)
		}
		if positions, ok := u.Positions.Get(); ok {
			if err := t.putPositions(id, positions); err != nil {
				return err
			}
		}
	}
	if u.Whitelist.Present() {
		list, _ := u.Whitelist.Get()
		if err := t.setFilter(id, "whitelist", list); err != nil {
			return err
		}
	}
	if u.Blacklist.Present() {
		list, _ := u.Blacklist.Get()
		if err := t.setFilter(id, "blacklist", list); err != nil {
			return err
		}
	}
	return nil
}

// Views returns every view with its positions and filters.
func (t *Tx) Views() ([]models.View, error) {
	rows, err := t.tx.Query(`
		SELECT id, whitelist, blacklist, created_at, updated_at
		FROM views ORDER BY updated_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("graph: list views: %w", err)
	}
	defer rows.Close()

	var out []models.View
	byID := make(map[string]int)
	for rows.Next() {
		var (
			v                    models.View
			whitelist, blacklist sql.NullString
		)
		if err := rows.Scan(&v.ID, &whitelist, &blacklist, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		if v.Whitelist, err = decodeFilter(whitelist); err != nil {
			return nil, err
		}
		if v.Blacklist, err = decodeFilter(blacklist); err != nil {
			return nil, err
		}
		v.Positions = map[string][]float64{}
		byID[v.ID] = len(out)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	posRows, err := t.tx.Query(`SELECT view_id, node_id, coords FROM positions`)
	if err != nil {
		return nil, fmt.Errorf("graph: list positions: %w", err)
	}
	defer posRows.Close()

	for posRows.Next() {
		var viewID, nodeID, coordsJSON string
		if err := posRows.Scan(&viewID, &nodeID, &coordsJSON); err != nil {
			return nil, err
		}
		var coords []float64
		if err := json.Unmarshal([]byte(coordsJSON), &coords); err != nil {
			return nil, fmt.Errorf("graph: decode coords: %w", err)
		}
		if i, ok := byID[viewID]; ok {
			out[i].Positions[nodeID] = coords
		}
	}
	return out, posRows.Err()
}

// ensureView creates the view row when absent (the display family's upsert
// policy) and bumps updated_at either way.
func (t *Tx) ensureView(id string) error {
	if _, err := t.tx.Exec(`
		INSERT INTO views (id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
	`, id, t.now, t.now); err != nil {
		return fmt.Errorf("graph: ensure view: %w", err)
	}
	return nil
}

func (t *Tx) putPositions(viewID string, positions map[string][]float64) error {
	for nodeID, coords := range positions {
		exists, err := t.NodeExists(nodeID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("node %q: %w", nodeID, apperr.ErrNotFound)
		}
		coordsJSON, err := json.Marshal(coords)
		if err != nil {
			return fmt.Errorf("graph: encode coords: %w", err)
		}
		if _, err := t.tx.Exec(`
			INSERT INTO positions (view_id, node_id, coords) VALUES (?, ?, ?)
			ON CONFLICT(view_id, node_id) DO UPDATE SET coords = excluded.coords
		`, viewID, nodeID, string(coordsJSON)); err != nil {
			return fmt.Errorf("graph: upsert position: %w", err)
		}
	}
	return nil
}

func (t *Tx) setFilter(viewID, column string, list []string) error {
	if err := t.ensureView(viewID); err != nil {
		return err
	}
	// Column name is one of two fixed strings, never user input.
	q := fmt.Sprintf(`UPDATE views SET %s = ?, updated_at = ? WHERE id = ?`, column)
	if _, err := t.tx.Exec(q, filterArg(list), t.now, viewID); err != nil {
		return fmt.Errorf("graph: set %s: %w", column, err)
	}
	return nil
}

func (t *Tx) viewExists(id string) (bool, error) {
	var one int
	err := t.tx.QueryRow(`SELECT 1 FROM views WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("graph: view exists: %w", err)
	}
	return true, nil
}

// filterArg encodes a filter list for storage; empty and nil both mean the
// filter is unset.
func filterArg(list []string) any {
	if len(list) == 0 {
		return nil
	}
	data, _ := json.Marshal(list)
	return string(data)
}

func decodeFilter(s sql.NullString) ([]string, error) {
	if !s.Valid {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(s.String), &list); err != nil {
		return nil, fmt.Errorf("graph: decode filter: %w", err)
	}
	return list, nil
}
