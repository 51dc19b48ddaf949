package graph_test

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/graph"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/testutil"
)

func write(t *testing.T, db *graph.DB, fn func(tx *graph.Tx) error) {
	t.Helper()
	if err := db.WriteTx(context.Background(), fn); err != nil {
		t.Fatal(err)
	}
}

func read(t *testing.T, db *graph.DB, fn func(tx *graph.Tx) error) {
	t.Helper()
	if err := db.ReadTx(context.Background(), fn); err != nil {
		t.Fatal(err)
	}
}

func mkTask(t *testing.T, db *graph.DB, ids ...string) {
	t.Helper()
	write(t, db, func(tx *graph.Tx) error {
		for _, id := range ids {
			if err := tx.CreateNode(graph.NodeCreate{ID: id, Text: id}); err != nil {
				return err
			}
		}
		return nil
	})
}

func TestCreateNodeDefaults(t *testing.T) {
	db := testutil.TestDB(t)
	mkTask(t, db, "a")

	read(t, db, func(tx *graph.Tx) error {
		n, err := tx.GetNode("a")
		if err != nil {
			return err
		}
		if n.Type != models.TypeTask {
			t.Errorf("type = %q, want Task", n.Type)
		}
		if n.Completed == nil || *n.Completed {
			t.Errorf("completed = %v, want false", n.Completed)
		}
		if n.Due != nil {
			t.Errorf("due = %v, want nil", *n.Due)
		}
		return nil
	})
}

func TestCreateNodeDuplicate(t *testing.T) {
	db := testutil.TestDB(t)
	mkTask(t, db, "a")

	err := db.WriteTx(context.Background(), func(tx *graph.Tx) error {
		return tx.CreateNode(graph.NodeCreate{ID: "a"})
	})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestCreateGateHasNoCompleted(t *testing.T) {
	db := testutil.TestDB(t)
	write(t, db, func(tx *graph.Tx) error {
		return tx.CreateNode(graph.NodeCreate{ID: "g", Type: models.TypeAnd, Completed: true})
	})
	read(t, db, func(tx *graph.Tx) error {
		n, err := tx.GetNode("g")
		if err != nil {
			return err
		}
		if n.Completed != nil {
			t.Errorf("gate completed = %v, want nil", *n.Completed)
		}
		return nil
	})
}

func TestCreateNodeWithEdges(t *testing.T) {
	db := testutil.TestDB(t)
	mkTask(t, db, "dep", "blocked")

	write(t, db, func(tx *graph.Tx) error {
		return tx.CreateNode(graph.NodeCreate{
			ID:      "mid",
			Depends: []string{"dep"},
			Blocks:  []string{"blocked"},
		})
	})

	read(t, db, func(tx *graph.Tx) error {
		deps, err := tx.Dependencies()
		if err != nil {
			return err
		}
		if len(deps) != 2 {
			t.Fatalf("got %d edges, want 2", len(deps))
		}
		got := map[string]string{}
		for _, d := range deps {
			got[d.FromID] = d.ToID
		}
		if got["mid"] != "dep" || got["blocked"] != "mid" {
			t.Errorf("edges = %v", got)
		}
		return nil
	})
}

func TestUpdateNodePartial(t *testing.T) {
	db := testutil.TestDB(t)
	due := int64(1700000000)
	write(t, db, func(tx *graph.Tx) error {
		return tx.CreateNode(graph.NodeCreate{ID: "a", Text: "before", Due: &due})
	})

	// Only text present: completed and due untouched.
	write(t, db, func(tx *graph.Tx) error {
		return tx.UpdateNode("a", graph.NodeUpdate{Text: models.Some("after")})
	})
	read(t, db, func(tx *graph.Tx) error {
		n, err := tx.GetNode("a")
		if err != nil {
			return err
		}
		if n.Text != "after" {
			t.Errorf("text = %q", n.Text)
		}
		if n.Due == nil || *n.Due != due {
			t.Errorf("due lost on partial update: %v", n.Due)
		}
		return nil
	})

	// Explicit null clears due.
	write(t, db, func(tx *graph.Tx) error {
		return tx.UpdateNode("a", graph.NodeUpdate{Due: models.Null[int64]()})
	})
	read(t, db, func(tx *graph.Tx) error {
		n, err := tx.GetNode("a")
		if err != nil {
			return err
		}
		if n.Due != nil {
			t.Errorf("due = %v, want nil after explicit null", *n.Due)
		}
		return nil
	})
}

func TestUpdateNodeMissing(t *testing.T) {
	db := testutil.TestDB(t)
	err := db.WriteTx(context.Background(), func(tx *graph.Tx) error {
		return tx.UpdateNode("ghost", graph.NodeUpdate{Text: models.Some("x")})
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateNodeTypeTransition(t *testing.T) {
	db := testutil.TestDB(t)
	write(t, db, func(tx *graph.Tx) error {
		return tx.CreateNode(graph.NodeCreate{ID: "a", Completed: true})
	})

	// Task -> gate drops the completed flag.
	write(t, db, func(tx *graph.Tx) error {
		return tx.UpdateNode("a", graph.NodeUpdate{Type: models.Some(models.TypeOr)})
	})
	read(t, db, func(tx *graph.Tx) error {
		n, err := tx.GetNode("a")
		if err != nil {
			return err
		}
		if n.Type != models.TypeOr || n.Completed != nil {
			t.Errorf("after to-gate: type=%q completed=%v", n.Type, n.Completed)
		}
		return nil
	})

	// null type resets to Task with a fresh false flag.
	write(t, db, func(tx *graph.Tx) error {
		return tx.UpdateNode("a", graph.NodeUpdate{Type: models.Null[models.NodeType]()})
	})
	read(t, db, func(tx *graph.Tx) error {
		n, err := tx.GetNode("a")
		if err != nil {
			return err
		}
		if n.Type != models.TypeTask {
			t.Errorf("type = %q, want Task", n.Type)
		}
		if n.Completed == nil || *n.Completed {
			t.Errorf("completed = %v, want false", n.Completed)
		}
		return nil
	})
}

func TestUncompletionPropagates(t *testing.T) {
	db := testutil.TestDB(t)
	// c depends on b depends on a, all completed.
	write(t, db, func(tx *graph.Tx) error {
		for _, id := range []string{"a", "b", "c"} {
			if err := tx.CreateNode(graph.NodeCreate{ID: id, Completed: true}); err != nil {
				return err
			}
		}
		if _, err := tx.Link("b", "a"); err != nil {
			return err
		}
		_, err := tx.Link("c", "b")
		return err
	})

	write(t, db, func(tx *graph.Tx) error {
		return tx.UpdateNode("a", graph.NodeUpdate{Completed: models.Some(false)})
	})

	read(t, db, func(tx *graph.Tx) error {
		for _, id := range []string{"a", "b", "c"} {
			n, err := tx.GetNode(id)
			if err != nil {
				return err
			}
			if n.Completed == nil || *n.Completed {
				t.Errorf("%s completed = %v, want false", id, n.Completed)
			}
		}
		return nil
	})
}

func TestDeleteNodeCascades(t *testing.T) {
	db := testutil.TestDB(t)
	mkTask(t, db, "a", "b")
	write(t, db, func(tx *graph.Tx) error {
		if _, err := tx.Link("a", "b"); err != nil {
			return err
		}
		if err := tx.CreatePlan("p", "plan", []models.Step{{NodeID: "b", Order: 1}}); err != nil {
			return err
		}
		return tx.UpdatePositions("v", map[string][]float64{"b": {1, 2}})
	})

	write(t, db, func(tx *graph.Tx) error {
		found, err := tx.DeleteNode("b")
		if err != nil {
			return err
		}
		if !found {
			t.Error("expected node to be found")
		}
		return nil
	})

	read(t, db, func(tx *graph.Tx) error {
		deps, err := tx.Dependencies()
		if err != nil {
			return err
		}
		if len(deps) != 0 {
			t.Errorf("edges survived delete: %v", deps)
		}
		plans, err := tx.Plans()
		if err != nil {
			return err
		}
		if len(plans[0].Steps) != 0 {
			t.Errorf("steps survived delete: %v", plans[0].Steps)
		}
		views, err := tx.Views()
		if err != nil {
			return err
		}
		if len(views[0].Positions) != 0 {
			t.Errorf("positions survived delete: %v", views[0].Positions)
		}
		return nil
	})
}

func TestDeleteNodeAbsent(t *testing.T) {
	db := testutil.TestDB(t)
	write(t, db, func(tx *graph.Tx) error {
		found, err := tx.DeleteNode("ghost")
		if err != nil {
			return err
		}
		if found {
			t.Error("expected found=false")
		}
		return nil
	})
}

func TestRenameNodeMigratesReferences(t *testing.T) {
	db := testutil.TestDB(t)
	mkTask(t, db, "old", "other")
	write(t, db, func(tx *graph.Tx) error {
		if _, err := tx.Link("other", "old"); err != nil {
			return err
		}
		if err := tx.CreatePlan("p", "", []models.Step{{NodeID: "old", Order: 1}}); err != nil {
			return err
		}
		return tx.UpdatePositions("v", map[string][]float64{"old": {3, 4}})
	})

	write(t, db, func(tx *graph.Tx) error {
		return tx.RenameNode("old", "new")
	})

	read(t, db, func(tx *graph.Tx) error {
		if _, err := tx.GetNode("old"); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("old id still resolves: %v", err)
		}
		deps, err := tx.Dependencies()
		if err != nil {
			return err
		}
		if len(deps) != 1 || deps[0].ToID != "new" {
			t.Errorf("edge did not follow rename: %v", deps)
		}
		plans, err := tx.Plans()
		if err != nil {
			return err
		}
		if plans[0].Steps[0].NodeID != "new" {
			t.Errorf("step did not follow rename: %v", plans[0].Steps)
		}
		views, err := tx.Views()
		if err != nil {
			return err
		}
		if _, ok := views[0].Positions["new"]; !ok {
			t.Errorf("position did not follow rename: %v", views[0].Positions)
		}
		return nil
	})
}

func TestRenameNodeConflict(t *testing.T) {
	db := testutil.TestDB(t)
	mkTask(t, db, "a", "b")
	err := db.WriteTx(context.Background(), func(tx *graph.Tx) error {
		return tx.RenameNode("a", "b")
	})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestLinkRejectsCycle(t *testing.T) {
	db := testutil.TestDB(t)
	mkTask(t, db, "a", "b", "c")
	write(t, db, func(tx *graph.Tx) error {
		if _, err := tx.Link("a", "b"); err != nil {
			return err
		}
		_, err := tx.Link("b", "c")
		return err
	})

	err := db.WriteTx(context.Background(), func(tx *graph.Tx) error {
		_, err := tx.Link("c", "a")
		return err
	})
	if !errors.Is(err, apperr.ErrCycle) {
		t.Fatalf("err = %v, want ErrCycle", err)
	}

	// The failed link leaves the edge set untouched.
	read(t, db, func(tx *graph.Tx) error {
		deps, err := tx.Dependencies()
		if err != nil {
			return err
		}
		if len(deps) != 2 {
			t.Errorf("got %d edges, want 2", len(deps))
		}
		return nil
	})
}

func TestLinkSelfLoop(t *testing.T) {
	db := testutil.TestDB(t)
	mkTask(t, db, "a")
	err := db.WriteTx(context.Background(), func(tx *graph.Tx) error {
		_, err := tx.Link("a", "a")
		return err
	})
	if err == nil {
		t.Fatal("expected self-loop to be rejected")
	}
}

func TestLinkIdempotent(t *testing.T) {
	db := testutil.TestDB(t)
	mkTask(t, db, "a", "b")
	var first, second string
	write(t, db, func(tx *graph.Tx) error {
		var err error
		first, err = tx.Link("a", "b")
		if err != nil {
			return err
		}
		second, err = tx.Link("a", "b")
		return err
	})
	if first != second {
		t.Errorf("relink returned new id: %q vs %q", first, second)
	}
}

func TestLinkTransitiveReduction(t *testing.T) {
	db := testutil.TestDB(t)
	mkTask(t, db, "a", "b", "c")
	write(t, db, func(tx *graph.Tx) error {
		// Direct edge a->c, then the longer path a->b->c makes it redundant.
		if _, err := tx.Link("a", "c"); err != nil {
			return err
		}
		if _, err := tx.Link("a", "b"); err != nil {
			return err
		}
		_, err := tx.Link("b", "c")
		return err
	})

	read(t, db, func(tx *graph.Tx) error {
		deps, err := tx.Dependencies()
		if err != nil {
			return err
		}
		for _, d := range deps {
			if d.FromID == "a" && d.ToID == "c" {
				t.Error("redundant edge a->c survived reduction")
			}
		}
		if len(deps) != 2 {
			t.Errorf("got %d edges, want 2", len(deps))
		}
		return nil
	})
}

func TestUnlinkAbsentEdge(t *testing.T) {
	db := testutil.TestDB(t)
	mkTask(t, db, "a", "b")
	write(t, db, func(tx *graph.Tx) error {
		found, err := tx.Unlink("a", "b")
		if err != nil {
			return err
		}
		if found {
			t.Error("expected found=false for absent edge")
		}
		return nil
	})
}

func TestPlanLifecycle(t *testing.T) {
	db := testutil.TestDB(t)
	mkTask(t, db, "a", "b", "c")

	write(t, db, func(tx *graph.Tx) error {
		return tx.CreatePlan("p", "my plan", []models.Step{
			{NodeID: "b", Order: 2},
			{NodeID: "a", Order: 1},
		})
	})

	read(t, db, func(tx *graph.Tx) error {
		plans, err := tx.Plans()
		if err != nil {
			return err
		}
		if len(plans) != 1 {
			t.Fatalf("got %d plans", len(plans))
		}
		steps := plans[0].Steps
		if len(steps) != 2 || steps[0].NodeID != "a" || steps[1].NodeID != "b" {
			t.Errorf("steps not ordered by ord: %v", steps)
		}
		return nil
	})

	// A present steps field replaces the whole sequence.
	write(t, db, func(tx *graph.Tx) error {
		return tx.UpdatePlan("p", graph.PlanUpdate{
			Steps: models.Some([]models.Step{{NodeID: "c", Order: 1}}),
		})
	})
	read(t, db, func(tx *graph.Tx) error {
		plans, err := tx.Plans()
		if err != nil {
			return err
		}
		if len(plans[0].Steps) != 1 || plans[0].Steps[0].NodeID != "c" {
			t.Errorf("steps = %v, want just c", plans[0].Steps)
		}
		return nil
	})

	write(t, db, func(tx *graph.Tx) error {
		return tx.RenamePlan("p", "q")
	})
	write(t, db, func(tx *graph.Tx) error {
		found, err := tx.DeletePlan("q")
		if err != nil {
			return err
		}
		if !found {
			t.Error("renamed plan not found for delete")
		}
		return nil
	})
}

func TestPlanDuplicateStep(t *testing.T) {
	db := testutil.TestDB(t)
	mkTask(t, db, "a")
	err := db.WriteTx(context.Background(), func(tx *graph.Tx) error {
		return tx.CreatePlan("p", "", []models.Step{
			{NodeID: "a", Order: 1},
			{NodeID: "a", Order: 2},
		})
	})
	if err == nil {
		t.Fatal("expected duplicate step to be rejected")
	}
}

func TestPlanStepUnknownNode(t *testing.T) {
	db := testutil.TestDB(t)
	err := db.WriteTx(context.Background(), func(tx *graph.Tx) error {
		return tx.CreatePlan("p", "", []models.Step{{NodeID: "ghost", Order: 1}})
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdatePositionsUpsertsView(t *testing.T) {
	db := testutil.TestDB(t)
	mkTask(t, db, "a", "b")

	// No create_view first: the view is created on the fly.
	write(t, db, func(tx *graph.Tx) error {
		return tx.UpdatePositions("v", map[string][]float64{"a": {1, 2}})
	})
	// A second update merges rather than replaces.
	write(t, db, func(tx *graph.Tx) error {
		return tx.UpdatePositions("v", map[string][]float64{"b": {3, 4}})
	})

	read(t, db, func(tx *graph.Tx) error {
		views, err := tx.Views()
		if err != nil {
			return err
		}
		if len(views) != 1 {
			t.Fatalf("got %d views", len(views))
		}
		pos := views[0].Positions
		if len(pos) != 2 || pos["a"][0] != 1 || pos["b"][1] != 4 {
			t.Errorf("positions = %v", pos)
		}
		return nil
	})
}

func TestCreateViewDuplicate(t *testing.T) {
	db := testutil.TestDB(t)
	write(t, db, func(tx *graph.Tx) error {
		return tx.CreateView("v", nil, nil, nil)
	})
	err := db.WriteTx(context.Background(), func(tx *graph.Tx) error {
		return tx.CreateView("v", nil, nil, nil)
	})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestSetFiltersAndClear(t *testing.T) {
	db := testutil.TestDB(t)
	write(t, db, func(tx *graph.Tx) error {
		return tx.SetWhitelist("v", []string{"a", "b"})
	})
	read(t, db, func(tx *graph.Tx) error {
		views, err := tx.Views()
		if err != nil {
			return err
		}
		if len(views[0].Whitelist) != 2 {
			t.Errorf("whitelist = %v", views[0].Whitelist)
		}
		return nil
	})

	// Empty list clears the filter back to unset.
	write(t, db, func(tx *graph.Tx) error {
		return tx.SetWhitelist("v", nil)
	})
	read(t, db, func(tx *graph.Tx) error {
		views, err := tx.Views()
		if err != nil {
			return err
		}
		if views[0].Whitelist != nil {
			t.Errorf("whitelist = %v, want nil", views[0].Whitelist)
		}
		return nil
	})
}

func TestUpdateViewReplacesPositions(t *testing.T) {
	db := testutil.TestDB(t)
	mkTask(t, db, "a", "b")
	write(t, db, func(tx *graph.Tx) error {
		return tx.UpdatePositions("v", map[string][]float64{"a": {1, 2}})
	})

	// update_view with a positions field replaces, not merges.
	write(t, db, func(tx *graph.Tx) error {
		return tx.UpdateView("v", graph.ViewUpdate{
			Positions: models.Some(map[string][]float64{"b": {9, 9}}),
		})
	})
	read(t, db, func(tx *graph.Tx) error {
		views, err := tx.Views()
		if err != nil {
			return err
		}
		pos := views[0].Positions
		if len(pos) != 1 {
			t.Fatalf("positions = %v, want only b", pos)
		}
		if _, ok := pos["b"]; !ok {
			t.Errorf("positions = %v", pos)
		}
		return nil
	})
}

func TestRemovePositionsIdempotent(t *testing.T) {
	db := testutil.TestDB(t)
	mkTask(t, db, "a")
	write(t, db, func(tx *graph.Tx) error {
		return tx.UpdatePositions("v", map[string][]float64{"a": {1, 2}})
	})
	write(t, db, func(tx *graph.Tx) error {
		// One real entry, one absent node, on an existing view.
		return tx.RemovePositions("v", []string{"a", "ghost"})
	})
	write(t, db, func(tx *graph.Tx) error {
		// Absent view is a no-op too.
		return tx.RemovePositions("ghost-view", []string{"a"})
	})
	read(t, db, func(tx *graph.Tx) error {
		views, err := tx.Views()
		if err != nil {
			return err
		}
		if len(views[0].Positions) != 0 {
			t.Errorf("positions = %v", views[0].Positions)
		}
		return nil
	})
}

func TestPositionsUnknownNode(t *testing.T) {
	db := testutil.TestDB(t)
	err := db.WriteTx(context.Background(), func(tx *graph.Tx) error {
		return tx.UpdatePositions("v", map[string][]float64{"ghost": {0, 0}})
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestHasCycles(t *testing.T) {
	db := testutil.TestDB(t)
	mkTask(t, db, "a", "b")
	write(t, db, func(tx *graph.Tx) error {
		_, err := tx.Link("a", "b")
		return err
	})
	read(t, db, func(tx *graph.Tx) error {
		cyclic, err := tx.HasCycles()
		if err != nil {
			return err
		}
		if cyclic {
			t.Error("acyclic graph reported cyclic")
		}
		return nil
	})
}
