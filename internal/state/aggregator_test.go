package state_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/batch"
	"github.com/starford/dagaz/internal/state"
	"github.com/starford/dagaz/internal/testutil"
)

func seed(t *testing.T, exec *batch.Executor, ops ...string) {
	t.Helper()
	raws := make([]json.RawMessage, len(ops))
	for i, o := range ops {
		raws[i] = json.RawMessage(o)
	}
	if res := exec.ApplyGraph(context.Background(), raws); !res.Success {
		t.Fatalf("seed failed: %s", res.Message)
	}
}

func TestTaskStateSnapshot(t *testing.T) {
	db := testutil.TestDB(t)
	exec := batch.New(db, nil)
	agg := state.NewAggregator(db)

	seed(t, exec,
		`{"op":"create_node","id":"a","text":"base","completed":true}`,
		`{"op":"create_node","id":"b","text":"blocked","depends":["a"]}`,
	)

	ts, err := agg.TaskState(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ts.Tasks) != 2 || len(ts.Dependencies) != 1 {
		t.Fatalf("tasks=%d deps=%d", len(ts.Tasks), len(ts.Dependencies))
	}
	if ts.HasCycles {
		t.Error("has_cycles = true for acyclic graph")
	}

	b := ts.Tasks["b"]
	if b.DepsClear == nil || !*b.DepsClear {
		t.Error("b deps should be clear (a is completed)")
	}
	if b.IsActionable == nil || !*b.IsActionable {
		t.Error("b should be actionable")
	}
	if len(b.Children) != 1 {
		t.Errorf("b children = %v", b.Children)
	}
	a := ts.Tasks["a"]
	if len(a.Parents) != 1 {
		t.Errorf("a parents = %v", a.Parents)
	}
}

func TestAppStateIncludesPlans(t *testing.T) {
	db := testutil.TestDB(t)
	exec := batch.New(db, nil)
	agg := state.NewAggregator(db)

	seed(t, exec,
		`{"op":"create_node","id":"a"}`,
		`{"op":"create_plan","id":"p","text":"rollout","steps":[{"node_id":"a","order":1}]}`,
	)

	as, err := agg.AppState(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(as.Tasks) != 1 {
		t.Errorf("tasks = %d", len(as.Tasks))
	}
	p, ok := as.Plans["p"]
	if !ok {
		t.Fatalf("plans = %v", as.Plans)
	}
	if len(p.Steps) != 1 || p.Steps[0].NodeID != "a" {
		t.Errorf("steps = %v", p.Steps)
	}
}

func TestDisplayStateSnapshot(t *testing.T) {
	db := testutil.TestDB(t)
	exec := batch.New(db, nil)
	agg := state.NewAggregator(db)

	seed(t, exec, `{"op":"create_node","id":"a"}`)
	res := exec.ApplyDisplay(context.Background(), []json.RawMessage{
		json.RawMessage(`{"op":"update_positions","view_id":"main","positions":{"a":[1,2]}}`),
	})
	if !res.Success {
		t.Fatal(res.Message)
	}

	ds, err := agg.DisplayState(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	v, ok := ds.Views["main"]
	if !ok {
		t.Fatalf("views = %v", ds.Views)
	}
	if v.Positions["a"][1] != 2 {
		t.Errorf("positions = %v", v.Positions)
	}
}

func TestSnapshotDispatch(t *testing.T) {
	db := testutil.TestDB(t)
	agg := state.NewAggregator(db)

	for _, kind := range []state.Kind{state.KindTask, state.KindApp, state.KindDisplay} {
		if _, err := agg.Snapshot(context.Background(), kind); err != nil {
			t.Errorf("%s: %v", kind, err)
		}
	}
	if _, err := agg.Snapshot(context.Background(), state.Kind("bogus")); err == nil {
		t.Error("unknown kind must fail")
	}
}

func TestGetNode(t *testing.T) {
	db := testutil.TestDB(t)
	exec := batch.New(db, nil)
	agg := state.NewAggregator(db)

	seed(t, exec, `{"op":"create_node","id":"a","text":"hello"}`)

	n, err := agg.GetNode(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if n.Text != "hello" || n.CalculatedValue == nil {
		t.Errorf("node = %+v", n)
	}

	if _, err := agg.GetNode(context.Background(), "ghost"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
