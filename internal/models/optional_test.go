package models

import (
	"encoding/json"
	"testing"
)

type doc struct {
	Text Optional[string] `json:"text,omitzero"`
	Due  Optional[int64]  `json:"due,omitzero"`
}

func TestOptionalUnmarshalTriState(t *testing.T) {
	var d doc
	if err := json.Unmarshal([]byte(`{"text": "hi", "due": null}`), &d); err != nil {
		t.Fatal(err)
	}

	if v, ok := d.Text.Get(); !ok || v != "hi" {
		t.Errorf("text = %q ok=%v", v, ok)
	}
	if !d.Due.Present() || !d.Due.IsNull() {
		t.Errorf("due should be explicit null: present=%v null=%v", d.Due.Present(), d.Due.IsNull())
	}

	var absent doc
	if err := json.Unmarshal([]byte(`{}`), &absent); err != nil {
		t.Fatal(err)
	}
	if absent.Text.Present() || absent.Due.Present() {
		t.Error("absent fields must stay absent")
	}
}

func TestOptionalMarshalOmitsAbsent(t *testing.T) {
	out, err := json.Marshal(doc{Text: Some("x")})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"text":"x"}` {
		t.Errorf("marshal = %s", out)
	}

	out, err = json.Marshal(doc{Due: Null[int64]()})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"due":null}` {
		t.Errorf("marshal = %s", out)
	}
}

func TestOptionalZero(t *testing.T) {
	var o Optional[string]
	if !o.IsZero() || o.Present() || o.IsNull() {
		t.Error("zero Optional must be absent")
	}
	if _, ok := o.Get(); ok {
		t.Error("absent Get must report ok=false")
	}
	if Null[string]().IsZero() {
		t.Error("explicit null is not the zero state")
	}
}
