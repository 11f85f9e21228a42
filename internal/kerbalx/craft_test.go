package kerbalx

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFlattenCraftList_OmitsMissingAttributes(t *testing.T) {
	body := `[
		{"id": 11, "name": "Kerbal X", "version": "1.4.3", "cost": 52000.5, "part_count": 63, "extra": "ignored"},
		{"id": "12", "name": "Flea Hopper", "version": "1.4.3", "part_count": 4, "description": null},
		{"name": "no id"},
		{"id": "abc", "name": "bad id"}
	]`

	got, err := FlattenCraftList(body)
	if err != nil {
		t.Fatalf("FlattenCraftList returned error: %v", err)
	}

	want := CraftList{
		11: {"id": "11", "name": "Kerbal X", "version": "1.4.3", "cost": "52000.5", "part_count": "63"},
		12: {"id": "12", "name": "Flea Hopper", "version": "1.4.3", "part_count": "4"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("FlattenCraftList mismatch (-want +got):\n%s", diff)
	}
}

func TestFlattenCraftList_EmptyArray(t *testing.T) {
	got, err := FlattenCraftList(`[]`)
	if err != nil {
		t.Fatalf("FlattenCraftList returned error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
}

func TestFlattenCraftList_RejectsNonArray(t *testing.T) {
	if _, err := FlattenCraftList(`{"error":"nope"}`); err == nil {
		t.Fatalf("expected error for object body")
	}
}

func TestCraftList_CloneIsDeep(t *testing.T) {
	orig := CraftList{1: {"name": "a"}}
	cp := orig.Clone()
	cp[1]["name"] = "b"
	cp[2] = map[string]string{}

	want := CraftList{1: {"name": "a"}}
	if diff := cmp.Diff(want, orig); diff != "" {
		t.Fatalf("original changed (-want +got):\n%s", diff)
	}
	if CraftList(nil).Clone() != nil {
		t.Fatalf("nil clone should stay nil")
	}
}
