package dbtypes

import "testing"

func TestStringSetRoundTrip(t *testing.T) {
	set := StringSet{"user", "8a1e2b36-7f7e-4f62-9d8b-111111111111"}

	val, err := set.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}

	var decoded StringSet
	if err := decoded.Scan(val); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(decoded) != 2 || !decoded.Contains("user") {
		t.Fatalf("unexpected decode result %v", decoded)
	}
}

func TestStringSetScanNilAndEmpty(t *testing.T) {
	var set StringSet
	if err := set.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if len(set) != 0 {
		t.Fatalf("expected empty set, got %v", set)
	}

	if err := set.Scan([]byte("[]")); err != nil {
		t.Fatalf("scan empty array: %v", err)
	}
	if set.Contains("anything") {
		t.Fatal("empty set should contain nothing")
	}
}

func TestStringSetEmptyValue(t *testing.T) {
	var set StringSet
	val, err := set.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if val != "[]" {
		t.Fatalf("expected empty json array, got %v", val)
	}
}
