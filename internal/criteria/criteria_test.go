package criteria_test

import (
	"reflect"
	"testing"

	"bossline/internal/criteria"
)

func TestAddDeduplicates(t *testing.T) {
	set := []string{"a11y"}
	set = criteria.Add(set, "a11y")
	set = criteria.Add(set, "stacking")
	want := []string{"a11y", "stacking"}
	if !reflect.DeepEqual(set, want) {
		t.Fatalf("set: %v", set)
	}
}

func TestAddTrimsAndSkipsEmpty(t *testing.T) {
	set := criteria.Add(nil, "  a11y  ")
	if !reflect.DeepEqual(set, []string{"a11y"}) {
		t.Fatalf("trim: %v", set)
	}
	same := criteria.Add(set, "   ")
	if !reflect.DeepEqual(same, set) {
		t.Fatalf("blank add changed set: %v", same)
	}
	// trimmed duplicate of an existing value is still a duplicate
	same = criteria.Add(set, "a11y ")
	if !reflect.DeepEqual(same, set) {
		t.Fatalf("padded duplicate appended: %v", same)
	}
}

func TestAddIdempotence(t *testing.T) {
	base := []string{"stacking"}
	once := criteria.Add(base, "a11y")
	twice := criteria.Add(once, "a11y")
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("add not idempotent: %v vs %v", once, twice)
	}
}

func TestAddDoesNotMutateInput(t *testing.T) {
	base := make([]string, 1, 4)
	base[0] = "a11y"
	_ = criteria.Add(base, "stacking")
	if !reflect.DeepEqual(base, []string{"a11y"}) {
		t.Fatalf("input mutated: %v", base)
	}
}

func TestRemoveAt(t *testing.T) {
	set := []string{"a11y", "stacking", "perf"}
	got := criteria.RemoveAt(set, 1)
	if !reflect.DeepEqual(got, []string{"a11y", "perf"}) {
		t.Fatalf("remove: %v", got)
	}
	if !reflect.DeepEqual(set, []string{"a11y", "stacking", "perf"}) {
		t.Fatalf("input mutated: %v", set)
	}
	for _, idx := range []int{-1, 3, 100} {
		if got := criteria.RemoveAt(set, idx); !reflect.DeepEqual(got, set) {
			t.Fatalf("out of bounds %d changed set: %v", idx, got)
		}
	}
}

func TestUnion(t *testing.T) {
	got := criteria.Union([]string{"a11y", "a11y"}, []string{"stacking", "a11y"})
	if !reflect.DeepEqual(got, []string{"a11y", "stacking"}) {
		t.Fatalf("union: %v", got)
	}
}
