package areapool

import "testing"

func TestAddAndFind(t *testing.T) {
	p := New[int, int, string](3)
	v := "hello"
	p.Add(1, 100, &v)

	got, ok := p.Find(1, 100)
	if !ok {
		t.Fatal("expected to find entry after add")
	}
	if *got != "hello" {
		t.Errorf("value = %q, want hello", *got)
	}
}

func TestAddDuplicateIsNoOp(t *testing.T) {
	p := New[int, int, string](3)
	a, b := "a", "b"
	p.Add(1, 100, &a)
	p.Add(1, 100, &b)

	got, _ := p.Find(1, 100)
	if *got != "a" {
		t.Errorf("expected duplicate add to be a no-op, got %q", *got)
	}
}

// TestEvictionScenario mirrors spec.md §8 scenario 5: with max_per_area=3,
// adding (a,1),(a,2),(a,3),(a,4) evicts 1 and keeps 2..4.
func TestEvictionScenario(t *testing.T) {
	p := New[string, int, int](3)
	for i := 1; i <= 4; i++ {
		v := i
		p.Add("a", i, &v)
	}

	if p.Contains("a", 1) {
		t.Error("expected entry 1 to be evicted")
	}
	for i := 2; i <= 4; i++ {
		if !p.Contains("a", i) {
			t.Errorf("expected entry %d to still be present", i)
		}
	}
	if got := p.TotalEntries(); got != 3 {
		t.Errorf("total entries = %d, want 3", got)
	}
}

func TestAddCapInvariantHolds(t *testing.T) {
	p := New[string, int, int](3)
	for i := 1; i <= 100; i++ {
		v := i
		p.Add("a", i, &v)
		if p.TotalEntries() > 3 {
			t.Fatalf("area exceeded cap after add %d: %d entries", i, p.TotalEntries())
		}
	}
}

func TestRemoveThenAddFillsSlot(t *testing.T) {
	p := New[string, int, int](3)
	for i := 1; i <= 3; i++ {
		v := i
		p.Add("a", i, &v)
	}
	p.Remove("a", 2)

	if p.Contains("a", 2) {
		t.Error("expected entry 2 removed")
	}
	if p.TotalEntries() != 2 {
		t.Errorf("total entries = %d, want 2", p.TotalEntries())
	}

	v := 4
	p.Add("a", 4, &v)
	if p.TotalEntries() != 3 {
		t.Errorf("total entries after re-add = %d, want 3", p.TotalEntries())
	}
}

func TestRandomSetReturnsDistinctEntries(t *testing.T) {
	p := New[string, int, int](10)
	for i := 1; i <= 5; i++ {
		v := i
		p.Add("a", i, &v)
	}

	set := p.RandomSet("a", 3)
	if len(set) != 3 {
		t.Fatalf("len(set) = %d, want 3", len(set))
	}

	seen := make(map[int]bool)
	for _, v := range set {
		if seen[*v] {
			t.Errorf("duplicate value %d in random set", *v)
		}
		seen[*v] = true
	}
}

func TestRandomSetFilteredAcrossAreas(t *testing.T) {
	p := New[string, int, int](10)
	v1, v2, v3 := 1, 2, 3
	p.Add("a", 1, &v1)
	p.Add("b", 2, &v2)
	p.Add("c", 3, &v3)

	set := p.RandomSetFiltered(10, func(k string) bool { return k != "b" })
	if len(set) != 2 {
		t.Fatalf("len(set) = %d, want 2 (area b excluded)", len(set))
	}
}

func TestRecentSetOrdering(t *testing.T) {
	p := New[string, int, int](10)
	for i := 1; i <= 3; i++ {
		v := i
		p.Add("a", i, &v)
	}

	newest := p.RecentSet("a", 2, true, nil)
	if len(newest) != 2 || *newest[0] != 3 || *newest[1] != 2 {
		t.Errorf("newest-first recent set = %v, want [3 2]", derefAll(newest))
	}

	oldest := p.RecentSet("a", 2, false, nil)
	if len(oldest) != 2 || *oldest[0] != 1 || *oldest[1] != 2 {
		t.Errorf("oldest-first recent set = %v, want [1 2]", derefAll(oldest))
	}
}

func derefAll(vs []*int) []int {
	out := make([]int, len(vs))
	for i, v := range vs {
		out[i] = *v
	}
	return out
}

func TestTotalEntriesAcrossAreas(t *testing.T) {
	p := New[string, int, int](10)
	v := 1
	p.Add("a", 1, &v)
	p.Add("b", 2, &v)
	p.Add("c", 3, &v)

	if got := p.TotalEntries(); got != 3 {
		t.Errorf("total entries = %d, want 3", got)
	}
}
