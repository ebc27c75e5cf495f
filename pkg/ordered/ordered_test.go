package ordered

import (
	"sync"
	"testing"
)

type testItem struct {
	ID   int
	Name string
}

func itemKey(it testItem) int { return it.ID }

// ---------------------------------------------------------------------------
// Basic CRUD
// ---------------------------------------------------------------------------

func TestSetAndGet(t *testing.T) {
	m := New[int, testItem]()
	m.Set(1, testItem{ID: 1, Name: "alpha"})

	got, ok := m.Get(1)
	if !ok {
		t.Fatal("expected item to be found")
	}
	if got.Name != "alpha" {
		t.Errorf("unexpected item: %+v", got)
	}
	if !m.Has(1) || m.Has(2) {
		t.Error("Has reported the wrong membership")
	}
}

func TestSetOverwriteKeepsPosition(t *testing.T) {
	m := New[int, testItem]()
	m.Set(1, testItem{ID: 1, Name: "first"})
	m.Set(2, testItem{ID: 2, Name: "second"})
	m.Set(1, testItem{ID: 1, Name: "first-updated"})

	values := m.Values()
	if len(values) != 2 {
		t.Fatalf("expected 2 values, got %d", len(values))
	}
	if values[0].Name != "first-updated" || values[1].Name != "second" {
		t.Errorf("overwrite moved the entry: %+v", values)
	}
}

func TestDelete(t *testing.T) {
	m := New[int, testItem]()
	m.Set(1, testItem{ID: 1})
	m.Set(2, testItem{ID: 2})
	m.Set(3, testItem{ID: 3})

	if !m.Delete(2) {
		t.Error("expected Delete to return true for existing key")
	}
	if m.Delete(2) {
		t.Error("expected Delete to return false for already-deleted key")
	}
	keys := m.Keys()
	if len(keys) != 2 || keys[0] != 1 || keys[1] != 3 {
		t.Errorf("unexpected keys after delete: %v", keys)
	}
}

func TestKeysReturnsCopy(t *testing.T) {
	m := New[int, testItem]()
	m.Set(1, testItem{ID: 1})

	keys := m.Keys()
	keys[0] = 99

	if m.Keys()[0] != 1 {
		t.Error("Keys did not return a copy; mutation affected the map")
	}
}

// ---------------------------------------------------------------------------
// Bulk operations
// ---------------------------------------------------------------------------

func TestReplace(t *testing.T) {
	m := New[int, testItem]()
	m.Set(9, testItem{ID: 9, Name: "stale"})

	m.Replace([]testItem{
		{ID: 3, Name: "c"},
		{ID: 1, Name: "a"},
		{ID: 3, Name: "c2"},
	}, itemKey)

	if m.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", m.Len())
	}
	if m.Has(9) {
		t.Error("Replace kept a stale entry")
	}
	values := m.Values()
	if values[0].Name != "c2" || values[1].Name != "a" {
		t.Errorf("unexpected order after Replace: %+v", values)
	}
}

func TestReset(t *testing.T) {
	m := New[int, testItem]()
	m.Set(1, testItem{ID: 1})
	m.Reset()
	if m.Len() != 0 || len(m.Keys()) != 0 {
		t.Error("expected empty map after Reset")
	}
}

func TestUpdateOnlyExistingKeys(t *testing.T) {
	m := New[int, testItem]()
	m.Set(1, testItem{ID: 1, Name: "a"})
	m.Set(2, testItem{ID: 2, Name: "b"})

	if !m.Update(1, testItem{ID: 1, Name: "a2"}) {
		t.Fatal("expected Update of a present key to succeed")
	}
	if got, _ := m.Get(1); got.Name != "a2" {
		t.Errorf("unexpected value %+v", got)
	}
	if keys := m.Keys(); keys[0] != 1 || keys[1] != 2 {
		t.Errorf("expected position kept, got %v", keys)
	}

	m.Delete(2)
	if m.Update(2, testItem{ID: 2, Name: "ghost"}) {
		t.Error("expected Update of a deleted key to report false")
	}
	if m.Has(2) || m.Len() != 1 {
		t.Error("Update must not insert a missing key")
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New[int, testItem]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Set(i, testItem{ID: i})
			m.Get(i)
			m.Values()
		}(i)
	}
	wg.Wait()
	if m.Len() != 50 {
		t.Errorf("expected 50 entries, got %d", m.Len())
	}
}
