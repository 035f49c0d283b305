package session

import "testing"

func TestNewStore(t *testing.T) {
	if s := NewStore(InMemoryStore); s == nil {
		t.Fatal("expected a store")
	}
}

func TestNewStoreUnsupportedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unsupported store type")
		}
	}()
	NewStore(StoreType("postgres"))
}
