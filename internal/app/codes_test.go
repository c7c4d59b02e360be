package app

import (
	"regexp"
	"testing"
)

var urlSafeID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func TestNewCodeIDShape(t *testing.T) {
	for i := 0; i < 100; i++ {
		id, err := newCodeID()
		if err != nil {
			t.Fatalf("newCodeID: %v", err)
		}
		if len(id) != codeIDLength {
			t.Fatalf("expected %d characters, got %q", codeIDLength, id)
		}
		if !urlSafeID.MatchString(id) {
			t.Fatalf("expected a URL-safe id, got %q", id)
		}
	}
}

func TestNewCodeIDsAreUnique(t *testing.T) {
	ids, err := newCodeIDs(5000)
	if err != nil {
		t.Fatalf("newCodeIDs: %v", err)
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
	if len(ids) != 5000 {
		t.Fatalf("expected 5000 ids, got %d", len(ids))
	}
}
