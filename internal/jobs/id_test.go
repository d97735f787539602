package jobs

import "testing"

func TestNewRequestIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewRequestID()
		if seen[id] {
			t.Fatalf("duplicate request ID %q", id)
		}
		seen[id] = true
		if !ValidRequestID(id) {
			t.Fatalf("ValidRequestID(%q) = false", id)
		}
	}
}

func TestValidRequestID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"wm-3f1c9a0e5b7d4c1e8a2b6d0f4e9c7a1b", true},
		{"3f1c9a0e5b7d4c1e8a2b6d0f4e9c7a1b", false},
		{"wm-", false},
		{"wm-../../etc/passwd", false},
		{"wm-zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz", false},
	}
	for _, tt := range tests {
		if got := ValidRequestID(tt.id); got != tt.want {
			t.Errorf("ValidRequestID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
