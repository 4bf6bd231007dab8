package model

import "testing"

func TestResolveThreadNum(t *testing.T) {
	tests := []struct {
		name   string
		n, cpu int
		want   int
	}{
		{"explicit positive value wins", 4, 16, 4},
		{"zero falls back to 2x cpu", 0, 3, 6},
		{"negative falls back to 2x cpu", -1, 3, 6},
		{"2x cpu above 8 clamps to 8", 0, 16, 8},
		{"2x cpu non-positive clamps to 8", 0, 0, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveThreadNum(tt.n, tt.cpu)
			if got != tt.want {
				t.Errorf("ResolveThreadNum(%d, %d) = %d, want %d", tt.n, tt.cpu, got, tt.want)
			}
		})
	}
}

func TestSliceLenAndRemaining(t *testing.T) {
	bounded := Slice{Begin: 100, EndExclusive: 300, Completed: 50}
	if bounded.Len() != 200 {
		t.Errorf("Len() = %d, want 200", bounded.Len())
	}
	if bounded.Remaining() != 150 {
		t.Errorf("Remaining() = %d, want 150", bounded.Remaining())
	}

	unbounded := Slice{Begin: 100, EndExclusive: -1, Completed: 50}
	if unbounded.Len() != -1 {
		t.Errorf("Len() on an unbounded slice = %d, want -1", unbounded.Len())
	}
	if unbounded.Remaining() != -1 {
		t.Errorf("Remaining() on an unbounded slice = %d, want -1", unbounded.Remaining())
	}

	exhausted := Slice{Begin: 0, EndExclusive: 10, Completed: 10}
	if exhausted.Remaining() != 0 {
		t.Errorf("Remaining() on a fully-completed slice = %d, want 0", exhausted.Remaining())
	}
}
