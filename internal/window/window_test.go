package window

import "testing"

func TestCompute(t *testing.T) {
	tests := []struct {
		name                               string
		offset, viewport, height, buf, tot int
		want                               Range
	}{
		{"top of list", 0, 10, 1, 2, 100, Range{0, 14}},
		{"scrolled", 50, 10, 1, 2, 100, Range{48, 62}},
		{"near end", 95, 10, 1, 2, 100, Range{93, 99}},
		{"short list", 0, 10, 1, 2, 3, Range{0, 2}},
		{"empty list", 0, 10, 1, 2, 0, Range{0, -1}},
		{"tall rows", 100, 50, 20, 1, 100, Range{4, 9}},
		{"partial row rounds up", 0, 45, 20, 0, 100, Range{0, 3}},
		{"zero row height", 5, 4, 0, 0, 100, Range{5, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.offset, tt.viewport, tt.height, tt.buf, tt.tot)
			if got != tt.want {
				t.Errorf("Compute = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCompute_Idempotent(t *testing.T) {
	a := Compute(1234, 480, 24, 5, 10_000)
	b := Compute(1234, 480, 24, 5, 10_000)
	if a != b {
		t.Errorf("Compute not idempotent: %+v vs %+v", a, b)
	}
}

func TestCompute_CoversViewport(t *testing.T) {
	for offset := 0; offset < 500; offset += 7 {
		for _, height := range []int{1, 3, 24} {
			viewport := 17 * height
			r := Compute(offset, viewport, height, 2, 10_000)
			need := ceilDiv(viewport, height)
			if r.Len() < need {
				t.Fatalf("offset %d height %d: len %d < %d", offset, height, r.Len(), need)
			}
			if first := offset / height; !r.Contains(first) {
				t.Fatalf("offset %d height %d: range %+v misses row %d", offset, height, r, first)
			}
		}
	}
}

func TestCollapseAdjust(t *testing.T) {
	// Group above the window: shift by removed rows.
	if got := CollapseAdjust(300, 10, 20, 5, 8); got != 220 {
		t.Errorf("above window = %d, want 220", got)
	}
	// Group inside the window: unchanged.
	if got := CollapseAdjust(300, 10, 20, 25, 8); got != 300 {
		t.Errorf("inside window = %d, want 300", got)
	}
	// Top row was inside the group: land on the header.
	if got := CollapseAdjust(300, 10, 30, 25, 10); got != 250 {
		t.Errorf("straddling = %d, want 250", got)
	}
	// Never negative.
	if got := CollapseAdjust(30, 10, 20, 0, 8); got != 0 {
		t.Errorf("clamped = %d, want 0", got)
	}
}

func TestTopIndex(t *testing.T) {
	if got := TopIndex(45, 10); got != 4 {
		t.Errorf("TopIndex = %d, want 4", got)
	}
	if got := TopIndex(-3, 10); got != 0 {
		t.Errorf("negative offset = %d", got)
	}
}

func TestClampOffset(t *testing.T) {
	if got := ClampOffset(500, 100, 10, 20); got != 100 {
		t.Errorf("past end = %d, want 100", got)
	}
	if got := ClampOffset(50, 100, 10, 5); got != 0 {
		t.Errorf("short content = %d, want 0", got)
	}
	if got := ClampOffset(-4, 100, 10, 50); got != 0 {
		t.Errorf("negative = %d, want 0", got)
	}
}

func TestEnsureVisible(t *testing.T) {
	if got := EnsureVisible(100, 50, 10, 3); got != 30 {
		t.Errorf("above = %d, want 30", got)
	}
	if got := EnsureVisible(0, 50, 10, 9); got != 50 {
		t.Errorf("below = %d, want 50", got)
	}
	if got := EnsureVisible(20, 50, 10, 4); got != 20 {
		t.Errorf("inside = %d, want 20", got)
	}
}
