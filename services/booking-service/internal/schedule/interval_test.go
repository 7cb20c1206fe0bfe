package schedule

import "testing"

func TestSubtractSplitsWindow(t *testing.T) {
	base := []Interval{{Start: at(9, 0), End: at(17, 0)}}
	blocks := []Interval{
		{Start: at(11, 0), End: at(12, 0)},
		{Start: at(11, 30), End: at(13, 0)},
		{Start: at(16, 0), End: at(18, 0)},
	}
	got := Subtract(base, blocks)
	if len(got) != 2 {
		t.Fatalf("expected 2 windows, got %+v", got)
	}
	if !got[0].End.Equal(at(11, 0)) || !got[1].Start.Equal(at(13, 0)) || !got[1].End.Equal(at(16, 0)) {
		t.Fatalf("unexpected windows %+v", got)
	}
}

func TestNormalizeMergesTouching(t *testing.T) {
	got := Normalize([]Interval{
		{Start: at(12, 0), End: at(17, 0)},
		{Start: at(9, 0), End: at(12, 0)},
		{Start: at(8, 0), End: at(8, 0)},
	})
	if len(got) != 1 || !got[0].Start.Equal(at(9, 0)) || !got[0].End.Equal(at(17, 0)) {
		t.Fatalf("unexpected merge %+v", got)
	}
}

func TestWindowContainingRequiresSingleWindow(t *testing.T) {
	windows := []Interval{{Start: at(9, 0), End: at(12, 0)}, {Start: at(13, 0), End: at(17, 0)}}
	if _, ok := WindowContaining(windows, Interval{Start: at(11, 30), End: at(13, 30)}); ok {
		t.Fatal("a request spanning two windows must not fit")
	}
	if _, ok := WindowContaining(windows, Interval{Start: at(13, 0), End: at(17, 0)}); !ok {
		t.Fatal("a request filling a window must fit")
	}
}
