package schedule

import (
	"sort"
	"time"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (i Interval) Empty() bool { return !i.End.After(i.Start) }

// Contains reports whether [start, end) lies entirely inside i.
func (i Interval) Contains(start, end time.Time) bool {
	return !start.Before(i.Start) && !end.After(i.End)
}

// Clip returns i restricted to bounds; the result may be empty.
func (i Interval) Clip(bounds Interval) Interval {
	if i.Start.Before(bounds.Start) {
		i.Start = bounds.Start
	}
	if i.End.After(bounds.End) {
		i.End = bounds.End
	}
	return i
}

// Normalize sorts intervals, drops empty ones and merges overlapping or
// touching neighbours. The input slice is not modified.
func Normalize(in []Interval) []Interval {
	b := make([]Interval, 0, len(in))
	for _, iv := range in {
		if !iv.Empty() {
			b = append(b, iv)
		}
	}
	if len(b) == 0 {
		return nil
	}
	sort.Slice(b, func(x, y int) bool {
		if b[x].Start.Equal(b[y].Start) {
			return b[x].End.Before(b[y].End)
		}
		return b[x].Start.Before(b[y].Start)
	})

	merged := make([]Interval, 0, len(b))
	for _, cur := range b {
		if len(merged) == 0 {
			merged = append(merged, cur)
			continue
		}
		last := &merged[len(merged)-1]
		if cur.Start.After(last.End) {
			merged = append(merged, cur)
			continue
		}
		if cur.End.After(last.End) {
			last.End = cur.End
		}
	}
	return merged
}

// Union merges two interval sets.
func Union(a, b []Interval) []Interval {
	all := make([]Interval, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	return Normalize(all)
}

// Subtract removes every block from base.
func Subtract(base, blocks []Interval) []Interval {
	base = Normalize(base)
	blocks = Normalize(blocks)
	if len(blocks) == 0 {
		return base
	}

	var out []Interval
	for _, w := range base {
		cursor := w.Start
		for _, m := range blocks {
			if !m.End.After(cursor) || !m.Start.Before(w.End) {
				continue
			}
			if m.Start.After(cursor) {
				out = append(out, Interval{Start: cursor, End: m.Start})
			}
			if m.End.After(cursor) {
				cursor = m.End
			}
		}
		if w.End.After(cursor) {
			out = append(out, Interval{Start: cursor, End: w.End})
		}
	}
	return out
}
