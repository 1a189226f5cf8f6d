// elCall: a high-performance candidate variant generator based on local reassembly.
// Copyright (c) 2021 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elcall/blob/master/LICENSE.txt>.

package intervals

import (
	"fmt"
	"sort"

	"github.com/exascience/pargo/parallel"
	psort "github.com/exascience/pargo/sort"
)

// Interval is a half-open, zero-based genomic interval on a contig.
type Interval struct {
	Contig     string
	Start, End int32
}

// Size returns the number of positions covered by the interval.
func (interval Interval) Size() int32 {
	return interval.End - interval.Start
}

// Empty returns true for zero-length intervals.
func (interval Interval) Empty() bool {
	return interval.Start >= interval.End
}

// Overlaps determines whether two intervals on the same contig share
// at least one position. Intervals on different contigs never overlap.
func (interval Interval) Overlaps(other Interval) bool {
	return interval.Contig == other.Contig &&
		interval.Start < other.End && other.Start < interval.End
}

// Contains determines whether other is fully covered by this interval.
func (interval Interval) Contains(other Interval) bool {
	return interval.Contig == other.Contig &&
		interval.Start <= other.Start && other.End <= interval.End
}

// ContainsPosition determines whether pos falls inside the interval.
func (interval Interval) ContainsPosition(contig string, pos int32) bool {
	return interval.Contig == contig && interval.Start <= pos && pos < interval.End
}

// Encompassing returns the smallest interval covering both arguments.
// The intervals must be on the same contig.
func Encompassing(interval1, interval2 Interval) (Interval, error) {
	if interval1.Contig != interval2.Contig {
		return Interval{}, fmt.Errorf("encompassing of intervals on different contigs %v and %v", interval1.Contig, interval2.Contig)
	}
	result := interval1
	if interval2.Start < result.Start {
		result.Start = interval2.Start
	}
	if interval2.End > result.End {
		result.End = interval2.End
	}
	return result, nil
}

// Intervening returns the gap between two non-overlapping intervals,
// which must be ordered (interval1.End <= interval2.Start) and on the
// same contig.
func Intervening(interval1, interval2 Interval) (Interval, error) {
	if interval1.Contig != interval2.Contig {
		return Interval{}, fmt.Errorf("intervening of intervals on different contigs %v and %v", interval1.Contig, interval2.Contig)
	}
	if interval1.End > interval2.Start {
		return Interval{}, fmt.Errorf("intervening of unordered intervals [%v,%v) and [%v,%v)", interval1.Start, interval1.End, interval2.Start, interval2.End)
	}
	return Interval{interval1.Contig, interval1.End, interval2.Start}, nil
}

// LeftOverhang returns the part of this interval that lies strictly
// before other, or a zero-length interval at this interval's start
// when there is none.
func (interval Interval) LeftOverhang(other Interval) Interval {
	if interval.Contig != other.Contig || interval.Start >= other.Start {
		return Interval{interval.Contig, interval.Start, interval.Start}
	}
	end := other.Start
	if interval.End < end {
		end = interval.End
	}
	return Interval{interval.Contig, interval.Start, end}
}

// RightOverhang returns the part of this interval that lies strictly
// after other, or a zero-length interval at this interval's end
// when there is none.
func (interval Interval) RightOverhang(other Interval) Interval {
	if interval.Contig != other.Contig || interval.End <= other.End {
		return Interval{interval.Contig, interval.End, interval.End}
	}
	start := other.End
	if interval.Start > start {
		start = interval.Start
	}
	return Interval{interval.Contig, start, interval.End}
}

// Expand grows the interval by n positions on both sides, clipping the
// start at zero.
func (interval Interval) Expand(n int32) Interval {
	start := interval.Start - n
	if start < 0 {
		start = 0
	}
	return Interval{interval.Contig, start, interval.End + n}
}

// Shift moves the interval n positions to the right.
func (interval Interval) Shift(n int32) Interval {
	return Interval{interval.Contig, interval.Start + n, interval.End + n}
}

// Less orders intervals by (contig, start, end).
func Less(interval1, interval2 Interval) bool {
	if interval1.Contig != interval2.Contig {
		return interval1.Contig < interval2.Contig
	}
	if interval1.Start != interval2.Start {
		return interval1.Start < interval2.Start
	}
	return interval1.End < interval2.End
}

// SortByStart sorts a slice of Interval by (contig, start, end).
func SortByStart(intervals []Interval) {
	sort.SliceStable(intervals, func(i, j int) bool {
		return Less(intervals[i], intervals[j])
	})
}

type stableIntervalSorter []Interval

func (s stableIntervalSorter) SequentialSort(i, j int) {
	SortByStart(s[i:j])
}

func (s stableIntervalSorter) NewTemp() psort.StableSorter {
	return stableIntervalSorter(make([]Interval, len(s)))
}

func (s stableIntervalSorter) Len() int {
	return len(s)
}

func (s stableIntervalSorter) Less(i, j int) bool {
	return Less(s[i], s[j])
}

func (s stableIntervalSorter) Assign(source psort.StableSorter) func(i, j, len int) {
	dst, src := s, source.(stableIntervalSorter)
	return func(i, j, len int) {
		copy(dst[i:i+len], src[j:j+len])
	}
}

// ParallelSortByStart sorts a slice of Interval by (contig, start, end)
// using a parallel stable sort.
func ParallelSortByStart(intervals []Interval) {
	psort.StableSort(stableIntervalSorter(intervals))
}

// Extend makes interval1 larger if interval2 continues it on the same
// contig, by storing max(interval1.End, interval2.End) in interval1.End;
// otherwise, interval1 remains unchanged.
// Returns true if the two intervals were merged, false otherwise.
// interval2 must not sort before interval1.
func (interval1 *Interval) Extend(interval2 Interval) bool {
	if interval1.Contig != interval2.Contig || interval2.Start > interval1.End {
		return false
	}
	if interval2.End > interval1.End {
		interval1.End = interval2.End
	}
	return true
}

// Flatten merges overlapping and abutting intervals into larger
// intervals. intervals must be sorted by (contig, start) before calling
// Flatten. The resulting slice is sorted, and no two intervals in the
// result can be merged with each other.
// The result shares memory with the intervals argument.
func Flatten(intervals []Interval) []Interval {
	for i, n := 0, len(intervals)-1; i < n; i++ {
		if intervals[i].Extend(intervals[i+1]) {
			n++
			for j := i + 1; j < n; j++ {
				if !intervals[i].Extend(intervals[j]) {
					i++
					intervals[i] = intervals[j]
				}
			}
			return intervals[:i+1]
		}
	}
	return intervals
}

const parallelFlattenGrainSize = 0x1000

// ParallelFlatten merges overlapping and abutting intervals into larger
// intervals, using a parallel algorithm. intervals must be sorted by
// (contig, start) before calling ParallelFlatten.
// The result shares memory with the intervals argument.
func ParallelFlatten(intervals []Interval) []Interval {
	if len(intervals) < parallelFlattenGrainSize {
		return Flatten(intervals)
	}
	half := len(intervals) >> 1
	left, right := intervals[:half], intervals[half:]
	parallel.Do(
		func() { left = ParallelFlatten(left) },
		func() { right = ParallelFlatten(right) },
	)
	for len(right) > 0 && left[len(left)-1].Extend(right[0]) {
		right = right[1:]
	}
	return append(left, right...)
}

// Intersect returns a slice of all intervals that overlap with the
// given interval. intervals must be flattened and sorted.
// The result shares memory with the intervals argument.
func Intersect(intervals []Interval, interval Interval) []Interval {
	n := len(intervals)
	return intervals[sort.Search(n, func(i int) bool {
		if intervals[i].Contig != interval.Contig {
			return intervals[i].Contig > interval.Contig
		}
		return intervals[i].End > interval.Start
	}):sort.Search(n, func(i int) bool {
		if intervals[i].Contig != interval.Contig {
			return intervals[i].Contig > interval.Contig
		}
		return intervals[i].Start >= interval.End
	})]
}
