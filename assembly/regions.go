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

package assembly

import (
	"github.com/exascience/elcall/intervals"
	"github.com/exascience/elcall/sam"
)

// activeRegionJoinGap is the largest gap between read hulls that is
// still bridged into one active region.
const activeRegionJoinGap = 30

// An activeRegionGenerator collects the mapped intervals of the reads
// added to the reassembler and proposes the sub-regions of a requested
// region that are worth reassembling. It is mutated on the driver
// goroutine only.
type activeRegionGenerator struct {
	joinGap int32
	hulls   []intervals.Interval
}

func (g *activeRegionGenerator) add(read *sam.Read) {
	g.hulls = append(g.hulls, read.Interval())
}

func (g *activeRegionGenerator) clear() {
	g.hulls = nil
}

// generate merges the read hulls, bridges gaps up to joinGap, and
// clips the result to the requested region.
func (g *activeRegionGenerator) generate(region intervals.Interval) []intervals.Interval {
	if len(g.hulls) == 0 {
		return nil
	}
	intervals.ParallelSortByStart(g.hulls)
	g.hulls = intervals.ParallelFlatten(g.hulls)
	var result []intervals.Interval
	for _, hull := range intervals.Intersect(g.hulls, region) {
		clipped := hull
		if clipped.Start < region.Start {
			clipped.Start = region.Start
		}
		if clipped.End > region.End {
			clipped.End = region.End
		}
		if clipped.Empty() {
			continue
		}
		if n := len(result) - 1; n >= 0 && clipped.Start-result[n].End <= g.joinGap {
			if clipped.End > result[n].End {
				result[n].End = clipped.End
			}
		} else {
			result = append(result, clipped)
		}
	}
	return result
}
