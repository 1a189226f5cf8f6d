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
	"sort"

	"github.com/exascience/elcall/intervals"
)

// A bin is a sub-interval of an active region that is assembled on
// its own. It holds views of the read sequences folded into it; masked
// sequences are owned by the reassembler's masked-sequence buffer.
type bin struct {
	region    intervals.Interval
	readHull  intervals.Interval
	hasReads  bool
	sequences []string
}

func (b *bin) addSequence(readInterval intervals.Interval, sequence string) {
	if b.hasReads {
		// folded reads always share the bin's contig
		if hull, err := intervals.Encompassing(b.readHull, readInterval); err == nil {
			b.readHull = hull
		}
	} else {
		b.readHull = readInterval
		b.hasReads = true
	}
	b.sequences = append(b.sequences, sequence)
}

func (b *bin) empty() bool {
	return len(b.sequences) == 0
}

func (b *bin) clearReads() {
	b.sequences = nil
}

// prepareBins appends bins tiling the given active region: bins of
// length binSize stepped by binSize-binOverlap, plus one trailing bin
// covering the remainder. The overlap guarantees that indels
// straddling a bin boundary are fully inside at least one bin.
func prepareBins(bins []*bin, region intervals.Interval, binSize, binOverlap int32) []*bin {
	if region.Size() <= binSize {
		return append(bins, &bin{region: region})
	}
	step := binSize - binOverlap
	start := region.Start
	for ; start+binSize < region.End; start += step {
		bins = append(bins, &bin{region: intervals.Interval{Contig: region.Contig, Start: start, End: start + binSize}})
	}
	return append(bins, &bin{region: intervals.Interval{Contig: region.Contig, Start: start, End: region.End}})
}

// finaliseBins drops bins no read was folded into, shrinks each bin's
// interval to the observed read hull, and de-duplicates bins that
// share a starting position, keeping the larger one.
func finaliseBins(bins []*bin) []*bin {
	filled := bins[:0]
	for _, b := range bins {
		if b.empty() {
			continue
		}
		b.region = b.readHull
		filled = append(filled, b)
	}
	sort.SliceStable(filled, func(i, j int) bool {
		if filled[i].region.Contig != filled[j].region.Contig {
			return filled[i].region.Contig < filled[j].region.Contig
		}
		if filled[i].region.Start != filled[j].region.Start {
			return filled[i].region.Start < filled[j].region.Start
		}
		return filled[i].region.End < filled[j].region.End
	})
	result := filled[:0]
	for i, b := range filled {
		if i+1 < len(filled) &&
			filled[i+1].region.Contig == b.region.Contig &&
			filled[i+1].region.Start == b.region.Start {
			// a bigger bin with the same start follows
			continue
		}
		result = append(result, b)
	}
	return result
}

func foldIntoBins(bins []*bin, readInterval intervals.Interval, sequence string) {
	for _, b := range bins {
		if b.region.Overlaps(readInterval) {
			b.addSequence(readInterval, sequence)
		}
	}
}
