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
	"context"
	"log"

	"github.com/exascience/elcall/intervals"
	"github.com/exascience/elcall/sam"
)

// A ReferenceSource provides base sequences of a reference genome.
// Fetched sequences must be upper case with ambiguity codes normalized
// to N, and fetches must be clipped to the contig bounds.
// Implementations must be safe for concurrent use.
type ReferenceSource interface {
	FetchSequence(interval intervals.Interval) string
	ContigSize(contig string) int32
	ContigRegion(contig string) intervals.Interval
}

// A ReadSource provides position-ordered aligned reads with a range
// query.
type ReadSource interface {
	OverlapRange(interval intervals.Interval) []sam.Read
}

// A VariantGenerator proposes candidate variants for a genomic region
// from the reads it has been given.
type VariantGenerator interface {
	AddReads(sample string, reads []sam.Read)
	Generate(ctx context.Context, region intervals.Interval) ([]Variant, error)
	Clear()
}

// A VariantSink receives the candidate variants of a region.
type VariantSink interface {
	Append(variant Variant) error
}

// A Logger receives diagnostic output from the reassembler. It is
// optional; a nil Logger disables logging.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// StdLogger logs through the standard library's log package.
type StdLogger struct{}

// Debugf implements Logger.
func (StdLogger) Debugf(format string, args ...interface{}) {
	log.Printf("debug: "+format, args...)
}

// Warnf implements Logger.
func (StdLogger) Warnf(format string, args ...interface{}) {
	log.Printf("warning: "+format, args...)
}
