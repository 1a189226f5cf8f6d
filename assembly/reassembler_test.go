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
	"testing"

	"github.com/exascience/elcall/fasta"
	"github.com/exascience/elcall/intervals"
	"github.com/exascience/elcall/sam"
)

func testOptions() Options {
	return Options{
		KmerSizes:            []int{4},
		NumFallbacks:         2,
		FallbackIntervalSize: 2,
		BinSize:              1000,
		BinOverlap:           200,
		MaskThreshold:        3,
		MinKmerObservations:  2,
		MaxBubbles:           10,
		MinBubbleScore:       0,
		MaxVariantSize:       100,
		ExecutionPolicy:      Sequential,
	}
}

func testReference(contig, sequence string) *fasta.Reference {
	return fasta.NewReference(map[string][]byte{contig: []byte(sequence)})
}

func mappedReads(contig string, pos int32, sequence string, cigar []sam.CigarOperation, n int) []sam.Read {
	qual := make([]byte, len(sequence))
	for i := range qual {
		qual[i] = 60
	}
	reads := make([]sam.Read, n)
	for i := range reads {
		reads[i] = sam.Read{Contig: contig, Pos: pos, Seq: sequence, Qual: qual, Cigar: cigar}
	}
	return reads
}

func variantsEqual(variants1, variants2 []Variant) bool {
	if len(variants1) != len(variants2) {
		return false
	}
	for i, v := range variants1 {
		if v != variants2[i] {
			return false
		}
	}
	return true
}

func TestGenerateSNV(t *testing.T) {
	reference := testReference("1", "GCTAAAGACAATTACA")
	r, err := NewLocalReassembler(reference, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	r.AddReads("sample1", mappedReads("1", 0, "GCTAAAGCCAATTACA", []sam.CigarOperation{{Length: 16, Operation: 'M'}}, 20))
	variants, err := r.Generate(context.Background(), intervals.Interval{Contig: "1", Start: 0, End: 16})
	if err != nil {
		t.Fatal(err)
	}
	if !variantsEqual(variants, []Variant{{"1", 7, "A", "C"}}) {
		t.Errorf("Generate yielded %v", variants)
	}
}

func TestGenerateReferenceReadsOnly(t *testing.T) {
	reference := testReference("1", "GCTAAAGACAATTACA")
	r, err := NewLocalReassembler(reference, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	r.AddReads("sample1", mappedReads("1", 0, "GCTAAAGACAATTACA", []sam.CigarOperation{{Length: 16, Operation: 'M'}}, 20))
	variants, err := r.Generate(context.Background(), intervals.Interval{Contig: "1", Start: 0, End: 16})
	if err != nil {
		t.Fatal(err)
	}
	if len(variants) != 0 {
		t.Errorf("reference-identical reads yielded %v", variants)
	}
}

// straddleContig has unique 4-mers; the reads carry a 3-base deletion
// at position 12 that straddles the boundary of the first two bins.
const straddleContig = "ATGTGTACATACGCTCTTACTGCGGTCGCGTC"

func TestGenerateStraddlingDeletion(t *testing.T) {
	options := testOptions()
	options.BinSize = 12
	options.BinOverlap = 6
	reference := testReference("1", straddleContig)
	r, err := NewLocalReassembler(reference, options)
	if err != nil {
		t.Fatal(err)
	}
	deletionRead := straddleContig[6:12] + straddleContig[15:24]
	deletionCigar := []sam.CigarOperation{{Length: 6, Operation: 'M'}, {Length: 3, Operation: 'D'}, {Length: 9, Operation: 'M'}}
	r.AddReads("sample1", mappedReads("1", 6, deletionRead, deletionCigar, 20))
	r.AddReads("sample1", mappedReads("1", 0, straddleContig[0:16], []sam.CigarOperation{{Length: 16, Operation: 'M'}}, 20))
	r.AddReads("sample1", mappedReads("1", 16, straddleContig[16:32], []sam.CigarOperation{{Length: 16, Operation: 'M'}}, 20))
	variants, err := r.Generate(context.Background(), intervals.Interval{Contig: "1", Start: 0, End: 32})
	if err != nil {
		t.Fatal(err)
	}
	// the deletion appears in several bins but only once in the output
	if !variantsEqual(variants, []Variant{{"1", 12, "GCT", ""}}) {
		t.Errorf("Generate yielded %v", variants)
	}
}

func TestGenerateParallelMatchesSequential(t *testing.T) {
	run := func(policy ExecutionPolicy) []Variant {
		options := testOptions()
		options.BinSize = 12
		options.BinOverlap = 6
		options.ExecutionPolicy = policy
		reference := testReference("1", straddleContig)
		r, err := NewLocalReassembler(reference, options)
		if err != nil {
			t.Fatal(err)
		}
		deletionRead := straddleContig[6:12] + straddleContig[15:24]
		deletionCigar := []sam.CigarOperation{{Length: 6, Operation: 'M'}, {Length: 3, Operation: 'D'}, {Length: 9, Operation: 'M'}}
		r.AddReads("sample1", mappedReads("1", 6, deletionRead, deletionCigar, 20))
		r.AddReads("sample1", mappedReads("1", 0, straddleContig[0:16], []sam.CigarOperation{{Length: 16, Operation: 'M'}}, 20))
		r.AddReads("sample1", mappedReads("1", 16, straddleContig[16:32], []sam.CigarOperation{{Length: 16, Operation: 'M'}}, 20))
		variants, err := r.Generate(context.Background(), intervals.Interval{Contig: "1", Start: 0, End: 32})
		if err != nil {
			t.Fatal(err)
		}
		return variants
	}
	if !variantsEqual(run(Sequential), run(Parallel)) {
		t.Error("parallel bin assembly differs from sequential")
	}
}

// fallbackContig repeats 4-mers but has unique 6-mers, so the default
// kmer size fails and the first fallback size succeeds.
const fallbackContig = "TTTTTCGAACTCGTGTTGTCGAGC"

func TestGenerateFallbackKmerSize(t *testing.T) {
	reference := testReference("1", fallbackContig)
	r, err := NewLocalReassembler(reference, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	r.AddReads("sample1", mappedReads("1", 0, "TTTTTCGAACTTGTGTTGTCGAGC", []sam.CigarOperation{{Length: 24, Operation: 'M'}}, 20))
	variants, err := r.Generate(context.Background(), intervals.Interval{Contig: "1", Start: 0, End: 24})
	if err != nil {
		t.Fatal(err)
	}
	if !variantsEqual(variants, []Variant{{"1", 11, "C", "T"}}) {
		t.Errorf("Generate with fallback yielded %v", variants)
	}
}

func TestGenerateMasksLowQualityReads(t *testing.T) {
	reference := testReference("1", "GCTAAAGACAATTACA")
	r, err := NewLocalReassembler(reference, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	// the SNV base has quality below the mask threshold, so it is
	// replaced with the reference base and no variant remains
	reads := mappedReads("1", 0, "GCTAAAGCCAATTACA", []sam.CigarOperation{{Length: 16, Operation: 'M'}}, 20)
	for i := range reads {
		qual := append([]byte(nil), reads[i].Qual...)
		qual[7] = 2
		reads[i].Qual = qual
	}
	r.AddReads("sample1", reads)
	variants, err := r.Generate(context.Background(), intervals.Interval{Contig: "1", Start: 0, End: 16})
	if err != nil {
		t.Fatal(err)
	}
	if len(variants) != 0 {
		t.Errorf("masked reads yielded %v", variants)
	}
}

func TestGenerateEmptyKmerSizesDisablesReassembly(t *testing.T) {
	options := testOptions()
	options.KmerSizes = nil
	reference := testReference("1", "GCTAAAGACAATTACA")
	r, err := NewLocalReassembler(reference, options)
	if err != nil {
		t.Fatal(err)
	}
	r.AddReads("sample1", mappedReads("1", 0, "GCTAAAGCCAATTACA", []sam.CigarOperation{{Length: 16, Operation: 'M'}}, 20))
	variants, err := r.Generate(context.Background(), intervals.Interval{Contig: "1", Start: 0, End: 16})
	if err != nil || len(variants) != 0 {
		t.Errorf("disabled reassembly yielded %v %v", variants, err)
	}
}

func TestGenerateCancellation(t *testing.T) {
	reference := testReference("1", "GCTAAAGACAATTACA")
	r, err := NewLocalReassembler(reference, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	r.AddReads("sample1", mappedReads("1", 0, "GCTAAAGCCAATTACA", []sam.CigarOperation{{Length: 16, Operation: 'M'}}, 20))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Generate(ctx, intervals.Interval{Contig: "1", Start: 0, End: 16}); err == nil {
		t.Error("cancelled Generate did not report an error")
	}
}

func TestNewLocalReassemblerConfigErrors(t *testing.T) {
	reference := testReference("1", "GCTAAAGACAATTACA")
	options := testOptions()
	options.BinSize = 0
	if _, err := NewLocalReassembler(reference, options); err == nil {
		t.Error("bin size 0 not rejected")
	}
	options = testOptions()
	options.FallbackIntervalSize = 0
	if _, err := NewLocalReassembler(reference, options); err == nil {
		t.Error("fallback interval size 0 not rejected")
	}
	options = testOptions()
	options.BinOverlap = options.BinSize + 10
	r, err := NewLocalReassembler(reference, options)
	if err != nil {
		t.Fatal(err)
	}
	if r.maxBinOverlap != options.BinSize-1 {
		t.Error("bin overlap not clamped to bin size - 1")
	}
}

func TestNewLocalReassemblerKmerSizes(t *testing.T) {
	reference := testReference("1", "GCTAAAGACAATTACA")
	options := testOptions()
	options.KmerSizes = []int{25, 10, 25, 15}
	options.NumFallbacks = 3
	options.FallbackIntervalSize = 10
	r, err := NewLocalReassembler(reference, options)
	if err != nil {
		t.Fatal(err)
	}
	expected := []int{10, 15, 25}
	if len(r.defaultKmerSizes) != len(expected) {
		t.Fatalf("default kmer sizes are %v", r.defaultKmerSizes)
	}
	for i, k := range expected {
		if r.defaultKmerSizes[i] != k {
			t.Fatalf("default kmer sizes are %v", r.defaultKmerSizes)
		}
	}
	fallbacks := []int{35, 45, 55}
	for i, k := range fallbacks {
		if r.fallbackKmerSizes[i] != k {
			t.Fatalf("fallback kmer sizes are %v", r.fallbackKmerSizes)
		}
	}
}

func TestSliceSink(t *testing.T) {
	var sink SliceSink
	if err := AppendVariants(&sink, []Variant{{"1", 7, "A", "C"}, {"1", 9, "", "G"}}); err != nil {
		t.Fatal(err)
	}
	if len(sink.Variants) != 2 {
		t.Errorf("sink holds %v", sink.Variants)
	}
}
