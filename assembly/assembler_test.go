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
	"strings"
	"testing"
)

// testWindow has unique 4-mers, so the reference path is unique.
const testWindow = "GCTAAAGACAATTACA"

func assertUniqueKmers(t *testing.T, sequence string, k int) {
	t.Helper()
	seen := make(map[string]bool)
	for i := 0; i+k <= len(sequence); i++ {
		kmer := sequence[i : i+k]
		if seen[kmer] {
			t.Fatalf("test sequence %v repeats kmer %v", sequence, kmer)
		}
		seen[kmer] = true
	}
}

func repeatReads(read string, n int) []string {
	reads := make([]string, n)
	for i := range reads {
		reads[i] = read
	}
	return reads
}

// buildTestAssembler runs the standard pipeline up to cleanup.
func buildTestAssembler(t *testing.T, k int, reference string, reads []string, minWeight int32) *assembler {
	t.Helper()
	assertUniqueKmers(t, reference, k)
	asm := newAssembler(k, reference)
	if !asm.refUnique {
		t.Fatalf("reference %v unexpectedly not a unique path", reference)
	}
	for _, read := range reads {
		asm.insertRead(read)
	}
	asm.tryRecoverDanglingBranches()
	asm.prune(minWeight)
	if !asm.isAcyclic() {
		asm.removeNonreferenceCycles()
	}
	asm.cleanup()
	return asm
}

func extractTrimmed(asm *assembler) []assemblerVariant {
	if asm.isEmpty() || asm.isAllReference() {
		return nil
	}
	return trimAndNormalize(asm.extractVariants(10, 0))
}

func assemblerVariantsEqual(variants1, variants2 []assemblerVariant) bool {
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

func TestReferenceRoundTrip(t *testing.T) {
	asm := buildTestAssembler(t, 4, testWindow, repeatReads(testWindow, 20), 2)
	if !asm.isAllReference() {
		t.Error("graph built from reference-identical reads must be all reference")
	}
	if variants := extractTrimmed(asm); len(variants) != 0 {
		t.Errorf("reference round trip yielded variants %v", variants)
	}
}

func TestSNVBubble(t *testing.T) {
	asm := buildTestAssembler(t, 4, testWindow, repeatReads("GCTAAAGCCAATTACA", 20), 2)
	variants := extractTrimmed(asm)
	if !assemblerVariantsEqual(variants, []assemblerVariant{{7, "A", "C"}}) {
		t.Errorf("SNV bubble yielded %v", variants)
	}
}

func TestDeletionBubble(t *testing.T) {
	asm := buildTestAssembler(t, 4, testWindow, repeatReads("GCTAAAGCAATTACA", 20), 2)
	variants := extractTrimmed(asm)
	if !assemblerVariantsEqual(variants, []assemblerVariant{{7, "A", ""}}) {
		t.Errorf("deletion bubble yielded %v", variants)
	}
}

func TestInsertionBubble(t *testing.T) {
	asm := buildTestAssembler(t, 4, testWindow, repeatReads("GCTAAAGAACAATTACA", 20), 2)
	variants := extractTrimmed(asm)
	if !assemblerVariantsEqual(variants, []assemblerVariant{{8, "", "A"}}) {
		t.Errorf("insertion bubble yielded %v", variants)
	}
}

func TestMNVSplit(t *testing.T) {
	asm := buildTestAssembler(t, 4, testWindow, repeatReads("GCTAAAGCAAATTACA", 20), 2)
	variants := decomposeVariants(extractTrimmed(asm), 5, 8)
	if !assemblerVariantsEqual(variants, []assemblerVariant{{7, "A", "C"}, {8, "C", "A"}}) {
		t.Errorf("MNV decomposition yielded %v", variants)
	}
}

func TestTwoIndependentBubbles(t *testing.T) {
	window := "TCAGTTCCCATTTAGAGGATCCTAGCCT"
	asm := buildTestAssembler(t, 4, window, repeatReads("TCAGTTCCAATTTAGAGGACCCTAGCCT", 20), 2)
	variants := extractTrimmed(asm)
	if !assemblerVariantsEqual(variants, []assemblerVariant{{8, "C", "A"}, {19, "T", "C"}}) {
		t.Errorf("independent bubbles yielded %v", variants)
	}
}

func TestDanglingBranchRecovery(t *testing.T) {
	// the reads stop 3 bases after the SNV, so the alternate path
	// dead-ends one kmer short of rejoining the reference
	asm := buildTestAssembler(t, 4, testWindow, repeatReads("GCTAAAGCCAA", 20), 2)
	variants := extractTrimmed(asm)
	if !assemblerVariantsEqual(variants, []assemblerVariant{{7, "A", "C"}}) {
		t.Errorf("dangling branch recovery yielded %v", variants)
	}
}

func TestRepeatedReferenceKmer(t *testing.T) {
	asm := newAssembler(4, "ACGTACGT")
	if asm.refUnique {
		t.Error("repeated reference kmer not detected")
	}
	if variants := asm.extractVariants(10, 0); len(variants) != 0 {
		t.Errorf("non-unique reference yielded variants %v", variants)
	}
}

func TestWindowSmallerThanKmer(t *testing.T) {
	if asm := newAssembler(8, "ACGT"); asm.refUnique {
		t.Error("window smaller than the kmer size not detected")
	}
}

func TestPruneRemovesWeakBranches(t *testing.T) {
	reads := append(repeatReads(testWindow, 20), "GCTAAAGCCAATTACA")
	asm := buildTestAssembler(t, 4, testWindow, reads, 2)
	if variants := extractTrimmed(asm); len(variants) != 0 {
		t.Errorf("singleton branch survived pruning: %v", variants)
	}
}

func TestCycleRemoval(t *testing.T) {
	asm := newAssembler(4, testWindow)
	for _, read := range repeatReads("TTTTTTTT", 20) {
		asm.insertRead(read)
	}
	asm.tryRecoverDanglingBranches()
	asm.prune(2)
	if asm.isAcyclic() {
		t.Fatal("homopolymer reads must create a cycle")
	}
	asm.removeNonreferenceCycles()
	if !asm.isAcyclic() {
		t.Error("cycle removal left a cycle")
	}
	asm.cleanup()
	if variants := extractTrimmed(asm); len(variants) != 0 {
		t.Errorf("disconnected cycle yielded variants %v", variants)
	}
}

func TestCleanupIdempotent(t *testing.T) {
	asm := buildTestAssembler(t, 4, testWindow, repeatReads("GCTAAAGCCAATTACA", 20), 2)
	numKmers := asm.numKmers()
	refPathLength := len(asm.refPath)
	refHeadPos := asm.refHeadPos
	asm.cleanup()
	if asm.numKmers() != numKmers || len(asm.refPath) != refPathLength || asm.refHeadPos != refHeadPos {
		t.Error("second cleanup changed the graph")
	}
	variants := extractTrimmed(asm)
	if !assemblerVariantsEqual(variants, []assemblerVariant{{7, "A", "C"}}) {
		t.Errorf("cleanup idempotence changed extraction: %v", variants)
	}
}

func TestInsertReadSkipsNonCanonical(t *testing.T) {
	asm := newAssembler(4, testWindow)
	asm.insertRead("GCTANAGCCAATTACA")
	for kmer := range asm.vertexCache {
		if strings.ContainsRune(kmer, 'N') {
			t.Errorf("kmer %v with non-canonical base entered the graph", kmer)
		}
	}
}

func TestBubbleScoreThreshold(t *testing.T) {
	assertUniqueKmers(t, testWindow, 4)
	asm := newAssembler(4, testWindow)
	for _, read := range repeatReads("GCTAAAGCCAATTACA", 3) {
		asm.insertRead(read)
	}
	asm.tryRecoverDanglingBranches()
	asm.prune(2)
	asm.cleanup()
	// 3 observations score below a high threshold
	if variants := asm.extractVariants(10, 3); len(variants) != 0 {
		t.Errorf("weakly supported bubble passed the score threshold: %v", variants)
	}
}
