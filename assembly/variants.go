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
	"log"
	"sort"

	"github.com/exascience/elcall/intervals"
	"github.com/exascience/elcall/sam"
	psort "github.com/exascience/pargo/sort"
)

// An assemblerVariant is positioned relative to the assemble window.
// ref and alt may each be empty, but not both.
type assemblerVariant struct {
	beginPos int
	ref, alt string
}

// trimVariant strips the common suffix and then the common prefix of
// the alleles, shifting beginPos past the stripped prefix.
func trimVariant(v assemblerVariant) assemblerVariant {
	suffix := commonSuffixLength(v.ref, v.alt)
	v.ref = v.ref[:len(v.ref)-suffix]
	v.alt = v.alt[:len(v.alt)-suffix]
	prefix := commonPrefixLength(v.ref, v.alt)
	v.beginPos += prefix
	v.ref = v.ref[prefix:]
	v.alt = v.alt[prefix:]
	return v
}

func assemblerVariantLess(v1, v2 assemblerVariant) bool {
	if v1.beginPos != v2.beginPos {
		return v1.beginPos < v2.beginPos
	}
	if len(v1.ref) != len(v2.ref) {
		return len(v1.ref) < len(v2.ref)
	}
	return v1.alt < v2.alt
}

func sortAssemblerVariants(variants []assemblerVariant) {
	sort.SliceStable(variants, func(i, j int) bool {
		return assemblerVariantLess(variants[i], variants[j])
	})
}

func uniqueAssemblerVariants(variants []assemblerVariant) []assemblerVariant {
	result := variants[:0]
	for i, v := range variants {
		if i == 0 || v != variants[i-1] {
			result = append(result, v)
		}
	}
	return result
}

// trimAndNormalize trims all variants, drops the ones whose alleles
// became identical, and sorts and de-duplicates the rest.
func trimAndNormalize(variants []assemblerVariant) []assemblerVariant {
	result := variants[:0]
	for _, v := range variants {
		if t := trimVariant(v); len(t.ref) != 0 || len(t.alt) != 0 {
			result = append(result, t)
		}
	}
	sortAssemblerVariants(result)
	return uniqueAssemblerVariants(result)
}

func isComplexVariant(v assemblerVariant) bool {
	return (len(v.ref) > 1 && len(v.alt) > 0) || (len(v.alt) > 1 && len(v.ref) > 0)
}

func isInversionVariant(v assemblerVariant) bool {
	return len(v.ref) > 2 &&
		areReverseComplements(v.ref, v.alt) &&
		!isHomopolymer(v.ref) &&
		v.ref[1:len(v.ref)-1] != v.alt[1:len(v.alt)-1]
}

func isDecomposableVariant(v assemblerVariant) bool {
	return isComplexVariant(v) && !isInversionVariant(v)
}

func isMNVVariant(v assemblerVariant) bool {
	if len(v.ref) != len(v.alt) {
		return false
	}
	return len(v.ref) <= 2 || v.ref[1:len(v.ref)-1] == v.alt[1:len(v.alt)-1]
}

// splitMNV yields one SNV per differing position of an MNV.
func splitMNV(v assemblerVariant) []assemblerVariant {
	result := make([]assemblerVariant, 0, 4)
	for i := 0; i < len(v.ref); i++ {
		if v.ref[i] != v.alt[i] {
			result = append(result, assemblerVariant{v.beginPos + i, v.ref[i : i+1], v.alt[i : i+1]})
		}
	}
	return result
}

func countVariantOperationKinds(cigar []sam.CigarOperation) int {
	var hasSNV, hasInsertion, hasDeletion bool
	for _, op := range cigar {
		switch op.Operation {
		case 'X':
			hasSNV = true
		case 'I':
			hasInsertion = true
		case 'D':
			hasDeletion = true
		}
	}
	kinds := 0
	for _, present := range []bool{hasSNV, hasInsertion, hasDeletion} {
		if present {
			kinds++
		}
	}
	return kinds
}

// isComplexAlignment decides whether an alignment is too fragmented to
// decompose: many operations relative to the smaller allele, or, for
// larger alleles, a mix of variant kinds with a fragmented CIGAR.
func isComplexAlignment(cigar []sam.CigarOperation, v assemblerVariant, smallAllele, largeAllele int) bool {
	minAlleleSize := minInt(len(v.ref), len(v.alt))
	return (minAlleleSize > smallAllele && len(cigar) >= minAlleleSize) ||
		(minAlleleSize > largeAllele && len(cigar) > 2*minAlleleSize/3 && countVariantOperationKinds(cigar) > 1)
}

// extractFromAlignment yields one variant per non-match operation of
// an alignment of ref against alt.
func extractFromAlignment(ref, alt string, cigar []sam.CigarOperation, refOffset int) []assemblerVariant {
	result := make([]assemblerVariant, 0, len(cigar))
	var ri, ai int
	for _, op := range cigar {
		size := int(op.Length)
		switch op.Operation {
		case '=':
			refOffset += size
			ri += size
			ai += size
		case 'X':
			for i := 0; i < size; i++ {
				result = append(result, assemblerVariant{refOffset, ref[ri : ri+1], alt[ai : ai+1]})
				refOffset++
				ri++
				ai++
			}
		case 'I':
			result = append(result, assemblerVariant{refOffset, "", alt[ai : ai+size]})
			ai += size
		case 'D':
			result = append(result, assemblerVariant{refOffset, ref[ri : ri+size], ""})
			refOffset += size
			ri += size
		default:
			log.Panicf("assembly: unexpected cigar operation %c while decomposing", op.Operation)
		}
	}
	return result
}

func decomposeVariant(v assemblerVariant, smallAllele, largeAllele int) []assemblerVariant {
	if isMNVVariant(v) {
		return splitMNV(v)
	}
	cigar := globalAlign(v.ref, v.alt, decomposeAlignmentModel)
	if isComplexAlignment(cigar, v, smallAllele, largeAllele) {
		return []assemblerVariant{v}
	}
	return extractFromAlignment(v.ref, v.alt, cigar, v.beginPos)
}

func mergeSortedAssemblerVariants(run1, run2 []assemblerVariant) []assemblerVariant {
	result := make([]assemblerVariant, 0, len(run1)+len(run2))
	for len(run1) > 0 && len(run2) > 0 {
		if assemblerVariantLess(run2[0], run1[0]) {
			result = append(result, run2[0])
			run2 = run2[1:]
		} else {
			result = append(result, run1[0])
			run1 = run1[1:]
		}
	}
	result = append(result, run1...)
	return append(result, run2...)
}

// decomposeVariants splits MNVs and complex alleles into primitive
// variants, merging the decomposed output back in sort order.
// variants must be sorted.
func decomposeVariants(variants []assemblerVariant, smallAllele, largeAllele int) []assemblerVariant {
	var plain, decomposable []assemblerVariant
	for _, v := range variants {
		if isDecomposableVariant(v) {
			decomposable = append(decomposable, v)
		} else {
			plain = append(plain, v)
		}
	}
	if len(decomposable) == 0 {
		return variants
	}
	var decomposed []assemblerVariant
	for _, v := range decomposable {
		decomposed = append(decomposed, decomposeVariant(v, smallAllele, largeAllele)...)
	}
	sortAssemblerVariants(decomposed)
	decomposed = uniqueAssemblerVariants(decomposed)
	return mergeSortedAssemblerVariants(plain, decomposed)
}

// removeLargeDeletions drops deletions spanning at least maxSize
// reference bases. It is applied to the output of partially successful
// assemblies, which are prone to spurious large deletions at small
// kmer sizes.
func removeLargeDeletions(variants []assemblerVariant, maxSize int) []assemblerVariant {
	result := variants[:0]
	for _, v := range variants {
		if len(v.ref) >= maxSize && len(v.alt) == 0 {
			continue
		}
		result = append(result, v)
	}
	return result
}

// A Variant is a candidate variant in genomic coordinates, suitable
// for direct translation to a VCF record by a downstream writer.
// Ref and Alt are fully trimmed; either may be empty.
type Variant struct {
	Contig string
	Pos    int32
	Ref    string
	Alt    string
}

// Interval returns the reference interval of the variant. Insertions
// get a one-base interval so that overlap queries see them.
func (v Variant) Interval() intervals.Interval {
	size := int32(len(v.Ref))
	if size == 0 {
		size = 1
	}
	return intervals.Interval{Contig: v.Contig, Start: v.Pos, End: v.Pos + size}
}

// VariantLess orders variants by (contig, position, ref length, alt).
func VariantLess(v1, v2 Variant) bool {
	if v1.Contig != v2.Contig {
		return v1.Contig < v2.Contig
	}
	if v1.Pos != v2.Pos {
		return v1.Pos < v2.Pos
	}
	if len(v1.Ref) != len(v2.Ref) {
		return len(v1.Ref) < len(v2.Ref)
	}
	return v1.Alt < v2.Alt
}

// SortVariants sorts variants by (contig, position, ref length, alt).
func SortVariants(variants []Variant) {
	sort.SliceStable(variants, func(i, j int) bool {
		return VariantLess(variants[i], variants[j])
	})
}

type stableVariantSorter []Variant

func (s stableVariantSorter) SequentialSort(i, j int) {
	SortVariants(s[i:j])
}

func (s stableVariantSorter) NewTemp() psort.StableSorter {
	return stableVariantSorter(make([]Variant, len(s)))
}

func (s stableVariantSorter) Len() int {
	return len(s)
}

func (s stableVariantSorter) Less(i, j int) bool {
	return VariantLess(s[i], s[j])
}

func (s stableVariantSorter) Assign(source psort.StableSorter) func(i, j, len int) {
	dst, src := s, source.(stableVariantSorter)
	return func(i, j, len int) {
		copy(dst[i:i+len], src[j:j+len])
	}
}

// ParallelSortVariants sorts variants by (contig, position, ref
// length, alt) using a parallel stable sort.
func ParallelSortVariants(variants []Variant) {
	psort.StableSort(stableVariantSorter(variants))
}

func uniqueVariants(variants []Variant) []Variant {
	result := variants[:0]
	for i, v := range variants {
		if i == 0 || v != variants[i-1] {
			result = append(result, v)
		}
	}
	return result
}

// extractFinal turns the per-bin candidates into the final list:
// sorted, unique, within the size limit, and overlapping the requested
// region (bin expansion may have widened the assembled windows).
func extractFinal(candidates []Variant, region intervals.Interval, maxVariantSize int32) []Variant {
	ParallelSortVariants(candidates)
	candidates = uniqueVariants(candidates)
	result := candidates[:0]
	for _, v := range candidates {
		if int32(len(v.Ref)) > maxVariantSize {
			continue
		}
		if !v.Interval().Overlaps(region) {
			continue
		}
		result = append(result, v)
	}
	return result
}
