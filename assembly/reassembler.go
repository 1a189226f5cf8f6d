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
	"sort"

	"github.com/exascience/elcall/intervals"
	"github.com/exascience/elcall/sam"
	"github.com/exascience/pargo/parallel"
)

// An ExecutionPolicy selects sequential or parallel bin assembly.
type ExecutionPolicy int

// Execution policies.
const (
	Sequential ExecutionPolicy = iota
	Parallel
)

// binWorkers is the fan-out of parallel bin assembly.
const binWorkers = 4

// A ConfigError reports an invalid reassembler configuration.
type ConfigError string

// Error implements the error interface.
func (e ConfigError) Error() string {
	return string(e)
}

// Options configure a LocalReassembler.
type Options struct {
	// KmerSizes are the default kmer sizes, tried in ascending order
	// for every bin. An empty list disables reassembly.
	KmerSizes []int
	// NumFallbacks fallback kmer sizes are derived as the largest
	// default plus multiples of FallbackIntervalSize, and tried when
	// every default size failed or only partially succeeded.
	NumFallbacks         int
	FallbackIntervalSize int
	// BinSize bounds the graph size per assembly; BinOverlap
	// guarantees indels straddling a bin boundary are captured. The
	// overlap is clamped to BinSize-1.
	BinSize    int32
	BinOverlap int32
	// MaskThreshold is the per-base quality floor below which match
	// bases are replaced with the reference; 0 disables masking.
	MaskThreshold byte
	// MinKmerObservations is the edge-weight prune threshold.
	MinKmerObservations int32
	MaxBubbles          int
	MinBubbleScore      float64
	MaxVariantSize      int32
	// ComplexSmallAllele and ComplexLargeAllele tune the
	// complex-alignment heuristic of allele decomposition.
	ComplexSmallAllele int
	ComplexLargeAllele int
	ExecutionPolicy    ExecutionPolicy
	Logger             Logger
}

// DefaultOptions returns the standard reassembler configuration.
func DefaultOptions() Options {
	return Options{
		KmerSizes:            []int{10, 25},
		NumFallbacks:         6,
		FallbackIntervalSize: 10,
		BinSize:              1000,
		BinOverlap:           200,
		MaskThreshold:        3,
		MinKmerObservations:  2,
		MaxBubbles:           30,
		MinBubbleScore:       2,
		MaxVariantSize:       2000,
		ComplexSmallAllele:   5,
		ComplexLargeAllele:   8,
		ExecutionPolicy:      Parallel,
	}
}

type assemblerStatus int

const (
	statusSuccess assemblerStatus = iota
	statusPartial
	statusFailed
)

// A LocalReassembler proposes candidate variants for genomic regions
// by reassembling the reads overlapping them. It exclusively owns its
// read buffer, bins, masked-sequence buffer, and active-region
// generator; Generate must not be called concurrently.
type LocalReassembler struct {
	reference           ReferenceSource
	defaultKmerSizes    []int
	fallbackKmerSizes   []int
	readBuffer          map[string][]sam.Read
	maxReadLength       int32
	maxBinSize          int32
	maxBinOverlap       int32
	bins                []*bin
	maskedSequences     []string
	maskThreshold       byte
	minKmerObservations int32
	maxBubbles          int
	minBubbleScore      float64
	maxVariantSize      int32
	complexSmallAllele  int
	complexLargeAllele  int
	executionPolicy     ExecutionPolicy
	regionGenerator     activeRegionGenerator
	logger              Logger
}

// NewLocalReassembler validates the options and creates a reassembler
// against the given reference.
func NewLocalReassembler(reference ReferenceSource, options Options) (*LocalReassembler, error) {
	if options.BinSize <= 0 {
		return nil, ConfigError("bin size must be greater than zero")
	}
	if options.FallbackIntervalSize <= 0 {
		return nil, ConfigError("fallback interval size must be greater than zero")
	}
	binOverlap := options.BinOverlap
	if binOverlap >= options.BinSize {
		binOverlap = options.BinSize - 1
	}
	if binOverlap < 0 {
		binOverlap = 0
	}
	kmerSizes := append([]int(nil), options.KmerSizes...)
	sort.Ints(kmerSizes)
	deduped := kmerSizes[:0]
	for i, k := range kmerSizes {
		if i == 0 || k != kmerSizes[i-1] {
			deduped = append(deduped, k)
		}
	}
	kmerSizes = deduped
	var fallbackKmerSizes []int
	if len(kmerSizes) > 0 {
		last := kmerSizes[len(kmerSizes)-1]
		for i := 1; i <= options.NumFallbacks; i++ {
			fallbackKmerSizes = append(fallbackKmerSizes, last+i*options.FallbackIntervalSize)
		}
	}
	return &LocalReassembler{
		reference:           reference,
		defaultKmerSizes:    kmerSizes,
		fallbackKmerSizes:   fallbackKmerSizes,
		readBuffer:          make(map[string][]sam.Read),
		maxBinSize:          options.BinSize,
		maxBinOverlap:       binOverlap,
		maskThreshold:       options.MaskThreshold,
		minKmerObservations: options.MinKmerObservations,
		maxBubbles:          options.MaxBubbles,
		minBubbleScore:      options.MinBubbleScore,
		maxVariantSize:      options.MaxVariantSize,
		complexSmallAllele:  options.ComplexSmallAllele,
		complexLargeAllele:  options.ComplexLargeAllele,
		executionPolicy:     options.ExecutionPolicy,
		regionGenerator:     activeRegionGenerator{joinGap: activeRegionJoinGap},
		logger:              options.Logger,
	}, nil
}

func (r *LocalReassembler) logDebugf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debugf(format, args...)
	}
}

func (r *LocalReassembler) logWarnf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Warnf(format, args...)
	}
}

// AddReads buffers reads for the next Generate call.
func (r *LocalReassembler) AddReads(sample string, reads []sam.Read) {
	r.readBuffer[sample] = append(r.readBuffer[sample], reads...)
	for i := range reads {
		read := &reads[i]
		r.regionGenerator.add(read)
		if size := int32(len(read.Seq)); size > r.maxReadLength {
			r.maxReadLength = size
		}
	}
}

// OverlapRange returns the buffered reads of all samples overlapping
// the given interval, in sample order. The read buffer must be sorted.
func (r *LocalReassembler) OverlapRange(interval intervals.Interval) []sam.Read {
	var result []sam.Read
	for _, sample := range r.sortedSamples() {
		reads := r.readBuffer[sample]
		lower := sort.Search(len(reads), func(i int) bool {
			if reads[i].Contig != interval.Contig {
				return reads[i].Contig > interval.Contig
			}
			return reads[i].Pos >= interval.Start-r.maxReadLength
		})
		for i := lower; i < len(reads) && reads[i].Contig == interval.Contig && reads[i].Pos < interval.End; i++ {
			if reads[i].Interval().Overlaps(interval) {
				result = append(result, reads[i])
			}
		}
	}
	return result
}

func (r *LocalReassembler) sortedSamples() []string {
	samples := make([]string, 0, len(r.readBuffer))
	for sample := range r.readBuffer {
		samples = append(samples, sample)
	}
	sort.Strings(samples)
	return samples
}

func sortReadsByPosition(reads []sam.Read) {
	sort.SliceStable(reads, func(i, j int) bool {
		if reads[i].Contig != reads[j].Contig {
			return reads[i].Contig < reads[j].Contig
		}
		return reads[i].Pos < reads[j].Pos
	})
}

// Generate proposes candidate variants for the given region from the
// buffered reads. The read buffer, bins, and masked-sequence buffer
// are cleared before returning. Cancelling the context stops the work
// between bins and between kmer sizes; in-flight assemblies run to
// completion.
func (r *LocalReassembler) Generate(ctx context.Context, region intervals.Interval) ([]Variant, error) {
	if len(r.defaultKmerSizes) == 0 {
		r.readBuffer = make(map[string][]sam.Read)
		r.maxReadLength = 0
		r.clearRegionState()
		return nil, nil
	}
	activeRegions := r.regionGenerator.generate(region)
	r.logDebugf("assembler active regions are: %v", activeRegions)
	for _, sample := range r.sortedSamples() {
		sortReadsByPosition(r.readBuffer[sample])
	}
	for _, activeRegion := range activeRegions {
		firstBin := len(r.bins)
		r.bins = prepareBins(r.bins, activeRegion, r.maxBinSize, r.maxBinOverlap)
		newBins := r.bins[firstBin:]
		for _, read := range r.OverlapRange(activeRegion) {
			read := read
			if r.maskThreshold > 0 && requiresMasking(&read, r.maskThreshold) {
				refSeq := r.reference.FetchSequence(read.Interval())
				if masked, ok := maskRead(&read, r.maskThreshold, refSeq); ok {
					r.maskedSequences = append(r.maskedSequences, masked)
					foldIntoBins(newBins, read.Interval(), r.maskedSequences[len(r.maskedSequences)-1])
				}
			} else {
				foldIntoBins(newBins, read.Interval(), read.Seq)
			}
		}
	}
	r.readBuffer = make(map[string][]sam.Read)
	r.maxReadLength = 0
	r.bins = finaliseBins(r.bins)
	if len(r.bins) == 0 {
		r.clearRegionState()
		if len(activeRegions) > 0 {
			r.logWarnf("no assemblable reads in %v", region)
		}
		return nil, nil
	}
	var candidates []Variant
	var err error
	if r.executionPolicy == Sequential || len(r.bins) < 2 {
		candidates, err = r.assembleBinsSequential(ctx)
	} else {
		candidates, err = r.assembleBinsParallel(ctx)
	}
	r.clearRegionState()
	if err != nil {
		return nil, err
	}
	return extractFinal(candidates, region, r.maxVariantSize), nil
}

// Clear drops all buffered state.
func (r *LocalReassembler) Clear() {
	r.readBuffer = make(map[string][]sam.Read)
	r.maxReadLength = 0
	r.clearRegionState()
	r.regionGenerator.clear()
}

func (r *LocalReassembler) clearRegionState() {
	r.bins = nil
	r.maskedSequences = nil
}

func (r *LocalReassembler) assembleBinsSequential(ctx context.Context) ([]Variant, error) {
	var candidates []Variant
	for _, b := range r.bins {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.logDebugf("assembling %v reads in bin %v", len(b.sequences), b.region)
		candidates = append(candidates, r.assembleBinWithRetries(ctx, b)...)
		b.clearReads()
	}
	return candidates, nil
}

// assembleBinsParallel processes the bins in batches of binWorkers
// tasks and appends the per-bin outputs in bin order, so the result
// does not depend on task completion order.
func (r *LocalReassembler) assembleBinsParallel(ctx context.Context) ([]Variant, error) {
	var candidates []Variant
	for first := 0; first < len(r.bins); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch := minInt(binWorkers, len(r.bins)-first)
		results := make([][]Variant, batch)
		thunks := make([]func(), batch)
		for i := 0; i < batch; i++ {
			slot := i
			b := r.bins[first+i]
			r.logDebugf("assembling %v reads in bin %v", len(b.sequences), b.region)
			thunks[slot] = func() {
				results[slot] = r.assembleBinWithRetries(ctx, b)
				b.clearReads()
			}
		}
		parallel.Do(thunks...)
		for _, result := range results {
			candidates = append(candidates, result...)
		}
		first += batch
	}
	return candidates, nil
}

// assembleBinWithRetries tries every default kmer size, and falls back
// to the fallback sizes when every default failed or only partially
// succeeded.
func (r *LocalReassembler) assembleBinWithRetries(ctx context.Context, b *bin) []Variant {
	var result []Variant
	failures := 0
	for _, k := range r.defaultKmerSizes {
		if ctx.Err() != nil {
			return result
		}
		switch r.assembleBin(k, b, &result) {
		case statusSuccess:
			r.logDebugf("default assembler with kmer size %v completed", k)
		case statusPartial:
			r.logDebugf("default assembler with kmer size %v partially completed", k)
			failures++
		default:
			r.logDebugf("default assembler with kmer size %v failed", k)
			failures++
		}
	}
	if failures < len(r.defaultKmerSizes) {
		return result
	}
	for _, k := range r.fallbackKmerSizes {
		if ctx.Err() != nil {
			return result
		}
		switch r.assembleBin(k, b, &result) {
		case statusSuccess:
			r.logDebugf("fallback assembler with kmer size %v completed", k)
			return result
		case statusPartial:
			r.logDebugf("fallback assembler with kmer size %v partially completed", k)
		default:
			r.logDebugf("fallback assembler with kmer size %v failed", k)
		}
	}
	return result
}

// proposeAssemblerRegion expands a bin by the kmer size on both sides,
// clipped to the contig bounds, so that bubbles at the bin edges still
// find reference kmers to rejoin.
func (r *LocalReassembler) proposeAssemblerRegion(input intervals.Interval, kmerSize int32) intervals.Interval {
	if input.Start < kmerSize {
		if r.reference.ContigSize(input.Contig) >= kmerSize {
			return intervals.Interval{Contig: input.Contig, Start: 0, End: input.End + kmerSize}
		}
		return r.reference.ContigRegion(input.Contig)
	}
	ideal := input.Expand(kmerSize)
	if r.reference.ContigRegion(input.Contig).Contains(ideal) {
		return ideal
	}
	return intervals.Interval{Contig: input.Contig, Start: input.Start - kmerSize, End: r.reference.ContigSize(input.Contig)}
}

func (r *LocalReassembler) assembleBin(kmerSize int, b *bin, result *[]Variant) assemblerStatus {
	if b.empty() {
		return statusSuccess
	}
	assembleRegion := r.proposeAssemblerRegion(b.region, int32(kmerSize))
	refSeq := r.reference.FetchSequence(assembleRegion)
	// the proposal may run past the contig end; the fetch is clipped
	assembleRegion.End = assembleRegion.Start + int32(len(refSeq))
	if len(refSeq) < kmerSize {
		return statusFailed
	}
	if !isCanonicalDNA(refSeq) {
		return statusFailed
	}
	asm := newAssembler(kmerSize, refSeq)
	if !asm.refUnique {
		return statusFailed
	}
	for _, sequence := range b.sequences {
		asm.insertRead(sequence)
	}
	return r.tryAssembleRegion(asm, assembleRegion, result)
}

func (r *LocalReassembler) tryAssembleRegion(asm *assembler, assembleRegion intervals.Interval, result *[]Variant) assemblerStatus {
	asm.tryRecoverDanglingBranches()
	asm.prune(r.minKmerObservations)
	status := statusSuccess
	if !asm.isAcyclic() {
		asm.removeNonreferenceCycles()
		status = statusPartial
	}
	asm.cleanup()
	if asm.isEmpty() || asm.isAllReference() {
		asm.clear()
		return status
	}
	variants := asm.extractVariants(r.maxBubbles, r.minBubbleScore)
	kmerSize := asm.kmerSize()
	asm.clear()
	if len(variants) == 0 {
		return status
	}
	variants = trimAndNormalize(variants)
	variants = decomposeVariants(variants, r.complexSmallAllele, r.complexLargeAllele)
	if status == statusPartial {
		// Spurious large deletions show up at small kmer sizes when
		// cycle removal was needed; filter them by kmer size until the
		// assembler can remove them itself.
		switch {
		case kmerSize <= 10:
			variants = removeLargeDeletions(variants, 100)
		case kmerSize <= 15:
			variants = removeLargeDeletions(variants, 150)
		case kmerSize <= 20:
			variants = removeLargeDeletions(variants, 200)
		case kmerSize <= 30:
			variants = removeLargeDeletions(variants, 250)
		}
	}
	for _, v := range variants {
		*result = append(*result, Variant{
			Contig: assembleRegion.Contig,
			Pos:    assembleRegion.Start + int32(v.beginPos),
			Ref:    v.ref,
			Alt:    v.alt,
		})
	}
	return status
}
