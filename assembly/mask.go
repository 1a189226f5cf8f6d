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
	"github.com/exascience/elcall/sam"
)

func hasLowQualityFlank(read *sam.Read, goodQuality byte) bool {
	if read.IsFrontSoftClipped() && read.Qual[0] < goodQuality {
		return true
	}
	return read.IsBackSoftClipped() && read.Qual[len(read.Qual)-1] < goodQuality
}

func hasLowQualityMatch(read *sam.Read, goodQuality byte) bool {
	if goodQuality == 0 {
		return false
	}
	var qualIndex int32
	for _, op := range read.Cigar {
		if sam.CigarIsMatch(op.Operation) {
			for i := qualIndex; i < qualIndex+op.Length; i++ {
				if read.Qual[i] < goodQuality {
					return true
				}
			}
			qualIndex += op.Length
		} else if sam.CigarAdvancesSequence(op.Operation) {
			qualIndex += op.Length
		}
	}
	return false
}

// requiresMasking determines whether a read has low-quality
// soft-clipped flanks or low-quality match bases, so its sequence
// should not enter the assembly graph verbatim.
func requiresMasking(read *sam.Read, goodQuality byte) bool {
	return hasLowQualityFlank(read, goodQuality) || hasLowQualityMatch(read, goodQuality)
}

func removableFlankSizes(read *sam.Read, minQuality byte) (front, back int) {
	frontClip, backClip := read.SoftClippedSizes()
	for i := 0; i < int(frontClip); i++ {
		if read.Qual[i] >= minQuality {
			break
		}
		front++
	}
	for i := 0; i < int(backClip); i++ {
		if read.Qual[len(read.Qual)-1-i] >= minQuality {
			break
		}
		back++
	}
	return front, back
}

// maskRead overwrites low-quality match bases with the corresponding
// reference base, and drops low-quality soft-clipped bases from the
// flanks. refSeq must hold the reference bases for the read's mapped
// interval. Returns false when no match base was masked; in that case
// the sequence result is empty.
func maskRead(read *sam.Read, minQuality byte, refSeq string) (string, bool) {
	if int32(len(refSeq)) < sam.ReferenceLengthFromCigar(read.Cigar) {
		// the read maps past the contig bounds
		return "", false
	}
	expanded := sam.ExpandCigar(read.Cigar)
	sequence := []byte(read.Seq)
	hasMasked := false
	var si, ri int
	for _, op := range expanded {
		if sam.CigarAdvancesSequence(op) {
			if sam.CigarIsMatch(op) && read.Qual[si] < minQuality {
				sequence[si] = refSeq[ri]
				hasMasked = true
			}
			si++
		}
		if sam.CigarAdvancesReference(op) {
			ri++
		}
	}
	if !hasMasked {
		return "", false
	}
	if hasLowQualityFlank(read, minQuality) {
		front, back := removableFlankSizes(read, minQuality)
		sequence = sequence[front : len(sequence)-back]
	}
	return string(sequence), true
}
