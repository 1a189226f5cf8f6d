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

package sam

import (
	"github.com/exascience/elcall/intervals"
)

// A CigarOperation is a length and an operation code, using the
// standard single-character codes:
// 'M' (alignment match), '=' (sequence match), 'X' (substitution),
// 'I' (insertion), 'D' (deletion), 'S' (soft clip), 'H' (hard clip),
// 'P' (padding), 'N' (skip).
type CigarOperation struct {
	Length    int32
	Operation byte
}

var (
	cigarConsumesReadBases      = map[byte]int32{'M': 1, 'I': 1, 'S': 1, '=': 1, 'X': 1}
	cigarConsumesReferenceBases = map[byte]int32{'M': 1, 'D': 1, 'N': 1, '=': 1, 'X': 1}
	cigarIsMatch                = map[byte]bool{'M': true, '=': true, 'X': true}
)

// CigarAdvancesSequence returns true for operations that consume read
// sequence bases.
func CigarAdvancesSequence(operation byte) bool {
	return cigarConsumesReadBases[operation] != 0
}

// CigarAdvancesReference returns true for operations that consume
// reference bases.
func CigarAdvancesReference(operation byte) bool {
	return cigarConsumesReferenceBases[operation] != 0
}

// CigarIsMatch returns true for the match operations 'M', '=', and 'X'.
func CigarIsMatch(operation byte) bool {
	return cigarIsMatch[operation]
}

// ReadLengthFromCigar sums the lengths of all CIGAR operations that
// consume read bases.
func ReadLengthFromCigar(cigar []CigarOperation) int32 {
	var length int32
	for _, op := range cigar {
		length += cigarConsumesReadBases[op.Operation] * op.Length
	}
	return length
}

// ReferenceLengthFromCigar sums the lengths of all CIGAR operations
// that consume reference bases.
func ReferenceLengthFromCigar(cigar []CigarOperation) int32 {
	var length int32
	for _, op := range cigar {
		length += cigarConsumesReferenceBases[op.Operation] * op.Length
	}
	return length
}

// ExpandCigar flattens a CIGAR into one operation code per base,
// repeating each operation's code length times.
func ExpandCigar(cigar []CigarOperation) []byte {
	var size int32
	for _, op := range cigar {
		size += op.Length
	}
	result := make([]byte, 0, size)
	for _, op := range cigar {
		for i := int32(0); i < op.Length; i++ {
			result = append(result, op.Operation)
		}
	}
	return result
}

// A Read is an immutable aligned read: a mapped interval, a nucleotide
// sequence, per-base qualities of the same length, and a CIGAR.
type Read struct {
	Contig string
	Pos    int32
	Seq    string
	Qual   []byte
	Cigar  []CigarOperation
}

// End returns the mapped end position of the read (one past the last
// consumed reference base).
func (read *Read) End() int32 {
	return read.Pos + ReferenceLengthFromCigar(read.Cigar)
}

// Interval returns the mapped interval of the read.
func (read *Read) Interval() intervals.Interval {
	return intervals.Interval{Contig: read.Contig, Start: read.Pos, End: read.End()}
}

// Valid checks that the sequence-consuming CIGAR operations cover the
// read sequence exactly, and that qualities and sequence have the same
// length.
func (read *Read) Valid() bool {
	return len(read.Seq) == len(read.Qual) &&
		ReadLengthFromCigar(read.Cigar) == int32(len(read.Seq))
}

// IsFrontSoftClipped returns true if the first sequence-consuming
// operation is a soft clip.
func (read *Read) IsFrontSoftClipped() bool {
	for _, op := range read.Cigar {
		switch op.Operation {
		case 'H', 'P':
		case 'S':
			return true
		default:
			return false
		}
	}
	return false
}

// IsBackSoftClipped returns true if the last sequence-consuming
// operation is a soft clip.
func (read *Read) IsBackSoftClipped() bool {
	for i := len(read.Cigar) - 1; i >= 0; i-- {
		switch read.Cigar[i].Operation {
		case 'H', 'P':
		case 'S':
			return true
		default:
			return false
		}
	}
	return false
}

// IsSoftClipped returns true if the read is soft clipped on either end.
func (read *Read) IsSoftClipped() bool {
	return read.IsFrontSoftClipped() || read.IsBackSoftClipped()
}

// SoftClippedSizes returns the lengths of the front and back soft
// clips, zero when absent.
func (read *Read) SoftClippedSizes() (front, back int32) {
	if read.IsFrontSoftClipped() {
		for _, op := range read.Cigar {
			if op.Operation == 'S' {
				front = op.Length
				break
			}
		}
	}
	if read.IsBackSoftClipped() {
		for i := len(read.Cigar) - 1; i >= 0; i-- {
			if read.Cigar[i].Operation == 'S' {
				back = read.Cigar[i].Length
				break
			}
		}
	}
	return front, back
}
