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

func minInt(x, y int) int {
	if x < y {
		return x
	}
	return y
}

func isCanonicalBase(base byte) bool {
	switch base {
	case 'A', 'C', 'G', 'T':
		return true
	default:
		return false
	}
}

// isCanonicalDNA returns true if the sequence consists of upper case
// A, C, G, and T only.
func isCanonicalDNA(sequence string) bool {
	for i := 0; i < len(sequence); i++ {
		if !isCanonicalBase(sequence[i]) {
			return false
		}
	}
	return true
}

var complementTable = map[byte]byte{'A': 'T', 'C': 'G', 'G': 'C', 'T': 'A'}

// areReverseComplements returns true if sequence2 is the reverse
// complement of sequence1.
func areReverseComplements(sequence1, sequence2 string) bool {
	if len(sequence1) != len(sequence2) {
		return false
	}
	for i, n := 0, len(sequence1); i < n; i++ {
		if complementTable[sequence1[i]] != sequence2[n-1-i] {
			return false
		}
	}
	return true
}

func isHomopolymer(sequence string) bool {
	for i := 1; i < len(sequence); i++ {
		if sequence[i] != sequence[0] {
			return false
		}
	}
	return len(sequence) > 0
}

func commonPrefixLength(sequence1, sequence2 string) int {
	n := minInt(len(sequence1), len(sequence2))
	for i := 0; i < n; i++ {
		if sequence1[i] != sequence2[i] {
			return i
		}
	}
	return n
}

func commonSuffixLength(sequence1, sequence2 string) int {
	n := minInt(len(sequence1), len(sequence2))
	for i := 1; i <= n; i++ {
		if sequence1[len(sequence1)-i] != sequence2[len(sequence2)-i] {
			return i - 1
		}
	}
	return n
}
