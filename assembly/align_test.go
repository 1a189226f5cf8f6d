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
	"testing"

	"github.com/exascience/elcall/sam"
)

func cigarsEqual(cigar1, cigar2 []sam.CigarOperation) bool {
	if len(cigar1) != len(cigar2) {
		return false
	}
	for i, op := range cigar1 {
		if op != cigar2[i] {
			return false
		}
	}
	return true
}

func TestGlobalAlignIdentical(t *testing.T) {
	cigar := globalAlign("ACGTACGT", "ACGTACGT", decomposeAlignmentModel)
	if !cigarsEqual(cigar, []sam.CigarOperation{{Length: 8, Operation: '='}}) {
		t.Errorf("identical alignment yielded %v", cigar)
	}
}

func TestGlobalAlignSubstitution(t *testing.T) {
	cigar := globalAlign("ACGTACGT", "ACGAACGT", decomposeAlignmentModel)
	if !cigarsEqual(cigar, []sam.CigarOperation{{Length: 3, Operation: '='}, {Length: 1, Operation: 'X'}, {Length: 4, Operation: '='}}) {
		t.Errorf("substitution alignment yielded %v", cigar)
	}
}

func TestGlobalAlignDeletion(t *testing.T) {
	cigar := globalAlign("ATTTGGCAT", "ATTTCAT", decomposeAlignmentModel)
	if !cigarsEqual(cigar, []sam.CigarOperation{{Length: 4, Operation: '='}, {Length: 2, Operation: 'D'}, {Length: 3, Operation: '='}}) {
		t.Errorf("deletion alignment yielded %v", cigar)
	}
}

func TestGlobalAlignInsertion(t *testing.T) {
	cigar := globalAlign("ATTTCAT", "ATTTGGCAT", decomposeAlignmentModel)
	if !cigarsEqual(cigar, []sam.CigarOperation{{Length: 4, Operation: '='}, {Length: 2, Operation: 'I'}, {Length: 3, Operation: '='}}) {
		t.Errorf("insertion alignment yielded %v", cigar)
	}
}

func TestGlobalAlignEmptyAlleles(t *testing.T) {
	if cigar := globalAlign("", "ACG", decomposeAlignmentModel); !cigarsEqual(cigar, []sam.CigarOperation{{Length: 3, Operation: 'I'}}) {
		t.Errorf("empty reference alignment yielded %v", cigar)
	}
	if cigar := globalAlign("ACG", "", decomposeAlignmentModel); !cigarsEqual(cigar, []sam.CigarOperation{{Length: 3, Operation: 'D'}}) {
		t.Errorf("empty alternate alignment yielded %v", cigar)
	}
	if cigar := globalAlign("", "", decomposeAlignmentModel); cigar != nil {
		t.Errorf("empty alignment yielded %v", cigar)
	}
}

func TestGlobalAlignConsumesBothAlleles(t *testing.T) {
	reference := "GCTAAAGACAATTACA"
	alternate := "GCTAGACAATCGTACA"
	cigar := globalAlign(reference, alternate, decomposeAlignmentModel)
	if sam.ReferenceLengthFromCigar(cigar) != int32(len(reference)) {
		t.Errorf("cigar %v does not consume the full reference", cigar)
	}
	if sam.ReadLengthFromCigar(cigar) != int32(len(alternate)) {
		t.Errorf("cigar %v does not consume the full alternate", cigar)
	}
}
