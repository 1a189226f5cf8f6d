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
	"math"
	"sync"

	"github.com/exascience/elcall/sam"
)

type alignmentModel struct {
	match, mismatch, gapOpen, gapExtend int32
}

// decomposeAlignmentModel is the affine-gap scoring used to decompose
// complex assembled alleles into primitive variants.
var decomposeAlignmentModel = alignmentModel{match: 1, mismatch: -4, gapOpen: -6, gapExtend: -1}

type int32Matrix struct {
	cols  int32
	array []int32
}

func (m *int32Matrix) ensureSize(rows, cols int32) {
	m.cols = cols
	totalSize := rows * cols
	if totalSize <= int32(cap(m.array)) {
		m.array = m.array[:totalSize]
		for i := int32(0); i < totalSize; i++ {
			m.array[i] = 0
		}
	} else {
		m.array = make([]int32, totalSize)
	}
}

func (m *int32Matrix) at(row, col int32) int32 {
	return m.array[row*m.cols+col]
}

func (m *int32Matrix) setAt(row, col, value int32) {
	m.array[row*m.cols+col] = value
}

func (m *int32Matrix) rowView(row int32) []int32 {
	offset := row * m.cols
	return m.array[offset : offset+m.cols]
}

type alignmentMatrices struct {
	scores, backtrack                      int32Matrix
	bestGapV, bestGapH, gapSizeV, gapSizeH []int32
}

var alignmentMatricesPool = sync.Pool{New: func() interface{} { return new(alignmentMatrices) }}

func ensureVector(v []int32, sz, initValue int32) (result []int32) {
	if sz <= int32(cap(v)) {
		result = v[:sz]
	} else {
		result = make([]int32, sz)
	}
	for i := int32(0); i < sz; i++ {
		result[i] = initValue
	}
	return
}

// globalAlign aligns alternate against reference end to end with
// affine gap penalties, and returns a CIGAR over the operations
// '=', 'X', 'I', and 'D'.
func globalAlign(reference, alternate string, model alignmentModel) []sam.CigarOperation {
	if len(reference) == 0 {
		if len(alternate) == 0 {
			return nil
		}
		return []sam.CigarOperation{{Length: int32(len(alternate)), Operation: 'I'}}
	}
	if len(alternate) == 0 {
		return []sam.CigarOperation{{Length: int32(len(reference)), Operation: 'D'}}
	}

	matrices := alignmentMatricesPool.Get().(*alignmentMatrices)
	defer alignmentMatricesPool.Put(matrices)

	refLength := int32(len(reference))
	altLength := int32(len(alternate))

	nrow := refLength + 1
	ncol := altLength + 1
	matrices.scores.ensureSize(nrow, ncol)
	matrices.backtrack.ensureSize(nrow, ncol)

	const lowInitValue = math.MinInt32 / 2

	matrices.bestGapV = ensureVector(matrices.bestGapV, ncol+1, lowInitValue)
	matrices.gapSizeV = ensureVector(matrices.gapSizeV, ncol+1, 0)
	matrices.bestGapH = ensureVector(matrices.bestGapH, nrow+1, lowInitValue)
	matrices.gapSizeH = ensureVector(matrices.gapSizeH, nrow+1, 0)

	topRow := matrices.scores.rowView(0)
	topRow[1] = model.gapOpen
	currentValue := model.gapOpen
	for i := 2; i < len(topRow); i++ {
		currentValue += model.gapExtend
		topRow[i] = currentValue
	}
	matrices.scores.setAt(1, 0, model.gapOpen)
	currentValue = model.gapOpen
	for i := int32(2); i < nrow; i++ {
		currentValue += model.gapExtend
		matrices.scores.setAt(i, 0, currentValue)
	}

	curRow := matrices.scores.rowView(0)
	for i := int32(1); i < nrow; i++ {
		refBase := reference[i-1]
		lastRow := curRow
		curRow = matrices.scores.rowView(i)
		curBacktrackRow := matrices.backtrack.rowView(i)

		for j := int32(1); j < ncol; j++ {
			stepDiag := lastRow[j-1]
			if refBase == alternate[j-1] {
				stepDiag += model.match
			} else {
				stepDiag += model.mismatch
			}

			prevGap := lastRow[j] + model.gapOpen
			matrices.bestGapV[j] += model.gapExtend
			if prevGap > matrices.bestGapV[j] {
				matrices.bestGapV[j] = prevGap
				matrices.gapSizeV[j] = 1
			} else {
				matrices.gapSizeV[j]++
			}
			stepDown := matrices.bestGapV[j]
			kd := matrices.gapSizeV[j]

			prevGap = curRow[j-1] + model.gapOpen
			matrices.bestGapH[i] += model.gapExtend
			if prevGap > matrices.bestGapH[i] {
				matrices.bestGapH[i] = prevGap
				matrices.gapSizeH[i] = 1
			} else {
				matrices.gapSizeH[i]++
			}
			stepRight := matrices.bestGapH[i]
			ki := matrices.gapSizeH[i]

			if stepDiag >= stepDown && stepDiag >= stepRight {
				curRow[j] = stepDiag
				curBacktrackRow[j] = 0
			} else if stepRight >= stepDown {
				curRow[j] = stepRight
				curBacktrackRow[j] = -ki
			} else {
				curRow[j] = stepDown
				curBacktrackRow[j] = kd
			}
		}
	}

	// the CIGAR is built in reverse while backtracking from the corner
	var ops []sam.CigarOperation
	appendOp := func(length int32, operation byte) {
		if length == 0 {
			return
		}
		if n := len(ops); n > 0 && ops[n-1].Operation == operation {
			ops[n-1].Length += length
		} else {
			ops = append(ops, sam.CigarOperation{Length: length, Operation: operation})
		}
	}
	p1, p2 := refLength, altLength
	for p1 > 0 && p2 > 0 {
		if btr := matrices.backtrack.at(p1, p2); btr > 0 {
			appendOp(btr, 'D')
			p1 -= btr
		} else if btr < 0 {
			appendOp(-btr, 'I')
			p2 += btr
		} else {
			if reference[p1-1] == alternate[p2-1] {
				appendOp(1, '=')
			} else {
				appendOp(1, 'X')
			}
			p1--
			p2--
		}
	}
	appendOp(p1, 'D')
	appendOp(p2, 'I')
	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
	return ops
}
