// elPhase: a tool for pedigree-aware haplotype phasing of variant data.
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
// <https://github.com/exascience/elphase/blob/master/LICENSE.txt>.

package phasing

import "math"

const infiniteCost = math.MaxUint32

// addCosts adds two costs, saturating at infiniteCost.
func addCosts(a, b uint32) uint32 {
	if a == infiniteCost || b == infiniteCost {
		return infiniteCost
	}
	if sum := a + b; sum >= a {
		return sum
	}
	return infiniteCost
}

type uint32Matrix struct {
	rows, cols int
	array      []uint32
}

func newUint32Matrix(rows, cols int, initValue uint32) *uint32Matrix {
	m := &uint32Matrix{rows: rows, cols: cols, array: make([]uint32, rows*cols)}
	if initValue != 0 {
		for i := range m.array {
			m.array[i] = initValue
		}
	}
	return m
}

func (m *uint32Matrix) at(row, col int) uint32 {
	return m.array[row*m.cols+col]
}

func (m *uint32Matrix) setAt(row, col int, value uint32) {
	m.array[row*m.cols+col] = value
}
