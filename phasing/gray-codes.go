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

// grayCodes enumerates all base^length digit vectors in reflected
// Gray code order: consecutive vectors differ in exactly one digit,
// and that digit changes by exactly 1.
type grayCodes struct {
	base, length int
	total        int
	visited      int
	digits       []int
	focus        []int
	dirs         []int
}

func newGrayCodes(base, length int) *grayCodes {
	total := 1
	for i := 0; i < length; i++ {
		total *= base
	}
	g := &grayCodes{
		base:   base,
		length: length,
		total:  total,
		digits: make([]int, length),
		focus:  make([]int, length+1),
		dirs:   make([]int, length),
	}
	for i := 0; i <= length; i++ {
		g.focus[i] = i
	}
	for i := 0; i < length; i++ {
		g.dirs[i] = 1
	}
	return g
}

func (g *grayCodes) hasNext() bool {
	return g.visited < g.total
}

// next advances to the next digit vector. It returns the digit that
// changed, its new value, and the delta applied (+1 or -1). The very
// first call yields the all-zero vector and reports digit -1.
func (g *grayCodes) next() (digit, value, delta int) {
	g.visited++
	if g.visited == 1 {
		return -1, 0, 0
	}
	j := g.focus[0]
	g.focus[0] = 0
	delta = g.dirs[j]
	g.digits[j] += delta
	if g.digits[j] == 0 || g.digits[j] == g.base-1 {
		g.dirs[j] = -g.dirs[j]
		g.focus[j] = g.focus[j+1]
		g.focus[j+1] = j + 1
	}
	return j, g.digits[j], delta
}
