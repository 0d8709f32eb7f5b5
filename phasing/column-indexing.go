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

import (
	"github.com/bits-and-blooms/bitset"
)

// A ColumnIndexingScheme enumerates the partitionings of the reads
// active at one column and relates them to the partitionings of the
// neighboring columns. A partitioning assigns each active read to one
// of ploidy haplotype slots of its individual; its index packs the
// per-read slot values in base ploidy, lowest digit first.
//
// The backward projection of an index restricts it to the reads that
// were already active in the previous column; the forward projection
// restricts it to the reads that stay active in the next column. The
// forward projection is computed eagerly once the next column's read
// ids are known.
type ColumnIndexingScheme struct {
	ploidy      int
	readIDs     []int
	powers      []int
	backwardPos []int // digit position in the backward projection, -1 if the read is new
	forwardPos  []int // digit position in the forward projection, -1 if the read ends here
	backwardPow []int // ploidy^backwardPos, 0 if the read is new
	forwardPow  []int // ploidy^forwardPos, 0 if the read ends here
	backwardLen int
	forwardLen  int
}

func readIDSet(readIDs []int) *bitset.BitSet {
	set := bitset.New(64)
	for _, id := range readIDs {
		set.Set(uint(id))
	}
	return set
}

// NewColumnIndexingScheme creates the indexing scheme for a column
// with the given active read ids. previous is the scheme of the
// preceding column, or nil for the first column.
func NewColumnIndexingScheme(previous *ColumnIndexingScheme, readIDs []int, ploidy int) *ColumnIndexingScheme {
	scheme := &ColumnIndexingScheme{
		ploidy:      ploidy,
		readIDs:     readIDs,
		powers:      make([]int, len(readIDs)+1),
		backwardPos: make([]int, len(readIDs)),
		forwardPos:  make([]int, len(readIDs)),
		backwardPow: make([]int, len(readIDs)),
		forwardPow:  make([]int, len(readIDs)),
	}
	scheme.powers[0] = 1
	for i := 0; i < len(readIDs); i++ {
		scheme.powers[i+1] = scheme.powers[i] * ploidy
	}
	var carried *bitset.BitSet
	if previous != nil {
		carried = readIDSet(previous.readIDs)
	}
	for i, id := range readIDs {
		if carried != nil && carried.Test(uint(id)) {
			scheme.backwardPos[i] = scheme.backwardLen
			scheme.backwardPow[i] = scheme.pow(scheme.backwardLen)
			scheme.backwardLen++
		} else {
			scheme.backwardPos[i] = -1
		}
		scheme.forwardPos[i] = -1
	}
	return scheme
}

// SetNextColumn announces the read ids active in the next column and
// computes the forward projection of this column onto them.
func (scheme *ColumnIndexingScheme) SetNextColumn(nextReadIDs []int) {
	persisting := readIDSet(nextReadIDs)
	scheme.forwardLen = 0
	for i, id := range scheme.readIDs {
		if persisting.Test(uint(id)) {
			scheme.forwardPos[i] = scheme.forwardLen
			scheme.forwardPow[i] = scheme.pow(scheme.forwardLen)
			scheme.forwardLen++
		} else {
			scheme.forwardPos[i] = -1
			scheme.forwardPow[i] = 0
		}
	}
}

// ReadIDs returns the ids of the reads active at this column, in
// column order.
func (scheme *ColumnIndexingScheme) ReadIDs() []int { return scheme.readIDs }

// ColumnSize returns the number of partitionings of this column,
// ploidy to the power of the number of active reads.
func (scheme *ColumnIndexingScheme) ColumnSize() int {
	return scheme.powers[len(scheme.readIDs)]
}

func (scheme *ColumnIndexingScheme) pow(n int) int {
	result := 1
	for i := 0; i < n; i++ {
		result *= scheme.ploidy
	}
	return result
}

// ForwardProjectionSize returns the number of partitionings of the
// reads persisting into the next column.
func (scheme *ColumnIndexingScheme) ForwardProjectionSize() int {
	return scheme.pow(scheme.forwardLen)
}

// BackwardProjectionSize returns the number of partitionings of the
// reads carried over from the previous column.
func (scheme *ColumnIndexingScheme) BackwardProjectionSize() int {
	return scheme.pow(scheme.backwardLen)
}

// BackwardProjection restricts an arbitrary partitioning index of
// this column to the reads carried over from the previous column.
func (scheme *ColumnIndexingScheme) BackwardProjection(index int) int {
	projection := 0
	for i := range scheme.readIDs {
		digit := index % scheme.ploidy
		index /= scheme.ploidy
		if scheme.backwardPos[i] >= 0 {
			projection += digit * scheme.backwardPow[i]
		}
	}
	return projection
}

// Iterator returns a fresh iterator over all partitionings of this
// column.
func (scheme *ColumnIndexingScheme) Iterator() *ColumnIndexingIterator {
	return &ColumnIndexingIterator{
		scheme: scheme,
		gray:   newGrayCodes(scheme.ploidy, len(scheme.readIDs)),
	}
}

// A ColumnIndexingIterator walks all partitionings of a column in
// Gray code order, so that each step after the first moves exactly
// one read to an adjacent haplotype slot. The partitioning index and
// its forward and backward projections are maintained incrementally.
type ColumnIndexingIterator struct {
	scheme             *ColumnIndexingScheme
	gray               *grayCodes
	index              int
	forwardProjection  int
	backwardProjection int
}

// HasNext tells whether there are partitionings left to visit.
func (it *ColumnIndexingIterator) HasNext() bool { return it.gray.hasNext() }

// Advance moves to the next partitioning. It returns the position of
// the read whose slot changed and the slot it moved to. A bitChanged
// of -1 signals a discontinuous transition; the full partitioning is
// then available through Partition.
func (it *ColumnIndexingIterator) Advance() (bitChanged, partitionChanged int) {
	digit, value, delta := it.gray.next()
	if digit < 0 {
		it.index = 0
		it.forwardProjection = 0
		it.backwardProjection = 0
		return -1, -1
	}
	scheme := it.scheme
	it.index += delta * scheme.powers[digit]
	it.forwardProjection += delta * scheme.forwardPow[digit]
	it.backwardProjection += delta * scheme.backwardPow[digit]
	return digit, value
}

// Index returns the current partitioning index.
func (it *ColumnIndexingIterator) Index() int { return it.index }

// Partition returns the current partitioning index, for initializing
// a cost computer after a discontinuous transition.
func (it *ColumnIndexingIterator) Partition() int { return it.index }

// ForwardProjection returns the current index restricted to the reads
// persisting into the next column.
func (it *ColumnIndexingIterator) ForwardProjection() int { return it.forwardProjection }

// BackwardProjection returns the current index restricted to the
// reads carried over from the previous column.
func (it *ColumnIndexingIterator) BackwardProjection() int { return it.backwardProjection }
