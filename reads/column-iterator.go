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

package reads

import "log"

// A ColumnIterator slices a read set into columns, one per variant
// site, each holding the entries of the reads that cover the site in
// read-set order.
type ColumnIterator struct {
	positions []int
	columns   [][]*Entry
	next      int
}

// NewColumnIterator creates a column iterator over the given read
// set. When positions is nil, all positions covered by the read set
// are used; otherwise positions must be strictly increasing, and
// observations outside the given positions are invisible.
func NewColumnIterator(rs *ReadSet, positions []int) *ColumnIterator {
	if positions == nil {
		positions = rs.Positions()
	}
	columnOf := make(map[int]int, len(positions))
	for c, p := range positions {
		if c > 0 && positions[c-1] >= p {
			log.Panicf("column positions not strictly increasing at %v", p)
		}
		columnOf[p] = c
	}
	columns := make([][]*Entry, len(positions))
	for i := 0; i < rs.Len(); i++ {
		r := rs.Get(i)
		for v := 0; v < r.VariantCount(); v++ {
			variant := r.Variant(v)
			if c, ok := columnOf[variant.Position]; ok {
				columns[c] = append(columns[c], &Entry{
					ReadID:    r.ID(),
					Allele:    variant.Allele,
					Qualities: variant.Qualities,
				})
			}
		}
	}
	return &ColumnIterator{positions: positions, columns: columns}
}

// ColumnCount returns the number of columns.
func (it *ColumnIterator) ColumnCount() int { return len(it.columns) }

// Positions returns the genomic positions of the columns, in column
// order.
func (it *ColumnIterator) Positions() []int { return it.positions }

// JumpToColumn positions the iterator so that the next call to Next
// yields the given column.
func (it *ColumnIterator) JumpToColumn(column int) {
	if column < 0 || column > len(it.columns) {
		log.Panicf("jump to column %v out of range", column)
	}
	it.next = column
}

// HasNext tells whether there are columns left to iterate.
func (it *ColumnIterator) HasNext() bool { return it.next < len(it.columns) }

// Next returns the entries of the next column.
func (it *ColumnIterator) Next() []*Entry {
	column := it.columns[it.next]
	it.next++
	return column
}
