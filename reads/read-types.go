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

import (
	"log"
	"math"
	"sort"

	"github.com/exascience/elphase/utils"
)

// A Variant is a single allele observation of a read at a genomic
// position. Qualities[a] is the phred-scaled cost of the haplotype
// this read stems from carrying allele a; it is 0 at the observed
// allele for sequenced reads.
type Variant struct {
	Position  int
	Allele    int
	Qualities []uint32
}

// An Entry is the column-facing view of a variant: the observation of
// one read at one variant site. An Allele < 0 marks the read as
// uninformative at this site.
type Entry struct {
	ReadID    int
	Allele    int
	Qualities []uint32
}

// A Read is a sequencing read reduced to its allele observations at
// variant sites. Reads carry the sample they were sequenced from so
// that they can be attributed to an individual of a pedigree.
type Read struct {
	Name     string
	Sample   utils.Symbol
	variants []Variant
	id       int
}

func NewRead(name string, sample utils.Symbol) *Read {
	return &Read{Name: name, Sample: sample, id: -1}
}

// ID returns the dense read identifier assigned by
// ReadSet.ReassignReadIDs, or -1 before any assignment.
func (r *Read) ID() int { return r.id }

// AddVariant appends an observation. Positions must be added in
// strictly increasing order.
func (r *Read) AddVariant(position, allele int, qualities []uint32) {
	if n := len(r.variants); n > 0 && r.variants[n-1].Position >= position {
		log.Panicf("variant positions of read %v not strictly increasing", r.Name)
	}
	r.variants = append(r.variants, Variant{position, allele, qualities})
}

// VariantCount returns the number of observations of this read.
func (r *Read) VariantCount() int { return len(r.variants) }

// Variant returns the i-th observation of this read.
func (r *Read) Variant(i int) Variant { return r.variants[i] }

// FirstPosition returns the first position this read observes. The
// read must observe at least one position.
func (r *Read) FirstPosition() int {
	if len(r.variants) == 0 {
		log.Panicf("read %v observes no positions", r.Name)
	}
	return r.variants[0].Position
}

// LastPosition returns the last position this read observes. The read
// must observe at least one position.
func (r *Read) LastPosition() int {
	if len(r.variants) == 0 {
		log.Panicf("read %v observes no positions", r.Name)
	}
	return r.variants[len(r.variants)-1].Position
}

// Covers tells whether this read has an observation at the given
// position.
func (r *Read) Covers(position int) bool {
	i := sort.Search(len(r.variants), func(i int) bool {
		return r.variants[i].Position >= position
	})
	return i < len(r.variants) && r.variants[i].Position == position
}

// empty reads sort after all others
func (r *Read) firstPosition() int {
	if len(r.variants) == 0 {
		return math.MaxInt64
	}
	return r.variants[0].Position
}

// A ReadSet is an ordered collection of reads.
type ReadSet struct {
	reads []*Read
}

func NewReadSet() *ReadSet { return &ReadSet{} }

func (rs *ReadSet) Add(r *Read) { rs.reads = append(rs.reads, r) }

func (rs *ReadSet) Get(i int) *Read { return rs.reads[i] }

func (rs *ReadSet) Len() int { return len(rs.reads) }

// ReassignReadIDs sorts the reads by first covered position, breaking
// ties by name, and assigns identifiers 0..Len()-1 in that order.
func (rs *ReadSet) ReassignReadIDs() {
	sort.SliceStable(rs.reads, func(i, j int) bool {
		pi, pj := rs.reads[i].firstPosition(), rs.reads[j].firstPosition()
		if pi != pj {
			return pi < pj
		}
		return rs.reads[i].Name < rs.reads[j].Name
	})
	for i, r := range rs.reads {
		r.id = i
	}
}

// Positions returns the sorted distinct positions covered by any read
// in the set.
func (rs *ReadSet) Positions() []int {
	seen := make(map[int]bool)
	var positions []int
	for _, r := range rs.reads {
		for _, v := range r.variants {
			if !seen[v.Position] {
				seen[v.Position] = true
				positions = append(positions, v.Position)
			}
		}
	}
	sort.Ints(positions)
	return positions
}
