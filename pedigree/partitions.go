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

package pedigree

import "fmt"

// Partitions maps the local haplotype slots of each individual to
// global haplotype classes for one transmission index. Two slots fall
// into the same class exactly when one is inherited from the other
// under the transmission pattern.
//
// The transmission index encodes two bits per triple: bit 2t selects
// which of the mother's first two haplotype slots the child's slot 1
// copies, bit 2t+1 selects which of the father's first two slots the
// child's slot 0 copies. Child slots beyond the first two are never
// inherited and keep classes of their own.
type Partitions struct {
	ploidy               int
	haplotypeToPartition []int
	count                int
}

// NewPartitions derives the haplotype classes for the given
// transmission index. It fails when the triples are cyclic, i.e. when
// some individual is its own ancestor.
func NewPartitions(ped *Pedigree, transmissionIndex, ploidy int) (*Partitions, error) {
	if ped.TripleCount() > 0 && ploidy < 2 {
		return nil, fmt.Errorf("pedigree triples require ploidy at least 2")
	}
	childTriple := make([]int, ped.Size())
	for i := range childTriple {
		childTriple[i] = -1
	}
	for t := 0; t < ped.TripleCount(); t++ {
		childTriple[ped.Triple(t).Child] = t
	}

	classes := make([]int, ped.Size()*ploidy)
	for i := range classes {
		classes[i] = -1
	}
	count := 0
	for i := 0; i < ped.Size(); i++ {
		for j := 0; j < ploidy; j++ {
			if childTriple[i] >= 0 && j < 2 {
				continue // resolved below from the parents
			}
			classes[i*ploidy+j] = count
			count++
		}
	}

	// Parents may themselves be children, so resolution iterates to
	// a fixpoint.
	for resolved := false; !resolved; {
		resolved = true
		progress := false
		for t := 0; t < ped.TripleCount(); t++ {
			triple := ped.Triple(t)
			motherBit := (transmissionIndex >> uint(2*t)) & 1
			fatherBit := (transmissionIndex >> uint(2*t+1)) & 1
			paternal := classes[triple.Father*ploidy+fatherBit]
			maternal := classes[triple.Mother*ploidy+motherBit]
			if classes[triple.Child*ploidy] < 0 {
				if paternal < 0 || maternal < 0 {
					resolved = false
					continue
				}
				classes[triple.Child*ploidy] = paternal
				classes[triple.Child*ploidy+1] = maternal
				progress = true
			}
		}
		if !resolved && !progress {
			return nil, fmt.Errorf("pedigree triples are cyclic")
		}
	}

	return &Partitions{ploidy: ploidy, haplotypeToPartition: classes, count: count}, nil
}

// Count returns the number of distinct haplotype classes.
func (p *Partitions) Count() int { return p.count }

// Ploidy returns the ploidy the partitions were derived for.
func (p *Partitions) Ploidy() int { return p.ploidy }

// HaplotypeToPartition returns the haplotype class of the given local
// haplotype slot of the given individual.
func (p *Partitions) HaplotypeToPartition(individual, slot int) int {
	return p.haplotypeToPartition[individual*p.ploidy+slot]
}
