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
	"github.com/exascience/elphase/pedigree"
	"github.com/exascience/elphase/reads"
)

// A ColumnCostComputer scores the partitionings of one column under
// one transmission pattern. For each haplotype class and allele it
// accumulates the cost of contradicting the reads assigned to that
// class if the class carried that allele; the total cost of a
// partitioning is then minimized over the allele assignments of the
// classes, subject to the genotype constraints of the pedigree.
type ColumnCostComputer struct {
	column            []*reads.Entry
	columnIndex       int
	readSources       []int
	ped               *pedigree.Pedigree
	partitions        *pedigree.Partitions
	distrustGenotypes bool
	alleleCount       int
	partitioning      int
	powers            []int
	costPartition     [][]uint32
}

// NewColumnCostComputer creates a cost computer for one column under
// the transmission pattern captured by the given partitions.
// readSources maps read ids to individual indices.
func NewColumnCostComputer(column []*reads.Entry, columnIndex int, readSources []int, ped *pedigree.Pedigree, partitions *pedigree.Partitions, distrustGenotypes bool, alleleCount int) *ColumnCostComputer {
	costPartition := make([][]uint32, partitions.Count())
	for i := range costPartition {
		costPartition[i] = make([]uint32, alleleCount)
	}
	powers := make([]int, len(column))
	power := 1
	for i := range powers {
		powers[i] = power
		power *= partitions.Ploidy()
	}
	return &ColumnCostComputer{
		column:            column,
		columnIndex:       columnIndex,
		readSources:       readSources,
		ped:               ped,
		partitions:        partitions,
		distrustGenotypes: distrustGenotypes,
		alleleCount:       alleleCount,
		powers:            powers,
		costPartition:     costPartition,
	}
}

func (c *ColumnCostComputer) class(entry *reads.Entry, slot int) int {
	return c.partitions.HaplotypeToPartition(c.readSources[entry.ReadID], slot)
}

func (c *ColumnCostComputer) add(entry *reads.Entry, slot int) {
	if entry.Allele < 0 {
		return
	}
	costs := c.costPartition[c.class(entry, slot)]
	for a := 0; a < c.alleleCount; a++ {
		costs[a] += entry.Qualities[a]
	}
}

func (c *ColumnCostComputer) remove(entry *reads.Entry, slot int) {
	if entry.Allele < 0 {
		return
	}
	costs := c.costPartition[c.class(entry, slot)]
	for a := 0; a < c.alleleCount; a++ {
		costs[a] -= entry.Qualities[a]
	}
}

// SetPartitioning initializes the computer from a full partitioning
// index.
func (c *ColumnCostComputer) SetPartitioning(partitioning int) {
	for _, costs := range c.costPartition {
		for a := range costs {
			costs[a] = 0
		}
	}
	c.partitioning = partitioning
	ploidy := c.partitions.Ploidy()
	for _, entry := range c.column {
		c.add(entry, partitioning%ploidy)
		partitioning /= ploidy
	}
}

// UpdatePartitioning moves the read at the given column position to
// another haplotype slot.
func (c *ColumnCostComputer) UpdatePartitioning(readIndex, newSlot int) {
	ploidy := c.partitions.Ploidy()
	power := c.powers[readIndex]
	oldSlot := (c.partitioning / power) % ploidy
	entry := c.column[readIndex]
	c.remove(entry, oldSlot)
	c.add(entry, newSlot)
	c.partitioning += (newSlot - oldSlot) * power
}

// forEachAssignment walks all allele assignments of the haplotype
// classes, reporting the cost of each admissible one.
func (c *ColumnCostComputer) forEachAssignment(report func(assignment []int, cost uint32)) {
	count := c.partitions.Count()
	assignment := make([]int, count)
	scratch := make([]int, c.partitions.Ploidy())
	for {
		cost := uint32(0)
		for class, allele := range assignment {
			cost = addCosts(cost, c.costPartition[class][allele])
		}
		admissible := true
		for k := 0; k < c.ped.Size() && admissible; k++ {
			for j := range scratch {
				scratch[j] = assignment[c.partitions.HaplotypeToPartition(k, j)]
			}
			induced := pedigree.NewGenotype(scratch...)
			if c.distrustGenotypes {
				if gl := c.ped.GenotypeLikelihoods(k, c.columnIndex); gl != nil {
					cost = addCosts(cost, gl.Of(induced))
				}
			} else if expected := c.ped.Genotype(k, c.columnIndex); expected != nil && !expected.Equals(induced) {
				admissible = false
			}
		}
		if admissible {
			report(assignment, cost)
		}
		// advance the odometer
		i := 0
		for ; i < count; i++ {
			assignment[i]++
			if assignment[i] < c.alleleCount {
				break
			}
			assignment[i] = 0
		}
		if i == count {
			return
		}
	}
}

// Cost returns the minimum cost of the current partitioning over all
// admissible allele assignments, or an infinite cost if no assignment
// is admissible.
func (c *ColumnCostComputer) Cost() uint32 {
	min := uint32(infiniteCost)
	c.forEachAssignment(func(assignment []int, cost uint32) {
		if cost < min {
			min = cost
		}
	})
	return min
}

// Alleles returns, for each individual, the alleles of its haplotype
// slots in the minimum-cost admissible assignment of the current
// partitioning. It fails when no assignment is admissible.
func (c *ColumnCostComputer) Alleles() ([][]int, error) {
	min := uint32(infiniteCost)
	var best []int
	c.forEachAssignment(func(assignment []int, cost uint32) {
		if cost < min || best == nil {
			min = cost
			best = append(best[:0], assignment...)
		}
	})
	if best == nil {
		return nil, MendelianConflict{Column: c.columnIndex}
	}
	ploidy := c.partitions.Ploidy()
	alleles := make([][]int, c.ped.Size())
	for k := range alleles {
		alleles[k] = make([]int, ploidy)
		for j := 0; j < ploidy; j++ {
			alleles[k][j] = best[c.partitions.HaplotypeToPartition(k, j)]
		}
	}
	return alleles, nil
}

// Partitioning returns the current partitioning index.
func (c *ColumnCostComputer) Partitioning() int { return c.partitioning }
