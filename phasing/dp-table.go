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
	"fmt"
	"log"
	"math"
	"math/bits"

	"github.com/exascience/elphase/pedigree"
	"github.com/exascience/elphase/reads"
)

type indexAndInheritance struct {
	index       int
	inheritance int
}

// A PedigreeDPTable solves the pedigree-aware phasing problem for one
// block of columns by dynamic programming. For every column it picks
// a partitioning of the covering reads into haplotype slots and a
// transmission pattern for every parent/parent/child triple,
// minimizing the total of per-column read disagreement cost and
// per-transition recombination cost.
//
// Memory is kept at O(sqrt(n)) live projection columns: backtrace
// tables of non-checkpoint columns are dropped during the forward
// sweep and recomputed on demand during the backward sweep.
type PedigreeDPTable struct {
	readSet                    *reads.ReadSet
	recombcost                 []uint32
	ped                        *pedigree.Pedigree
	ploidy                     int
	distrustGenotypes          bool
	alleleCounts               []int
	columnIter                 *reads.ColumnIterator
	transmissionConfigurations int
	partitions                 []*pedigree.Partitions
	readSources                []int
	indexers                   []*ColumnIndexingScheme
	projectionColumns          []*uint32Matrix
	indexBacktrace             []*uint32Matrix
	transmissionBacktrace      []*uint32Matrix
	optimalScore               uint32
	optimalScoreIndex          int
	optimalTransmissionValue   int
	previousTransmissionValue  int
	indexPath                  []indexAndInheritance
	minRecombIndex             []int
	recomputedColumns          int
}

// New phases the given read set. recombcost holds one nonnegative
// recombination penalty per column, alleleCounts one allele count per
// column. positions restricts phasing to a subset of the covered
// positions; nil means all of them. When distrustGenotypes is false
// the pedigree genotypes are hard constraints, otherwise genotype
// likelihoods (where present) enter the cost.
//
// When precomputedPartitioning is non-nil it must hold one haplotype
// slot per read, in read-set order; the dynamic program is then
// skipped and the given partitioning is scored directly.
//
// New returns a MendelianConflict when some column admits no
// finite-cost solution, and a PreconditionError on malformed input.
func New(readSet *reads.ReadSet, recombcost []uint32, ped *pedigree.Pedigree, ploidy int, distrustGenotypes bool, alleleCounts []int, positions []int, precomputedPartitioning []int) (*PedigreeDPTable, error) {
	if readSet == nil || ped == nil {
		return nil, preconditionf("phasing requires a read set and a pedigree")
	}
	if ploidy < 1 {
		return nil, preconditionf("invalid ploidy %v", ploidy)
	}
	for i := 1; i < len(positions); i++ {
		if positions[i-1] >= positions[i] {
			return nil, preconditionf("positions not strictly increasing at %v", positions[i])
		}
	}
	readSet.ReassignReadIDs()
	columnIter := reads.NewColumnIterator(readSet, positions)
	columnCount := columnIter.ColumnCount()
	if len(recombcost) != columnCount {
		return nil, preconditionf("%v recombination costs for %v columns", len(recombcost), columnCount)
	}
	if len(alleleCounts) != columnCount {
		return nil, preconditionf("%v allele counts for %v columns", len(alleleCounts), columnCount)
	}
	for c, alleleCount := range alleleCounts {
		if alleleCount < 2 {
			return nil, preconditionf("allele count %v at column %v", alleleCount, c)
		}
	}
	if precomputedPartitioning != nil {
		if len(precomputedPartitioning) != readSet.Len() {
			return nil, preconditionf("%v precomputed partitions for %v reads", len(precomputedPartitioning), readSet.Len())
		}
		for _, p := range precomputedPartitioning {
			if p < 0 || p >= ploidy {
				return nil, preconditionf("precomputed partition %v out of range for ploidy %v", p, ploidy)
			}
		}
	}

	t := &PedigreeDPTable{
		readSet:           readSet,
		recombcost:        recombcost,
		ped:               ped,
		ploidy:            ploidy,
		distrustGenotypes: distrustGenotypes,
		alleleCounts:      alleleCounts,
		columnIter:        columnIter,
	}

	t.transmissionConfigurations = 1
	for i := 0; i < ped.TripleCount(); i++ {
		t.transmissionConfigurations *= 4
	}
	t.partitions = make([]*pedigree.Partitions, t.transmissionConfigurations)
	for i := range t.partitions {
		partitions, err := pedigree.NewPartitions(ped, i, ploidy)
		if err != nil {
			return nil, preconditionf("%v", err)
		}
		t.partitions[i] = partitions
	}
	t.minRecombIndex = make([]int, t.transmissionConfigurations)

	t.readSources = make([]int, readSet.Len())
	for i := 0; i < readSet.Len(); i++ {
		read := readSet.Get(i)
		source, ok := ped.IndexOf(read.Sample)
		if !ok {
			return nil, preconditionf("sample %v of read %v not in pedigree", *read.Sample, read.Name)
		}
		t.readSources[read.ID()] = source
	}
	if err := t.checkColumns(); err != nil {
		return nil, err
	}

	if precomputedPartitioning == nil {
		if err := t.computeTable(); err != nil {
			return nil, err
		}
	} else {
		if err := t.setIndexPath(precomputedPartitioning); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *PedigreeDPTable) checkColumns() error {
	t.columnIter.JumpToColumn(0)
	for c := 0; t.columnIter.HasNext(); c++ {
		for _, entry := range t.columnIter.Next() {
			if entry.Allele >= t.alleleCounts[c] {
				return preconditionf("allele %v at column %v exceeds allele count %v", entry.Allele, c, t.alleleCounts[c])
			}
			if entry.Allele >= 0 && len(entry.Qualities) < t.alleleCounts[c] {
				return preconditionf("read %v carries %v qualities at column %v with %v alleles", entry.ReadID, len(entry.Qualities), c, t.alleleCounts[c])
			}
		}
	}
	return nil
}

func extractReadIDs(entries []*reads.Entry) []int {
	readIDs := make([]int, len(entries))
	for i, entry := range entries {
		readIDs[i] = entry.ReadID
	}
	return readIDs
}

func (t *PedigreeDPTable) clearTable() {
	columnCount := t.columnIter.ColumnCount()
	t.projectionColumns = make([]*uint32Matrix, columnCount)
	t.indexBacktrace = make([]*uint32Matrix, columnCount)
	t.transmissionBacktrace = make([]*uint32Matrix, columnCount)
	t.indexers = make([]*ColumnIndexingScheme, columnCount)
	t.indexPath = nil
	t.optimalScore = infiniteCost
	t.optimalScoreIndex = 0
	t.optimalTransmissionValue = 0
	t.previousTransmissionValue = 0
}

func (t *PedigreeDPTable) computeTable() error {
	t.clearTable()
	columnCount := t.columnIter.ColumnCount()
	if columnCount == 0 {
		t.optimalScore = 0
		return nil
	}

	t.columnIter.JumpToColumn(0)
	next := t.columnIter.Next()
	nextIndexer := NewColumnIndexingScheme(nil, extractReadIDs(next), t.ploidy)
	t.indexers[0] = nextIndexer

	// Forward sweep with a sparse table: backtrace columns are only
	// retained at every k-th position.
	k := int(math.Sqrt(float64(columnCount)))
	var current []*reads.Entry
	for columnIndex := 0; columnIndex < columnCount; columnIndex++ {
		current = next
		currentIndexer := nextIndexer
		if t.columnIter.HasNext() {
			next = t.columnIter.Next()
			nextReadIDs := extractReadIDs(next)
			currentIndexer.SetNextColumn(nextReadIDs)
			nextIndexer = NewColumnIndexingScheme(currentIndexer, nextReadIDs, t.ploidy)
			t.indexers[columnIndex+1] = nextIndexer
		} else {
			next = nil
			nextIndexer = nil
		}
		if err := t.computeColumn(columnIndex, current); err != nil {
			return err
		}
		if k > 1 && columnIndex > 0 && (columnIndex-1)%k != 0 {
			t.projectionColumns[columnIndex-1] = nil
			t.indexBacktrace[columnIndex-1] = nil
			t.transmissionBacktrace[columnIndex-1] = nil
		}
	}

	if t.optimalScore == infiniteCost {
		return MendelianConflict{Column: columnCount - 1}
	}

	// Backward sweep: recover the optimal path, recomputing dropped
	// backtrace columns from the nearest retained checkpoint.
	t.indexPath = make([]indexAndInheritance, columnCount)
	v := indexAndInheritance{t.optimalScoreIndex, t.optimalTransmissionValue}
	prevInheritance := t.previousTransmissionValue
	t.indexPath[columnCount-1] = v
	for i := columnCount - 1; i > 0; i-- {
		if t.projectionColumns[i-1] == nil {
			j := (i - 1) / k * k
			if t.projectionColumns[j] == nil {
				log.Panicf("checkpoint column %v missing during backtrace", j)
			}
			for j = j + 1; j < i; j++ {
				if err := t.computeColumn(j, nil); err != nil {
					return err
				}
			}
		}
		backtraceIndex := t.indexers[i].BackwardProjection(v.index)
		v.index = int(t.indexBacktrace[i-1].at(backtraceIndex, prevInheritance))
		v.inheritance = prevInheritance
		prevInheritance = int(t.transmissionBacktrace[i-1].at(backtraceIndex, v.inheritance))
		t.indexPath[i-1] = v
		if i%k == 0 {
			for j := i; j < i+k && j < columnCount-1; j++ {
				t.projectionColumns[j] = nil
				t.indexBacktrace[j] = nil
				t.transmissionBacktrace[j] = nil
			}
		}
	}
	return nil
}

// computeColumn fills the DP column and, if the column is not the
// last one, its projection and backtrace tables. current may be nil,
// in which case the column entries are fetched again; recomputation
// yields tables identical to the ones dropped after the forward
// sweep.
func (t *PedigreeDPTable) computeColumn(columnIndex int, current []*reads.Entry) error {
	if t.projectionColumns[columnIndex] != nil {
		return nil
	}
	indexer := t.indexers[columnIndex]
	if indexer == nil {
		log.Panicf("no indexing scheme for column %v", columnIndex)
	}
	if current == nil {
		t.columnIter.JumpToColumn(columnIndex)
		current = t.columnIter.Next()
		t.recomputedColumns++
	}
	columnCount := t.columnIter.ColumnCount()
	configurations := t.transmissionConfigurations

	dp := newUint32Matrix(indexer.ColumnSize(), configurations, 0)

	var previousProjection *uint32Matrix
	if columnIndex > 0 {
		previousProjection = t.projectionColumns[columnIndex-1]
		if previousProjection == nil {
			log.Panicf("projection column %v missing", columnIndex-1)
		}
		if previousProjection.rows != indexer.BackwardProjectionSize() {
			log.Panicf("projection size mismatch between columns %v and %v", columnIndex-1, columnIndex)
		}
	}

	var projection, indexBacktrace, transmissionBacktrace *uint32Matrix
	if columnIndex+1 < columnCount {
		forwardSize := indexer.ForwardProjectionSize()
		projection = newUint32Matrix(forwardSize, configurations, infiniteCost)
		indexBacktrace = newUint32Matrix(forwardSize, configurations, infiniteCost)
		transmissionBacktrace = newUint32Matrix(forwardSize, configurations, infiniteCost)
	}

	costComputers := make([]*ColumnCostComputer, configurations)
	for i := range costComputers {
		costComputers[i] = NewColumnCostComputer(current, columnIndex, t.readSources, t.ped, t.partitions[i], t.distrustGenotypes, t.alleleCounts[columnIndex])
	}

	columnValid := false
	iterator := indexer.Iterator()
	for iterator.HasNext() {
		bitChanged, partitionChanged := iterator.Advance()
		if bitChanged >= 0 {
			for _, costComputer := range costComputers {
				costComputer.UpdatePartitioning(bitChanged, partitionChanged)
			}
		} else {
			for _, costComputer := range costComputers {
				costComputer.SetPartitioning(iterator.Partition())
			}
		}

		backwardProjectionIndex := 0
		if columnIndex > 0 {
			backwardProjectionIndex = iterator.BackwardProjection()
		}
		currentIndex := iterator.Index()

		for i := 0; i < configurations; i++ {
			currentCost := costComputers[i].Cost()
			if currentCost < infiniteCost {
				columnValid = true
			}
			min := uint32(infiniteCost)
			minIndex := 0
			for j := 0; j < configurations; j++ {
				previousCost := uint32(0)
				if columnIndex > 0 {
					previousCost = previousProjection.at(backwardProjectionIndex, j)
				}
				val := addCosts(currentCost, previousCost)
				if val < infiniteCost {
					// each differing transmission bit is one
					// recombination event in one parent
					recombinations := uint64(bits.OnesCount(uint(i^j))) * uint64(t.recombcost[columnIndex])
					if recombinations >= infiniteCost {
						val = infiniteCost
					} else {
						val = addCosts(val, uint32(recombinations))
					}
				}
				if val < min {
					min = val
					minIndex = j
				}
			}
			dp.setAt(currentIndex, i, min)
			t.minRecombIndex[i] = minIndex
		}

		if projection == nil {
			// last column: track the optimum
			for i := 0; i < configurations; i++ {
				if dp.at(currentIndex, i) < t.optimalScore {
					t.optimalScore = dp.at(currentIndex, i)
					t.optimalScoreIndex = currentIndex
					t.optimalTransmissionValue = i
					t.previousTransmissionValue = t.minRecombIndex[i]
				}
			}
		} else {
			forwardIndex := iterator.ForwardProjection()
			for i := 0; i < configurations; i++ {
				if dp.at(currentIndex, i) < projection.at(forwardIndex, i) {
					projection.setAt(forwardIndex, i, dp.at(currentIndex, i))
					indexBacktrace.setAt(forwardIndex, i, uint32(currentIndex))
					transmissionBacktrace.setAt(forwardIndex, i, uint32(t.minRecombIndex[i]))
				}
			}
		}
	}

	if !columnValid {
		return MendelianConflict{Column: columnIndex}
	}

	if projection != nil {
		t.projectionColumns[columnIndex] = projection
		t.indexBacktrace[columnIndex] = indexBacktrace
		t.transmissionBacktrace[columnIndex] = transmissionBacktrace
	}
	return nil
}

// setIndexPath scores a caller-supplied per-read partitioning without
// running the dynamic program.
func (t *PedigreeDPTable) setIndexPath(precomputedPartitioning []int) error {
	t.clearTable()
	t.optimalScore = 0
	columnCount := t.columnIter.ColumnCount()
	if columnCount == 0 {
		return nil
	}

	readToPartition := make(map[int]int, t.readSet.Len())
	for i := 0; i < t.readSet.Len(); i++ {
		readToPartition[t.readSet.Get(i).ID()] = precomputedPartitioning[i]
	}

	t.columnIter.JumpToColumn(0)
	current := t.columnIter.Next()
	readIDs := extractReadIDs(current)
	t.indexPath = make([]indexAndInheritance, columnCount)

	for columnIndex := 0; columnIndex < columnCount; columnIndex++ {
		partitioning := 0
		offset := 1
		for _, id := range readIDs {
			partitioning += readToPartition[id] * offset
			offset *= t.ploidy
		}

		// The transmission value stays 0 here even when triples are
		// present.
		v := indexAndInheritance{index: partitioning, inheritance: 0}
		t.indexPath[columnIndex] = v
		t.indexers[columnIndex] = NewColumnIndexingScheme(nil, readIDs, t.ploidy)

		costComputer := NewColumnCostComputer(current, columnIndex, t.readSources, t.ped, t.partitions[v.inheritance], t.distrustGenotypes, t.alleleCounts[columnIndex])
		costComputer.SetPartitioning(v.index)
		cost := costComputer.Cost()
		if cost == infiniteCost {
			return MendelianConflict{Column: columnIndex}
		}
		t.optimalScore = addCosts(t.optimalScore, cost)

		if t.columnIter.HasNext() {
			current = t.columnIter.Next()
			readIDs = extractReadIDs(current)
		}
	}
	return nil
}

// OptimalScore returns the minimum aggregate cost.
func (t *PedigreeDPTable) OptimalScore() uint32 { return t.optimalScore }

// superReadQuality is the phred-scaled cost attached to the alleles
// not chosen for a super-read position.
const superReadQuality = 10

// SuperReads reconstructs, for each individual of the pedigree, one
// read set holding its ploidy phased super-reads, each with one entry
// per column position. It also returns the transmission vector, one
// inheritance index per column. Calling SuperReads repeatedly yields
// equal results.
func (t *PedigreeDPTable) SuperReads() ([]*reads.ReadSet, []int, error) {
	t.columnIter.JumpToColumn(0)
	positions := t.columnIter.Positions()

	superReads := make([][]*reads.Read, t.ped.Size())
	for k := range superReads {
		superReads[k] = make([]*reads.Read, t.ploidy)
		for j := 0; j < t.ploidy; j++ {
			superReads[k][j] = reads.NewRead(fmt.Sprintf("superread_%v_%v", j, k), t.ped.SampleAt(k))
		}
	}

	transmissionVector := make([]int, 0, t.columnIter.ColumnCount())
	for i := 0; t.columnIter.HasNext(); i++ {
		v := t.indexPath[i]
		column := t.columnIter.Next()
		costComputer := NewColumnCostComputer(column, i, t.readSources, t.ped, t.partitions[v.inheritance], t.distrustGenotypes, t.alleleCounts[i])
		costComputer.SetPartitioning(v.index)
		alleles, err := costComputer.Alleles()
		if err != nil {
			return nil, nil, err
		}
		alleleCount := t.alleleCounts[i]
		for k := 0; k < t.ped.Size(); k++ {
			for j := 0; j < t.ploidy; j++ {
				qualities := make([]uint32, alleleCount)
				for a := range qualities {
					qualities[a] = superReadQuality
				}
				qualities[alleles[k][j]] = 0
				superReads[k][j].AddVariant(positions[i], alleles[k][j], qualities)
			}
		}
		transmissionVector = append(transmissionVector, v.inheritance)
	}

	outputReadSets := make([]*reads.ReadSet, t.ped.Size())
	for k := range outputReadSets {
		outputReadSets[k] = reads.NewReadSet()
		for j := 0; j < t.ploidy; j++ {
			outputReadSets[k].Add(superReads[k][j])
		}
	}
	return outputReadSets, transmissionVector, nil
}

// OptimalPartitioning returns the chosen haplotype slot of every
// read, indexed by read id.
func (t *PedigreeDPTable) OptimalPartitioning() []int {
	partitioning := make([]int, t.readSet.Len())
	for i := range t.indexPath {
		index := t.indexPath[i].index
		for _, id := range t.indexers[i].ReadIDs() {
			partitioning[id] = index % t.ploidy
			index /= t.ploidy
		}
	}
	return partitioning
}
