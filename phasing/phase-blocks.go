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

	"github.com/exascience/pargo/parallel"
	"github.com/google/uuid"

	"github.com/exascience/elphase/pedigree"
	"github.com/exascience/elphase/reads"
	"github.com/exascience/elphase/utils"
)

// A BlockInput describes one independently phasable block of columns,
// typically a chromosome or a connected block of reads. The fields
// mirror the parameters of New.
type BlockInput struct {
	Name                    string
	ReadSet                 *reads.ReadSet
	Recombcost              []uint32
	Pedigree                *pedigree.Pedigree
	Ploidy                  int
	DistrustGenotypes       bool
	AlleleCounts            []int
	Positions               []int
	PrecomputedPartitioning []int
}

// A BlockResult holds the phasing of one block.
type BlockResult struct {
	Name               string
	Table              *PedigreeDPTable
	SuperReads         []*reads.ReadSet
	TransmissionVector []int
}

// PhaseBlocks phases the given blocks concurrently. Blocks do not
// share any state, so each one is solved by its own table; the table
// computation itself stays sequential. PhaseBlocks returns the first
// error encountered, in block order, and no results in that case.
func PhaseBlocks(blocks []*BlockInput) ([]*BlockResult, error) {
	runID := uuid.New()
	log.Printf("%v: phasing %v block(s), run %v", utils.ProgramName, len(blocks), runID)
	results := make([]*BlockResult, len(blocks))
	errs := make([]error, len(blocks))
	parallel.Range(0, len(blocks), 0, func(low, high int) {
		for b := low; b < high; b++ {
			block := blocks[b]
			table, err := New(block.ReadSet, block.Recombcost, block.Pedigree, block.Ploidy, block.DistrustGenotypes, block.AlleleCounts, block.Positions, block.PrecomputedPartitioning)
			if err != nil {
				errs[b] = fmt.Errorf("block %v: %w", block.Name, err)
				continue
			}
			superReads, transmissionVector, err := table.SuperReads()
			if err != nil {
				errs[b] = fmt.Errorf("block %v: %w", block.Name, err)
				continue
			}
			results[b] = &BlockResult{
				Name:               block.Name,
				Table:              table,
				SuperReads:         superReads,
				TransmissionVector: transmissionVector,
			}
		}
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	log.Printf("%v: finished %v block(s), run %v", utils.ProgramName, len(blocks), runID)
	return results, nil
}
