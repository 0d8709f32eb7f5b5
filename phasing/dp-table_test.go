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
	"math"
	"math/rand"
	"testing"

	"github.com/exascience/elphase/pedigree"
	"github.com/exascience/elphase/reads"
	"github.com/exascience/elphase/utils"
)

func observation(allele, alleleCount int, weight uint32) []uint32 {
	qualities := make([]uint32, alleleCount)
	for a := range qualities {
		if a != allele {
			qualities[a] = weight
		}
	}
	return qualities
}

func hetGenotypes(columns int) []*pedigree.Genotype {
	genotypes := make([]*pedigree.Genotype, columns)
	for i := range genotypes {
		genotypes[i] = pedigree.NewGenotype(0, 1)
	}
	return genotypes
}

func addObservations(r *reads.Read, positions, alleles []int, weight uint32) {
	for i, position := range positions {
		r.AddVariant(position, alleles[i], observation(alleles[i], 2, weight))
	}
}

func superReadAlleles(rs *reads.ReadSet) [][]int {
	haplotypes := make([][]int, rs.Len())
	for i := range haplotypes {
		r := rs.Get(i)
		haplotypes[i] = make([]int, r.VariantCount())
		for v := range haplotypes[i] {
			haplotypes[i][v] = r.Variant(v).Allele
		}
	}
	return haplotypes
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func complementaryReadSet(sample utils.Symbol, weight uint32) *reads.ReadSet {
	rs := reads.NewReadSet()
	r0 := reads.NewRead("r0", sample)
	addObservations(r0, []int{100, 200}, []int{0, 1}, weight)
	r1 := reads.NewRead("r1", sample)
	addObservations(r1, []int{100, 200}, []int{1, 0}, weight)
	rs.Add(r0)
	rs.Add(r1)
	return rs
}

func TestTwoComplementaryReads(t *testing.T) {
	sample := utils.Intern("dp-solo")
	ped := pedigree.New()
	ped.AddIndividual(sample, hetGenotypes(2), nil)
	table, err := New(complementaryReadSet(sample, 10), []uint32{0, 0}, ped, 2, false, []int{2, 2}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if table.OptimalScore() != 0 {
		t.Errorf("optimal score %v, want 0", table.OptimalScore())
	}
	superReads, transmission, err := table.SuperReads()
	if err != nil {
		t.Fatal(err)
	}
	if !equalInts(transmission, []int{0, 0}) {
		t.Errorf("transmission vector %v, want [0 0]", transmission)
	}
	if len(superReads) != 1 || superReads[0].Len() != 2 {
		t.Fatal("super read shape failed")
	}
	haplotypes := superReadAlleles(superReads[0])
	straight := equalInts(haplotypes[0], []int{0, 1}) && equalInts(haplotypes[1], []int{1, 0})
	flipped := equalInts(haplotypes[0], []int{1, 0}) && equalInts(haplotypes[1], []int{0, 1})
	if !straight && !flipped {
		t.Errorf("super read alleles %v", haplotypes)
	}
	partitioning := table.OptimalPartitioning()
	if len(partitioning) != 2 || partitioning[0] == partitioning[1] {
		t.Errorf("optimal partitioning %v", partitioning)
	}

	// reconstruction is read-only
	superReadsAgain, transmissionAgain, err := table.SuperReads()
	if err != nil {
		t.Fatal(err)
	}
	if !equalInts(transmission, transmissionAgain) {
		t.Error("repeated reconstruction changed the transmission vector")
	}
	again := superReadAlleles(superReadsAgain[0])
	if !equalInts(haplotypes[0], again[0]) || !equalInts(haplotypes[1], again[1]) {
		t.Error("repeated reconstruction changed the super reads")
	}
}

func TestRecombcostWithoutTriples(t *testing.T) {
	sample := utils.Intern("dp-no-triples")
	ped := pedigree.New()
	ped.AddIndividual(sample, hetGenotypes(2), nil)
	table, err := New(complementaryReadSet(sample, 10), []uint32{77, 77}, ped, 2, false, []int{2, 2}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if table.OptimalScore() != 0 {
		t.Errorf("recombination cost charged without triples: score %v", table.OptimalScore())
	}
}

func recombinationTrio(t *testing.T, recombcost []uint32) (*PedigreeDPTable, error) {
	t.Helper()
	father := utils.Intern("recomb-father")
	mother := utils.Intern("recomb-mother")
	child := utils.Intern("recomb-child")
	ped := pedigree.New()
	ped.AddIndividual(father, hetGenotypes(2), nil)
	ped.AddIndividual(mother, hetGenotypes(2), nil)
	ped.AddIndividual(child, hetGenotypes(2), nil)
	if err := ped.AddRelationship(father, mother, child); err != nil {
		t.Fatal(err)
	}
	rs := reads.NewReadSet()
	fr := reads.NewRead("fr", father)
	addObservations(fr, []int{100, 200}, []int{0, 0}, 10)
	mr := reads.NewRead("mr", mother)
	addObservations(mr, []int{100, 200}, []int{0, 0}, 10)
	cr := reads.NewRead("cr", child)
	addObservations(cr, []int{100, 200}, []int{0, 1}, 10)
	rs.Add(fr)
	rs.Add(mr)
	rs.Add(cr)
	return New(rs, recombcost, ped, 2, false, []int{2, 2}, nil, nil)
}

func TestRecombinationFlip(t *testing.T) {
	// the child read switches sides between the columns; with a low
	// recombination cost the transmission pattern follows it, with a
	// high one the read mismatch is cheaper
	table, err := recombinationTrio(t, []uint32{0, 3})
	if err != nil {
		t.Fatal(err)
	}
	if table.OptimalScore() != 6 {
		t.Errorf("optimal score %v under low recombination cost, want 6", table.OptimalScore())
	}
	_, transmission, err := table.SuperReads()
	if err != nil {
		t.Fatal(err)
	}
	if transmission[0] == transmission[1] {
		t.Error("transmission pattern did not switch under low recombination cost")
	}

	table, err = recombinationTrio(t, []uint32{0, 100})
	if err != nil {
		t.Fatal(err)
	}
	if table.OptimalScore() != 10 {
		t.Errorf("optimal score %v under high recombination cost, want 10", table.OptimalScore())
	}
	if _, transmission, err = table.SuperReads(); err != nil {
		t.Fatal(err)
	}
	if transmission[0] != transmission[1] {
		t.Error("transmission pattern switched under high recombination cost")
	}
}

func TestEmptyReadSet(t *testing.T) {
	sample := utils.Intern("dp-empty")
	ped := pedigree.New()
	ped.AddIndividual(sample, nil, nil)
	table, err := New(reads.NewReadSet(), nil, ped, 2, false, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if table.OptimalScore() != 0 {
		t.Errorf("optimal score %v for empty input, want 0", table.OptimalScore())
	}
	superReads, transmission, err := table.SuperReads()
	if err != nil {
		t.Fatal(err)
	}
	if len(transmission) != 0 {
		t.Error("transmission vector of empty input not empty")
	}
	if len(superReads) != 1 || superReads[0].Len() != 2 {
		t.Fatal("super read shape of empty input failed")
	}
	for j := 0; j < 2; j++ {
		if superReads[0].Get(j).VariantCount() != 0 {
			t.Error("super reads of empty input not empty")
		}
	}
}

func TestMendelianConflict(t *testing.T) {
	father := utils.Intern("conflict-father")
	mother := utils.Intern("conflict-mother")
	child := utils.Intern("conflict-child")
	ped := pedigree.New()
	ped.AddIndividual(father, []*pedigree.Genotype{pedigree.NewGenotype(0, 0)}, nil)
	ped.AddIndividual(mother, []*pedigree.Genotype{pedigree.NewGenotype(0, 0)}, nil)
	ped.AddIndividual(child, []*pedigree.Genotype{pedigree.NewGenotype(1, 1)}, nil)
	if err := ped.AddRelationship(father, mother, child); err != nil {
		t.Fatal(err)
	}
	rs := reads.NewReadSet()
	cr := reads.NewRead("cr", child)
	cr.AddVariant(100, 1, observation(1, 2, 10))
	rs.Add(cr)
	_, err := New(rs, []uint32{0}, ped, 2, false, []int{2}, nil, nil)
	if err == nil {
		t.Fatal("mendelian conflict not detected")
	}
	conflict, ok := err.(MendelianConflict)
	if !ok {
		t.Fatalf("error %v is not a mendelian conflict", err)
	}
	if conflict.Column != 0 {
		t.Errorf("conflict at column %v, want 0", conflict.Column)
	}
}

func TestPloidyOne(t *testing.T) {
	sample := utils.Intern("dp-haploid")
	ped := pedigree.New()
	ped.AddIndividual(sample, nil, nil)
	rs := reads.NewReadSet()
	r0 := reads.NewRead("r0", sample)
	r0.AddVariant(100, 1, observation(1, 2, 3))
	r1 := reads.NewRead("r1", sample)
	r1.AddVariant(100, 0, observation(0, 2, 5))
	rs.Add(r0)
	rs.Add(r1)
	table, err := New(rs, []uint32{0}, ped, 1, true, []int{2}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if table.OptimalScore() != 3 {
		t.Errorf("haploid score %v, want 3", table.OptimalScore())
	}
}

func TestPreconditions(t *testing.T) {
	sample := utils.Intern("dp-preconditions")
	ped := pedigree.New()
	ped.AddIndividual(sample, nil, nil)

	rs := complementaryReadSet(sample, 10)
	if _, err := New(rs, []uint32{0}, ped, 2, false, []int{2, 2}, nil, nil); err == nil {
		t.Error("recombination cost length mismatch not rejected")
	} else if _, ok := err.(PreconditionError); !ok {
		t.Errorf("error %v is not a precondition error", err)
	}
	if _, err := New(complementaryReadSet(sample, 10), []uint32{0, 0}, ped, 2, false, []int{2}, nil, nil); err == nil {
		t.Error("allele count length mismatch not rejected")
	}
	if _, err := New(complementaryReadSet(sample, 10), []uint32{0, 0}, ped, 0, false, []int{2, 2}, nil, nil); err == nil {
		t.Error("invalid ploidy not rejected")
	}
	if _, err := New(complementaryReadSet(sample, 10), []uint32{0, 0}, ped, 2, false, []int{2, 2}, nil, []int{0}); err == nil {
		t.Error("precomputed partitioning length mismatch not rejected")
	}

	stranger := complementaryReadSet(utils.Intern("dp-stranger"), 10)
	if _, err := New(stranger, []uint32{0, 0}, ped, 2, false, []int{2, 2}, nil, nil); err == nil {
		t.Error("unknown sample not rejected")
	}
}

func TestPrecomputedPartitioning(t *testing.T) {
	sample := utils.Intern("dp-precomputed")
	ped := pedigree.New()
	ped.AddIndividual(sample, hetGenotypes(2), nil)

	table, err := New(complementaryReadSet(sample, 10), []uint32{0, 0}, ped, 2, false, []int{2, 2}, nil, []int{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if table.OptimalScore() != 0 {
		t.Errorf("split partitioning score %v, want 0", table.OptimalScore())
	}
	if !equalInts(table.OptimalPartitioning(), []int{0, 1}) {
		t.Error("precomputed partitioning not returned")
	}
	superReads, transmission, err := table.SuperReads()
	if err != nil {
		t.Fatal(err)
	}
	if !equalInts(transmission, []int{0, 0}) || len(superReads) != 1 {
		t.Error("precomputed reconstruction failed")
	}

	table, err = New(complementaryReadSet(sample, 10), []uint32{0, 0}, ped, 2, false, []int{2, 2}, nil, []int{0, 0})
	if err != nil {
		t.Fatal(err)
	}
	// both reads on one haplotype: each column pays one mismatch
	if table.OptimalScore() != 20 {
		t.Errorf("joint partitioning score %v, want 20", table.OptimalScore())
	}
}

func idsOf(column []*reads.Entry) []int {
	return extractReadIDs(column)
}

func stateKey(ids, slots, kept []int) string {
	keep := make(map[int]bool, len(kept))
	for _, id := range kept {
		keep[id] = true
	}
	key := ""
	for i, id := range ids {
		if keep[id] {
			key += fmt.Sprintf("%v:%v;", id, slots[i])
		}
	}
	return key
}

// referenceScore runs a plain forward dynamic program with dense
// states and no checkpointing, for a single unrelated individual with
// unconstrained genotypes.
func referenceScore(rs *reads.ReadSet, ploidy, alleleCount int) uint32 {
	it := reads.NewColumnIterator(rs, nil)
	var columns [][]*reads.Entry
	for it.HasNext() {
		columns = append(columns, it.Next())
	}
	prev := map[string]uint32{"": 0}
	for c, column := range columns {
		ids := idsOf(column)
		var prevIDs, nextIDs []int
		if c > 0 {
			prevIDs = idsOf(columns[c-1])
		}
		if c+1 < len(columns) {
			nextIDs = idsOf(columns[c+1])
		}
		total := 1
		for range ids {
			total *= ploidy
		}
		next := make(map[string]uint32)
		slots := make([]int, len(ids))
		for index := 0; index < total; index++ {
			rest := index
			for i := range slots {
				slots[i] = rest % ploidy
				rest /= ploidy
			}
			cost := uint32(0)
			for class := 0; class < ploidy; class++ {
				best := uint32(math.MaxUint32)
				for a := 0; a < alleleCount; a++ {
					sum := uint32(0)
					for i, entry := range column {
						if slots[i] == class && entry.Allele >= 0 {
							sum += entry.Qualities[a]
						}
					}
					if sum < best {
						best = sum
					}
				}
				cost += best
			}
			base, ok := prev[stateKey(ids, slots, prevIDs)]
			if !ok {
				continue
			}
			key := stateKey(ids, slots, nextIDs)
			if old, ok := next[key]; !ok || base+cost < old {
				next[key] = base + cost
			}
		}
		prev = next
	}
	best := uint32(math.MaxUint32)
	for _, score := range prev {
		if score < best {
			best = score
		}
	}
	return best
}

// chainReadSet builds overlapping reads of a single individual, one
// starting per column, each spanning up to three columns.
func chainReadSet(sample utils.Symbol, columnCount int, seed int64) *reads.ReadSet {
	rng := rand.New(rand.NewSource(seed))
	rs := reads.NewReadSet()
	for start := 0; start < columnCount; start++ {
		r := reads.NewRead(fmt.Sprintf("read%v", start), sample)
		for c := start; c < start+3 && c < columnCount; c++ {
			allele := rng.Intn(2)
			weight := uint32(rng.Intn(9) + 1)
			r.AddVariant(10*(c+1), allele, observation(allele, 2, weight))
		}
		rs.Add(r)
	}
	return rs
}

func TestCheckpointedBacktrace(t *testing.T) {
	const columnCount = 18 // sqrt stride 4, so backtrace recomputation kicks in
	sample := utils.Intern("dp-checkpoint")
	ped := pedigree.New()
	ped.AddIndividual(sample, nil, nil)
	rs := chainReadSet(sample, columnCount, 42)
	recombcost := make([]uint32, columnCount)
	alleleCounts := make([]int, columnCount)
	for i := range alleleCounts {
		alleleCounts[i] = 2
	}

	table, err := New(rs, recombcost, ped, 2, true, alleleCounts, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if expected := referenceScore(rs, 2, 2); table.OptimalScore() != expected {
		t.Errorf("optimal score %v, want %v", table.OptimalScore(), expected)
	}

	// the reconstructed partitioning must reproduce the score
	rescored, err := New(rs, recombcost, ped, 2, true, alleleCounts, nil, table.OptimalPartitioning())
	if err != nil {
		t.Fatal(err)
	}
	if rescored.OptimalScore() != table.OptimalScore() {
		t.Errorf("rescored partitioning %v, want %v", rescored.OptimalScore(), table.OptimalScore())
	}
}

func equalMatrices(a, b *uint32Matrix) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.rows != b.rows || a.cols != b.cols {
		return false
	}
	for i := range a.array {
		if a.array[i] != b.array[i] {
			return false
		}
	}
	return true
}

func TestBacktraceRecomputation(t *testing.T) {
	const columnCount = 12 // sqrt stride 3
	sample := utils.Intern("dp-recompute")
	ped := pedigree.New()
	ped.AddIndividual(sample, nil, nil)
	recombcost := make([]uint32, columnCount)
	alleleCounts := make([]int, columnCount)
	for i := range alleleCounts {
		alleleCounts[i] = 2
	}

	table, err := New(chainReadSet(sample, columnCount, 7), recombcost, ped, 2, true, alleleCounts, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	// the forward sweep drops non-checkpoint backtrace tables, so the
	// backward sweep must have rebuilt some of them
	if table.recomputedColumns == 0 {
		t.Fatal("backtrace did not recompute any dropped column")
	}

	// recomputing every interior column from scratch must reproduce
	// any table the run left behind, bit for bit
	keptProjection := append([]*uint32Matrix(nil), table.projectionColumns...)
	keptIndex := append([]*uint32Matrix(nil), table.indexBacktrace...)
	keptTransmission := append([]*uint32Matrix(nil), table.transmissionBacktrace...)
	for c := 0; c < columnCount; c++ {
		table.projectionColumns[c] = nil
		table.indexBacktrace[c] = nil
		table.transmissionBacktrace[c] = nil
	}
	for c := 0; c+1 < columnCount; c++ {
		if err := table.computeColumn(c, nil); err != nil {
			t.Fatal(err)
		}
	}
	for c := 0; c+1 < columnCount; c++ {
		if keptProjection[c] == nil {
			continue
		}
		if !equalMatrices(keptProjection[c], table.projectionColumns[c]) {
			t.Errorf("projection column %v not reproduced", c)
		}
		if !equalMatrices(keptIndex[c], table.indexBacktrace[c]) {
			t.Errorf("index backtrace column %v not reproduced", c)
		}
		if !equalMatrices(keptTransmission[c], table.transmissionBacktrace[c]) {
			t.Errorf("transmission backtrace column %v not reproduced", c)
		}
	}

	// with very few columns the stride is 1, nothing is dropped, and
	// nothing needs recomputing
	dense, err := New(chainReadSet(sample, 3, 7), []uint32{0, 0, 0}, ped, 2, true, []int{2, 2, 2}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if dense.recomputedColumns != 0 {
		t.Errorf("%v columns recomputed without checkpointing", dense.recomputedColumns)
	}
}
