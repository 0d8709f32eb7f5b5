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

import (
	"testing"

	"github.com/exascience/elphase/utils"
)

func TestGenotypeIndex(t *testing.T) {
	cases := []struct {
		alleles []int
		index   int
	}{
		{[]int{0, 0}, 0},
		{[]int{0, 1}, 1},
		{[]int{1, 0}, 1},
		{[]int{1, 1}, 2},
		{[]int{0, 0, 0}, 0},
		{[]int{0, 0, 1}, 1},
		{[]int{0, 1, 1}, 2},
		{[]int{1, 1, 1}, 3},
	}
	for _, c := range cases {
		if got := NewGenotype(c.alleles...).Index(); got != c.index {
			t.Errorf("genotype %v index %v, want %v", c.alleles, got, c.index)
		}
	}
}

func TestGenotypeEquals(t *testing.T) {
	if !NewGenotype(1, 0).Equals(NewGenotype(0, 1)) {
		t.Error("genotype order equality failed")
	}
	if NewGenotype(0, 0).Equals(NewGenotype(0, 1)) {
		t.Error("genotype inequality failed")
	}
	if NewGenotype(0).Equals(NewGenotype(0, 0)) {
		t.Error("genotype ploidy inequality failed")
	}
	var none *Genotype
	if none.Equals(NewGenotype(0, 0)) || !none.Equals(nil) {
		t.Error("nil genotype equality failed")
	}
}

func TestPedigreeLookup(t *testing.T) {
	ped := New()
	a := utils.Intern("sampleA")
	b := utils.Intern("sampleB")
	if err := ped.AddIndividual(a, nil, nil); err != nil {
		t.Error(err)
	}
	if err := ped.AddIndividual(b, nil, nil); err != nil {
		t.Error(err)
	}
	if err := ped.AddIndividual(a, nil, nil); err == nil {
		t.Error("duplicate individual not rejected")
	}
	if index, ok := ped.IndexOf(b); !ok || index != 1 {
		t.Error("IndexOf failed")
	}
	if ped.SampleAt(0) != a {
		t.Error("SampleAt failed")
	}
	if _, ok := ped.IndexOf(utils.Intern("sampleC")); ok {
		t.Error("unknown sample resolved")
	}
}

func TestPedigreeRelationships(t *testing.T) {
	ped := New()
	f := utils.Intern("father")
	m := utils.Intern("mother")
	c := utils.Intern("child")
	ped.AddIndividual(f, nil, nil)
	ped.AddIndividual(m, nil, nil)
	ped.AddIndividual(c, nil, nil)
	if err := ped.AddRelationship(f, m, c); err != nil {
		t.Error(err)
	}
	if ped.TripleCount() != 1 {
		t.Error("triple count failed")
	}
	if ped.Triple(0) != (Triple{0, 1, 2}) {
		t.Error("triple indices failed")
	}
	if err := ped.AddRelationship(m, f, c); err == nil {
		t.Error("duplicate child not rejected")
	}
	if err := ped.AddRelationship(f, m, utils.Intern("stranger")); err == nil {
		t.Error("unknown child not rejected")
	}
}
