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
	"fmt"
	"log"
	"sort"

	"github.com/exascience/elphase/utils"
)

func binomial(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	result := 1
	for i := 1; i <= k; i++ {
		result = result * (n - k + i) / i
	}
	return result
}

// A Genotype is the unordered multiset of alleles of one individual
// at one variant site. A nil *Genotype stands for an unknown
// genotype.
type Genotype struct {
	alleles []int
}

// NewGenotype creates a genotype from the given alleles. The order of
// the alleles does not matter.
func NewGenotype(alleles ...int) *Genotype {
	sorted := append([]int(nil), alleles...)
	sort.Ints(sorted)
	return &Genotype{alleles: sorted}
}

// Ploidy returns the number of alleles of the genotype.
func (g *Genotype) Ploidy() int { return len(g.alleles) }

// Allele returns the i-th allele in sorted order.
func (g *Genotype) Allele(i int) int { return g.alleles[i] }

// Index ranks the genotype among all genotypes of the same ploidy in
// colexicographic order of their sorted allele multisets. For diploid
// biallelic genotypes this yields 0 for 0/0, 1 for 0/1, and 2 for
// 1/1.
func (g *Genotype) Index() int {
	index := 0
	for i, allele := range g.alleles {
		index += binomial(allele+i, i+1)
	}
	return index
}

// Equals tells whether two genotypes consist of the same allele
// multiset.
func (g *Genotype) Equals(other *Genotype) bool {
	if g == nil || other == nil {
		return g == other
	}
	if len(g.alleles) != len(other.alleles) {
		return false
	}
	for i, allele := range g.alleles {
		if allele != other.alleles[i] {
			return false
		}
	}
	return true
}

func (g *Genotype) String() string {
	if g == nil {
		return "./."
	}
	s := ""
	for i, allele := range g.alleles {
		if i > 0 {
			s += "/"
		}
		s += fmt.Sprintf("%d", allele)
	}
	return s
}

// PhredGenotypeLikelihoods holds phred-scaled genotype costs, indexed
// by Genotype.Index. A slice must cover every genotype that can be
// formed from the alleles of its column.
type PhredGenotypeLikelihoods []uint32

// Of returns the phred-scaled cost of the given genotype.
func (gl PhredGenotypeLikelihoods) Of(g *Genotype) uint32 {
	index := g.Index()
	if index >= len(gl) {
		log.Panicf("no likelihood for genotype %v", g)
	}
	return gl[index]
}

// A Triple links a child to its two parents, all three given as
// individual indices.
type Triple struct {
	Father, Mother, Child int
}

type individual struct {
	sample      utils.Symbol
	genotypes   []*Genotype
	likelihoods []PhredGenotypeLikelihoods
}

// A Pedigree is an ordered list of individuals together with the
// parent/parent/child triples that relate them. Each individual
// carries its expected genotype, and optionally its genotype
// likelihoods, per column.
type Pedigree struct {
	individuals []individual
	indexMap    utils.SmallMap
	triples     []Triple
}

func New() *Pedigree { return &Pedigree{} }

// AddIndividual appends an individual. genotypes holds the expected
// genotype per column (nil entries mean unknown); likelihoods may be
// nil, or hold per-column phred-scaled genotype costs.
func (p *Pedigree) AddIndividual(sample utils.Symbol, genotypes []*Genotype, likelihoods []PhredGenotypeLikelihoods) error {
	if _, found := p.indexMap.Get(sample); found {
		return fmt.Errorf("duplicate individual %v in pedigree", *sample)
	}
	p.indexMap.Set(sample, len(p.individuals))
	p.individuals = append(p.individuals, individual{sample, genotypes, likelihoods})
	return nil
}

// AddRelationship appends a parent/parent/child triple, given by
// sample names of individuals previously added.
func (p *Pedigree) AddRelationship(father, mother, child utils.Symbol) error {
	fi, ok1 := p.IndexOf(father)
	mi, ok2 := p.IndexOf(mother)
	ci, ok3 := p.IndexOf(child)
	if !ok1 || !ok2 || !ok3 {
		return fmt.Errorf("relationship %v/%v/%v refers to unknown individuals", *father, *mother, *child)
	}
	for _, t := range p.triples {
		if t.Child == ci {
			return fmt.Errorf("individual %v is a child in more than one triple", *child)
		}
	}
	p.triples = append(p.triples, Triple{fi, mi, ci})
	return nil
}

// Size returns the number of individuals.
func (p *Pedigree) Size() int { return len(p.individuals) }

// TripleCount returns the number of parent/parent/child triples.
func (p *Pedigree) TripleCount() int { return len(p.triples) }

// Triple returns the i-th triple.
func (p *Pedigree) Triple(i int) Triple { return p.triples[i] }

// IndexOf resolves a sample name to an individual index.
func (p *Pedigree) IndexOf(sample utils.Symbol) (int, bool) {
	value, found := p.indexMap.Get(sample)
	if !found {
		return 0, false
	}
	return value.(int), true
}

// SampleAt returns the sample name of the individual at the given
// index.
func (p *Pedigree) SampleAt(index int) utils.Symbol {
	return p.individuals[index].sample
}

// Genotype returns the expected genotype of an individual at a
// column, or nil if unknown.
func (p *Pedigree) Genotype(individual, column int) *Genotype {
	genotypes := p.individuals[individual].genotypes
	if column >= len(genotypes) {
		return nil
	}
	return genotypes[column]
}

// GenotypeLikelihoods returns the phred-scaled genotype costs of an
// individual at a column, or nil if not available.
func (p *Pedigree) GenotypeLikelihoods(individual, column int) PhredGenotypeLikelihoods {
	likelihoods := p.individuals[individual].likelihoods
	if likelihoods == nil || column >= len(likelihoods) {
		return nil
	}
	return likelihoods[column]
}
