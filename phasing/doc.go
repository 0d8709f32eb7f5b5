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

/*
Package phasing solves the weighted minimum error correction problem
for haplotype phasing, extended with pedigree information: reads of
related individuals are phased jointly, and switches in the
transmission pattern between consecutive variant sites are charged a
per-site recombination cost.

The solver is a dynamic program over the columns of a read set. Per
column it enumerates all assignments of the covering reads to
haplotype slots in Gray code order, combined with all transmission
patterns of the pedigree triples. Backtrace tables are retained
sparsely, at every sqrt(n)-th column, and recomputed from the nearest
checkpoint during the backward sweep.
*/
package phasing
