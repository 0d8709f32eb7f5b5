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

import "fmt"

// A MendelianConflict reports that some column admits no combination
// of read partitioning, transmission pattern, and allele assignment
// with finite cost. No phasing exists for such input under hard
// genotype constraints.
type MendelianConflict struct {
	Column int
}

func (e MendelianConflict) Error() string {
	return fmt.Sprintf("mendelian conflict at column %v", e.Column)
}

// A PreconditionError reports malformed caller input, detected when a
// phasing table is constructed.
type PreconditionError struct {
	Message string
}

func (e PreconditionError) Error() string { return e.Message }

func preconditionf(format string, args ...interface{}) error {
	return PreconditionError{Message: fmt.Sprintf(format, args...)}
}
