// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sandpile computes stabilized configurations of the Abelian
// sandpile automaton on a square grid.
//
// The engine is a double-buffered stencil evaluator: each sweep reads a
// consistent snapshot of the grid, applies the batched topple rule to
// every interior cell in parallel over disjoint row-bands, and commits
// the result as the next snapshot. The grid is grown and recentered on
// demand as the topple front approaches the boundary, and iteration
// stops at the first sweep that performs no redistribution.
package sandpile

import (
	"runtime"

	"github.com/grailbio/base/log"
)

// Opts controls engine resource usage. The zero value is ready to use.
type Opts struct {
	// Parallelism is the fan-out for bulk buffer copies.
	// 0 means runtime.NumCPU().
	Parallelism int
}

func (o Opts) copyShards() int {
	if o.Parallelism > 0 {
		return o.Parallelism
	}
	return runtime.NumCPU()
}

// Compute stabilizes the given configuration and returns the resulting
// grid with per-cell topple counts and totals.
//
// The computation is total and deterministic: for any finite initial
// mass the automaton reaches a fixed point, and the result is
// independent of worker interleaving. Values above MaxInitialValue are
// rejected because they could overflow the 32-bit per-cell accumulators
// within a single sweep.
func Compute(initial []InitialCell, opts Opts) (*FractalResult, error) {
	if err := validateConfiguration(initial); err != nil {
		return nil, err
	}

	side := 0
	for _, c := range initial {
		if c.X+1 > side {
			side = c.X + 1
		}
		if c.Y+1 > side {
			side = c.Y + 1
		}
	}

	f := newField(side, opts.copyShards())
	for _, c := range initial {
		f.write[c.Y*side+c.X] = c.Value
	}
	f.copyWriteToRead()

	// The initial side can be arbitrarily small (even 1x1); the first
	// reallocator call grows it to a usable size and recenters the
	// configuration.
	nextCheck := f.maybeReallocate()

	totalIterations := 0
	var totalRedistributions int64
	for {
		totalIterations++

		redist := f.sweep()
		if redist == 0 {
			break
		}
		totalRedistributions += int64(redist)

		nextCheck--
		if nextCheck == 0 {
			nextCheck = f.maybeReallocate()
		} else {
			f.copyWriteToRead()
		}
	}
	log.Debug.Printf("sandpile: stabilized after %d iterations, %d redistributions, side %d",
		totalIterations, totalRedistributions, f.side)

	sand := make([]uint8, len(f.write))
	for i, v := range f.write {
		sand[i] = uint8(v)
	}
	return &FractalResult{
		InitialConfiguration: append([]InitialCell(nil), initial...),
		SandData:             sand,
		CountData:            f.count,
		SideLength:           f.side,
		TotalRedistributions: totalRedistributions,
		TotalIterations:      totalIterations,
	}, nil
}
