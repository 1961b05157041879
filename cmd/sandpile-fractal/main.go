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
package main

/*
sandpile-fractal stabilizes an Abelian sandpile configuration and renders
the result as a PNG.

Example 1: drop a single large pile and render it.

   sandpile-fractal -seed 4194304 -out fractal.png

Example 2: explicit cells, ring palette, gzipped count export.

   sandpile-fractal -cells "5,5,10;6,5,10" -rings -counts-out counts.tsv.gz
*/

import (
	"flag"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/sandpile/cache"
	"github.com/grailbio/sandpile/render"
	"github.com/grailbio/sandpile/sandpile"
)

var (
	seed        = flag.String("seed", "", "Decimal grain count for a single seed cell; this xor -cells required")
	cells       = flag.String("cells", "", "Semicolon-separated x,y,value triples; this xor -seed required")
	outPath     = flag.String("out", "fractal.png", "Output PNG path")
	countsOut   = flag.String("counts-out", "", "Optional topple-count TSV export; a .gz suffix compresses it")
	cachePath   = flag.String("cache", cache.DefaultPath, "Result cache file")
	noCache     = flag.Bool("no-cache", false, "Skip cache load and save")
	parallelism = flag.Int("parallelism", 0, "Copy fan-out; 0 = runtime.NumCPU()")
	rings       = flag.Bool("rings", false, "Use the banded count-aware palette instead of the per-value one")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s -seed N | -cells \"x,y,v;...\" [options]\n", os.Args[0])
	flag.PrintDefaults()
	os.Exit(1)
}

// parseCells parses "x,y,v;x,y,v;...".
func parseCells(s string) ([]sandpile.InitialCell, error) {
	var initial []sandpile.InitialCell
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ",")
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed cell %q, want x,y,v", part)
		}
		x, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("cell %q: %v", part, err)
		}
		y, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("cell %q: %v", part, err)
		}
		v, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("cell %q: %v", part, err)
		}
		initial = append(initial, sandpile.InitialCell{X: x, Y: y, Value: uint32(v)})
	}
	return initial, nil
}

func initialConfiguration() []sandpile.InitialCell {
	switch {
	case *seed != "" && *cells != "":
		usage()
	case *seed != "":
		v, err := strconv.ParseUint(*seed, 10, 32)
		if err != nil {
			log.Fatalf("bad -seed %q: %v", *seed, err)
		}
		// The engine recenters, so the seed position is arbitrary.
		return []sandpile.InitialCell{{X: 0, Y: 0, Value: uint32(v)}}
	case *cells != "":
		initial, err := parseCells(*cells)
		if err != nil {
			log.Fatalf("bad -cells: %v", err)
		}
		return initial
	default:
		usage()
	}
	panic("notreached")
}

func main() {
	flag.Usage = usage
	flag.Parse()
	cleanup := grail.Init()
	defer cleanup()

	initial := initialConfiguration()

	var result *sandpile.FractalResult
	if !*noCache {
		result = cache.Load(*cachePath, initial)
	}
	if result != nil {
		log.Printf("Reusing cached fractal data from %s", *cachePath)
	} else {
		start := time.Now()
		var err error
		result, err = sandpile.Compute(initial, sandpile.Opts{Parallelism: *parallelism})
		if err != nil {
			log.Fatalf("compute: %v", err)
		}
		log.Printf("%d iterations computed in %s. redistributions: %d, side: %d",
			result.TotalIterations, time.Since(start), result.TotalRedistributions, result.SideLength)

		if !*noCache {
			if err := cache.Save(*cachePath, result); err != nil {
				log.Error.Printf("save cache: %v", err)
			} else {
				log.Printf("Saved fractal data to %s", *cachePath)
			}
		}
	}

	var img image.Image
	if *rings {
		img = render.Rings(result)
	} else {
		img = render.Image(result)
	}
	if err := render.WritePNG(*outPath, img); err != nil {
		log.Fatalf("render: %v", err)
	}
	log.Printf("Wrote %s", *outPath)

	if *countsOut != "" {
		if err := render.WriteCountsTSV(*countsOut, result); err != nil {
			log.Fatalf("counts export: %v", err)
		}
		log.Printf("Wrote %s", *countsOut)
	}
}
