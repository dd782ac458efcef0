// Copyright 2014 Antonio Tejada
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

package glparse

import (
	"io"

	"github.com/golang/glog"
)

// DeinlineConfig drives the sliding-window outlining loop.
type DeinlineConfig struct {
	// WindowSize is the initial number of frames scored together.
	WindowSize int
	// WindowStartStride advances the window start each iteration.
	WindowStartStride int
	// WindowSizeStride grows the window each iteration, letting later
	// passes factor across larger spans without every pass paying for the
	// whole program.
	WindowSizeStride int
	// Iterations caps the loop.
	Iterations int
}

// DefaultDeinlineConfig matches the tuning that behaves well on large
// traces.
func DefaultDeinlineConfig() DeinlineConfig {
	return DeinlineConfig{
		WindowSize:        2,
		WindowStartStride: 1,
		WindowSizeStride:  0,
		Iterations:        1000,
	}
}

// Deinline reads emitted source and repeatedly extracts the substring of
// calls whose outlining shrinks the program the most, until no extraction
// is profitable inside any remaining window or the iteration cap is hit.
// Returns the rewritten source lines.
func Deinline(r io.Reader, cfg DeinlineConfig) ([]string, error) {
	p, err := parseSource(r)
	if err != nil {
		return nil, err
	}
	if err := deinlineProgram(p, cfg); err != nil {
		return nil, err
	}
	return dumpCode(p)
}

func deinlineProgram(p *program, cfg DeinlineConfig) error {
	initial := p.codeUnits()
	glog.Infof("deinline: initial code units %d", initial)

	windowStart := 0
	windowSize := cfg.WindowSize
	for k := 0; k < cfg.Iterations; k++ {
		windowEnd := windowStart + windowSize
		window := sliceWindow(p.frames, windowStart, windowEnd)
		glog.V(1).Infof("deinline: iteration %d window [%d:%d]", k, windowStart, windowEnd)

		sub, score, ok := findBestSubstring(window)

		windowStart += cfg.WindowStartStride
		windowSize += cfg.WindowSizeStride

		if !ok {
			if windowEnd > len(p.frames) {
				glog.Infof("deinline: exhausted all worthy extractions")
				break
			}
			continue
		}
		glog.V(1).Infof("deinline: extracting %d-instruction substring, score %d", len(sub), score)
		if err := p.outline(sub); err != nil {
			return err
		}
	}

	final := p.codeUnits()
	ratio := float64(initial)
	if final > 0 {
		ratio = float64(initial) / float64(final)
	}
	glog.Infof("deinline: code units %d -> %d, ratio %.3f", initial, final, ratio)
	return nil
}

func sliceWindow(frames [][]uint16, start, end int) [][]uint16 {
	if start > len(frames) {
		start = len(frames)
	}
	if end > len(frames) {
		end = len(frames)
	}
	return frames[start:end]
}
