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
	"sort"

	"github.com/golang/glog"
)

// The histogram finds the substring with the best compression factor
//
//	factor = N*L - N - L
//
// where L is the substring length and N its non-overlapping occurrence
// count across all frames in the window (occurrences never straddle frame
// boundaries). Each suffix is packed as (frame<<16)|start, so both the
// frame count per window and the frame length are bounded by 64k.
type suffixArray []uint32

func packSuffix(frame, start int) uint32 {
	return uint32(frame)<<16 | uint32(start)
}

func unpackSuffix(v uint32) (frame, start int) {
	return int(v >> 16), int(v & 0xffff)
}

// buildSuffixArray sorts every suffix of every frame lexicographically.
// Equal suffixes (identical frames) sort by descending pack order; any
// order among ties gives the same walk results.
func buildSuffixArray(frames [][]uint16) suffixArray {
	var sa suffixArray
	for frame, s := range frames {
		for start := range s {
			sa = append(sa, packSuffix(frame, start))
		}
	}
	sort.Slice(sa, func(i, j int) bool {
		fi, si := unpackSuffix(sa[i])
		fj, sj := unpackSuffix(sa[j])
		c := compareSuffixes(frames[fi][si:], frames[fj][sj:])
		if c != 0 {
			return c < 0
		}
		return sa[i] > sa[j]
	})
	return sa
}

func compareSuffixes(a, b []uint16) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

// findBestSubstring walks the sorted suffix array once, maintaining for each
// substring length the number of non-overlapping occurrences seen so far and
// the most recent counted start per frame. When adjacent suffixes stop
// agreeing at some length, every longer length's tallies are finalized and
// discarded. Returns the winning substring and its score; ok is false when
// no substring scores above zero.
func findBestSubstring(frames [][]uint16) (sub []uint16, score int, ok bool) {
	sa := buildSuffixArray(frames)
	if len(sa) == 0 {
		glog.V(1).Infof("histogram: empty window")
		return nil, 0, false
	}

	// prevStarts[frame][l-1] is the start of the last counted occurrence of
	// the current chain's length-l prefix in that frame; hist[l-1] is its
	// occurrence count.
	prevStarts := make([][]int, len(frames))
	var hist []int
	bestScore := 0
	var bestFrame, bestStart, bestEnd int

	for i, packed := range sa {
		frame, start := unpackSuffix(packed)
		fs := frames[frame]

		prevFrame, prevStart := 0, 0
		prevLen := 0
		if i > 0 {
			prevFrame, prevStart = unpackSuffix(sa[i-1])
			prevLen = len(frames[prevFrame])
		}
		nextFrame, nextStart := 0, 0
		nextLen := 0
		if i+1 < len(sa) {
			nextFrame, nextStart = unpackSuffix(sa[i+1])
			nextLen = len(frames[nextFrame])
		}

		prevMatches := true
		for end := start + 1; end <= len(fs); end++ {
			l := end - start
			li := l - 1
			c := fs[end-1]

			// The previous suffix diverges here: all lengths >= l are
			// final, their tallies can no longer grow.
			if prevMatches && (prevStart+li >= prevLen || frames[prevFrame][prevStart+li] != c) {
				if li < len(hist) {
					hist = hist[:li]
				}
				for f := range prevStarts {
					if li < len(prevStarts[f]) {
						prevStarts[f] = prevStarts[f][:li]
					}
				}
				prevMatches = false
			}

			// Neither neighbour shares this prefix: this and any longer
			// substring occur once only, never worth extracting.
			if (nextStart+li >= nextLen || frames[nextFrame][nextStart+li] != c) && !prevMatches {
				break
			}

			for li >= len(prevStarts[frame]) {
				prevStarts[frame] = append(prevStarts[frame], start-l)
			}
			ps := prevStarts[frame][li]
			if abs(start-ps) < l {
				// Overlaps the previously counted occurrence.
				continue
			}
			prevStarts[frame][li] = start
			for li > len(hist) {
				hist = append(hist, 0)
			}
			if li == len(hist) {
				// First occurrence at this length; can't beat anything
				// yet.
				hist = append(hist, 1)
				continue
			}
			hist[li]++
			factor := hist[li]*(l-1) - l
			if bestScore < factor {
				bestScore = factor
				bestFrame, bestStart, bestEnd = frame, start, end
			}
		}
	}

	if bestScore <= 0 {
		return nil, 0, false
	}
	sub = append(sub, frames[bestFrame][bestStart:bestEnd]...)
	glog.V(1).Infof("histogram: best substring len %d score %d", len(sub), bestScore)
	return sub, bestScore, true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
