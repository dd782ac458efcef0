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
	"reflect"
	"testing"
)

func symString(s string) []uint16 {
	syms := make([]uint16, len(s))
	for i, c := range s {
		syms[i] = uint16(c - 'A')
	}
	return syms
}

func symStrings(ss ...string) [][]uint16 {
	frames := make([][]uint16, len(ss))
	for i, s := range ss {
		frames[i] = symString(s)
	}
	return frames
}

func TestFindBestSubstring(t *testing.T) {
	for _, tc := range []struct {
		name      string
		frames    [][]uint16
		want      []uint16
		wantScore int
		wantOK    bool
	}{
		{
			name:   "empty window",
			frames: nil,
		},
		{
			name:   "all frames empty",
			frames: symStrings("", ""),
		},
		{
			name:   "single instruction frame",
			frames: symStrings("A"),
		},
		{
			name:   "two frames no repetition",
			frames: symStrings("AB", "BA"),
		},
		{
			// Overlapping occurrences of a run of one symbol never pay
			// for the extraction.
			name:   "identical symbols",
			frames: symStrings("AAAA"),
		},
		{
			name:      "three identical frames",
			frames:    symStrings("ABC", "ABC", "ABC"),
			want:      symString("ABC"),
			wantScore: 3*3 - 3 - 3,
			wantOK:    true,
		},
		{
			// AB occurs twice in the first frame and once in the second;
			// 3*2 - 3 - 2 = 1.
			name:      "interleaved",
			frames:    symStrings("ABAB", "BABA"),
			want:      symString("AB"),
			wantScore: 1,
			wantOK:    true,
		},
		{
			name:      "shared prefix across frames",
			frames:    symStrings("ABCD", "ABCE", "ABCF"),
			want:      symString("ABC"),
			wantScore: 3*3 - 3 - 3,
			wantOK:    true,
		},
	} {
		sub, score, ok := findBestSubstring(tc.frames)
		if ok != tc.wantOK {
			t.Errorf("%s: ok=%v, want %v", tc.name, ok, tc.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if !reflect.DeepEqual(sub, tc.want) || score != tc.wantScore {
			t.Errorf("%s: got %v score %d, want %v score %d",
				tc.name, sub, score, tc.want, tc.wantScore)
		}
	}
}

func TestBuildSuffixArrayOrder(t *testing.T) {
	frames := symStrings("BA", "AB")
	sa := buildSuffixArray(frames)
	var got []string
	for _, packed := range sa {
		f, s := unpackSuffix(packed)
		suffix := frames[f][s:]
		text := make([]byte, len(suffix))
		for i, c := range suffix {
			text[i] = byte('A' + c)
		}
		got = append(got, string(text))
	}
	want := []string{"A", "AB", "B", "BA"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("suffix order %v, want %v", got, want)
	}
}

func TestNoOverlapCounting(t *testing.T) {
	// AA at 0 and 2 don't overlap, AA at 1 does: N=2, factor 2*2-2-2=0,
	// so nothing is extracted.
	if _, _, ok := findBestSubstring(symStrings("AAAA", "BBBB")); ok {
		t.Errorf("expected no profitable substring in AAAA/BBBB")
	}
}
