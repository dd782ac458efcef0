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
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestCastArgs(t *testing.T) {
	for _, tc := range []struct {
		formals []string
		args    []string
		want    []string
	}{
		{
			// No prototype, no casts.
			formals: nil,
			args:    []string{"0x4", "3"},
			want:    []string{"0x4", "3"},
		},
		{
			formals: []string{"GLenum", "GLsizei", "GLenum", "const GLvoid *"},
			args:    []string{"0x4", "3", "0x1403", "global_GLushort_ptr_1"},
			want: []string{
				"(GLenum) 0x4", "(GLsizei) 3", "(GLenum) 0x1403",
				"(const GLvoid *) global_GLushort_ptr_1",
			},
		},
		{
			// Matching derived types don't cast; unknown tokens never
			// cast.
			formals: []string{"DrawState *", "const char *", "AAsset * *", "const void * *"},
			args:    []string{"global_DrawState_ptr_0", `"int_asset_0"`, "&global_AAsset_ptr_1", "&global_unsigned_int_ptr_2"},
			want: []string{
				"global_DrawState_ptr_0", `"int_asset_0"`, "&global_AAsset_ptr_1",
				"(const void * *) &global_unsigned_int_ptr_2",
			},
		},
		{
			// The close half of the asset lifecycle casts like the open
			// half.
			formals: leafFormalTypes["closeAsset"],
			args:    []string{"&global_AAsset_ptr_1", "&global_unsigned_int_ptr_2"},
			want: []string{
				"&global_AAsset_ptr_1",
				"(const void * *) &global_unsigned_int_ptr_2",
			},
		},
	} {
		if got := castArgs(tc.formals, tc.args); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("castArgs(%q, %q)=%q, want %q", tc.formals, tc.args, got, tc.want)
		}
	}
}

func TestPrototypeFormalTypes(t *testing.T) {
	for _, tc := range []struct {
		in       string
		wantName string
		want     []string
	}{
		{
			in:       "void subframe2(GLint * * param_GLint_ptr_ptr_0, int param_int_1)",
			wantName: "subframe2",
			want:     []string{"GLint * *", "int"},
		},
		{
			in:       "void frame_0()",
			wantName: "frame_0",
			want:     nil,
		},
		{
			in:       "void draw(unsigned int frame_index)",
			wantName: "draw",
			want:     []string{"unsigned int"},
		},
	} {
		name, types := prototypeFormalTypes(tc.in)
		if name != tc.wantName || !reflect.DeepEqual(types, tc.want) {
			t.Errorf("prototypeFormalTypes(%q)=%q %q, want %q %q",
				tc.in, name, types, tc.wantName, tc.want)
		}
	}
}

func TestDumpCodeDeterministic(t *testing.T) {
	p := mustParse(t, repeatedFramesSource)
	if err := deinlineProgram(p, DeinlineConfig{WindowSize: 3, WindowStartStride: 1, Iterations: 10}); err != nil {
		t.Fatal(err)
	}
	first, err := dumpCode(p)
	if err != nil {
		t.Fatal(err)
	}
	second, err := dumpCode(p)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("dump not deterministic:\n%s",
			diffText(strings.Join(first, "\n"), strings.Join(second, "\n")))
	}
}

func TestWriteLines(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteLines(&buf, []string{"a", "", "b"}); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "a\n\nb\n"; got != want {
		t.Errorf("WriteLines wrote %q, want %q", got, want)
	}
}

func TestDumpCodeCastsSubframeCalls(t *testing.T) {
	p := mustParse(t, `int global_pad;

void frame_0()
{
    glVertexAttribPointer(0, 2, 0x1406, 0, 8, local_unsigned_int_ptr_1);
    glDrawArrays(4, 0, 3);
}

void frame_1()
{
    glVertexAttribPointer(0, 2, 0x1406, 0, 8, local_GLchar_ptr_2);
    glDrawArrays(4, 0, 3);
}
`)
	if err := p.outline(p.sub(t, "glVertexAttribPointer", "glDrawArrays")); err != nil {
		t.Fatal(err)
	}
	lines, err := dumpCode(p)
	if err != nil {
		t.Fatal(err)
	}
	out := strings.Join(lines, "\n")
	// The pointer argument's type differs per caller; the subframe formal
	// keeps the first site's type and the other site gets a cast.
	if !strings.Contains(out, "    subframe2(local_unsigned_int_ptr_1);") {
		t.Errorf("first call site miscast:\n%s", out)
	}
	if !strings.Contains(out, "    subframe2((unsigned int *) local_GLchar_ptr_2);") {
		t.Errorf("second call site not cast:\n%s", out)
	}
	// Inside the body the formal feeds the cast-sensitive leaf.
	if !strings.Contains(out, "(const GLvoid *) param_unsigned_int_ptr_0") {
		t.Errorf("leaf cast missing:\n%s", out)
	}
}
