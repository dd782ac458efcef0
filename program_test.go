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
	"strings"
	"testing"
)

func TestParseCall(t *testing.T) {
	for _, tc := range []struct {
		in       string
		wantName string
		wantArgs []string
	}{
		{
			in:       "glBindTexture(GL_TEXTURE_2D, global_GLint_ptr_4[0]);",
			wantName: "glBindTexture",
			wantArgs: []string{"GL_TEXTURE_2D", "global_GLint_ptr_4[0]"},
		},
		{
			// Type casts are stripped; the emitter regenerates them.
			in:       "glDrawElements((GLenum) 0x4, (GLsizei) 3, (GLenum) 0x1403, (const GLvoid *) global_GLushort_ptr_1);",
			wantName: "glDrawElements",
			wantArgs: []string{"0x4", "3", "0x1403", "global_GLushort_ptr_1"},
		},
		{
			in:       "glFlush();",
			wantName: "glFlush",
			wantArgs: []string{"void"},
		},
		{
			in:       "glGenTextures(1, &local_GLint_ptr_1);",
			wantName: "glGenTextures",
			wantArgs: []string{"1", "&local_GLint_ptr_1"},
		},
		{
			in:       "memcpy(&param_int_1, param_int_ptr_0[0], param_int_2);",
			wantName: "memcpy",
			wantArgs: []string{"&param_int_1", "param_int_ptr_0[0]", "param_int_2"},
		},
		{
			in:       `logGlError("0x%x: glBindTexture");`,
			wantName: "logGlError",
			wantArgs: []string{`"0x%x: glBindTexture"`},
		},
		{
			in:       "switch (frame_index) {",
			wantName: "switch (frame_index) {",
			wantArgs: []string{"-"},
		},
		{
			in:       "if (done) { return; }",
			wantName: "if (done) { return; }",
			wantArgs: []string{"-"},
		},
		{
			in:       "case 0:",
			wantName: "case 0:",
			wantArgs: []string{"-"},
		},
		{
			in:       "break;",
			wantName: "break;",
			wantArgs: []string{"-"},
		},
	} {
		got := parseCall(tc.in)
		if got.name != tc.wantName || !reflect.DeepEqual(got.args, tc.wantArgs) {
			t.Errorf("parseCall(%q)=%q %q, want %q %q",
				tc.in, got.name, got.args, tc.wantName, tc.wantArgs)
		}
	}
}

const parseSourceInput = `static DrawState *global_DrawState_ptr_0 = &replay_draw_state;
static unsigned int global_unsigned_int_1;

void frame_0();
void frame_1();

void frame_0()
{
    static float local_float_ptr_2[] = { 1, 2.5 };
    global_unsigned_int_1 = glCreateShader();
    glUniform1fv(global_unsigned_int_1, 2, local_float_ptr_2);
}

void frame_1()
{
    glDeleteShader(global_unsigned_int_1);
}
`

func TestParseSource(t *testing.T) {
	p, err := parseSource(strings.NewReader(parseSourceInput))
	if err != nil {
		t.Fatal(err)
	}
	wantGlobals := []string{
		"static DrawState *global_DrawState_ptr_0 = &replay_draw_state;",
		"static unsigned int global_unsigned_int_1;",
	}
	if !reflect.DeepEqual(p.globals, wantGlobals) {
		t.Errorf("globals=%q, want %q", p.globals, wantGlobals)
	}
	wantProtos := []string{"void frame_0()", "void frame_1()"}
	if !reflect.DeepEqual(p.prototypes, wantProtos) {
		t.Errorf("prototypes=%q, want %q", p.prototypes, wantProtos)
	}
	if len(p.frames) != 2 || len(p.frames[0]) != 2 || len(p.frames[1]) != 1 {
		t.Fatalf("frame shape %v", p.frames)
	}
	wantLocals := []string{"static float local_float_ptr_2[] = { 1, 2.5 };"}
	if !reflect.DeepEqual(p.locals[0], wantLocals) {
		t.Errorf("locals=%q, want %q", p.locals[0], wantLocals)
	}
	if got := p.symToFunc[p.frames[0][0]]; got != "global_unsigned_int_1 = glCreateShader" {
		t.Errorf("first instruction %q", got)
	}
	wantArgs := []string{"global_unsigned_int_1", "2", "local_float_ptr_2"}
	if !reflect.DeepEqual(p.args[0][1], wantArgs) {
		t.Errorf("args=%q, want %q", p.args[0][1], wantArgs)
	}
	if _, ok := p.funcToSym["memcpy"]; !ok {
		t.Errorf("memcpy symbol not reserved")
	}
	if p.codeUnits() != 3 {
		t.Errorf("codeUnits=%d, want 3", p.codeUnits())
	}
}

func TestParseSourceRoundTrip(t *testing.T) {
	p, err := parseSource(strings.NewReader(parseSourceInput))
	if err != nil {
		t.Fatal(err)
	}
	lines, err := dumpCode(p)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := parseSource(strings.NewReader(strings.Join(lines, "\n")))
	if err != nil {
		t.Fatal(err)
	}
	lines2, err := dumpCode(p2)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(lines, lines2) {
		t.Errorf("round trip diverged:\n%s\nvs:\n%s",
			strings.Join(lines, "\n"), strings.Join(lines2, "\n"))
	}
}
