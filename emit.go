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
	"bufio"
	"io"
	"strings"
)

// Formal parameter types for leaves that take pointers and integers
// indistinctly and have no prototype in the emitted file. Call sites get a
// cast whenever the actual token's derived type differs, which keeps the
// replay build clean when pointer-type warnings are errors. Spellings are
// in the mangled-name derived style so matching actuals don't cast.
var leafFormalTypes = map[string][]string{
	"glDrawElements":         {"GLenum", "GLsizei", "GLenum", "const GLvoid *"},
	"glVertexAttribPointer":  {"GLuint", "GLint", "GLenum", "GLboolean", "GLsizei", "const GLvoid *"},
	"glTexImage2D":           {"GLenum", "GLint", "GLint", "GLsizei", "GLsizei", "GLint", "GLenum", "GLenum", "const GLvoid *"},
	"openAndGetAssetBuffer":  {"DrawState *", "const char *", "AAsset * *", "const void * *"},
	"closeAsset":             {"AAsset * *", "const void * *"},
	"glDiscardFramebufferEXT": {"GLenum", "GLsizei", "const GLenum *"},
}

// dumpCode serializes a program: global declarations, prototypes (so the
// compiler doesn't guess argument types), then definitions with per-call
// cast decoration.
func dumpCode(p *program) ([]string, error) {
	var lines []string
	lines = append(lines, p.globals...)
	lines = append(lines, "")

	formalTypes := make(map[string][]string, len(leafFormalTypes)+len(p.prototypes))
	for name, types := range leafFormalTypes {
		formalTypes[name] = types
	}
	for _, proto := range p.prototypes {
		lines = append(lines, proto+";")
		name, types := prototypeFormalTypes(proto)
		if name != "" && types != nil {
			formalTypes[name] = types
		}
	}
	lines = append(lines, "")

	for f, syms := range p.frames {
		lines = append(lines, p.prototypes[f])
		lines = append(lines, "{")
		for _, decl := range p.locals[f] {
			lines = append(lines, "    "+decl)
		}
		for i, sym := range syms {
			name := p.symToFunc[sym]
			args := p.args[f][i]
			switch {
			case len(args) > 0 && args[0] == sentinelRaw:
				lines = append(lines, "    "+name)
			case len(args) > 0 && args[0] == sentinelVoid:
				lines = append(lines, "    "+name+"();")
			default:
				lines = append(lines, "    "+name+"("+strings.Join(castArgs(formalTypes[name], args), ", ")+");")
			}
		}
		lines = append(lines, "}")
		lines = append(lines, "")
	}
	return lines, nil
}

// castArgs wraps each actual whose derived type differs from the callee's
// declared formal type. Leaves without a prototype, and tokens whose type
// the mangled-name grammar can't recover, pass through uncast.
func castArgs(formals []string, args []string) []string {
	if formals == nil {
		return args
	}
	cast := make([]string, len(args))
	for i, arg := range args {
		actual := cTypeFromToken(arg)
		if i < len(formals) && actual != "" && actual != formals[i] {
			cast[i] = "(" + formals[i] + ") " + arg
		} else {
			cast[i] = arg
		}
	}
	return cast
}

// prototypeFormalTypes derives a procedure's formal parameter types from its
// prototype line. Formals named by the mangled grammar carry their type in
// the name; anything else falls back to the declared type text.
func prototypeFormalTypes(proto string) (string, []string) {
	m := prototypeRE.FindStringSubmatch(proto)
	if m == nil {
		return "", nil
	}
	nameFields := strings.Fields(m[1])
	if len(nameFields) == 0 {
		return "", nil
	}
	name := nameFields[len(nameFields)-1]
	params := strings.TrimSpace(m[2])
	if params == "" {
		return name, nil
	}
	var types []string
	for _, formal := range strings.Split(params, ",") {
		formal = strings.TrimSpace(formal)
		fields := strings.Fields(formal)
		if len(fields) == 0 {
			return name, nil
		}
		mangled := fields[len(fields)-1]
		ctype := cTypeFromToken(mangled)
		if ctype == "" {
			// Not a mangled name; trust the declaration.
			ctype = strings.TrimSpace(strings.TrimSuffix(formal, mangled))
		}
		types = append(types, ctype)
	}
	return name, types
}

// WriteLines writes the emitted source to w.
func WriteLines(w io.Writer, lines []string) error {
	bw := bufio.NewWriter(w)
	for _, line := range lines {
		if _, err := bw.WriteString(line); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
