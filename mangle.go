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
	"regexp"
	"strconv"
	"strings"
)

// Emitted variables carry their C type in the name:
//
//	[&|*]? (global_|local_|param_) <type token>(_ptr)* _<id> ([<k>])?
//
// e.g. global_unsigned_int_ptr_3, &param_GLint_0, local_GLchar_ptr_7[0].
// Anything that doesn't parse as a mangled name is a literal.
var variableRE = regexp.MustCompile(`^(.)?((?:global_|local_|param_)[^[]*)(\[\d+\])?$`)

type parsedVar struct {
	name    string
	isRef   bool // prefixed with & or *
	isDeref bool // suffixed with [k]
}

func parseVariable(tok string) (parsedVar, bool) {
	m := variableRE.FindStringSubmatch(tok)
	if m == nil {
		return parsedVar{}, false
	}
	return parsedVar{name: m[2], isRef: m[1] != "", isDeref: m[3] != ""}, true
}

// cTypeFromToken derives the C type an argument token denotes. For mangled
// variable names the type is decoded from the name; prefix & adds an
// indirection, prefix * and an index suffix each remove one. Literals are
// classified by shape. The empty string means the token's type is unknown
// (an identifier the grammar doesn't cover); callers skip casting for those.
func cTypeFromToken(tok string) string {
	m := variableRE.FindStringSubmatch(tok)
	if m == nil {
		return cTypeFromLiteral(tok)
	}
	mangles := strings.Split(m[2], "_")
	var ctypes []string
	// First mangle is the storage class, last is the id.
	for _, mangle := range mangles[1 : len(mangles)-1] {
		if mangle == "ptr" {
			ctypes = append(ctypes, "*")
		} else {
			ctypes = append(ctypes, mangle)
		}
	}
	if m[1] == "&" {
		ctypes = append(ctypes, "*")
	}
	if m[1] == "*" {
		ctypes = removeFirst(ctypes, "*")
	}
	if m[3] != "" {
		ctypes = removeFirst(ctypes, "*")
	}
	return strings.Join(ctypes, " ")
}

func cTypeFromLiteral(tok string) string {
	if tok == "" {
		return ""
	}
	switch {
	case tok[0] == '"':
		return "const char *"
	case tok[0] == '\'':
		return "char"
	case strings.HasPrefix(tok, "GL_"):
		return "GLenum"
	}
	if _, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return "int"
	}
	if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "-0x") {
		if _, err := strconv.ParseUint(strings.TrimPrefix(tok, "0x"), 16, 64); err == nil {
			return "unsigned int"
		}
	}
	if _, err := strconv.ParseFloat(tok, 64); err == nil {
		return "float"
	}
	return ""
}

// mangledTypeFromToken converts the derived C type back into mangled form,
// e.g. "unsigned int *" becomes "unsigned_int_ptr". Used when naming the
// formal parameters of a synthesized procedure after the actual tokens.
func mangledTypeFromToken(tok string) string {
	ctype := cTypeFromToken(tok)
	if ctype == "" {
		// Tokens with no recoverable type still need a formal; treat
		// them as plain ints like any other immediate.
		ctype = "int"
	}
	ctype = strings.ReplaceAll(ctype, " ", "_")
	return strings.ReplaceAll(ctype, "*", "ptr")
}

// elemWidth is the byte width of one element of the given C type, used to
// size the copy in mixed-aliasing repair.
func elemWidth(ctype string) int {
	base := strings.TrimSpace(strings.TrimPrefix(ctype, "const "))
	if strings.Contains(base, "*") {
		return 4
	}
	switch base {
	case "char", "GLchar", "GLboolean", "GLubyte", "GLbyte", "unsigned char":
		return 1
	case "short", "GLshort", "GLushort", "unsigned short":
		return 2
	case "GLint64", "GLuint64", "long long", "unsigned long long", "double":
		return 8
	default:
		return 4
	}
}

func removeFirst(ss []string, s string) []string {
	for i, v := range ss {
		if v == s {
			return append(ss[:i], ss[i+1:]...)
		}
	}
	return ss
}
