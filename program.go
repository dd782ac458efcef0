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
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/golang/glog"
)

// Argument sentinels. A "-" instruction is a non-call line passed through
// verbatim (its name is the whole line); "void" marks a call with no
// arguments. Both keep every instruction's argument list non-empty so the
// per-frame side tables never fall out of step.
const (
	sentinelRaw  = "-"
	sentinelVoid = "void"
)

// instruction is one call in a frame: a function name and its argument
// tokens as they appear in emitted code.
type instruction struct {
	name string
	args []string
}

// program is the deinliner's working representation: one symbol string per
// frame over an append-only function<->symbol alphabet, with side tables for
// actual arguments, local declarations (original frames only), prototypes,
// and the global declaration block.
type program struct {
	funcToSym  map[string]uint16
	symToFunc  []string
	frames     [][]uint16
	args       [][][]string
	prototypes []string
	locals     [][]string
	globals    []string
}

func newProgram() *program {
	return &program{funcToSym: make(map[string]uint16)}
}

func (p *program) symFor(name string) (uint16, error) {
	if sym, ok := p.funcToSym[name]; ok {
		return sym, nil
	}
	if len(p.symToFunc) > 0xffff {
		return 0, fmt.Errorf("alphabet exhausted at %q", name)
	}
	sym := uint16(len(p.symToFunc))
	p.funcToSym[name] = sym
	p.symToFunc = append(p.symToFunc, name)
	return sym, nil
}

// addFrame appends a frame built from instructions, assigning alphabet
// symbols as needed.
func (p *program) addFrame(prototype string, instrs []instruction, locals []string) error {
	syms := make([]uint16, 0, len(instrs))
	args := make([][]string, 0, len(instrs))
	for _, in := range instrs {
		sym, err := p.symFor(in.name)
		if err != nil {
			return err
		}
		syms = append(syms, sym)
		a := in.args
		if len(a) == 0 {
			a = []string{sentinelVoid}
		}
		args = append(args, a)
	}
	p.frames = append(p.frames, syms)
	p.args = append(p.args, args)
	p.prototypes = append(p.prototypes, prototype)
	p.locals = append(p.locals, locals)
	return nil
}

// codeUnits is the instruction count across all frames, the deinliner's
// size metric.
func (p *program) codeUnits() int {
	n := 0
	for _, f := range p.frames {
		n += len(f)
	}
	return n
}

var (
	callRE      = regexp.MustCompile(`^\s*([^(]+)(\(.*)$`)
	prototypeRE = regexp.MustCompile(`^\s*([^(]+)\((.*)\)`)
	localDeclRE = regexp.MustCompile(`^(.*?)(local_[^=]*)=(.*);$`)
)

// Reserved statement heads the call parser must not treat as calls.
var reservedHeads = map[string]bool{"switch": true, "if": true}

// isPrototypeLine reports whether a top-level line declares a function
// rather than a variable.
func isPrototypeLine(line string) bool {
	return strings.Contains(line, "(") && strings.HasSuffix(line, ";") &&
		!strings.Contains(line, "=")
}

// parseCall splits a source line into a function name and argument tokens.
// Parenthesized prefixes (type casts) inside an argument are dropped, quoted
// strings are kept whole. Lines that aren't calls pass through as raw
// instructions.
func parseCall(line string) instruction {
	m := callRE.FindStringSubmatch(line)
	if m == nil || reservedHeads[strings.TrimSpace(m[1])] {
		return instruction{name: line, args: []string{sentinelRaw}}
	}
	name := strings.TrimSpace(m[1])
	argsString := strings.TrimSpace(m[2])

	var args []string
	var arg strings.Builder
	nest := 0
	inQuotes := false
	for _, c := range argsString {
		appendArg := false
		switch {
		case c == '"' || inQuotes:
			arg.WriteRune(c)
			if c == '"' {
				if inQuotes {
					appendArg = true
				}
				inQuotes = !inQuotes
			}
		case c == '(':
			nest++
		case c == ')':
			appendArg = nest == 1
			nest--
		case c == ',':
			appendArg = true
		case c == ' ' || c == '\t':
		case nest == 1:
			arg.WriteRune(c)
		}
		if appendArg && arg.Len() > 0 {
			args = append(args, arg.String())
			arg.Reset()
		}
	}
	if len(args) == 0 {
		args = []string{sentinelVoid}
	}
	return instruction{name: name, args: args}
}

// parseSource reads an emitted source file back into a program: global
// declarations up to the first function, then per-function prototypes,
// hoisted local declarations, and call instructions. Only column-zero braces
// delimit functions; indented braces (switch bodies) pass through as raw
// instructions.
func parseSource(r io.Reader) (*program, error) {
	p := newProgram()

	var instrs []instruction
	var locals []string
	var prototype, prevLine string
	braceLevel := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		switch {
		case line == "":
		case line[0] == '{':
			braceLevel++
			if braceLevel == 1 {
				instrs = nil
				locals = nil
				prototype = prevLine
				if len(p.frames) == 0 && len(p.globals) > 0 &&
					p.globals[len(p.globals)-1] == prevLine {
					// The last "global" was this function's prototype.
					p.globals = p.globals[:len(p.globals)-1]
				}
			}
		case line[0] == '}':
			braceLevel--
			if braceLevel < 0 {
				return nil, fmt.Errorf("unbalanced braces")
			}
			if braceLevel == 0 {
				if err := p.addFrame(strings.TrimSpace(prototype), instrs, locals); err != nil {
					return nil, err
				}
			}
		default:
			line = strings.TrimLeft(line, " \t")
			if braceLevel == 0 {
				prevLine = line
				// Prototype lines are regenerated at dump time; keeping
				// them out of the global block keeps re-parsing a dump
				// stable.
				if len(p.frames) == 0 && !isPrototypeLine(line) {
					p.globals = append(p.globals, line)
				}
			} else if localDeclRE.MatchString(line) {
				locals = append(locals, line)
			} else {
				instrs = append(instrs, parseCall(line))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if braceLevel != 0 {
		return nil, fmt.Errorf("unbalanced braces at end of input")
	}

	// memcpy backs mixed-aliasing repair; reserve its symbol up front.
	if _, err := p.symFor("memcpy"); err != nil {
		return nil, err
	}
	glog.V(1).Infof("parsed %d frames, %d code units, alphabet %d",
		len(p.frames), p.codeUnits(), len(p.symToFunc))
	return p, nil
}
