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
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

// Common parameters naming a local or formal variable must stay parameters
// even when byte-identical across call sites: they aren't visible inside the
// outlined procedure.
var localOrParamRE = regexp.MustCompile(`^.?local_|^.?param`)
var globalVarRE = regexp.MustCompile(`^.?global_`)

type callSite struct {
	frame, instr int
}

// aliasInfo records that an instruction takes the address of a variable a
// later instruction reads: aliasingParam is the &x position in the earlier
// instruction, aliasedParam the x (or x[k]) position in the later one, and
// occurrences the call sites where the pair actually aliases.
type aliasInfo struct {
	aliasingParam int
	aliasedParam  int
	occurrences   map[int]bool
}

// outline hoists every non-overlapping occurrence of sub into a new
// procedure, rewrites the callers to single calls, eliminates common
// arguments, coalesces duplicates, and repairs pointer aliasing severed by
// the extraction.
func (p *program) outline(sub []uint16) error {
	name := fmt.Sprintf("subframe%d", len(p.frames))
	sym, err := p.symFor(name)
	if err != nil {
		return err
	}

	sites, allActual, unflattened, bodyArgs := p.replaceCallers(sub, sym)
	if len(sites) == 0 {
		return fmt.Errorf("substring not found during replacement")
	}

	perInstr, err := gatherAliasInfo(unflattened)
	if err != nil {
		return err
	}

	indices := optimizeCallerArgs(allActual)

	formals := gatherFormals(indices, bodyArgs)

	body := append([]uint16(nil), sub...)
	body, bodyArgs, formals, err = p.resolveAliasings(
		body, bodyArgs, formals, perInstr, allActual, unflattened)
	if err != nil {
		return err
	}

	// Write the optimized argument vectors back into the call sites.
	for k, s := range sites {
		p.args[s.frame][s.instr] = allActual[k]
	}

	p.frames = append(p.frames, body)
	p.args = append(p.args, bodyArgs)
	p.locals = append(p.locals, nil)
	p.prototypes = append(p.prototypes,
		fmt.Sprintf("void %s(%s)", name, strings.Join(formals, ", ")))
	glog.V(1).Infof("outlined %s: %d sites, %d instructions, %d formals",
		name, len(sites), len(body), len(formals))
	return nil
}

// replaceCallers rewrites every non-overlapping occurrence of sub (scanning
// each frame left to right) into a call to sym and collects the flattened
// actual parameters per call site. The new procedure's body arguments start
// as a copy of the first occurrence's.
func (p *program) replaceCallers(sub []uint16, sym uint16) (sites []callSite, allActual [][]string, unflattened [][][]string, bodyArgs [][]string) {
	l := len(sub)
	for f := range p.frames {
		fs := p.frames[f]
		fa := p.args[f]
		var ns []uint16
		var na [][]string
		for i := 0; i < len(fs); {
			if i+l > len(fs) || !symsEqual(fs[i:i+l], sub) {
				ns = append(ns, fs[i])
				na = append(na, fa[i])
				i++
				continue
			}
			occ := fa[i : i+l]
			u := make([][]string, l)
			var flat []string
			for k, params := range occ {
				u[k] = append([]string(nil), params...)
				flat = append(flat, params...)
			}
			unflattened = append(unflattened, u)
			if bodyArgs == nil {
				bodyArgs = make([][]string, l)
				for k, params := range occ {
					bodyArgs[k] = append([]string(nil), params...)
				}
			}
			sites = append(sites, callSite{f, len(ns)})
			allActual = append(allActual, flat)
			ns = append(ns, sym)
			na = append(na, nil) // patched after parameter optimization
			i += l
		}
		p.frames[f] = ns
		p.args[f] = na
	}
	return sites, allActual, unflattened, bodyArgs
}

func symsEqual(a, b []uint16) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// optimizeCallerArgs flags flat positions whose argument is identical at
// every call site (and not a local or formal) as -1, coalesces positions
// byte-equal to an earlier surviving position everywhere, then deletes both
// kinds from every call site. The returned indices map each original flat
// position to itself, to the position it coalesced into, or to -1.
func optimizeCallerArgs(allActual [][]string) []int {
	n := len(allActual[0])
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	for pos := 0; pos < n; pos++ {
		param := allActual[0][pos]
		common := true
		for _, site := range allActual[1:] {
			if site[pos] != param {
				common = false
				break
			}
		}
		if common && !localOrParamRE.MatchString(param) {
			indices[pos] = -1
		}
	}

	for pos := 0; pos < n; pos++ {
		if indices[pos] == -1 {
			continue
		}
		for prevPos := 0; prevPos < pos; prevPos++ {
			prev := indices[prevPos]
			if prev == -1 {
				continue
			}
			coalesceable := allActual[0][pos] == allActual[0][prev]
			if coalesceable {
				for _, site := range allActual[1:] {
					if site[pos] != site[prev] {
						coalesceable = false
						break
					}
				}
			}
			if coalesceable {
				glog.V(2).Infof("coalescing parameter %d into %d", pos, prev)
				indices[pos] = prev
				break
			}
		}
	}

	// Delete from the end so earlier positions stay valid.
	for pos := n - 1; pos >= 0; pos-- {
		if indices[pos] == -1 || indices[pos] != pos {
			for k := range allActual {
				allActual[k] = append(allActual[k][:pos], allActual[k][pos+1:]...)
			}
		}
	}
	if len(allActual[0]) == 0 {
		// Keep the side tables in step if this call is itself outlined.
		for k := range allActual {
			allActual[k] = []string{sentinelVoid}
		}
	}
	return indices
}

// gatherFormals renames the body's non-common arguments to positional
// formals named after their mangled type and returns the formal parameter
// declarations.
func gatherFormals(indices []int, bodyArgs [][]string) []string {
	var formals []string
	mapping := make(map[int]int)
	formalCount := 0
	flat := 0
	for _, params := range bodyArgs {
		for j := range params {
			ai := indices[flat]
			if ai != -1 {
				orig := params[j]
				fi, ok := mapping[ai]
				if !ok {
					fi = formalCount
				}
				params[j] = fmt.Sprintf("param_%s_%d", mangledTypeFromToken(orig), fi)
				if flat == ai {
					formals = append(formals, cTypeOrInt(orig)+" "+params[j])
					mapping[ai] = formalCount
					formalCount++
				}
			}
			flat++
		}
	}
	return formals
}

func cTypeOrInt(tok string) string {
	if ctype := cTypeFromToken(tok); ctype != "" {
		return ctype
	}
	return "int"
}

// gatherAliasInfo finds, per occurrence, the (address-taken, later-use)
// parameter pairs over the original argument tokens. perInstr[i] maps the
// index of each instruction aliased by instruction i to the participating
// parameter positions and call sites.
func gatherAliasInfo(unflattened [][][]string) ([]map[int]*aliasInfo, error) {
	perInstr := make([]map[int]*aliasInfo, len(unflattened[0]))
	for i := range perInstr {
		perInstr[i] = make(map[int]*aliasInfo)
	}

	type varUse struct {
		parsedVar
		paramIndex int
		instrIndex int
		token      string
	}
	for occIdx, occ := range unflattened {
		uses := make(map[string][]varUse)
		var order []string
		for instrIdx, params := range occ {
			for paramIdx, param := range params {
				pv, ok := parseVariable(param)
				if !ok {
					continue
				}
				if _, seen := uses[pv.name]; !seen {
					order = append(order, pv.name)
				}
				uses[pv.name] = append(uses[pv.name], varUse{
					parsedVar:  pv,
					paramIndex: paramIdx,
					instrIndex: instrIdx,
					token:      param,
				})
			}
		}
		for _, varname := range order {
			vus := uses[varname]
			sort.SliceStable(vus, func(i, j int) bool {
				return vus[i].instrIndex > vus[j].instrIndex
			})
			for i, vu := range vus {
				for _, prev := range vus[i+1:] {
					// Aliasing is between a strictly earlier instruction
					// and a later one.
					if prev.instrIndex == vu.instrIndex {
						continue
					}
					if (prev.isRef && !vu.isRef) || (!prev.isDeref && vu.isDeref) {
						s := perInstr[prev.instrIndex][vu.instrIndex]
						if s == nil {
							s = &aliasInfo{
								aliasingParam: prev.paramIndex,
								aliasedParam:  vu.paramIndex,
								occurrences:   make(map[int]bool),
							}
							perInstr[prev.instrIndex][vu.instrIndex] = s
						}
						// A single parameter per aliased instruction is
						// the only shape the repair policies cover.
						if s.aliasedParam != vu.paramIndex {
							return nil, fmt.Errorf(
								"unsupported aliasing pattern: instruction %d aliases both parameter %d and %d of instruction %d (%q vs %q)",
								prev.instrIndex, s.aliasedParam, vu.paramIndex, vu.instrIndex,
								occ[vu.instrIndex][s.aliasedParam], vu.token)
						}
						s.occurrences[occIdx] = true
						break
					}
				}
			}
		}
	}
	return perInstr, nil
}

// resolveAliasings repairs the write-through severed by outlining. Aliases
// through globals need nothing; pairs aliased at every call site coalesce
// the use into a dereference of the pointer formal; mixed pairs get a
// synthetic memcpy after the aliasing instruction with a per-site transfer
// size (the element width at aliasing sites, 0 elsewhere).
func (p *program) resolveAliasings(body []uint16, bodyArgs [][]string, formals []string,
	perInstr []map[int]*aliasInfo, allActual [][]string, unflattened [][][]string) ([]uint16, [][]string, []string, error) {

	total := 0
	for _, m := range perInstr {
		total += len(m)
	}
	if total == 0 {
		return body, bodyArgs, formals, nil
	}

	memcpySym, err := p.symFor("memcpy")
	if err != nil {
		return nil, nil, nil, err
	}

	// Instruction indices stay valid through the memcpy insertions below
	// because the walk goes back to front.
	bodyCopy := append([][]string(nil), bodyArgs...)
	removable := make(map[string]bool)
	nonremovable := make(map[string]bool)

	for ai := len(perInstr) - 1; ai >= 0; ai-- {
		aliased := perInstr[ai]
		if len(aliased) == 0 {
			continue
		}
		resolved := make(map[string]bool)
		for _, aliasedIdx := range sortedIntKeys(aliased) {
			s := aliased[aliasedIdx]
			aliasedName := bodyCopy[aliasedIdx][s.aliasedParam]
			aliasingName := bodyCopy[ai][s.aliasingParam]

			if globalVarRE.MatchString(aliasedName) {
				if !globalVarRE.MatchString(aliasingName) {
					return nil, nil, nil, fmt.Errorf(
						"unsupported aliasing pattern: global %q aliased by non-global %q", aliasedName, aliasingName)
				}
				continue
			}

			if len(s.occurrences) == len(unflattened) {
				// Every caller aliases: read through the pointer formal.
				bodyArgs[aliasedIdx][s.aliasedParam] = aliasingName + "[0]"
				removable[aliasedName] = true
				continue
			}

			if resolved[aliasedName] {
				continue
			}
			body = insertSym(body, ai+1, memcpySym)
			sizeParam := fmt.Sprintf("param_int_%d", len(formals))
			formals = append(formals, "int "+sizeParam)
			row := []string{"&" + aliasedName, aliasingName + "[0]", sizeParam}
			bodyArgs = insertRow(bodyArgs, ai+1, row)

			width := elemWidth(cTypeOrInt(aliasedName))
			for k := range unflattened {
				v := "0"
				if s.occurrences[k] {
					v = strconv.Itoa(width)
				}
				allActual[k] = append(allActual[k], v)
			}
			resolved[aliasedName] = true
			nonremovable[aliasedName] = true
		}
	}

	// Coalesced formals drop out unless a memcpy still reads them.
	var names []string
	for name := range removable {
		if !nonremovable[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		idx := -1
		for i, decl := range formals {
			fields := strings.Fields(decl)
			if fields[len(fields)-1] == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		formals = append(formals[:idx], formals[idx+1:]...)
		for k := range allActual {
			allActual[k] = append(allActual[k][:idx], allActual[k][idx+1:]...)
		}
	}
	return body, bodyArgs, formals, nil
}

func insertSym(s []uint16, i int, v uint16) []uint16 {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func insertRow(s [][]string, i int, row []string) [][]string {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = row
	return s
}

func sortedIntKeys(m map[int]*aliasInfo) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
