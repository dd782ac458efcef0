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

	"github.com/golang/glog"
)

// Object namespaces. Scoped tables (per-program uniforms and attribs, or
// per-context evictions) append "_<scope>" to the namespace.
const (
	nsContexts     = "contexts"
	nsPrograms     = "programs"
	nsShaders      = "shaders"
	nsBuffers      = "buffers"
	nsFramebuffers = "framebuffers"
	nsRenderbufs   = "renderbuffers"
	nsTextures     = "textures"
	nsAttribs      = "attribs"
	nsUniforms     = "uniforms"
	nsCurUniforms  = "current_uniforms"
)

// symTabs maps runtime identifiers observed in the trace to the expressions
// that denote them in emitted code, one table per namespace. Tables are
// created on first insert; lookups of identifiers never inserted miss and
// the caller falls back to emitting the literal.
type symTabs struct {
	tabs map[string]map[int64]string
}

func newSymTabs() *symTabs {
	return &symTabs{tabs: make(map[string]map[int64]string)}
}

func scopedNS(ns string, scope int64) string {
	return fmt.Sprintf("%s_%d", ns, scope)
}

func (s *symTabs) table(ns string) map[int64]string {
	t, ok := s.tabs[ns]
	if !ok {
		t = make(map[int64]string)
		s.tabs[ns] = t
	}
	return t
}

func (s *symTabs) insert(ns string, id int64, expr string) {
	glog.V(1).Infof("symtab %s: %d -> %s", ns, id, expr)
	s.table(ns)[id] = expr
}

func (s *symTabs) lookup(ns string, id int64) (string, bool) {
	expr, ok := s.tabs[ns][id]
	return expr, ok
}

// swapActiveUniforms aliases current_uniforms to the given program's uniform
// table, creating it if absent. Both names share one map afterwards, so
// inserts through either are visible through both.
func (s *symTabs) swapActiveUniforms(program int64) {
	t := s.table(scopedNS(nsUniforms, program))
	s.tabs[nsCurUniforms] = t
	glog.V(1).Infof("symtab: current uniforms now %s", scopedNS(nsUniforms, program))
}

// contextNamespaces are evicted and restored when the current context
// changes.
var contextNamespaces = []string{
	nsAttribs, nsUniforms, nsCurUniforms, nsTextures, nsShaders,
	nsPrograms, nsBuffers, nsFramebuffers,
}

// switchContext stashes the per-context namespaces under the old context id
// and restores (or creates) the new context's. Contexts that share lists are
// not modelled; each context gets private tables.
func (s *symTabs) switchContext(old, next int64, hasOld bool) {
	if !hasOld {
		return
	}
	for _, ns := range contextNamespaces {
		evicted := s.tabs[ns]
		if evicted == nil {
			evicted = make(map[int64]string)
		}
		glog.V(1).Infof("symtab: evicting %s into %s", ns, scopedNS(ns, old))
		s.tabs[scopedNS(ns, old)] = evicted
		restored := s.tabs[scopedNS(ns, next)]
		if restored == nil {
			restored = make(map[int64]string)
		}
		s.tabs[ns] = restored
	}
}
