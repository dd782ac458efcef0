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

import "testing"

func TestSymTabs(t *testing.T) {
	s := newSymTabs()
	if _, ok := s.lookup(nsTextures, 1); ok {
		t.Errorf("lookup on empty table hit")
	}
	s.insert(nsTextures, 1, "global_GLint_ptr_3[0]")
	if expr, ok := s.lookup(nsTextures, 1); !ok || expr != "global_GLint_ptr_3[0]" {
		t.Errorf("lookup=%q %v", expr, ok)
	}
	// Later inserts overwrite; deletes are not required.
	s.insert(nsTextures, 1, "global_GLint_ptr_9[0]")
	if expr, _ := s.lookup(nsTextures, 1); expr != "global_GLint_ptr_9[0]" {
		t.Errorf("overwrite lookup=%q", expr)
	}
}

func TestSwapActiveUniforms(t *testing.T) {
	s := newSymTabs()
	s.swapActiveUniforms(7)
	s.insert(nsCurUniforms, 3, "global_unsigned_int_4")
	// The alias and the program table share storage.
	if expr, ok := s.lookup(scopedNS(nsUniforms, 7), 3); !ok || expr != "global_unsigned_int_4" {
		t.Errorf("program table lookup=%q %v", expr, ok)
	}
	s.swapActiveUniforms(8)
	if _, ok := s.lookup(nsCurUniforms, 3); ok {
		t.Errorf("uniforms leaked across programs")
	}
	s.swapActiveUniforms(7)
	if expr, ok := s.lookup(nsCurUniforms, 3); !ok || expr != "global_unsigned_int_4" {
		t.Errorf("uniforms lost after swapping back, got %q %v", expr, ok)
	}
}

func TestSwitchContext(t *testing.T) {
	s := newSymTabs()
	s.insert(nsTextures, 5, "global_GLint_ptr_1[0]")
	s.switchContext(1, 2, true)
	if _, ok := s.lookup(nsTextures, 5); ok {
		t.Errorf("texture table survived a context switch")
	}
	s.insert(nsTextures, 9, "global_GLint_ptr_2[0]")
	s.switchContext(2, 1, true)
	if expr, ok := s.lookup(nsTextures, 5); !ok || expr != "global_GLint_ptr_1[0]" {
		t.Errorf("context 1 textures not restored, got %q %v", expr, ok)
	}
	if _, ok := s.lookup(nsTextures, 9); ok {
		t.Errorf("context 2 texture visible in context 1")
	}
}
