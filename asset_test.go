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
	"os"
	"reflect"
	"testing"
)

func TestAssetDedup(t *testing.T) {
	dir := t.TempDir()
	a := newAssetStore(dir)
	payload := bytes.Repeat([]byte{0xab}, 4096)

	code1, globals1, err := a.allocate("global_unsigned_int_ptr_1", "global_AAsset_ptr_2", "unsigned int *", assetInt, payload)
	if err != nil {
		t.Fatal(err)
	}
	code2, globals2, err := a.allocate("global_unsigned_int_ptr_3", "global_AAsset_ptr_4", "unsigned int *", assetInt, payload)
	if err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "int_asset_0" {
		t.Fatalf("assets on disk: %v, want one int_asset_0", entries)
	}
	// Both allocations reference the shared file.
	for _, code := range [][]instruction{code1, code2} {
		if len(code) != 1 || code[0].name != "openAndGetAssetBuffer" || code[0].args[1] != `"int_asset_0"` {
			t.Errorf("open instruction %+v", code)
		}
	}
	if len(globals1) != 2 || len(globals2) != 2 {
		t.Errorf("global declarations %q / %q, want 2 each", globals1, globals2)
	}
}

func TestAssetReuseEmitsClose(t *testing.T) {
	dir := t.TempDir()
	a := newAssetStore(dir)

	if _, _, err := a.allocate("global_unsigned_int_ptr_1", "global_AAsset_ptr_2", "unsigned int *", assetInt, []byte{1}); err != nil {
		t.Fatal(err)
	}
	code, globals, err := a.allocate("global_unsigned_int_ptr_1", "global_AAsset_ptr_2", "unsigned int *", assetInt, []byte{2})
	if err != nil {
		t.Fatal(err)
	}
	if globals != nil {
		t.Errorf("redeclared globals on reuse: %q", globals)
	}
	wantNames := []string{"closeAsset", "openAndGetAssetBuffer"}
	var names []string
	for _, in := range code {
		names = append(names, in.name)
	}
	if !reflect.DeepEqual(names, wantNames) {
		t.Errorf("reuse instructions %q, want %q", names, wantNames)
	}
	if got := code[1].args[1]; got != `"int_asset_1"` {
		t.Errorf("second payload file %q, want int_asset_1", got)
	}
}

func TestAssetCloseAll(t *testing.T) {
	dir := t.TempDir()
	a := newAssetStore(dir)
	if _, _, err := a.allocate("global_float_ptr_1", "global_AAsset_ptr_2", "float *", assetFloat, []byte{1}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := a.allocate("global_GLchar_ptr_3", "global_AAsset_ptr_4", "GLchar *", assetChar, []byte{2}); err != nil {
		t.Fatal(err)
	}
	code := a.closeAll()
	if len(code) != 2 {
		t.Fatalf("closeAll emitted %d instructions, want 2", len(code))
	}
	for _, in := range code {
		if in.name != "closeAsset" {
			t.Errorf("closeAll instruction %+v", in)
		}
	}
	if again := a.closeAll(); len(again) != 0 {
		t.Errorf("second closeAll not empty: %+v", again)
	}
}

func TestAssetKindCounters(t *testing.T) {
	dir := t.TempDir()
	a := newAssetStore(dir)
	for i, tc := range []struct {
		kind string
		want string
	}{
		{kind: assetInt, want: "int_asset_0"},
		{kind: assetFloat, want: "float_asset_0"},
		{kind: assetInt, want: "int_asset_1"},
		{kind: assetChar, want: "char_asset_0"},
	} {
		varName := "global_unsigned_int_ptr_" + string(rune('0'+i))
		bufName := "global_AAsset_ptr_" + string(rune('0'+i))
		code, _, err := a.allocate(varName, bufName, "unsigned int *", tc.kind, []byte{byte(i)})
		if err != nil {
			t.Fatal(err)
		}
		if got := code[len(code)-1].args[1]; got != `"`+tc.want+`"` {
			t.Errorf("allocation %d file %s, want %q", i, got, tc.want)
		}
	}
}
