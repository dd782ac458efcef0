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
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const testRegistryXML = `<?xml version="1.0" encoding="UTF-8"?>
<registry>
    <groups>
        <group name="TextureTarget">
            <enum name="GL_TEXTURE_2D"/>
            <enum name="GL_TEXTURE_FOO_NV"/>
            <enum name="GL_TEXTURE_FOO"/>
        </group>
        <group name="AccumOp">
            <enum name="GL_ACCUM"/>
        </group>
    </groups>
    <enums namespace="GL">
        <enum value="0x0DE1" name="GL_TEXTURE_2D" group="TextureTarget"/>
        <enum value="0x9001" name="GL_TEXTURE_FOO_NV" group="TextureTarget"/>
        <enum value="0x9001" name="GL_TEXTURE_FOO" group="TextureTarget"/>
        <enum value="0x0100" name="GL_ACCUM" group="AccumOp"/>
        <enum value="0x1E01" name="GL_REPLACE"/>
        <enum value="0x1E01" name="GL_REPLACE_QCOM"/>
        <enum value="0x8CA6" name="GL_DRAW_FRAMEBUFFER_BINDING"/>
    </enums>
    <commands namespace="GL">
        <command>
            <proto>void <name>glBindTexture</name></proto>
            <param group="TextureTarget"><ptype>GLenum</ptype> <name>target</name></param>
            <param group="Texture"><ptype>GLuint</ptype> <name>texture</name></param>
        </command>
        <command>
            <proto>void <name>glAccum</name></proto>
            <param group="AccumOp"><ptype>GLenum</ptype> <name>op</name></param>
        </command>
    </commands>
    <feature api="gles2" number="2.0" name="GL_ES_VERSION_2_0">
        <require>
            <command name="glBindTexture"/>
        </require>
    </feature>
    <feature api="gl" number="1.0" name="GL_VERSION_1_0">
        <require>
            <command name="glAccum"/>
        </require>
    </feature>
</registry>
`

func TestParseRegistry(t *testing.T) {
	reg, err := parseRegistry([]byte(testRegistryXML))
	if err != nil {
		t.Fatal(err)
	}

	wantParams := map[int]string{0: "TextureTarget", 1: "Texture"}
	if !reflect.DeepEqual(reg.ParamGroups["glBindTexture"], wantParams) {
		t.Errorf("glBindTexture param groups %v, want %v", reg.ParamGroups["glBindTexture"], wantParams)
	}
	// glAccum belongs to a desktop-only feature.
	if _, ok := reg.ParamGroups["glAccum"]; ok {
		t.Errorf("glAccum leaked from a non-gles2 feature")
	}
	if _, ok := reg.Groups["AccumOp"]; ok {
		t.Errorf("AccumOp group materialized without a gles2 consumer")
	}

	if got := reg.Groups["TextureTarget"][0x0de1]; got != "GL_TEXTURE_2D" {
		t.Errorf("TextureTarget[0x0de1]=%q", got)
	}
	// Vendor-suffixed names never displace plain ones.
	if got := reg.Groups["TextureTarget"][0x9001]; got != "GL_TEXTURE_FOO" {
		t.Errorf("TextureTarget[0x9001]=%q, want GL_TEXTURE_FOO", got)
	}
	if got := reg.Global[0x1e01]; got != "GL_REPLACE" {
		t.Errorf("Global[0x1e01]=%q, want GL_REPLACE", got)
	}

	// Manual overrides.
	if got := reg.Global[0]; got != "GL_ZERO" {
		t.Errorf("Global[0]=%q", got)
	}
	if got := reg.Global[1]; got != "GL_ONE" {
		t.Errorf("Global[1]=%q", got)
	}
	if got := reg.Global[glFramebufferBindingID]; got != "GL_FRAMEBUFFER_BINDING" {
		t.Errorf("Global[0x8ca6]=%q", got)
	}

	if name, ok := reg.resolveEnum("glBindTexture", 0, 0x0de1); !ok || name != "GL_TEXTURE_2D" {
		t.Errorf("resolveEnum group hit=%q %v", name, ok)
	}
	// Group miss falls back to the global table.
	if name, ok := reg.resolveEnum("glBindTexture", 0, 0x1e01); !ok || name != "GL_REPLACE" {
		t.Errorf("resolveEnum global fallback=%q %v", name, ok)
	}
	if _, ok := reg.resolveEnum("glBindTexture", 0, 0xdead); ok {
		t.Errorf("resolveEnum hit for an unknown value")
	}
}

func TestLoadRegistryCache(t *testing.T) {
	dir := t.TempDir()
	xmlPath := filepath.Join(dir, "gl.xml")
	if err := os.WriteFile(xmlPath, []byte(testRegistryXML), 0666); err != nil {
		t.Fatal(err)
	}

	first, err := LoadRegistry(xmlPath, dir)
	if err != nil {
		t.Fatal(err)
	}
	caches, err := filepath.Glob(filepath.Join(dir, "registry-*.gob"))
	if err != nil || len(caches) != 1 {
		t.Fatalf("cache files %v (%v), want one", caches, err)
	}

	second, err := LoadRegistry(xmlPath, dir)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached registry differs from parsed registry")
	}

	// A corrupt cache is ignored, not fatal.
	if err := os.WriteFile(caches[0], []byte("not a gob"), 0666); err != nil {
		t.Fatal(err)
	}
	third, err := LoadRegistry(xmlPath, dir)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, third) {
		t.Errorf("reparse after corrupt cache differs")
	}
}
