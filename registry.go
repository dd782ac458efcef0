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
	"crypto/sha1"
	"encoding/gob"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/golang/glog"
)

// Registry is the enumerant name machinery built from the Khronos API
// description: per-group value-to-name tables, the groupless global table
// used as fall-back for any ENUM-typed argument, and the group each command
// parameter declares.
type Registry struct {
	Groups      map[string]map[uint32]string
	Global      map[uint32]string
	ParamGroups map[string]map[int]string
}

// The feature profile the command set is restricted to.
const (
	registryAPI     = "gles2"
	registryVersion = "2.0"
)

// Vendor/extension suffixes. A name carrying one of these never displaces a
// suffix-free name for the same value, since the extension define may not
// exist in the target's headers.
var vendorSuffixRE = regexp.MustCompile(`_NV$|_ATI$|_3DFX$|_SGIS$|_INTEL$|_IMG$|_QCOM$`)

// Groups whose parameters carry immediate values rather than enumerants.
var nonEnumGroups = map[string]bool{
	"ColorF":         true,
	"CheckedInt32":   true,
	"CheckedFloat32": true,
}

type xmlRegistry struct {
	Groups   []xmlGroup   `xml:"groups>group"`
	Enums    []xmlEnums   `xml:"enums"`
	Commands []xmlCommand `xml:"commands>command"`
	Features []xmlFeature `xml:"feature"`
}

type xmlGroup struct {
	Name  string       `xml:"name,attr"`
	Enums []xmlRefName `xml:"enum"`
}

type xmlRefName struct {
	Name string `xml:"name,attr"`
}

type xmlEnums struct {
	Enums []xmlEnum `xml:"enum"`
}

type xmlEnum struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
	Group string `xml:"group,attr"`
}

type xmlCommand struct {
	Proto  xmlProto   `xml:"proto"`
	Params []xmlParam `xml:"param"`
}

type xmlProto struct {
	Name string `xml:"name"`
}

type xmlParam struct {
	Group string `xml:"group,attr"`
	Name  string `xml:"name"`
}

type xmlFeature struct {
	API      string       `xml:"api,attr"`
	Number   string       `xml:"number,attr"`
	Commands []xmlRefName `xml:"require>command"`
}

// LoadRegistry parses the API description at path. The parse is slow, so
// the result is memoized in cacheDir keyed by the document's digest; cache
// trouble is only worth a warning.
func LoadRegistry(path, cacheDir string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cachePath := ""
	if cacheDir != "" {
		cachePath = filepath.Join(cacheDir, fmt.Sprintf("registry-%x.gob", sha1.Sum(data)))
		if reg := loadRegistryCache(cachePath); reg != nil {
			return reg, nil
		}
	}
	reg, err := parseRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	if cachePath != "" {
		saveRegistryCache(cachePath, reg)
	}
	return reg, nil
}

func loadRegistryCache(path string) *Registry {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var reg Registry
	if err := gob.NewDecoder(f).Decode(&reg); err != nil {
		glog.Warningf("ignoring bad registry cache %s: %v", path, err)
		return nil
	}
	glog.V(1).Infof("registry cache hit %s", path)
	return &reg
}

func saveRegistryCache(path string, reg *Registry) {
	f, err := os.Create(path)
	if err != nil {
		glog.Warningf("cannot write registry cache %s: %v", path, err)
		return
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(reg); err != nil {
		glog.Warningf("cannot write registry cache %s: %v", path, err)
	}
}

func parseRegistry(data []byte) (*Registry, error) {
	var doc xmlRegistry
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	// Index the flat enum and command lists.
	enumValues := make(map[string]uint32)
	var globalEnums []xmlEnum
	for _, block := range doc.Enums {
		for _, e := range block.Enums {
			v, err := parseEnumValue(e.Value)
			if err != nil {
				glog.V(1).Infof("skipping enum %s: %v", e.Name, err)
				continue
			}
			enumValues[e.Name] = v
			if e.Group == "" {
				globalEnums = append(globalEnums, e)
			}
		}
	}
	groups := make(map[string][]xmlRefName)
	for _, g := range doc.Groups {
		groups[g.Name] = g.Enums
	}
	commands := make(map[string][]xmlParam)
	for _, c := range doc.Commands {
		commands[c.Proto.Name] = c.Params
	}

	reg := &Registry{
		Groups:      make(map[string]map[uint32]string),
		Global:      make(map[uint32]string),
		ParamGroups: make(map[string]map[int]string),
	}

	// Walk the required command set of the feature profile, recording each
	// parameter's group and materializing the group tables.
	for _, feature := range doc.Features {
		if feature.API != registryAPI || feature.Number != registryVersion {
			continue
		}
		for _, req := range feature.Commands {
			params, ok := commands[req.Name]
			if !ok {
				continue
			}
			for i, p := range params {
				if p.Group == "" || nonEnumGroups[p.Group] {
					continue
				}
				pg := reg.ParamGroups[req.Name]
				if pg == nil {
					pg = make(map[int]string)
					reg.ParamGroups[req.Name] = pg
				}
				if _, claimed := pg[i]; !claimed {
					pg[i] = p.Group
				}
				if _, done := reg.Groups[p.Group]; done {
					continue
				}
				members, ok := groups[p.Group]
				if !ok {
					// Some groups (TextureUnit) only resolve through
					// the global table.
					continue
				}
				table := make(map[uint32]string)
				reg.Groups[p.Group] = table
				for _, m := range members {
					v, ok := enumValues[m.Name]
					if !ok {
						continue
					}
					insertIfBetter(table, v, m.Name)
				}
			}
		}
	}

	// Enums belonging to no group land in the global table, the fall-back
	// for any untranslated ENUM argument.
	for _, e := range globalEnums {
		insertIfBetter(reg.Global, enumValues[e.Name], e.Name)
	}

	applyOverrides(reg)
	glog.Infof("registry: %d groups, %d global enums, %d commands",
		len(reg.Groups), len(reg.Global), len(reg.ParamGroups))
	return reg, nil
}

// insertIfBetter inserts value->name unless a non-vendor name is already
// present.
func insertIfBetter(table map[uint32]string, value uint32, name string) {
	if prev, ok := table[value]; ok && !vendorSuffixRE.MatchString(prev) {
		return
	}
	table[value] = name
}

// applyOverrides patches known conflicts in the description that produce
// defines the gles2 headers don't have.
func applyOverrides(reg *Registry) {
	if t, ok := reg.Groups["GetPName"]; ok {
		// GL_BLEND_EQUATION_EXT; the global table has GL_BLEND_EQUATION.
		delete(t, 0x8009)
	}
	// GL_DRAW_FRAMEBUFFER_BINDING is not gles2, GL_FRAMEBUFFER_BINDING is.
	reg.Global[glFramebufferBindingID] = "GL_FRAMEBUFFER_BINDING"
	// Low values collide across groups (GL_CURRENT_BIT vs GL_ONE etc).
	reg.Global[0] = "GL_ZERO"
	reg.Global[1] = "GL_ONE"
	// The group names everything with the EXT suffix the headers lack.
	delete(reg.Groups, "BlendEquationModeEXT")
}

func parseEnumValue(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		// A few enums are negative or 64 bit wide; they never appear in
		// gles2 traces.
		return 0, fmt.Errorf("unusable enum value %q", s)
	}
	return uint32(v), nil
}

// resolveEnum translates an ENUM-typed integer: first in the group the
// function parameter declares, then in the global table.
func (r *Registry) resolveEnum(function string, argIndex int, value uint32) (string, bool) {
	if r == nil {
		return "", false
	}
	if group, ok := r.ParamGroups[function][argIndex]; ok {
		if name, ok := r.Groups[group][value]; ok {
			return name, true
		}
	}
	name, ok := r.Global[value]
	return name, ok
}

// groupFor returns the group declared for a function parameter, if any.
func (r *Registry) groupFor(function string, argIndex int) (string, bool) {
	if r == nil {
		return "", false
	}
	g, ok := r.ParamGroups[function][argIndex]
	return g, ok
}
