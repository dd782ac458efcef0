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
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/golang/glog"
)

// Asset kinds; the kind only names the file, the payload is opaque bytes.
const (
	assetInt   = "int"
	assetFloat = "float"
	assetChar  = "char"
)

// assetStore writes large argument payloads to the assets directory and
// hands back the code lines that open them at replay time. Files are
// content-addressed: two allocations with the same MD5 share one file. At
// most one buffer per variable is live at any emitted point; re-allocating
// a live variable emits its close first.
type assetStore struct {
	dir      string
	counters map[string]int
	byDigest map[[md5.Size]byte]string
	live     map[string]string // variable name -> handle name
	declared map[string]bool
}

func newAssetStore(dir string) *assetStore {
	return &assetStore{
		dir:      dir,
		counters: make(map[string]int),
		byDigest: make(map[[md5.Size]byte]string),
		live:     make(map[string]string),
		declared: make(map[string]bool),
	}
}

// allocate writes data (deduplicated by digest) and returns the replay
// instructions that open and map it into varName, plus any global
// declarations the first allocation of varName needs. bufName is the AAsset
// handle variable paired with varName; cType declares varName.
func (a *assetStore) allocate(varName, bufName, cType, kind string, data []byte) (code []instruction, globals []string, err error) {
	digest := md5.Sum(data)
	fileName, ok := a.byDigest[digest]
	if !ok {
		fileName = fmt.Sprintf("%s_asset_%d", kind, a.counters[kind])
		a.counters[kind]++
		if err := os.WriteFile(filepath.Join(a.dir, fileName), data, 0666); err != nil {
			return nil, nil, fmt.Errorf("writing asset %s: %v", fileName, err)
		}
		a.byDigest[digest] = fileName
		glog.V(1).Infof("asset %s: %d bytes", fileName, len(data))
	} else {
		glog.V(1).Infof("asset %s: reused for %s (same digest)", fileName, varName)
	}

	if !a.declared[varName] {
		globals = append(globals,
			fmt.Sprintf("static AAsset *%s = NULL;", bufName),
			fmt.Sprintf("static %s%s = NULL;", cType, varName))
		a.declared[varName] = true
	}
	if _, open := a.live[varName]; open {
		code = append(code, a.freeInstruction(varName, bufName))
	}
	a.live[varName] = bufName
	code = append(code, instruction{
		name: "openAndGetAssetBuffer",
		args: []string{stateVar, fmt.Sprintf("%q", fileName), "&" + bufName, "&" + varName},
	})
	return code, globals, nil
}

func (a *assetStore) freeInstruction(varName, bufName string) instruction {
	delete(a.live, varName)
	return instruction{
		name: "closeAsset",
		args: []string{"&" + bufName, "&" + varName},
	}
}

// closeAll emits the close for every still-live buffer, for the end of the
// trace.
func (a *assetStore) closeAll() []instruction {
	var code []instruction
	for _, varName := range sortedKeys(a.live) {
		code = append(code, a.freeInstruction(varName, a.live[varName]))
	}
	return code
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
