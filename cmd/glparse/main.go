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

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/antoniotejada/glparse"
	"github.com/golang/glog"
)

var (
	modeFlag string

	// translate mode
	traceFlag        string
	outFlag          string
	assetsFlag       string
	registryFlag     string
	cacheFlag        string
	contextsFlag     string
	maxFramesFlag    int
	floatThreshold   int
	intThreshold     int
	nullTexturesFlag bool
	shaderAssetsFlag bool
	checkErrorsFlag  bool
	finishFlag       bool

	// deinline mode
	inFlag            string
	deinlineOutFlag   string
	windowSizeFlag    int
	startStrideFlag   int
	sizeStrideFlag    int
	iterationsFlag    int
)

func init() {
	flag.StringVar(&modeFlag, "mode", "", "translate or deinline")

	flag.StringVar(&traceFlag, "trace", "", "trace file to translate (.gltrace or .gltrace.gz)")
	flag.StringVar(&outFlag, "out", "_out", "output directory for the emitted source")
	flag.StringVar(&assetsFlag, "assets", "", "assets directory (default <out>/assets)")
	flag.StringVar(&registryFlag, "registry", "", "Khronos gl.xml for enum name resolution")
	flag.StringVar(&cacheFlag, "cache", "", "registry cache directory")
	flag.StringVar(&contextsFlag, "contexts", "", "comma separated trace contexts to translate")
	flag.IntVar(&maxFramesFlag, "max_frames", 0, "truncate the trace after N frames")
	flag.IntVar(&floatThreshold, "float_asset_threshold", 64, "float counts this big become assets")
	flag.IntVar(&intThreshold, "int_asset_threshold", 1024, "byte payloads this big become assets")
	flag.BoolVar(&nullTexturesFlag, "null_textures", false, "replay all texture uploads with NULL")
	flag.BoolVar(&shaderAssetsFlag, "shader_assets", false, "store shader sources as assets")
	flag.BoolVar(&checkErrorsFlag, "check_errors", false, "log glGetError after every call")
	flag.BoolVar(&finishFlag, "finish", false, "glFinish after every call")

	flag.StringVar(&inFlag, "in", "", "emitted source to deinline")
	flag.StringVar(&deinlineOutFlag, "deinline_out", "", "deinlined output file (default stdout)")
	flag.IntVar(&windowSizeFlag, "window_size", 2, "initial frame window size")
	flag.IntVar(&startStrideFlag, "window_start_stride", 1, "window start advance per iteration")
	flag.IntVar(&sizeStrideFlag, "window_size_stride", 0, "window growth per iteration")
	flag.IntVar(&iterationsFlag, "iterations", 1000, "iteration cap")
}

func parseContexts(s string) ([]int32, error) {
	if s == "" {
		return nil, nil
	}
	var ctxs []int32
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseInt(strings.TrimSpace(part), 0, 32)
		if err != nil {
			return nil, fmt.Errorf("bad context id %q: %v", part, err)
		}
		ctxs = append(ctxs, int32(v))
	}
	return ctxs, nil
}

func translateMain() error {
	if traceFlag == "" {
		return fmt.Errorf("-trace is required")
	}
	contexts, err := parseContexts(contextsFlag)
	if err != nil {
		return err
	}
	assetsDir := assetsFlag
	if assetsDir == "" {
		assetsDir = filepath.Join(outFlag, "assets")
	}
	if err := os.MkdirAll(assetsDir, 0777); err != nil {
		return err
	}

	cfg := glparse.TranslateConfig{
		AssetsDir:           assetsDir,
		Contexts:            contexts,
		MaxFrames:           maxFramesFlag,
		FloatAssetThreshold: floatThreshold,
		IntAssetThreshold:   intThreshold,
		NullTextures:        nullTexturesFlag,
		ShaderAssets:        shaderAssetsFlag,
		CheckErrors:         checkErrorsFlag,
		Finish:              finishFlag,
	}
	if registryFlag != "" {
		reg, err := glparse.LoadRegistry(registryFlag, cacheFlag)
		if err != nil {
			return err
		}
		cfg.Registry = reg
	} else {
		glog.Warningf("no -registry, enums will be emitted as hex literals")
	}

	lines, err := glparse.Translate(traceFlag, cfg)
	if err != nil {
		return err
	}
	out := filepath.Join(outFlag, "trace.inc")
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := glparse.WriteLines(f, lines); err != nil {
		return err
	}
	glog.Infof("wrote %s", out)
	return nil
}

func deinlineMain() error {
	if inFlag == "" {
		return fmt.Errorf("-in is required")
	}
	f, err := os.Open(inFlag)
	if err != nil {
		return err
	}
	defer f.Close()

	cfg := glparse.DeinlineConfig{
		WindowSize:        windowSizeFlag,
		WindowStartStride: startStrideFlag,
		WindowSizeStride:  sizeStrideFlag,
		Iterations:        iterationsFlag,
	}
	lines, err := glparse.Deinline(f, cfg)
	if err != nil {
		return err
	}

	w := os.Stdout
	if deinlineOutFlag != "" {
		out, err := os.Create(deinlineOutFlag)
		if err != nil {
			return err
		}
		defer out.Close()
		w = out
	}
	return glparse.WriteLines(w, lines)
}

func main() {
	flag.Parse()

	var err error
	switch modeFlag {
	case "translate":
		err = translateMain()
	case "deinline":
		err = deinlineMain()
	default:
		fmt.Fprintf(os.Stderr, "usage: glparse -mode=translate|deinline [flags]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if err != nil {
		glog.Errorf("%v", err)
		glog.Flush()
		os.Exit(2)
	}
	glog.Flush()
}
