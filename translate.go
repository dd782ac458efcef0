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
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

// The replay runtime owns one DrawState; every overridden call threads this
// pointer.
const stateVar = "global_DrawState_ptr_0"

// TranslateConfig configures a trace translation.
type TranslateConfig struct {
	// AssetsDir receives the payloads too large to inline.
	AssetsDir string
	// Registry resolves enum names; nil emits hex literals throughout.
	Registry *Registry
	// Contexts restricts translation to the listed trace contexts; empty
	// translates everything.
	Contexts []int32
	// MaxFrames truncates the trace; 0 means all frames.
	MaxFrames int
	// FloatAssetThreshold and IntAssetThreshold are the element and byte
	// counts at or above which payloads move to the assets directory.
	FloatAssetThreshold int
	IntAssetThreshold   int
	// NullTextures forces NULL texture uploads even when the payload is
	// present.
	NullTextures bool
	// ShaderAssets stores shader sources as assets instead of string
	// literals.
	ShaderAssets bool
	// CheckErrors logs glGetError after every call; Finish serializes the
	// pipeline after every call.
	CheckErrors bool
	Finish      bool
}

// DefaultTranslateConfig returns the thresholds that keep emitted sources
// compilable without moving every small payload out of line.
func DefaultTranslateConfig() TranslateConfig {
	return TranslateConfig{
		FloatAssetThreshold: 64,
		IntAssetThreshold:   1024,
	}
}

// shadowState replicates the bind/viewport/scissor state the translator
// needs to rewrite target-sensitive calls.
type shadowState struct {
	framebuffer int32
	viewport    [4]int32
	maxViewport [4]int32
	scissor     [4]int32
	maxScissor  [4]int32
}

func (s *shadowState) setViewport(r [4]int32) {
	s.viewport = r
	growRect(&s.maxViewport, r)
}

func (s *shadowState) setScissor(r [4]int32) {
	s.scissor = r
	growRect(&s.maxScissor, r)
}

func growRect(max *[4]int32, r [4]int32) {
	for i, v := range r {
		if v > max[i] {
			max[i] = v
		}
	}
}

// restore re-issues the current viewport and scissor, scaled when drawing
// to the window surface.
func (s *shadowState) restore(scaled bool) []instruction {
	viewport, scissor := "glViewport", "glScissor"
	var prefix []string
	if scaled {
		viewport, scissor = "glViewportScaled", "glScissorScaled"
		prefix = []string{stateVar}
	}
	return []instruction{
		{name: viewport, args: append(append([]string(nil), prefix...), rectArgs(s.viewport)...)},
		{name: scissor, args: append(append([]string(nil), prefix...), rectArgs(s.scissor)...)},
	}
}

func rectArgs(r [4]int32) []string {
	args := make([]string, 4)
	for i, v := range r {
		args[i] = strconv.Itoa(int(v))
	}
	return args
}

type lookupSpec struct {
	table    string
	scope    int
	hasScope bool
}

type insertSpec struct {
	table    string
	scope    int
	hasScope bool
}

// Arguments that name runtime objects and resolve through the symbol
// tables. Registry-declared enum groups cover everything not listed here.
var objectLookups = map[string]map[int]lookupSpec{
	"glActiveTexture":              {1: {table: nsTextures}},
	"glAttachShader":               {0: {table: nsPrograms}, 1: {table: nsShaders}},
	"glBindAttribLocation":         {0: {table: nsPrograms}},
	"glBindBuffer":                 {1: {table: nsBuffers}},
	"glBindFramebuffer":            {1: {table: nsFramebuffers}},
	"glBindRenderbuffer":           {1: {table: nsRenderbufs}},
	"glBindTexture":                {1: {table: nsTextures}},
	"glCompileShader":              {0: {table: nsShaders}},
	"glDeleteProgram":              {0: {table: nsPrograms}},
	"glDeleteShader":               {0: {table: nsShaders}},
	"glDetachShader":               {0: {table: nsPrograms}, 1: {table: nsShaders}},
	"glEGLImageTargetTexture2DOES": {1: {table: nsTextures}},
	"glFramebufferRenderbuffer":    {3: {table: nsRenderbufs}},
	"glFramebufferTexture2D":       {3: {table: nsTextures}},
	"glGetActiveAttrib":            {0: {table: nsPrograms}, 1: {table: nsAttribs, scope: 0, hasScope: true}},
	"glGetAttachedShaders":         {0: {table: nsPrograms}},
	"glGetAttribLocation":          {0: {table: nsPrograms}},
	"glGetProgramiv":               {0: {table: nsPrograms}},
	"glGetProgramInfoLog":          {0: {table: nsPrograms}},
	"glGetShaderiv":                {0: {table: nsShaders}},
	"glGetShaderInfoLog":           {0: {table: nsShaders}},
	"glGetShaderSource":            {0: {table: nsShaders}},
	"glGetUniformfv":               {0: {table: nsPrograms}},
	"glGetUniformiv":               {0: {table: nsPrograms}},
	"glGetUniformLocation":         {0: {table: nsPrograms}},
	"glIsBuffer":                   {0: {table: nsBuffers}},
	"glIsFramebuffer":              {0: {table: nsFramebuffers}},
	"glIsProgram":                  {0: {table: nsPrograms}},
	"glIsShader":                   {0: {table: nsShaders}},
	"glIsTexture":                  {0: {table: nsTextures}},
	"glLinkProgram":                {0: {table: nsPrograms}},
	"glShaderSource":               {0: {table: nsShaders}},
	"glUseProgram":                 {0: {table: nsPrograms}},
	"glValidateProgram":            {0: {table: nsPrograms}},
}

func init() {
	for _, name := range []string{
		"glUniform1f", "glUniform1fv", "glUniform1i", "glUniform1iv",
		"glUniform2f", "glUniform2fv", "glUniform2i", "glUniform2iv",
		"glUniform3f", "glUniform3fv", "glUniform3i", "glUniform3iv",
		"glUniform4f", "glUniform4fv", "glUniform4i", "glUniform4iv",
		"glUniformMatrix2fv", "glUniformMatrix3fv", "glUniformMatrix4fv",
	} {
		objectLookups[name] = map[int]lookupSpec{0: {table: nsCurUniforms}}
	}
}

// Calls whose results wire new identifiers into the symbol tables: the gen
// family inserts per array element, the create/locate family inserts the
// return value, optionally scoped by the program argument.
var objectInsertions = map[string]map[int]insertSpec{
	"glCreateShader":       {-1: {table: nsShaders}},
	"glCreateProgram":      {-1: {table: nsPrograms}},
	"glGenBuffers":         {1: {table: nsBuffers}},
	"glGenFramebuffers":    {1: {table: nsFramebuffers}},
	"glGenRenderbuffers":   {1: {table: nsRenderbufs}},
	"glGenTextures":        {1: {table: nsTextures}},
	"glGetUniformLocation": {-1: {table: nsUniforms, scope: 0, hasScope: true}},
	"glGetAttribLocation":  {-1: {table: nsAttribs, scope: 0, hasScope: true}},
}

type attribSlot struct {
	varName string
	bufName string
}

type translator struct {
	cfg    TranslateConfig
	syms   *symTabs
	assets *assetStore
	shadow shadowState

	globals     []string
	frames      [][]instruction
	frameLocals [][]string
	cur         []instruction
	curLocals   []string

	varID       int
	attribSlots map[int32]attribSlot
	curContext  int64
	hasContext  bool
	stopped     bool
	warnings    int
}

func newTranslator(cfg TranslateConfig) *translator {
	t := &translator{
		cfg:         cfg,
		syms:        newSymTabs(),
		assets:      newAssetStore(cfg.AssetsDir),
		attribSlots: make(map[int32]attribSlot),
		varID:       1,
		globals: []string{
			"extern DrawState replay_draw_state;",
			"static DrawState *" + stateVar + " = &replay_draw_state;",
		},
	}
	return t
}

func (t *translator) warnf(format string, args ...interface{}) {
	t.warnings++
	glog.Warningf(format, args...)
}

func (t *translator) nextID() int {
	id := t.varID
	t.varID++
	return id
}

func (t *translator) emit(in instruction) {
	t.cur = append(t.cur, in)
}

func (t *translator) endFrame() {
	t.frames = append(t.frames, t.cur)
	t.frameLocals = append(t.frameLocals, t.curLocals)
	t.cur = nil
	t.curLocals = nil
}

func (t *translator) contextAllowed(ctx int32) bool {
	if len(t.cfg.Contexts) == 0 {
		return true
	}
	for _, c := range t.cfg.Contexts {
		if c == ctx {
			return true
		}
	}
	return false
}

func (t *translator) translateRecord(rec *Record) error {
	name := rec.Function
	if strings.HasPrefix(name, "unknown_") {
		t.warnf("skipping record with unknown opcode %d", rec.Op)
		return nil
	}
	if !t.contextAllowed(rec.ContextID) {
		glog.V(2).Infof("skipping %s from filtered context %d", name, rec.ContextID)
		return nil
	}

	switch name {
	case "eglSwapBuffers":
		t.endFrame()
		if t.cfg.MaxFrames > 0 && len(t.frames) >= t.cfg.MaxFrames {
			glog.Infof("frame limit %d reached, truncating trace", t.cfg.MaxFrames)
			t.stopped = true
		}
		return nil
	case "eglCreateContext":
		return t.createContext(rec)
	case "eglMakeCurrent":
		return t.makeCurrent(rec)
	case "glUseProgram":
		if len(rec.Args) > 0 && len(rec.Args[0].IntValue) > 0 {
			t.syms.swapActiveUniforms(int64(rec.Args[0].IntValue[0]))
		}
	}

	if droppedFunctions[name] {
		t.warnf("dropping %s, not replayable", name)
		return nil
	}
	if strings.HasPrefix(name, "glVertexAttrib") && strings.HasSuffix(name, "fv") &&
		name != "glVertexAttribPointerData" &&
		len(rec.Args) > 1 && !rec.Args[1].IsArray {
		t.warnf("dropping %s without array payload", name)
		return nil
	}

	c := &recordCtx{rec: rec, name: name}
	if fix := fixups[name]; fix != nil {
		if err := fix(t, c); err != nil {
			return err
		}
	}

	args := append([]string(nil), c.prefixArgs...)
	for i, arg := range rec.Args {
		if c.dropArgs[i] {
			continue
		}
		token, err := t.translateArg(c, i, arg)
		if err != nil {
			return err
		}
		args = append(args, token)
		if ins, ok := objectInsertions[name][i]; ok {
			if err := t.insertFromArg(c, ins, arg); err != nil {
				return err
			}
		}
	}

	callName := c.name
	if ins, ok := objectInsertions[name][-1]; ok && rec.Return != nil {
		varName, err := t.insertFromReturn(c, ins)
		if err != nil {
			return err
		}
		callName = varName + " = " + callName
	}

	for _, in := range c.pre {
		t.emit(in)
	}
	t.emit(instruction{name: callName, args: args})
	for _, in := range c.post {
		t.emit(in)
	}
	if t.cfg.CheckErrors {
		t.emit(instruction{name: "logGlError", args: []string{fmt.Sprintf("%q", c.name)}})
	}
	if t.cfg.Finish {
		t.emit(instruction{name: "glFinish", args: []string{sentinelVoid}})
	}
	return nil
}

// createContext threads the runtime state pointer; the capture stores the
// new context id in argument 1, not in the return value.
func (t *translator) createContext(rec *Record) error {
	if len(rec.Args) < 2 || len(rec.Args[1].IntValue) == 0 {
		return fmt.Errorf("eglCreateContext without a context argument: %s", rec)
	}
	id := int64(rec.Args[1].IntValue[0])
	varName := fmt.Sprintf("global_EGLContext_%d", t.nextID())
	t.globals = append(t.globals, fmt.Sprintf("static EGLContext %s;", varName))
	t.syms.insert(nsContexts, id, varName)
	t.emit(instruction{name: "eglCreateContextOverride", args: []string{stateVar, "&" + varName}})
	return nil
}

func (t *translator) makeCurrent(rec *Record) error {
	if len(rec.Args) == 0 || len(rec.Args[0].IntValue) == 0 {
		return fmt.Errorf("eglMakeCurrent without a context argument: %s", rec)
	}
	next := int64(rec.Args[0].IntValue[0])
	if t.hasContext && next != t.curContext {
		t.syms.switchContext(t.curContext, next, true)
	}
	t.curContext = next
	t.hasContext = true

	token, ok := t.syms.lookup(nsContexts, next)
	if !ok {
		token = fmt.Sprintf("0x%x", uint64(next))
		if next != 0 {
			t.warnf("eglMakeCurrent of context 0x%x never created, emitting the literal", next)
		}
	}
	t.emit(instruction{name: "eglMakeCurrentOverride", args: []string{stateVar, token}})
	return nil
}

func (t *translator) insertFromArg(c *recordCtx, ins insertSpec, arg *Argument) error {
	if c.lastVar == "" {
		return fmt.Errorf("%s: insertion without an allocated variable: %s", c.name, c.rec)
	}
	ns := ins.table
	if ins.hasScope {
		ns = scopedNS(ins.table, int64(c.rec.Args[ins.scope].IntValue[0]))
	}
	for i, v := range arg.IntValue {
		t.syms.insert(ns, int64(v), fmt.Sprintf("%s[%d]", c.lastVar, i))
	}
	return nil
}

func (t *translator) insertFromReturn(c *recordCtx, ins insertSpec) (string, error) {
	ret := c.rec.Return
	if len(ret.IntValue) == 0 {
		return "", fmt.Errorf("%s: return insertion without an int return: %s", c.name, c.rec)
	}
	ns := ins.table
	if ins.hasScope {
		if ins.scope >= len(c.rec.Args) || len(c.rec.Args[ins.scope].IntValue) == 0 {
			return "", fmt.Errorf("%s: missing scope argument %d: %s", c.name, ins.scope, c.rec)
		}
		ns = scopedNS(ins.table, int64(c.rec.Args[ins.scope].IntValue[0]))
	}
	varName := fmt.Sprintf("global_unsigned_int_%d", t.nextID())
	t.globals = append(t.globals, fmt.Sprintf("static unsigned int %s;", varName))
	t.syms.insert(ns, int64(ret.IntValue[0]), varName)
	return varName, nil
}

// translateArg turns one argument into its emitted token, possibly
// allocating locals, globals or assets on the way. The decision order
// matters: payload kinds are checked from most to least specific.
func (t *translator) translateArg(c *recordCtx, argIndex int, arg *Argument) (string, error) {
	switch {
	case len(arg.FloatValue) > 0 && arg.IsArray:
		return t.floatArrayArg(c, arg)
	case len(arg.RawBytes) > 0 && arg.IsArray:
		return t.rawBytesArg(c, arg)
	case arg.IsArray && (len(arg.IntValue) > 0 || len(arg.Int64Value) > 0 ||
		len(arg.BoolValue) > 0 || len(arg.CharValue) > 0 || arg.Type == TypeVoid):
		return t.outArrayArg(c, arg)
	case arg.IsArray:
		return "", fmt.Errorf("%s: unhandled array argument %d: %s", c.name, argIndex, c.rec)
	case len(arg.CharValue) > 0:
		return t.charPointerArg(c, arg)
	case len(arg.Int64Value) > 0:
		if expr, ok := t.resolveValue(c, argIndex, int64(arg.Int64Value[0]), arg.Type); ok {
			return expr, nil
		}
		return fmt.Sprintf("(void *) 0x%x", uint64(arg.Int64Value[0])), nil
	case len(arg.IntValue) > 0:
		return t.scalarIntArg(c, argIndex, arg)
	case len(arg.FloatValue) > 0:
		return formatFloat(arg.FloatValue[0]), nil
	case len(arg.BoolValue) > 0:
		if expr, ok := t.resolveValue(c, argIndex, boolInt(arg.BoolValue[0]), arg.Type); ok {
			return expr, nil
		}
		if arg.BoolValue[0] {
			return "GL_TRUE", nil
		}
		return "GL_FALSE", nil
	}
	return "", fmt.Errorf("%s: unhandled argument %d: %s", c.name, argIndex, c.rec)
}

func (t *translator) floatArrayArg(c *recordCtx, arg *Argument) (string, error) {
	if len(arg.FloatValue) >= t.cfg.FloatAssetThreshold {
		data := make([]byte, 4*len(arg.FloatValue))
		for i, f := range arg.FloatValue {
			binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(f))
		}
		return t.assetArg(c, assetFloat, "float *", "global_float_ptr", data)
	}
	vals := make([]string, len(arg.FloatValue))
	for i, f := range arg.FloatValue {
		vals[i] = formatFloat(f)
	}
	name := fmt.Sprintf("local_float_ptr_%d", t.nextID())
	t.curLocals = append(t.curLocals,
		fmt.Sprintf("static float %s[] = { %s };", name, strings.Join(vals, ", ")))
	c.lastVar = name
	return name, nil
}

func (t *translator) rawBytesArg(c *recordCtx, arg *Argument) (string, error) {
	if len(arg.RawBytes) >= t.cfg.IntAssetThreshold {
		if c.hasAttrib {
			// One asset slot per vertex attribute; reallocation emits the
			// close/open pair.
			slot, ok := t.attribSlots[c.attribIndex]
			if !ok {
				slot = attribSlot{
					varName: fmt.Sprintf("global_unsigned_int_ptr_%d", t.nextID()),
					bufName: fmt.Sprintf("global_AAsset_ptr_%d", t.nextID()),
				}
				t.attribSlots[c.attribIndex] = slot
			}
			return t.assetSlotArg(c, slot.varName, slot.bufName, "unsigned int *", assetInt, arg.RawBytes)
		}
		return t.assetArg(c, assetInt, "unsigned int *", "global_unsigned_int_ptr", arg.RawBytes)
	}
	dwords := bytesToDwords(arg.RawBytes)
	vals := make([]string, len(dwords))
	for i, d := range dwords {
		vals[i] = fmt.Sprintf("0x%x", d)
	}
	name := fmt.Sprintf("local_unsigned_int_ptr_%d", t.nextID())
	t.curLocals = append(t.curLocals,
		fmt.Sprintf("static unsigned int %s[] = { %s };", name, strings.Join(vals, ", ")))
	c.lastVar = name
	return name, nil
}

// outArrayArg realizes in-array and return-by-pointer arguments: index
// buffers become persistent globals of the right element width, void
// pointer out-params a one-slot local, everything else a buffer of the
// payload's size.
func (t *translator) outArrayArg(c *recordCtx, arg *Argument) (string, error) {
	switch {
	case c.elemCType != "" && len(arg.IntValue) > 0:
		width := elemWidth(c.elemCType)
		if width*len(arg.IntValue) >= t.cfg.IntAssetThreshold {
			data := packIndexData(arg.IntValue, width)
			return t.assetArg(c, assetInt, c.elemCType+" *", "global_"+c.elemCType+"_ptr", data)
		}
		vals := make([]string, len(arg.IntValue))
		for i, v := range arg.IntValue {
			vals[i] = strconv.Itoa(int(v))
		}
		name := fmt.Sprintf("global_%s_ptr_%d", c.elemCType, t.nextID())
		t.globals = append(t.globals, fmt.Sprintf("static %s %s[%d] = { %s };",
			c.elemCType, name, len(arg.IntValue), strings.Join(vals, ", ")))
		c.lastVar = name
		return name, nil

	case arg.Type == TypeVoid:
		name := fmt.Sprintf("local_GLvoid_ptr_ptr_%d", t.nextID())
		t.curLocals = append(t.curLocals, fmt.Sprintf("static GLvoid *%s[1] = { 0 };", name))
		c.lastVar = name
		return name, nil

	case len(arg.BoolValue) > 0:
		name := fmt.Sprintf("local_GLboolean_ptr_%d", t.nextID())
		t.curLocals = append(t.curLocals,
			fmt.Sprintf("static GLboolean %s[%d] = { 0 };", name, len(arg.BoolValue)))
		c.lastVar = name
		return name, nil

	case len(arg.CharValue) > 0:
		name := fmt.Sprintf("local_GLchar_ptr_%d", t.nextID())
		t.curLocals = append(t.curLocals,
			fmt.Sprintf("static GLchar %s[] = %s;", name, cStringLiteral(arg.CharValue[0])))
		c.lastVar = name
		return name, nil

	case len(arg.Int64Value) > 0:
		vals := make([]string, len(arg.Int64Value))
		for i, v := range arg.Int64Value {
			vals[i] = strconv.FormatInt(v, 10)
		}
		name := fmt.Sprintf("global_GLint64_ptr_%d", t.nextID())
		t.globals = append(t.globals, fmt.Sprintf("static GLint64 %s[%d] = { %s };",
			name, len(arg.Int64Value), strings.Join(vals, ", ")))
		c.lastVar = name
		return name, nil

	default:
		vals := make([]string, len(arg.IntValue))
		for i, v := range arg.IntValue {
			vals[i] = strconv.Itoa(int(v))
		}
		if len(vals) == 0 {
			vals = []string{"0"}
		}
		name := fmt.Sprintf("global_GLint_ptr_%d", t.nextID())
		t.globals = append(t.globals, fmt.Sprintf("static GLint %s[%d] = { %s };",
			name, len(vals), strings.Join(vals, ", ")))
		c.lastVar = name
		return name, nil
	}
}

// charPointerArg handles the glShaderSource shape: the call takes a pointer
// to pointer to char, so the token is either a one-element array of string
// literal or the address of an asset-backed buffer.
func (t *translator) charPointerArg(c *recordCtx, arg *Argument) (string, error) {
	if t.cfg.ShaderAssets {
		token, err := t.assetArg(c, assetChar, "GLchar *", "global_GLchar_ptr", []byte(arg.CharValue[0]))
		if err != nil {
			return "", err
		}
		return "&" + token, nil
	}
	name := fmt.Sprintf("local_GLchar_ptr_ptr_%d", t.nextID())
	t.curLocals = append(t.curLocals,
		fmt.Sprintf("static const GLchar *%s[] = { %s };", name, cStringLiteral(arg.CharValue[0])))
	c.lastVar = name
	return name, nil
}

func (t *translator) scalarIntArg(c *recordCtx, argIndex int, arg *Argument) (string, error) {
	v := arg.IntValue[0]
	if expr, ok := t.resolveValue(c, argIndex, int64(v), arg.Type); ok {
		return expr, nil
	}
	switch arg.Type {
	case TypeEnum:
		t.warnf("%s: enum 0x%x has no name, emitting the literal", c.name, uint32(v))
		return fmt.Sprintf("0x%x", uint32(v)), nil
	case TypeVoid:
		return fmt.Sprintf("(GLvoid *) 0x%x", uint32(v)), nil
	default:
		return strconv.Itoa(int(v)), nil
	}
}

// resolveValue looks a scalar up in the symbol tables (for object
// arguments) or the registry group the parameter declares, falling back to
// the registry's global table for enums.
func (t *translator) resolveValue(c *recordCtx, argIndex int, val int64, typ ArgType) (string, bool) {
	if lk, ok := objectLookups[c.rec.Function][argIndex]; ok {
		ns := lk.table
		if lk.hasScope && lk.scope < len(c.rec.Args) && len(c.rec.Args[lk.scope].IntValue) > 0 {
			ns = scopedNS(lk.table, int64(c.rec.Args[lk.scope].IntValue[0]))
		}
		if expr, ok := t.syms.lookup(ns, val); ok {
			return expr, true
		}
	} else if group, ok := t.cfg.Registry.groupFor(c.rec.Function, argIndex); ok {
		if name, ok := t.cfg.Registry.Groups[group][uint32(val)]; ok {
			return name, true
		}
	}
	if typ == TypeEnum && t.cfg.Registry != nil {
		if name, ok := t.cfg.Registry.Global[uint32(val)]; ok {
			return name, true
		}
	}
	return "", false
}

func (t *translator) assetArg(c *recordCtx, kind, cType, varPrefix string, data []byte) (string, error) {
	varName := fmt.Sprintf("%s_%d", varPrefix, t.nextID())
	bufName := fmt.Sprintf("global_AAsset_ptr_%d", t.nextID())
	return t.assetSlotArg(c, varName, bufName, cType, kind, data)
}

func (t *translator) assetSlotArg(c *recordCtx, varName, bufName, cType, kind string, data []byte) (string, error) {
	code, globals, err := t.assets.allocate(varName, bufName, cType, kind, data)
	if err != nil {
		return "", err
	}
	t.globals = append(t.globals, globals...)
	c.pre = append(c.pre, code...)
	c.lastVar = varName
	return varName, nil
}

// finish closes still-open assets, flushes the pending frame and records
// the observed surface dimensions.
func (t *translator) finish() {
	t.cur = append(t.cur, t.assets.closeAll()...)
	if len(t.cur) > 0 || len(t.curLocals) > 0 {
		t.endFrame()
	}
	t.globals = append(t.globals,
		fmt.Sprintf("static const int surface_width = %d;", t.shadow.maxViewport[2]),
		fmt.Sprintf("static const int surface_height = %d;", t.shadow.maxViewport[3]))
	if t.warnings > 0 {
		glog.Warningf("translation finished with %d warnings", t.warnings)
	}
}

// buildProgram packs the translated frames and the dispatch procedure into
// the symbolic program the emitter and the deinliner share.
func (t *translator) buildProgram() (*program, error) {
	p := newProgram()
	p.globals = append(p.globals, t.globals...)
	for i, frame := range t.frames {
		proto := fmt.Sprintf("void frame_%d()", i)
		if err := p.addFrame(proto, frame, t.frameLocals[i]); err != nil {
			return nil, err
		}
	}

	var dispatch []instruction
	dispatch = append(dispatch, instruction{name: "switch (frame_index) {", args: []string{sentinelRaw}})
	for i := range t.frames {
		dispatch = append(dispatch,
			instruction{name: fmt.Sprintf("case %d:", i), args: []string{sentinelRaw}},
			instruction{name: fmt.Sprintf("frame_%d", i), args: []string{sentinelVoid}},
			instruction{name: "break;", args: []string{sentinelRaw}})
	}
	dispatch = append(dispatch,
		instruction{name: "default:", args: []string{sentinelRaw}},
		instruction{name: "exit", args: []string{"0"}},
		instruction{name: "break;", args: []string{sentinelRaw}},
		instruction{name: "}", args: []string{sentinelRaw}})
	if err := p.addFrame("void draw(unsigned int frame_index)", dispatch, nil); err != nil {
		return nil, err
	}
	return p, nil
}

// Translate converts the trace into replayable source lines, writing large
// payloads into cfg.AssetsDir on the way.
func Translate(tracePath string, cfg TranslateConfig) ([]string, error) {
	r, err := NewTraceReader(tracePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	t := newTranslator(cfg)
	for !t.stopped {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := t.translateRecord(rec); err != nil {
			return nil, err
		}
	}
	t.finish()
	glog.Infof("translated %d records into %d frames", r.Records(), len(t.frames))

	p, err := t.buildProgram()
	if err != nil {
		return nil, err
	}
	return dumpCode(p)
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func bytesToDwords(b []byte) []uint32 {
	dwords := make([]uint32, 0, (len(b)+3)/4)
	for i := 0; i < len(b); i += 4 {
		var d uint32
		for j := 0; j < 4 && i+j < len(b); j++ {
			d |= uint32(b[i+j]) << (8 * j)
		}
		dwords = append(dwords, d)
	}
	return dwords
}

func packIndexData(vals []int32, width int) []byte {
	data := make([]byte, 0, width*len(vals))
	for _, v := range vals {
		switch width {
		case 1:
			data = append(data, byte(v))
		case 2:
			data = binary.LittleEndian.AppendUint16(data, uint16(v))
		default:
			data = binary.LittleEndian.AppendUint32(data, uint32(v))
		}
	}
	return data
}

// cStringLiteral escapes a payload string into a single-line C literal.
func cStringLiteral(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			if r < 0x20 || r > 0x7e {
				fmt.Fprintf(&b, `\%03o`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
