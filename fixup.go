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
	"strings"
)

// recordCtx carries one record through translation: the (possibly
// rewritten) emitted name, arguments injected ahead of the trace's,
// argument indices to drop, the preamble and epilogue instructions the
// fix-ups and asset allocations produce, and per-record hints.
type recordCtx struct {
	rec        *Record
	name       string
	prefixArgs []string
	dropArgs   map[int]bool
	pre        []instruction
	post       []instruction

	// elemCType is the index-buffer element type glDrawElements derives
	// from its type argument.
	elemCType string
	// attribIndex keys the dedicated asset slot of a
	// glVertexAttribPointerData record.
	attribIndex int32
	hasAttrib   bool
	// lastVar is the most recent variable allocated for an argument,
	// consumed by symbol-table insertions.
	lastVar string
}

func (c *recordCtx) drop(i int) {
	if c.dropArgs == nil {
		c.dropArgs = make(map[int]bool)
	}
	c.dropArgs[i] = true
}

// Calls the capture records but the replay cannot use; they emit nothing.
var droppedFunctions = map[string]bool{
	"glGetActiveUniform":      true,
	"glDiscardFramebufferEXT": true,
	"glGetTexParameteriv":     true,
	"glGetTexParameterfv":     true,
	"glGetVertexAttribfv":     true,
}

// Element types glVertexAttribPointer traffic is known to replay
// correctly; anything else aborts the translation.
var vertexAttribTypes = map[int32]bool{
	glByte:         true,
	glUnsignedByte: true,
	glShort:        true,
	glUnsignedShort: true,
	glFixed:        true,
	glFloat:        true,
	glHalfFloatOES: true,
}

// The fix-up catalogue: per-function corrections for known capture-format
// defects (missing array flags, missing sizes, extra indices) and the
// rewrites that thread replay-runtime state into target-sensitive calls.
var fixups = map[string]func(*translator, *recordCtx) error{
	"glBindFramebuffer":         fixBindFramebuffer,
	"glViewport":                fixViewport,
	"glScissor":                 fixScissor,
	"glEnable":                  fixDither,
	"glDisable":                 fixDither,
	"glGetVertexAttribiv":       fixGetVertexAttribiv,
	"glGetVertexAttribPointerv": fixGetVertexAttribPointerv,
	"glGetShaderInfoLog":        fixGetInfoLog,
	"glGetProgramInfoLog":       fixGetInfoLog,
	"glGetAttachedShaders":      fixGetAttachedShaders,
	"glGetShaderPrecisionFormat": fixGetShaderPrecisionFormat,
	"glInvalidateFramebuffer":   fixInvalidateFramebuffer,
	"glGetFloatv":               fixGetFloatv,
	"glGetActiveAttrib":         fixGetActiveAttrib,
	"glShaderSource":            fixShaderSource,
	"glTexParameteri":           fixTexParameteri,
	"glTexImage2D":              fixTexData,
	"glTexSubImage2D":           fixTexData,
	"glCompressedTexImage2D":    fixTexData,
	"glCompressedTexSubImage2D": fixTexData,
	"glTexImage3D":              fixTexData,
	"glTexSubImage3D":           fixTexData,
	"glCompressedTexImage3D":    fixTexData,
	"glCompressedTexSubImage3D": fixTexData,
	"glDrawElements":            fixDrawElements,
	"glVertexAttribPointer":     fixVertexAttribPointer,
	"glVertexAttribPointerData": fixVertexAttribPointerData,
}

func fixBindFramebuffer(t *translator, c *recordCtx) error {
	if len(c.rec.Args) < 2 || len(c.rec.Args[1].IntValue) == 0 {
		return fmt.Errorf("glBindFramebuffer without a framebuffer argument: %s", c.rec)
	}
	id := c.rec.Args[1].IntValue[0]
	t.shadow.framebuffer = id
	// The runtime may redirect framebuffer 0 to a differently sized
	// surface, so restore the draw rectangles explicitly on every bind.
	c.post = append(c.post, t.shadow.restore(id == 0)...)
	return nil
}

func fixViewport(t *translator, c *recordCtx) error {
	t.shadow.setViewport(argRect(c.rec))
	if t.shadow.framebuffer == 0 {
		c.name = "glViewportScaled"
		c.prefixArgs = []string{stateVar}
	}
	return nil
}

func fixScissor(t *translator, c *recordCtx) error {
	t.shadow.setScissor(argRect(c.rec))
	if t.shadow.framebuffer == 0 {
		c.name = "glScissorScaled"
		c.prefixArgs = []string{stateVar}
	}
	return nil
}

func argRect(rec *Record) [4]int32 {
	var r [4]int32
	for i := 0; i < 4 && i < len(rec.Args); i++ {
		if len(rec.Args[i].IntValue) > 0 {
			r[i] = rec.Args[i].IntValue[0]
		}
	}
	return r
}

// Dithering costs fill rate on the replay targets, so the runtime gets the
// final say over it.
func fixDither(t *translator, c *recordCtx) error {
	if len(c.rec.Args) == 0 || len(c.rec.Args[0].IntValue) == 0 || c.rec.Args[0].IntValue[0] != glDither {
		return nil
	}
	if c.name == "glEnable" {
		c.name = "glEnableDitherOverride"
	} else {
		c.name = "glDisableDitherOverride"
	}
	c.prefixArgs = []string{stateVar}
	for i := range c.rec.Args {
		c.drop(i)
	}
	return nil
}

// The trace sends the out parameter as a plain int.
func fixGetVertexAttribiv(t *translator, c *recordCtx) error {
	if len(c.rec.Args) > 2 {
		c.rec.Args[2].IsArray = true
	}
	return nil
}

// The trace sends an INT where the API returns a pointer through a
// pointer.
func fixGetVertexAttribPointerv(t *translator, c *recordCtx) error {
	if len(c.rec.Args) > 2 {
		c.rec.Args[2].IsArray = true
		c.rec.Args[2].Type = TypeVoid
	}
	return nil
}

// The two last arguments arrive as ints instead of int* and char*; the max
// length sizes the log buffer.
func fixGetInfoLog(t *translator, c *recordCtx) error {
	if len(c.rec.Args) < 4 {
		return fmt.Errorf("%s with %d arguments: %s", c.name, len(c.rec.Args), c.rec)
	}
	maxLength := 0
	if len(c.rec.Args[1].IntValue) > 0 {
		maxLength = int(c.rec.Args[1].IntValue[0])
	}
	c.rec.Args[2].IsArray = true
	c.rec.Args[3].IsArray = true
	c.rec.Args[3].Type = TypeChar
	if len(c.rec.Args[3].CharValue) == 0 && maxLength > 0 {
		c.rec.Args[3].CharValue = []string{strings.Repeat("?", maxLength)}
	}
	return nil
}

func fixGetAttachedShaders(t *translator, c *recordCtx) error {
	for i := 2; i <= 3 && i < len(c.rec.Args); i++ {
		c.rec.Args[i].IsArray = true
	}
	return nil
}

func fixGetShaderPrecisionFormat(t *translator, c *recordCtx) error {
	if len(c.rec.Args) > 2 {
		c.rec.Args[2].IsArray = true
		if len(c.rec.Args[2].IntValue) == 1 {
			// The range has two elements; the capture drops one.
			c.rec.Args[2].IntValue = append(c.rec.Args[2].IntValue, 0)
		}
	}
	if len(c.rec.Args) > 3 {
		c.rec.Args[3].IsArray = true
	}
	return nil
}

func fixInvalidateFramebuffer(t *translator, c *recordCtx) error {
	if len(c.rec.Args) > 2 {
		c.rec.Args[2].IsArray = true
	}
	return nil
}

// GL_ALIASED_POINT_SIZE_RANGE returns two floats, the trace stores one.
func fixGetFloatv(t *translator, c *recordCtx) error {
	if len(c.rec.Args) > 1 && len(c.rec.Args[0].IntValue) > 0 &&
		c.rec.Args[0].IntValue[0] == glAliasedPointSizeRng &&
		len(c.rec.Args[1].FloatValue) == 1 {
		c.rec.Args[1].FloatValue = append(c.rec.Args[1].FloatValue, 0)
		c.rec.Args[1].IsArray = true
	}
	return nil
}

// The trace appends an extra int with an index.
func fixGetActiveAttrib(t *translator, c *recordCtx) error {
	c.drop(7)
	return nil
}

// The source is a pointer to pointer to char; clearing the array flag marks
// the special case. The lengths argument is unusable, replay passes 0.
func fixShaderSource(t *translator, c *recordCtx) error {
	if len(c.rec.Args) > 2 {
		c.rec.Args[2].IsArray = false
	}
	if len(c.rec.Args) > 3 {
		c.rec.Args[3] = &Argument{Type: TypeInt, IntValue: []int32{0}}
	}
	return nil
}

// The last parameter is declared INT but always carries an enum.
func fixTexParameteri(t *translator, c *recordCtx) error {
	if len(c.rec.Args) > 2 {
		c.rec.Args[2].Type = TypeEnum
	}
	return nil
}

// Captures taken without texture data carry the application's pointer but
// no payload; replaying that pointer would fault, so it becomes NULL.
func fixTexData(t *translator, c *recordCtx) error {
	if len(c.rec.Args) == 0 {
		return nil
	}
	last := c.rec.Args[len(c.rec.Args)-1]
	missing := len(last.RawBytes) == 0 && !last.IsArray &&
		len(last.IntValue) > 0 && last.IntValue[0] != 0
	if !missing && !t.cfg.NullTextures {
		return nil
	}
	if missing && !t.cfg.NullTextures {
		t.warnf("%s without texture data, replaying with NULL", c.name)
	}
	c.rec.Args[len(c.rec.Args)-1] = &Argument{Type: TypeVoid, IntValue: []int32{0}}
	return nil
}

// The last argument is an index array when the capture stored the payload
// and a byte offset into the bound buffer otherwise; the type argument
// picks the emitted element width.
func fixDrawElements(t *translator, c *recordCtx) error {
	if len(c.rec.Args) < 4 {
		return fmt.Errorf("glDrawElements with %d arguments: %s", len(c.rec.Args), c.rec)
	}
	indexType := int32(0)
	if len(c.rec.Args[2].IntValue) > 0 {
		indexType = c.rec.Args[2].IntValue[0]
	}
	if c.rec.Args[3].IsArray {
		switch indexType {
		case glUnsignedByte:
			c.elemCType = "GLubyte"
		case glUnsignedShort:
			c.elemCType = "GLushort"
		case glUnsignedInt:
			c.elemCType = "GLuint"
		default:
			return fmt.Errorf("glDrawElements with unsupported index type 0x%x: %s", indexType, c.rec)
		}
	} else {
		c.rec.Args[3].Type = TypeVoid
	}
	return nil
}

func fixVertexAttribPointer(t *translator, c *recordCtx) error {
	if len(c.rec.Args) < 6 {
		return fmt.Errorf("glVertexAttribPointer with %d arguments: %s", len(c.rec.Args), c.rec)
	}
	if ty := c.rec.Args[2].IntValue; len(ty) == 0 || !vertexAttribTypes[ty[0]] {
		return fmt.Errorf("glVertexAttribPointer with unsupported element type: %s", c.rec)
	}
	c.rec.Args[5].Type = TypeVoid
	return nil
}

// The capture inserts this fake call before draws to supply the attribute
// contents; the two trailing indices are noise, and the payload goes into a
// per-attribute asset slot so successive draws reuse one buffer variable.
func fixVertexAttribPointerData(t *translator, c *recordCtx) error {
	if len(c.rec.Args) < 6 {
		return fmt.Errorf("glVertexAttribPointerData with %d arguments: %s", len(c.rec.Args), c.rec)
	}
	if ty := c.rec.Args[2].IntValue; len(ty) == 0 || !vertexAttribTypes[ty[0]] {
		return fmt.Errorf("glVertexAttribPointerData with unsupported element type: %s", c.rec)
	}
	if len(c.rec.Args[0].IntValue) > 0 {
		c.attribIndex = c.rec.Args[0].IntValue[0]
		c.hasAttrib = true
	}
	for i := 6; i < len(c.rec.Args); i++ {
		c.drop(i)
	}
	return nil
}
