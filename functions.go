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

import "fmt"

// The capture's function enum, reproduced as data. GLES2 entry points are
// numbered alphabetically from 0, extensions from extensionOpBase, EGL from
// eglOpBase. glVertexAttribPointerData is a fake call the capture inserts
// before draws to supply vertex attribute contents.
const (
	extensionOpBase = 500
	eglOpBase       = 2000
	fakeOpBase      = 2076
)

var gles2Functions = []string{
	"glActiveTexture",
	"glAttachShader",
	"glBindAttribLocation",
	"glBindBuffer",
	"glBindFramebuffer",
	"glBindRenderbuffer",
	"glBindTexture",
	"glBlendColor",
	"glBlendEquation",
	"glBlendEquationSeparate",
	"glBlendFunc",
	"glBlendFuncSeparate",
	"glBufferData",
	"glBufferSubData",
	"glCheckFramebufferStatus",
	"glClear",
	"glClearColor",
	"glClearDepthf",
	"glClearStencil",
	"glColorMask",
	"glCompileShader",
	"glCompressedTexImage2D",
	"glCompressedTexSubImage2D",
	"glCopyTexImage2D",
	"glCopyTexSubImage2D",
	"glCreateProgram",
	"glCreateShader",
	"glCullFace",
	"glDeleteBuffers",
	"glDeleteFramebuffers",
	"glDeleteProgram",
	"glDeleteRenderbuffers",
	"glDeleteShader",
	"glDeleteTextures",
	"glDepthFunc",
	"glDepthMask",
	"glDepthRangef",
	"glDetachShader",
	"glDisable",
	"glDisableVertexAttribArray",
	"glDrawArrays",
	"glDrawElements",
	"glEnable",
	"glEnableVertexAttribArray",
	"glFinish",
	"glFlush",
	"glFramebufferRenderbuffer",
	"glFramebufferTexture2D",
	"glFrontFace",
	"glGenBuffers",
	"glGenerateMipmap",
	"glGenFramebuffers",
	"glGenRenderbuffers",
	"glGenTextures",
	"glGetActiveAttrib",
	"glGetActiveUniform",
	"glGetAttachedShaders",
	"glGetAttribLocation",
	"glGetBooleanv",
	"glGetBufferParameteriv",
	"glGetError",
	"glGetFloatv",
	"glGetFramebufferAttachmentParameteriv",
	"glGetIntegerv",
	"glGetProgramiv",
	"glGetProgramInfoLog",
	"glGetRenderbufferParameteriv",
	"glGetShaderiv",
	"glGetShaderInfoLog",
	"glGetShaderPrecisionFormat",
	"glGetShaderSource",
	"glGetString",
	"glGetTexParameterfv",
	"glGetTexParameteriv",
	"glGetUniformfv",
	"glGetUniformiv",
	"glGetUniformLocation",
	"glGetVertexAttribfv",
	"glGetVertexAttribiv",
	"glGetVertexAttribPointerv",
	"glHint",
	"glIsBuffer",
	"glIsEnabled",
	"glIsFramebuffer",
	"glIsProgram",
	"glIsRenderbuffer",
	"glIsShader",
	"glIsTexture",
	"glLineWidth",
	"glLinkProgram",
	"glPixelStorei",
	"glPolygonOffset",
	"glReadPixels",
	"glReleaseShaderCompiler",
	"glRenderbufferStorage",
	"glSampleCoverage",
	"glScissor",
	"glShaderBinary",
	"glShaderSource",
	"glStencilFunc",
	"glStencilFuncSeparate",
	"glStencilMask",
	"glStencilMaskSeparate",
	"glStencilOp",
	"glStencilOpSeparate",
	"glTexImage2D",
	"glTexParameterf",
	"glTexParameterfv",
	"glTexParameteri",
	"glTexParameteriv",
	"glTexSubImage2D",
	"glUniform1f",
	"glUniform1fv",
	"glUniform1i",
	"glUniform1iv",
	"glUniform2f",
	"glUniform2fv",
	"glUniform2i",
	"glUniform2iv",
	"glUniform3f",
	"glUniform3fv",
	"glUniform3i",
	"glUniform3iv",
	"glUniform4f",
	"glUniform4fv",
	"glUniform4i",
	"glUniform4iv",
	"glUniformMatrix2fv",
	"glUniformMatrix3fv",
	"glUniformMatrix4fv",
	"glUseProgram",
	"glValidateProgram",
	"glVertexAttrib1f",
	"glVertexAttrib1fv",
	"glVertexAttrib2f",
	"glVertexAttrib2fv",
	"glVertexAttrib3f",
	"glVertexAttrib3fv",
	"glVertexAttrib4f",
	"glVertexAttrib4fv",
	"glVertexAttribPointer",
	"glViewport",
}

var extensionFunctions = []string{
	"glEGLImageTargetTexture2DOES",
	"glDiscardFramebufferEXT",
	"glInvalidateFramebuffer",
	"glTexImage3D",
	"glTexSubImage3D",
	"glCompressedTexImage3D",
	"glCompressedTexSubImage3D",
	"glPushGroupMarkerEXT",
	"glPopGroupMarkerEXT",
	"glInsertEventMarkerEXT",
}

var eglFunctions = []string{
	"eglGetDisplay",
	"eglInitialize",
	"eglTerminate",
	"eglGetConfigs",
	"eglChooseConfig",
	"eglGetConfigAttrib",
	"eglCreateWindowSurface",
	"eglCreatePbufferSurface",
	"eglCreatePixmapSurface",
	"eglDestroySurface",
	"eglQuerySurface",
	"eglCreateContext",
	"eglDestroyContext",
	"eglMakeCurrent",
	"eglGetCurrentContext",
	"eglGetCurrentSurface",
	"eglGetCurrentDisplay",
	"eglQueryContext",
	"eglWaitGL",
	"eglWaitNative",
	"eglSwapBuffers",
	"eglCopyBuffers",
}

var fakeFunctions = []string{
	"glVertexAttribPointerData",
}

var (
	opToName map[int32]string
	nameToOp map[string]int32
)

func init() {
	opToName = make(map[int32]string)
	nameToOp = make(map[string]int32)
	add := func(base int32, names []string) {
		for i, name := range names {
			op := base + int32(i)
			opToName[op] = name
			nameToOp[name] = op
		}
	}
	add(0, gles2Functions)
	add(extensionOpBase, extensionFunctions)
	add(eglOpBase, eglFunctions)
	add(fakeOpBase, fakeFunctions)
}

func functionName(op int32) string {
	if name, ok := opToName[op]; ok {
		return name
	}
	return fmt.Sprintf("unknown_%d", op)
}

func functionOp(name string) (int32, bool) {
	op, ok := nameToOp[name]
	return op, ok
}

// GL enumerants the fix-up catalogue keys on.
const (
	glDither               = 0x0bd0
	glAliasedPointSizeRng  = 0x846d
	glByte                 = 0x1400
	glUnsignedByte         = 0x1401
	glShort                = 0x1402
	glUnsignedShort        = 0x1403
	glInt                  = 0x1404
	glUnsignedInt          = 0x1405
	glFloat                = 0x1406
	glFixed                = 0x140c
	glHalfFloatOES         = 0x8d61
	glFramebufferBindingID = 0x8ca6
)
