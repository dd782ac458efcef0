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
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ArgType is the capture's data-type tag for one argument.
type ArgType int32

const (
	TypeVoid  ArgType = 1
	TypeChar  ArgType = 2
	TypeByte  ArgType = 3
	TypeInt   ArgType = 4
	TypeFloat ArgType = 5
	TypeBool  ArgType = 6
	TypeEnum  ArgType = 7
)

func (t ArgType) String() string {
	switch t {
	case TypeVoid:
		return "VOID"
	case TypeChar:
		return "CHAR"
	case TypeByte:
		return "BYTE"
	case TypeInt:
		return "INT"
	case TypeFloat:
		return "FLOAT"
	case TypeBool:
		return "BOOL"
	case TypeEnum:
		return "ENUM"
	}
	return fmt.Sprintf("ArgType(%d)", int32(t))
}

// Argument is one decoded call argument: a type tag, an in-array/by-pointer
// flag, and exactly one populated payload.
type Argument struct {
	Type       ArgType
	IsArray    bool
	IntValue   []int32
	Int64Value []int64
	FloatValue []float32
	BoolValue  []bool
	CharValue  []string
	RawBytes   []byte
}

// Record is one decoded API call from the trace.
type Record struct {
	ContextID int32
	Op        int32
	Function  string
	Args      []*Argument
	Return    *Argument
}

func (r *Record) String() string {
	return fmt.Sprintf("%s ctx=%d args=%+v ret=%+v", r.Function, r.ContextID, r.Args, r.Return)
}

// GLMessage field numbers, as framed by the on-device capture library.
const (
	fieldContextID = 1
	fieldFunction  = 4
	fieldArg       = 9
	fieldReturn    = 10
)

// GLMessage.DataType field numbers.
const (
	fieldArgType    = 1
	fieldArgIsArray = 2
	fieldArgInt     = 3
	fieldArgFloat   = 4
	fieldArgChar    = 5
	fieldArgRaw     = 6
	fieldArgBool    = 7
	fieldArgInt64   = 8
)

// decodeRecord decodes one serialized GLMessage payload. Fields the
// translator doesn't consume (timings, framebuffer snapshots) are skipped.
func decodeRecord(b []byte) (*Record, error) {
	rec := &Record{Op: -1}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("bad message tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldContextID:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("bad context id: %v", protowire.ParseError(n))
			}
			rec.ContextID = int32(v)
			b = b[n:]
		case fieldFunction:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("bad function opcode: %v", protowire.ParseError(n))
			}
			rec.Op = int32(v)
			b = b[n:]
		case fieldArg, fieldReturn:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("bad argument field: %v", protowire.ParseError(n))
			}
			arg, err := decodeArgument(v)
			if err != nil {
				return nil, err
			}
			if num == fieldArg {
				rec.Args = append(rec.Args, arg)
			} else {
				rec.Return = arg
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("bad field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if rec.Op < 0 {
		return nil, fmt.Errorf("message without function opcode")
	}
	rec.Function = functionName(rec.Op)
	return rec, nil
}

func decodeArgument(b []byte) (*Argument, error) {
	arg := &Argument{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("bad argument tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldArgType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("bad type tag: %v", protowire.ParseError(n))
			}
			arg.Type = ArgType(v)
			b = b[n:]
		case fieldArgIsArray:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("bad isArray: %v", protowire.ParseError(n))
			}
			arg.IsArray = v != 0
			b = b[n:]
		case fieldArgInt:
			var err error
			b, err = consumeVarints(b, typ, func(v uint64) {
				arg.IntValue = append(arg.IntValue, int32(v))
			})
			if err != nil {
				return nil, err
			}
		case fieldArgInt64:
			var err error
			b, err = consumeVarints(b, typ, func(v uint64) {
				arg.Int64Value = append(arg.Int64Value, int64(v))
			})
			if err != nil {
				return nil, err
			}
		case fieldArgBool:
			var err error
			b, err = consumeVarints(b, typ, func(v uint64) {
				arg.BoolValue = append(arg.BoolValue, v != 0)
			})
			if err != nil {
				return nil, err
			}
		case fieldArgFloat:
			if typ == protowire.BytesType {
				v, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return nil, fmt.Errorf("bad packed floats: %v", protowire.ParseError(n))
				}
				for len(v) >= 4 {
					u, m := protowire.ConsumeFixed32(v)
					if m < 0 {
						return nil, fmt.Errorf("bad packed float: %v", protowire.ParseError(m))
					}
					arg.FloatValue = append(arg.FloatValue, math.Float32frombits(u))
					v = v[m:]
				}
				b = b[n:]
			} else {
				u, n := protowire.ConsumeFixed32(b)
				if n < 0 {
					return nil, fmt.Errorf("bad float: %v", protowire.ParseError(n))
				}
				arg.FloatValue = append(arg.FloatValue, math.Float32frombits(u))
				b = b[n:]
			}
		case fieldArgChar:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("bad char value: %v", protowire.ParseError(n))
			}
			arg.CharValue = append(arg.CharValue, string(v))
			b = b[n:]
		case fieldArgRaw:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("bad raw bytes: %v", protowire.ParseError(n))
			}
			arg.RawBytes = append(arg.RawBytes, v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("bad argument field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return arg, nil
}

// consumeVarints consumes a varint field in either packed or unpacked form.
func consumeVarints(b []byte, typ protowire.Type, emit func(uint64)) ([]byte, error) {
	if typ == protowire.BytesType {
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("bad packed varints: %v", protowire.ParseError(n))
		}
		for len(v) > 0 {
			u, m := protowire.ConsumeVarint(v)
			if m < 0 {
				return nil, fmt.Errorf("bad packed varint: %v", protowire.ParseError(m))
			}
			emit(u)
			v = v[m:]
		}
		return b[n:], nil
	}
	u, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return nil, fmt.Errorf("bad varint: %v", protowire.ParseError(n))
	}
	emit(u)
	return b[n:], nil
}
