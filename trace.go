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
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/glog"
)

// TraceReader iterates the length-prefixed records of a capture file. The
// stream is gzip-compressed when the file name ends in .gz. Captures are
// often cut mid-write on the device, so any truncation after the first
// successfully decoded record is reported as a clean end of stream.
type TraceReader struct {
	f    *os.File
	r    io.Reader
	path string
	n    int
}

func NewTraceReader(path string) (*TraceReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	t := &TraceReader{f: f, r: f, path: path}
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %v", path, err)
		}
		t.r = zr
	}
	return t, nil
}

func (t *TraceReader) Close() error {
	return t.f.Close()
}

// Next returns the next decoded record, or io.EOF at end of stream.
func (t *TraceReader) Next() (*Record, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(t.r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, t.truncated(fmt.Errorf("%s: short record length: %v", t.path, err))
	}
	length := binary.BigEndian.Uint32(hdr[:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(t.r, payload); err != nil {
		return nil, t.truncated(fmt.Errorf("%s: short record payload (%d bytes): %v", t.path, length, err))
	}
	rec, err := decodeRecord(payload)
	if err != nil {
		return nil, t.truncated(fmt.Errorf("%s: record %d: %v", t.path, t.n, err))
	}
	t.n++
	glog.V(2).Infof("record %d: %s", t.n, rec.Function)
	return rec, nil
}

// Records returns the number of records decoded so far.
func (t *TraceReader) Records() int {
	return t.n
}

func (t *TraceReader) truncated(err error) error {
	if t.n > 0 {
		glog.Warningf("truncated trace, stopping after %d records: %v", t.n, err)
		return io.EOF
	}
	return err
}
