/*
 * Copyright 2019 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package loader reads the textual object format, one object per line:
//
//   <block_id> [<v1>,<v2>,...] {<w1>,<w2>,...}
//
// Blank lines and lines starting with '#' are skipped, and so are empty list
// items such as the one left by a trailing comma.
package loader

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/verichain/types"
)

// ErrSyntax indicates a line that does not follow the object format.
var ErrSyntax = errors.New("malformed object line")

// Block is the input of one block. Objects is empty for the blocks filling
// a gap between two ids of the input.
type Block struct {
	ID      uint64
	Objects []*types.RawObject
}

func syntaxError(line int, format string, args ...interface{}) error {
	return &types.BuildError{Line: line, Err: errors.Wrapf(ErrSyntax, format, args...)}
}

// ParseLine parses one object line.
func ParseLine(s string, line int) (raw *types.RawObject, err error) {
	s = strings.TrimSpace(s)

	vStart, vEnd := strings.IndexByte(s, '['), strings.IndexByte(s, ']')
	wStart, wEnd := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
	if vStart <= 0 || vEnd < vStart || wStart < vEnd || wEnd < wStart || wEnd != len(s)-1 {
		return nil, syntaxError(line, "%q", s)
	}

	raw = &types.RawObject{Line: line}
	if raw.BlockID, err = strconv.ParseUint(strings.TrimSpace(s[:vStart]), 10, 64); err != nil {
		return nil, syntaxError(line, "block id: %v", err)
	}
	if strings.TrimSpace(s[vEnd+1:wStart]) != "" {
		return nil, syntaxError(line, "unexpected %q", s[vEnd+1:wStart])
	}

	if v := strings.TrimSpace(s[vStart+1 : vEnd]); v != "" {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			var x uint64
			if x, err = strconv.ParseUint(part, 10, 64); err != nil {
				return nil, syntaxError(line, "value %q: %v", part, err)
			}
			raw.V = append(raw.V, x)
		}
	}

	if w := strings.TrimSpace(s[wStart+1 : wEnd]); w != "" {
		for _, part := range strings.Split(w, ",") {
			if part = strings.TrimSpace(part); part != "" {
				raw.W = append(raw.W, part)
			}
		}
	}
	return raw, nil
}

// Parse reads every object of r.
func Parse(r io.Reader) (raws []*types.RawObject, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var raw *types.RawObject
		if raw, err = ParseLine(text, line); err != nil {
			return nil, err
		}
		raws = append(raws, raw)
	}
	if err = sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read objects failed")
	}
	return
}

// Group splits raws into blocks. Block ids must not decrease; ids missing
// between two blocks become empty blocks so the chain stays contiguous.
func Group(raws []*types.RawObject) (blocks []*Block, err error) {
	for _, raw := range raws {
		if len(blocks) > 0 {
			last := blocks[len(blocks)-1]
			switch {
			case raw.BlockID == last.ID:
				last.Objects = append(last.Objects, raw)
				continue
			case raw.BlockID < last.ID:
				return nil, &types.BuildError{
					Line:    raw.Line,
					BlockID: raw.BlockID,
					Err:     errors.Wrapf(types.ErrBlockOrder, "block %d after block %d", raw.BlockID, last.ID),
				}
			}
			for id := last.ID + 1; id < raw.BlockID; id++ {
				blocks = append(blocks, &Block{ID: id})
			}
		} else if raw.BlockID == 0 {
			return nil, &types.BuildError{
				Line: raw.Line,
				Err:  errors.Wrap(types.ErrBlockOrder, "block ids start at 1"),
			}
		}
		blocks = append(blocks, &Block{ID: raw.BlockID, Objects: []*types.RawObject{raw}})
	}
	return
}

// LoadFile parses and groups the objects of the file at path.
func LoadFile(path string) ([]*Block, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s failed", path)
	}
	defer f.Close()

	raws, err := Parse(f)
	if err != nil {
		return nil, err
	}
	return Group(raws)
}
