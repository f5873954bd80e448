//  Copyright (c) 2024 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package diagnostic

import (
	"bytes"
	"encoding/gob"
	"errors"

	"github.com/klauspost/compress/s2"
)

// Batch is a persistable multiset of diagnostics. Hosts that cache analyzer
// results between invocations encode batches instead of re-running blocks
// whose inputs did not change.
type Batch struct {
	Diagnostics []Diagnostic
}

// GobEncode encodes the batch gob-over-s2.
func (b *Batch) GobEncode() (_ []byte, err error) {
	var buf bytes.Buffer
	writer := s2.NewWriter(&buf)
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	if err := gob.NewEncoder(writer).Encode(b.Diagnostics); err != nil {
		return nil, err
	}

	// Close the s2 writer before taking the bytes so the stream is complete.
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode decodes a batch produced by GobEncode.
func (b *Batch) GobDecode(input []byte) error {
	b.Diagnostics = nil
	return gob.NewDecoder(s2.NewReader(bytes.NewBuffer(input))).Decode(&b.Diagnostics)
}
