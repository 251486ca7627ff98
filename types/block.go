/*
 * Copyright 2019 The GameSQL Authors.
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

// Package types defines the data types passed between the block-feed host,
// the storage engine and the application callbacks.
package types

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// BlockHeader is the part of a block the engine itself interprets.  Hash and
// Parent are lowercase hex strings of the block hash and its parent hash.
type BlockHeader struct {
	Hash   string `json:"hash"`
	Parent string `json:"parent"`
	Height uint32 `json:"height"`
}

// BlockData is the JSON envelope fed by the host for each forward or
// backward step.  Everything besides the header is passed through to the
// application callback uninterpreted.
type BlockData struct {
	Block BlockHeader     `json:"block"`
	Moves json.RawMessage `json:"moves,omitempty"`
}

// ParseBlockData decodes the JSON form of a block envelope.
func ParseBlockData(raw []byte) (blk *BlockData, err error) {
	blk = &BlockData{}
	if err = json.Unmarshal(raw, blk); err != nil {
		blk = nil
		err = errors.Wrap(err, "failed to decode block data")
	}
	return
}
