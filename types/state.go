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

package types

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	// initialKeyword is the textual form of the initial game state.
	initialKeyword = "initial"
	// blockPrefix prefixes the textual form of a block-hash game state.
	blockPrefix = "block "
)

// ErrInvalidGameState indicates a game-state string that is neither the
// initial keyword nor a block-hash form.
var ErrInvalidGameState = errors.New("invalid game state string")

// GameState labels the logical state the writer believes the database
// currently holds.  It is either the distinguished initial state or the
// state right after attaching a particular block.  The zero value is not a
// valid state.
type GameState struct {
	initial   bool
	blockHash string
}

// InitialState returns the GameState labelling the initial game state.
func InitialState() GameState {
	return GameState{initial: true}
}

// BlockState returns the GameState for the block with the given lowercase
// hex hash.
func BlockState(hashHex string) GameState {
	return GameState{blockHash: strings.ToLower(hashHex)}
}

// ParseGameState parses the textual form of a game state.
func ParseGameState(s string) (state GameState, err error) {
	if s == initialKeyword {
		state = InitialState()
		return
	}
	if strings.HasPrefix(s, blockPrefix) {
		state = BlockState(strings.TrimPrefix(s, blockPrefix))
		return
	}
	err = errors.Wrapf(ErrInvalidGameState, "parse %q", s)
	return
}

// IsInitial reports whether the state is the initial game state.
func (s GameState) IsInitial() bool {
	return s.initial
}

// BlockHash returns the lowercase hex block hash of a block state.  It is
// empty for the initial state.
func (s GameState) BlockHash() string {
	return s.blockHash
}

// IsValid reports whether the state is either the initial state or carries
// a block hash.
func (s GameState) IsValid() bool {
	return s.initial || s.blockHash != ""
}

// String returns the textual form stored in the database.
func (s GameState) String() string {
	if s.initial {
		return initialKeyword
	}
	return blockPrefix + s.blockHash
}
