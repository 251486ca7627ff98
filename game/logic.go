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

package game

import (
	"encoding/json"

	"github.com/CovenantSQL/GameSQL/storage"
	"github.com/CovenantSQL/GameSQL/types"
)

// GameLogic is the callback interface through which the engine drives the
// application.  All callbacks run on the writer connection while the host
// holds the block transaction open; they must not commit or roll back
// themselves.
type GameLogic interface {
	// GetInitialStateBlock returns the height and lowercase hex hash of
	// the block at which the game's initial state is defined.
	GetInitialStateBlock() (height uint32, hashHex string)

	// SetupSchema creates the application's tables.  It must be
	// idempotent, as it runs on every open of the database.
	SetupSchema(db *storage.Database) error

	// InitialiseState populates the initial game-state rows.  It is
	// invoked at most once per database.
	InitialiseState(db *storage.Database) error

	// UpdateState advances the game state by one block.
	UpdateState(db *storage.Database, blk *types.BlockData) error

	// GetStateAsJSON renders the current game state.  It must not mutate
	// the database; db may be a read-only snapshot.
	GetStateAsJSON(db *storage.Database) (json.RawMessage, error)
}
