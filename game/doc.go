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

// Package game implements the game glue of the storage engine: the driver
// that verifies state tags, runs the application callbacks, records undo
// changesets on forward steps and applies their inversion on rewinds, plus
// the scoped AutoId registry used by the game logic to mint object
// identifiers.
//
// The block-feed host drives it as
//
//	st := g.GetStorage()
//	st.BeginTransaction()
//	newState, undo, err := g.ProcessForward(oldState, blk)
//	// on success:
//	st.SetCurrentGameState(h, newState.String())
//	st.AddUndoData(h, blk.Block.Height, undo)
//	st.CommitTransaction()
package game
