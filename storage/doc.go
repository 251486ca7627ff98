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

// Package storage implements the sqlite-backed storage layer of the
// game-state engine.  It owns the single writer connection, the fixed
// key/value face (current block hash, current game state, per-block undo
// blobs), the savepoint bracket around each block's mutations and the
// hand-out of read-only point-in-time snapshots.
//
// The writer side is strictly single goroutine: the host serializes all
// Forward/Backward processing itself.  Snapshots open their own read-only
// connection and may be used concurrently with the writer.
package storage
