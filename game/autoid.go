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
	"github.com/CovenantSQL/GameSQL/storage"
	"github.com/CovenantSQL/GameSQL/utils/log"
)

// EmptyID is the reserved "never issued" AutoId value.
const EmptyID int64 = 0

// AutoId is a named, persistent, monotonically increasing counter used by
// the game logic to mint unique object identifiers during state
// transitions.  Instances live only inside an active scope; dirty values
// are flushed to the xayagame_autoids table when the scope closes.
type AutoId struct {
	nextValue int64
	dbValue   int64
}

// newAutoId loads the counter for key, defaulting to one if no row is
// stored yet.
func newAutoId(db *storage.Database, key string) *AutoId {
	stmt := db.Prepare(
		"SELECT `nextid` FROM `xayagame_autoids` WHERE `key` = ?1")
	stmt.BindText(1, key)

	hasRow, err := stmt.Step()
	if err != nil {
		log.WithError(err).Panicf("failed to initialise AutoId %q", key)
	}

	a := &AutoId{}
	if hasRow {
		a.nextValue = stmt.ColumnInt64(0)
		a.dbValue = a.nextValue
		log.WithFields(log.Fields{
			"key":  key,
			"next": a.nextValue,
		}).Debug("fetched next value for AutoId")
		hasRow, err = stmt.Step()
		if err != nil {
			log.WithError(err).Panicf("failed to drain AutoId query for %q", key)
		}
		if hasRow {
			log.Panicf("multiple AutoId rows stored for %q", key)
		}
	} else {
		log.WithField("key", key).Debug("no stored next value for AutoId")
		a.nextValue = 1
		a.dbValue = 1
	}

	if a.nextValue == EmptyID {
		log.Panicf("AutoId %q has the reserved empty value", key)
	}
	return a
}

// GetNext issues the next identifier and advances the counter.
func (a *AutoId) GetNext() int64 {
	v := a.nextValue
	a.nextValue++
	return v
}

// NextValue returns the value the next GetNext call would issue.
func (a *AutoId) NextValue() int64 {
	return a.nextValue
}

// sync flushes the counter to the database if it has been advanced since
// loading or the last flush.
func (a *AutoId) sync(db *storage.Database, key string) {
	if a.nextValue == a.dbValue {
		log.WithField("key", key).Debug("AutoId does not need to be synced")
		return
	}
	if a.nextValue < a.dbValue {
		log.Panicf("AutoId %q went backwards: %d < %d", key, a.nextValue, a.dbValue)
	}

	stmt := db.Prepare(
		"INSERT OR REPLACE INTO `xayagame_autoids` (`key`, `nextid`) " +
			"VALUES (?1, ?2)")
	stmt.BindText(1, key)
	stmt.BindInt64(2, a.nextValue)
	storage.StepWithNoResult(stmt)

	log.WithField("key", key).Debug("synced AutoId to database")
	a.dbValue = a.nextValue
}

// activeAutoIds is the scoped collection of AutoId instances live during
// one game-logic invocation.  Construction installs it as the exclusive
// active scope of its game; close flushes dirty counters in insertion
// order and clears the slot.
type activeAutoIds struct {
	game *SQLiteGame

	// keys keeps insertion order for the deterministic flush on close.
	keys      []string
	instances map[string]*AutoId
}

// newActiveAutoIds installs a fresh scope on the game.  Nesting scopes is
// an invariant violation.
func newActiveAutoIds(g *SQLiteGame) *activeAutoIds {
	if g.activeIds != nil {
		log.Panic("an AutoId scope is already active")
	}
	ids := &activeAutoIds{
		game:      g,
		instances: make(map[string]*AutoId),
	}
	g.activeIds = ids
	return ids
}

// get returns the AutoId for key, lazily loading it from the database.
func (ids *activeAutoIds) get(key string) *AutoId {
	if a, ok := ids.instances[key]; ok {
		return a
	}
	a := newAutoId(ids.game.database.GetDatabase(), key)
	ids.keys = append(ids.keys, key)
	ids.instances[key] = a
	return a
}

// close clears the active-scope slot and flushes all dirty counters.
func (ids *activeAutoIds) close() {
	if ids.game.activeIds != ids {
		log.Panic("AutoId scope mismatch on close")
	}
	ids.game.activeIds = nil

	for _, key := range ids.keys {
		ids.instances[key].sync(ids.game.database.GetDatabase(), key)
	}
}
