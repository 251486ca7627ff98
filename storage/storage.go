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

package storage

import (
	"os"
	"sync"

	"crawshaw.io/sqlite"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/GameSQL/crypto/hash"
	"github.com/CovenantSQL/GameSQL/utils/log"
)

// Storage owns the writer connection of the game-state database and
// presents the fixed key/value face on top of it: the current block hash,
// the current game state and the per-block undo blobs.  It also hands out
// read-only snapshots and gates closing on outstanding ones.
type Storage struct {
	file databaseFile
	db   *Database

	// schemaHook runs after the base schema setup whenever the database
	// is (re)opened.  The game glue installs its own schema through it.
	schemaHook func(*Database) error

	// rollbackGuard, if set, reports whether rolling back the current
	// transaction is forbidden right now.
	rollbackGuard func() bool

	startedTransaction bool

	mutSnapshots sync.Mutex
	cvSnapshots  *sync.Cond
	snapshots    int
}

// NewStorage returns a Storage bound to the given database file.  The file
// may be a plain path, a bare file: reference, or the :memory: sentinel
// for a temporary database.
func NewStorage(file string) (s *Storage, err error) {
	var f databaseFile
	if f, err = newDatabaseFile(file); err != nil {
		err = errors.Wrapf(err, "failed to parse database file %s", file)
		return
	}
	s = &Storage{file: f}
	s.cvSnapshots = sync.NewCond(&s.mutSnapshots)
	return
}

// SetSchemaHook installs the hook run after base schema setup.  It must be
// called before Initialise.
func (s *Storage) SetSchemaHook(hook func(*Database) error) {
	if s.db != nil {
		log.Panic("schema hook must be set before the database is opened")
	}
	s.schemaHook = hook
}

// SetRollbackGuard installs the guard consulted by RollbackTransaction.
func (s *Storage) SetRollbackGuard(guard func() bool) {
	s.rollbackGuard = guard
}

// Initialise opens the writer connection and runs schema setup.  It is
// idempotent.
func (s *Storage) Initialise() (err error) {
	if s.db != nil {
		return
	}
	return s.openDatabase()
}

func (s *Storage) openDatabase() (err error) {
	if s.db != nil {
		log.Panic("database is already open")
	}
	s.db, err = openDatabase(s.file.URI(),
		sqlite.SQLITE_OPEN_READWRITE|sqlite.SQLITE_OPEN_CREATE|
			sqlite.SQLITE_OPEN_URI|sqlite.SQLITE_OPEN_NOMUTEX)
	if err != nil {
		return
	}
	return s.setupSchema()
}

func (s *Storage) setupSchema() (err error) {
	log.Info("setting up database schema if it does not exist yet")
	err = s.db.ExecScript(
		"CREATE TABLE IF NOT EXISTS `xayagame_current` " +
			"(`key` TEXT PRIMARY KEY, `value` BLOB);\n" +
			"CREATE TABLE IF NOT EXISTS `xayagame_undo` " +
			"(`hash` BLOB PRIMARY KEY, `data` BLOB, `height` INTEGER);\n")
	if err != nil {
		return errors.Wrap(err, "failed to set up database schema")
	}
	if s.schemaHook != nil {
		if err = s.schemaHook(s.db); err != nil {
			return errors.Wrap(err, "schema hook failed")
		}
	}
	return
}

// Clear closes the writer, deletes the database file unless it is the
// in-memory sentinel, and reopens.  A failing deletion is an invariant
// violation.
func (s *Storage) Clear() (err error) {
	s.CloseDatabase()

	if s.file.IsMemory() {
		log.Infof("database %q is temporary, no file needs to be removed",
			s.file.Name())
	} else {
		log.WithField("file", s.file.Name()).
			Info("removing file to clear database")
		if err = os.Remove(s.file.Name()); err != nil {
			log.WithError(err).Panic("failed to remove database file")
		}
	}

	return s.openDatabase()
}

// GetDatabase returns the writer handle.
func (s *Storage) GetDatabase() *Database {
	if s.db == nil {
		log.Panic("database is not open")
	}
	return s.db
}

// GetSnapshot returns a new read-only snapshot handle, or nil if the
// database could not be set to WAL mode.  The caller owns the handle and
// must Close it; closing releases the snapshot reference.
func (s *Storage) GetSnapshot() *Database {
	if s.db == nil {
		log.Panic("database is not open")
	}
	if !s.db.IsWalMode() {
		log.Warning("snapshot is not possible for non-WAL database")
		return nil
	}

	s.mutSnapshots.Lock()
	s.snapshots++
	s.mutSnapshots.Unlock()

	snap, err := openDatabase(s.file.URI(),
		sqlite.SQLITE_OPEN_READONLY|
			sqlite.SQLITE_OPEN_URI|sqlite.SQLITE_OPEN_NOMUTEX)
	if err != nil {
		s.unrefSnapshot()
		log.WithError(err).Panic("failed to open snapshot connection")
	}
	snap.setReadonlySnapshot(s)
	return snap
}

// unrefSnapshot drops one snapshot reference and wakes up a pending
// CloseDatabase.
func (s *Storage) unrefSnapshot() {
	s.mutSnapshots.Lock()
	defer s.mutSnapshots.Unlock()
	if s.snapshots <= 0 {
		log.Panic("snapshot reference count underflow")
	}
	s.snapshots--
	s.cvSnapshots.Broadcast()
}

// CloseDatabase waits for all outstanding snapshots to be closed and then
// drops the writer connection.
func (s *Storage) CloseDatabase() {
	if s.db == nil {
		log.Panic("database is not open")
	}

	s.mutSnapshots.Lock()
	if s.snapshots > 0 {
		log.Infof("waiting for %d outstanding snapshots to be finished", s.snapshots)
	}
	for s.snapshots > 0 {
		s.cvSnapshots.Wait()
	}
	s.mutSnapshots.Unlock()

	s.db.Close()
	s.db = nil
}

/* Fixed key/value face. */

// GetCurrentBlockHashOf fetches the current block hash through the given
// handle, which may be a snapshot.  It returns false if none is stored.
func GetCurrentBlockHashOf(db *Database) (h hash.Hash, ok bool) {
	stmt := db.PrepareRo(
		"SELECT `value` FROM `xayagame_current` WHERE `key` = 'blockhash'")

	hasRow, err := stmt.Step()
	if err != nil {
		log.WithError(err).Panic("failed to fetch current block hash")
	}
	if !hasRow {
		return
	}

	blob := columnBlob(stmt, 0)
	if err = h.SetBytes(blob); err != nil {
		log.WithError(err).Panic("invalid hash value stored in database")
	}

	StepWithNoResult(stmt)
	ok = true
	return
}

// GetCurrentBlockHash fetches the current block hash from the writer
// handle.  It returns false if none is stored.
func (s *Storage) GetCurrentBlockHash() (hash.Hash, bool) {
	return GetCurrentBlockHashOf(s.GetDatabase())
}

// GetCurrentGameState returns the stored game-state value.  The caller
// guarantees presence; a missing row is an invariant violation.
func (s *Storage) GetCurrentGameState() string {
	stmt := s.GetDatabase().Prepare(
		"SELECT `value` FROM `xayagame_current` WHERE `key` = 'gamestate'")

	hasRow, err := stmt.Step()
	if err != nil {
		log.WithError(err).Panic("failed to fetch current game state")
	}
	if !hasRow {
		log.Panic("no current game state stored in database")
	}

	res := string(columnBlob(stmt, 0))
	StepWithNoResult(stmt)
	return res
}

// SetCurrentGameState replaces the current block hash and game state
// atomically inside a nested savepoint.  It requires a started transaction.
func (s *Storage) SetCurrentGameState(h hash.Hash, state string) {
	if !s.startedTransaction {
		log.Panic("SetCurrentGameState requires a started transaction")
	}
	db := s.GetDatabase()

	StepWithNoResult(db.Prepare("SAVEPOINT `xayagame-setcurrentstate`"))

	stmt := db.Prepare(
		"INSERT OR REPLACE INTO `xayagame_current` (`key`, `value`) " +
			"VALUES ('blockhash', ?1)")
	stmt.BindBytes(1, h.CloneBytes())
	StepWithNoResult(stmt)

	stmt = db.Prepare(
		"INSERT OR REPLACE INTO `xayagame_current` (`key`, `value`) " +
			"VALUES ('gamestate', ?1)")
	stmt.BindBytes(1, []byte(state))
	StepWithNoResult(stmt)

	StepWithNoResult(db.Prepare("RELEASE `xayagame-setcurrentstate`"))
}

// GetUndoData fetches the undo blob stored for the given block hash.  It
// returns false if none is stored.
func (s *Storage) GetUndoData(h hash.Hash) (data []byte, ok bool) {
	stmt := s.GetDatabase().Prepare(
		"SELECT `data` FROM `xayagame_undo` WHERE `hash` = ?1")
	stmt.BindBytes(1, h.CloneBytes())

	hasRow, err := stmt.Step()
	if err != nil {
		log.WithError(err).Panic("failed to fetch undo data")
	}
	if !hasRow {
		return
	}

	data = columnBlob(stmt, 0)
	StepWithNoResult(stmt)
	ok = true
	return
}

// AddUndoData stores the undo blob for the given block hash and height.
// It requires a started transaction.
func (s *Storage) AddUndoData(h hash.Hash, height uint32, data []byte) {
	if !s.startedTransaction {
		log.Panic("AddUndoData requires a started transaction")
	}

	stmt := s.GetDatabase().Prepare(
		"INSERT OR REPLACE INTO `xayagame_undo` (`hash`, `data`, `height`) " +
			"VALUES (?1, ?2, ?3)")
	stmt.BindBytes(1, h.CloneBytes())
	stmt.BindBytes(2, data)
	stmt.BindInt64(3, int64(height))
	StepWithNoResult(stmt)
}

// ReleaseUndoData removes the undo blob stored for the given block hash.
// It requires a started transaction.
func (s *Storage) ReleaseUndoData(h hash.Hash) {
	if !s.startedTransaction {
		log.Panic("ReleaseUndoData requires a started transaction")
	}

	stmt := s.GetDatabase().Prepare(
		"DELETE FROM `xayagame_undo` WHERE `hash` = ?1")
	stmt.BindBytes(1, h.CloneBytes())
	StepWithNoResult(stmt)
}

// PruneUndoData removes all undo blobs up to and including the given
// height.  It requires a started transaction.
func (s *Storage) PruneUndoData(height uint32) {
	if !s.startedTransaction {
		log.Panic("PruneUndoData requires a started transaction")
	}

	stmt := s.GetDatabase().Prepare(
		"DELETE FROM `xayagame_undo` WHERE `height` <= ?1")
	stmt.BindInt64(1, int64(height))
	StepWithNoResult(stmt)
}

/* Transaction bracket. */

// BeginTransaction opens the savepoint bracketing one block's mutations.
// Nested begins are invariant violations.
func (s *Storage) BeginTransaction() {
	if s.startedTransaction {
		log.Panic("cannot start a nested transaction")
	}
	s.startedTransaction = true
	StepWithNoResult(s.GetDatabase().Prepare("SAVEPOINT `xayagame-sqlitegame`"))
}

// CommitTransaction releases the bracketing savepoint.
func (s *Storage) CommitTransaction() {
	if !s.startedTransaction {
		log.Panic("commit without a started transaction")
	}
	StepWithNoResult(s.GetDatabase().Prepare("RELEASE `xayagame-sqlitegame`"))
	s.startedTransaction = false
}

// RollbackTransaction rolls back and releases the bracketing savepoint,
// discarding the block's mutations.
func (s *Storage) RollbackTransaction() {
	if !s.startedTransaction {
		log.Panic("rollback without a started transaction")
	}
	if s.rollbackGuard != nil && s.rollbackGuard() {
		log.Panic("cannot roll back a transaction while an AutoId scope is active")
	}
	db := s.GetDatabase()
	StepWithNoResult(db.Prepare("ROLLBACK TO `xayagame-sqlitegame`"))
	StepWithNoResult(db.Prepare("RELEASE `xayagame-sqlitegame`"))
	s.startedTransaction = false
}

// InTransaction reports whether the block transaction bracket is open.
func (s *Storage) InTransaction() bool {
	return s.startedTransaction
}
