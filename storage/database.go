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
	"sync"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/GameSQL/utils/log"
)

// openLogOnce guards the one-shot engine banner logged when the first
// connection of the process is opened.
var openLogOnce sync.Once

// Database wraps one sqlite connection together with a cache of prepared
// statements.  A Database is either the single writer handle owned by a
// Storage, or a read-only snapshot handle pinned on a deferred read
// transaction.
type Database struct {
	conn  *sqlite.Conn
	stmts map[string]*sqlite.Stmt
	wal   bool

	// parent is set iff this handle is a read-only snapshot; closing the
	// handle then rolls back the pinned read transaction and releases the
	// parent's snapshot reference.
	parent *Storage
}

// openDatabase opens a connection to the given sqlite URI and negotiates
// WAL journaling.
func openDatabase(uri string, flags sqlite.OpenFlags) (db *Database, err error) {
	openLogOnce.Do(func() {
		log.Info("opening first sqlite connection of this process")
	})

	var conn *sqlite.Conn
	if conn, err = sqlite.OpenConn(uri, flags); err != nil {
		err = errors.Wrapf(err, "failed to open sqlite database %s", uri)
		return
	}
	db = &Database{
		conn:  conn,
		stmts: make(map[string]*sqlite.Stmt),
	}
	log.WithField("db", uri).Debug("opened sqlite database")

	// Snapshots require WAL.  The pragma reports the journaling mode in
	// effect, which on a read-only connection of a WAL database is simply
	// "wal" without any change being attempted.
	stmt := db.Prepare("PRAGMA `journal_mode` = WAL")
	hasRow, serr := stmt.Step()
	if serr != nil {
		log.WithError(serr).Panic("failed to negotiate journal mode")
	}
	if !hasRow {
		log.Panic("journal mode pragma returned no rows")
	}
	mode := stmt.ColumnText(0)
	StepWithNoResult(stmt)

	if mode == "wal" {
		db.wal = true
		log.Debug("set database to WAL mode")
	} else {
		log.Warningf("failed to set WAL mode, journaling is %s", mode)
	}
	return
}

// Prepare returns a reset, cleared-bindings statement for the given SQL,
// either from the per-connection cache or freshly prepared.  Statement
// preparation failures are invariant violations.
func (db *Database) Prepare(sql string) *sqlite.Stmt {
	return db.PrepareRo(sql)
}

// PrepareRo is the read-only form of Prepare: the caller asserts the
// statement will not mutate the database.  It is the only form legal on
// snapshot handles.
func (db *Database) PrepareRo(sql string) *sqlite.Stmt {
	if db.conn == nil {
		log.Panic("prepare on closed database handle")
	}

	if stmt, ok := db.stmts[sql]; ok {
		// Reset reports the error of the statement's last evaluation,
		// which is of no interest here.
		stmt.Reset()
		if err := stmt.ClearBindings(); err != nil {
			log.WithError(err).Error("failed to clear statement bindings")
		}
		return stmt
	}

	stmt, _, err := db.conn.PrepareTransient(sql)
	if err != nil {
		log.WithError(err).Panicf("failed to prepare SQL statement %q", sql)
	}
	db.stmts[sql] = stmt
	return stmt
}

// Conn exposes the underlying sqlite connection for session and changeset
// operations.
func (db *Database) Conn() *sqlite.Conn {
	return db.conn
}

// ExecScript runs a multi-statement SQL script on the connection.
func (db *Database) ExecScript(queries string) (err error) {
	return sqlitex.ExecScript(db.conn, queries)
}

// IsWalMode reports whether the connection negotiated WAL journaling.
func (db *Database) IsWalMode() bool {
	return db.wal
}

// setReadonlySnapshot pins the handle on a deferred read transaction and
// marks it as a snapshot of parent.  A deferred transaction materializes
// its read view only on the first query, so a trivial one is issued here.
func (db *Database) setReadonlySnapshot(parent *Storage) {
	if db.parent != nil {
		log.Panic("database handle is already a snapshot")
	}
	db.parent = parent
	log.Debug("starting read transaction for snapshot")

	StepWithNoResult(db.PrepareRo("BEGIN"))

	stmt := db.PrepareRo("SELECT COUNT(*) FROM `sqlite_master`")
	hasRow, err := stmt.Step()
	if err != nil {
		log.WithError(err).Panic("failed to materialize snapshot read view")
	}
	if !hasRow {
		log.Panic("snapshot materialization query returned no rows")
	}
	StepWithNoResult(stmt)
}

// Close finalizes all cached statements and closes the connection.  For a
// snapshot handle the pinned read transaction is rolled back first and the
// parent's snapshot count is decremented afterwards.
func (db *Database) Close() (err error) {
	if db.conn == nil {
		log.Panic("double close of database handle")
	}

	if db.parent != nil {
		log.Debug("ending snapshot read transaction")
		StepWithNoResult(db.PrepareRo("ROLLBACK"))
	}

	for _, stmt := range db.stmts {
		// Finalize reports the error of the statement's last evaluation,
		// not one about finalising it, so the code is ignored here.
		stmt.Finalize()
	}
	db.stmts = nil

	if err = db.conn.Close(); err != nil {
		log.WithError(err).Error("failed to close sqlite database")
		err = errors.Wrap(err, "failed to close sqlite database")
	}
	db.conn = nil

	if db.parent != nil {
		db.parent.unrefSnapshot()
		db.parent = nil
	}
	return
}

// StepWithNoResult steps a statement and expects no (more) result rows,
// i.e. it is used for updates or to drain a single-row query.
func StepWithNoResult(stmt *sqlite.Stmt) {
	hasRow, err := stmt.Step()
	if err != nil {
		log.WithError(err).Panic("failed to step SQL statement")
	}
	if hasRow {
		log.Panic("expected SQL statement to return no more rows")
	}
}

// columnBlob reads a BLOB column into a fresh byte slice.
func columnBlob(stmt *sqlite.Stmt, col int) []byte {
	buf := make([]byte, stmt.ColumnLen(col))
	stmt.ColumnBytes(col, buf)
	return buf
}
