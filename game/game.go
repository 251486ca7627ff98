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

	"github.com/pkg/errors"

	"github.com/CovenantSQL/GameSQL/conf"
	"github.com/CovenantSQL/GameSQL/storage"
	"github.com/CovenantSQL/GameSQL/types"
	"github.com/CovenantSQL/GameSQL/utils/log"
)

// SQLiteGame glues a GameLogic implementation onto the storage layer: it
// installs the engine's bookkeeping schema next to the application's,
// verifies claimed game states against the stored block hash, and drives
// forward and backward block processing with undo capture.
type SQLiteGame struct {
	logic GameLogic

	// database is nil until Initialise has been called.
	database *storage.Storage

	// tx batches block transactions for the host while catching up.
	tx *storage.TransactionManager

	// activeIds is the exclusive AutoId scope slot; at most one scope
	// exists per game at any moment.
	activeIds *activeAutoIds

	// messForDebug enables reversed unordered selects to shake out
	// ordering assumptions in the game logic.
	messForDebug bool
}

// NewSQLiteGame returns an uninitialised game bound to the given logic.
func NewSQLiteGame(logic GameLogic) *SQLiteGame {
	return &SQLiteGame{logic: logic}
}

// SetMessForDebug toggles reversed unordered selects.  It must be called
// before Initialise.
func (g *SQLiteGame) SetMessForDebug(val bool) {
	if g.database != nil {
		log.Panic("SetMessForDebug must be called before Initialise")
	}
	g.messForDebug = val
}

// Initialise opens the game database at the given file and sets up both
// the engine's and the application's schema.
func (g *SQLiteGame) Initialise(dbFile string) (err error) {
	if g.database != nil {
		log.Panic("game has already been initialised")
	}

	var st *storage.Storage
	if st, err = storage.NewStorage(dbFile); err != nil {
		return
	}
	st.SetSchemaHook(g.setupSchema)
	st.SetRollbackGuard(func() bool { return g.activeIds != nil })

	// The schema hook may use AutoIds, which reach the storage through
	// the game, so the reference must be in place before opening.
	g.database = st
	if err = st.Initialise(); err != nil {
		g.database = nil
		return
	}
	g.tx = storage.NewTransactionManager(st)
	return
}

// InitialiseFromConfig applies engine options from cfg and opens the game
// database.
func (g *SQLiteGame) InitialiseFromConfig(cfg *conf.Config) (err error) {
	if cfg.LogLevel != "" {
		log.SetStringLevel(cfg.LogLevel, log.InfoLevel)
	}
	g.SetMessForDebug(cfg.MessForDebug)
	if err = g.Initialise(cfg.DatabaseFile); err != nil {
		return
	}
	if cfg.BatchSize > 1 {
		g.tx.SetBatchSize(cfg.BatchSize)
	}
	return
}

// setupSchema installs the engine's bookkeeping tables, verifies that no
// databases are attached and runs the application's schema setup inside an
// AutoId scope.
func (g *SQLiteGame) setupSchema(db *storage.Database) (err error) {
	err = db.ExecScript(
		"CREATE TABLE IF NOT EXISTS `xayagame_gamevars` " +
			"(`onlyonerow` INTEGER PRIMARY KEY, `gamestate_initialised` INTEGER);\n" +
			"INSERT OR IGNORE INTO `xayagame_gamevars` " +
			"(`onlyonerow`, `gamestate_initialised`) VALUES (1, 0);\n" +
			"CREATE TABLE IF NOT EXISTS `xayagame_autoids` " +
			"(`key` TEXT PRIMARY KEY, `nextid` INTEGER);\n")
	if err != nil {
		return errors.Wrap(err, "failed to set up the game's database schema")
	}

	// Undo capture through the session extension only covers the main
	// database, so attached databases must not be used at all.  The
	// callback contract forbids ATTACH; verify nothing is attached here.
	ensureSingleDatabase(db)

	if g.messForDebug {
		if err = db.ExecScript("PRAGMA `reverse_unordered_selects` = 1;\n"); err != nil {
			return errors.Wrap(err, "failed to enable reverse unordered selects")
		}
		log.Info("enabled mess-for-debug in the database")
	}

	ids := newActiveAutoIds(g)
	defer ids.close()
	return g.logic.SetupSchema(db)
}

// ensureSingleDatabase verifies that only the main (and temp) database is
// present on the connection.  An attached database would escape changeset
// capture and therefore break rewinds.
func ensureSingleDatabase(db *storage.Database) {
	stmt := db.PrepareRo("PRAGMA `database_list`")
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			log.WithError(err).Panic("failed to list databases")
		}
		if !hasRow {
			return
		}
		name := stmt.ColumnText(1)
		if name != "main" && name != "temp" {
			log.Panicf("attached database %q is not allowed", name)
		}
	}
}

// isGameInitialised reads the one-shot initialised flag through the given
// handle, which may be a snapshot.
func isGameInitialised(db *storage.Database) bool {
	stmt := db.PrepareRo(
		"SELECT `gamestate_initialised` FROM `xayagame_gamevars`")

	hasRow, err := stmt.Step()
	if err != nil {
		log.WithError(err).Panic("failed to fetch game initialised flag")
	}
	if !hasRow {
		log.Panic("no row stored in xayagame_gamevars")
	}
	initialised := stmt.ColumnInt64(0) != 0
	storage.StepWithNoResult(stmt)

	return initialised
}

// initialiseGame installs the initial game state through the application
// callback if that has not happened yet.  The install runs inside a nested
// savepoint that is rolled back on application failure, returning the
// database to the uninitialised-but-schema-present state.
func (g *SQLiteGame) initialiseGame() (err error) {
	db := g.database.GetDatabase()

	if isGameInitialised(db) {
		log.Debug("game state is already initialised in the database")
		return
	}

	log.Info("setting initial state in the database")
	storage.StepWithNoResult(db.Prepare("SAVEPOINT `xayagame-stateinit`"))

	func() {
		ids := newActiveAutoIds(g)
		defer ids.close()
		err = g.logic.InitialiseState(db)
	}()

	if err != nil {
		log.WithError(err).Error("initialising state failed, rolling back the DB change")
		storage.StepWithNoResult(db.Prepare("ROLLBACK TO `xayagame-stateinit`"))
		storage.StepWithNoResult(db.Prepare("RELEASE `xayagame-stateinit`"))
		return errors.Wrap(err, "failed to initialise the game state")
	}

	storage.StepWithNoResult(db.Prepare(
		"UPDATE `xayagame_gamevars` SET `gamestate_initialised` = 1"))
	storage.StepWithNoResult(db.Prepare("RELEASE `xayagame-stateinit`"))
	log.Info("initialised the DB state successfully")
	return
}

// checkCurrentState verifies that the database state seen through db
// matches the claimed game state.
func (g *SQLiteGame) checkCurrentState(db *storage.Database, state types.GameState) bool {
	log.WithField("state", state.String()).
		Debug("checking if current database matches game state")

	// State-based calls only ever happen when a current block hash has
	// been stored.
	h, ok := storage.GetCurrentBlockHashOf(db)
	if !ok {
		log.Debug("no current block hash in the database")
		return false
	}
	hashHex := h.String()

	if !state.IsInitial() {
		if hashHex != state.BlockHash() {
			log.WithFields(log.Fields{
				"stored":  hashHex,
				"claimed": state.BlockHash(),
			}).Debug("current best block does not match claimed game state")
			return false
		}
		if !isGameInitialised(db) {
			log.Panic("current block hash is set but game is not initialised")
		}
		return true
	}

	_, initialHashHex := g.logic.GetInitialStateBlock()
	if hashHex != initialHashHex {
		log.WithFields(log.Fields{
			"stored":  hashHex,
			"genesis": initialHashHex,
		}).Debug("current best block does not match the game's initial block")
		return false
	}
	if !isGameInitialised(db) {
		log.Panic("current block hash is set but game is not initialised")
	}
	return true
}

// EnsureCurrentState verifies the claimed game state against the writer
// database.  A mismatch is an invariant violation.
func (g *SQLiteGame) EnsureCurrentState(state types.GameState) {
	if g.database == nil {
		log.Panic("game has not been initialised")
	}
	if !g.checkCurrentState(g.database.GetDatabase(), state) {
		log.Panicf("game state %q is inconsistent to the database", state.String())
	}
}

// GetInitialStateInternal returns the initial block and game state, and
// installs the initial state in the database if necessary.
func (g *SQLiteGame) GetInitialStateInternal() (height uint32, hashHex string, state types.GameState, err error) {
	height, hashHex = g.logic.GetInitialStateBlock()

	if g.database == nil {
		log.Panic("game has not been initialised")
	}
	if err = g.initialiseGame(); err != nil {
		return
	}

	state = types.InitialState()
	return
}

// ProcessForward advances the game state by one block.  It verifies the
// claimed old state, records all row-level mutations of the application
// callback, and returns the new state together with the captured forward
// changeset as undo blob.  The host brackets the call in Begin/Commit on
// the storage.
func (g *SQLiteGame) ProcessForward(oldState types.GameState, blk *types.BlockData) (newState types.GameState, undo []byte, err error) {
	g.EnsureCurrentState(oldState)

	db := g.database.GetDatabase()
	rec := newRecorder(db.Conn())
	defer rec.release()

	func() {
		ids := newActiveAutoIds(g)
		defer ids.close()
		err = g.logic.UpdateState(db, blk)
	}()
	if err != nil {
		err = errors.Wrap(err, "failed to update the game state")
		return
	}

	undo = rec.extractChangeset()
	newState = types.BlockState(blk.Block.Hash)
	return
}

// ProcessBackward rolls the game state back by one block, applying the
// inversion of the stored forward changeset.  It returns the state tag of
// the parent block.
func (g *SQLiteGame) ProcessBackward(newState types.GameState, blk *types.BlockData, undo []byte) (prevState types.GameState, err error) {
	g.EnsureCurrentState(newState)

	var inv *invertedChangeset
	if inv, err = invertChangeset(undo); err != nil {
		return
	}
	inv.apply(g.database.GetDatabase().Conn())

	prevState = types.BlockState(blk.Block.Parent)
	return
}

// Ids returns the AutoId for the given key.  It may only be used while the
// game logic is active, i.e. during one of the callbacks.
func (g *SQLiteGame) Ids(key string) *AutoId {
	if g.activeIds == nil {
		log.Panic("Ids can only be used while the game logic is active")
	}
	return g.activeIds.get(key)
}

// GameStateToJSON verifies the claimed state and renders it through the
// application callback.
func (g *SQLiteGame) GameStateToJSON(state types.GameState) (json.RawMessage, error) {
	g.EnsureCurrentState(state)
	return g.logic.GetStateAsJSON(g.database.GetDatabase())
}

// GetCustomStateData extracts application data for the claimed state.  If
// a snapshot matching the state can be acquired, the outer lock is
// released through unlock and the callback runs on the snapshot; otherwise
// the callback runs on the writer handle under the outer lock.
func (g *SQLiteGame) GetCustomStateData(state types.GameState, unlock func(),
	cb func(db *storage.Database) (json.RawMessage, error)) (json.RawMessage, error) {

	if g.database == nil {
		log.Panic("game has not been initialised")
	}

	if snap := g.database.GetSnapshot(); snap != nil {
		if g.checkCurrentState(snap, state) {
			// The snapshot pins a view matching the expected block
			// hash, so the main lock is no longer needed.
			if unlock != nil {
				unlock()
			}
			defer snap.Close()
			return cb(snap)
		}
		snap.Close()
	}

	// This may be needed e.g. when there are batched and uncommitted
	// changes on the database during initial catching up.
	log.Warning("using main database for GetCustomStateData")
	g.EnsureCurrentState(state)
	return cb(g.database.GetDatabase())
}

// GetStorage exposes the storage face to the host driver.
func (g *SQLiteGame) GetStorage() *storage.Storage {
	if g.database == nil {
		log.Panic("game has not been initialised")
	}
	return g.database
}

// Transactions returns the transaction manager bracketing block steps on
// the storage.
func (g *SQLiteGame) Transactions() *storage.TransactionManager {
	if g.tx == nil {
		log.Panic("game has not been initialised")
	}
	return g.tx
}

// GetDatabaseForTesting returns the writer handle for use in tests.
func (g *SQLiteGame) GetDatabaseForTesting() *storage.Database {
	if g.database == nil {
		log.Panic("game has not been initialised")
	}
	return g.database.GetDatabase()
}
