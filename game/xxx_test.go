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
	"io/ioutil"
	"os"
	"sort"
	"testing"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/GameSQL/storage"
	"github.com/CovenantSQL/GameSQL/types"
	"github.com/CovenantSQL/GameSQL/utils/log"
)

var testingDataDir string

func TestMain(m *testing.M) {
	var err error
	if testingDataDir, err = ioutil.TempDir("", "gamesql-game-test-"); err != nil {
		panic(err)
	}
	log.SetOutput(ioutil.Discard)

	code := m.Run()

	os.RemoveAll(testingDataDir)
	os.Exit(code)
}

// removeDatabaseFiles removes the database file together with its WAL
// side files.
func removeDatabaseFiles(t *testing.T, fl string) {
	for _, f := range []string{fl, fl + "-shm", fl + "-wal"} {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			t.Errorf("failed to remove %s: %v", f, err)
		}
	}
}

const (
	genesisHex = "0000000000000000000000000000000000000000000000000000000000000001"
	block1Hex  = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	block2Hex  = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	wrongHex   = "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"
)

// testMoves is the move format interpreted by testLogic.
type testMoves struct {
	Set     map[string]int64 `json:"set,omitempty"`
	Players []string         `json:"players,omitempty"`
	Fail    bool             `json:"fail,omitempty"`
}

// testLogic is a small key/value game with auto-assigned player ids.
type testLogic struct {
	game      *SQLiteGame
	initCalls int
}

func (l *testLogic) GetInitialStateBlock() (height uint32, hashHex string) {
	return 10, genesisHex
}

func (l *testLogic) SetupSchema(db *storage.Database) error {
	return db.ExecScript(
		"CREATE TABLE IF NOT EXISTS `game_kv` " +
			"(`k` TEXT PRIMARY KEY, `v` INTEGER);\n" +
			"CREATE TABLE IF NOT EXISTS `game_players` " +
			"(`id` INTEGER PRIMARY KEY, `name` TEXT);\n")
}

func (l *testLogic) InitialiseState(db *storage.Database) error {
	l.initCalls++
	stmt := db.Prepare(
		"INSERT OR REPLACE INTO `game_kv` (`k`, `v`) VALUES ('epoch', 0)")
	storage.StepWithNoResult(stmt)
	return nil
}

func (l *testLogic) UpdateState(db *storage.Database, blk *types.BlockData) error {
	var moves testMoves
	if len(blk.Moves) > 0 {
		if err := json.Unmarshal(blk.Moves, &moves); err != nil {
			return err
		}
	}
	if moves.Fail {
		return errors.New("update failed on request")
	}

	for k, v := range moves.Set {
		stmt := db.Prepare(
			"INSERT OR REPLACE INTO `game_kv` (`k`, `v`) VALUES (?1, ?2)")
		stmt.BindText(1, k)
		stmt.BindInt64(2, v)
		storage.StepWithNoResult(stmt)
	}
	for _, name := range moves.Players {
		id := l.game.Ids("players").GetNext()
		stmt := db.Prepare(
			"INSERT INTO `game_players` (`id`, `name`) VALUES (?1, ?2)")
		stmt.BindInt64(1, id)
		stmt.BindText(2, name)
		storage.StepWithNoResult(stmt)
	}
	return nil
}

func (l *testLogic) GetStateAsJSON(db *storage.Database) (json.RawMessage, error) {
	kv, err := readAllKv(db)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(kv)
	return json.RawMessage(raw), err
}

// readAllKv reads the whole game_kv table through the given handle.
func readAllKv(db *storage.Database) (kv map[string]int64, err error) {
	kv = make(map[string]int64)
	stmt := db.PrepareRo("SELECT `k`, `v` FROM `game_kv`")
	for {
		var hasRow bool
		if hasRow, err = stmt.Step(); err != nil {
			return nil, err
		}
		if !hasRow {
			return
		}
		kv[stmt.ColumnText(0)] = stmt.ColumnInt64(1)
	}
}

// readPlayers reads the whole game_players table ordered by id.
func readPlayers(db *storage.Database) (names []string, err error) {
	stmt := db.PrepareRo("SELECT `id`, `name` FROM `game_players`")
	byID := make(map[int64]string)
	ids := make([]int64, 0)
	for {
		var hasRow bool
		if hasRow, err = stmt.Step(); err != nil {
			return nil, err
		}
		if !hasRow {
			break
		}
		id := stmt.ColumnInt64(0)
		byID[id] = stmt.ColumnText(1)
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		names = append(names, byID[id])
	}
	return
}

// readAutoId reads the stored nextid for key, returning ok=false when no
// row exists.
func readAutoId(db *storage.Database, key string) (next int64, ok bool, err error) {
	stmt := db.PrepareRo(
		"SELECT `nextid` FROM `xayagame_autoids` WHERE `key` = ?1")
	stmt.BindText(1, key)
	var hasRow bool
	if hasRow, err = stmt.Step(); err != nil {
		return
	}
	if !hasRow {
		return
	}
	next = stmt.ColumnInt64(0)
	ok = true
	storage.StepWithNoResult(stmt)
	return
}

func newBlock(hashHex, parentHex string, height uint32, moves string) *types.BlockData {
	blk := &types.BlockData{
		Block: types.BlockHeader{
			Hash:   hashHex,
			Parent: parentHex,
			Height: height,
		},
	}
	if moves != "" {
		blk.Moves = json.RawMessage(moves)
	}
	return blk
}
