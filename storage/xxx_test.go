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
	"io/ioutil"
	"os"
	"testing"

	"github.com/CovenantSQL/GameSQL/utils/log"
)

var testingDataDir string

func TestMain(m *testing.M) {
	var err error
	if testingDataDir, err = ioutil.TempDir("", "gamesql-storage-test-"); err != nil {
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
