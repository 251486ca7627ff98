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
	"strings"

	"github.com/pkg/errors"
)

// memoryFileName is the sqlite sentinel for a temporary in-memory database.
const memoryFileName = ":memory:"

// databaseFile is the location of the sqlite file backing a Storage.  All
// connection options are set through open flags and pragmas, so a bare
// file reference is all the engine accepts: Clear has to be able to remove
// the file by name, and URI query parameters could silently override the
// journaling and locking behaviour the engine depends on.
type databaseFile struct {
	name string
}

// newDatabaseFile normalizes the given file reference, stripping an
// optional file: prefix.  References carrying URI parameters are rejected.
func newDatabaseFile(s string) (f databaseFile, err error) {
	if strings.ContainsAny(s, "?#") {
		err = errors.Errorf("database file %q must not carry URI parameters", s)
		return
	}
	f.name = strings.TrimPrefix(s, "file:")
	if f.name == "" {
		err = errors.New("database file name is empty")
	}
	return
}

// Name returns the plain file name, as passed to os.Remove by Clear.
func (f databaseFile) Name() string { return f.name }

// IsMemory reports whether the file refers to a temporary in-memory
// database.
func (f databaseFile) IsMemory() bool { return f.name == memoryFileName }

// URI returns the file: form the connections are opened with.
func (f databaseFile) URI() string { return "file:" + f.name }
