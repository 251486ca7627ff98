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
	"bytes"

	"crawshaw.io/sqlite"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/GameSQL/utils/log"
)

// recorder wraps a sqlite session on the "main" database with all tables
// attached.  While it lives, every row-level mutation is captured; the
// serialized forward changeset is the undo blob stored for the block.
type recorder struct {
	session *sqlite.Session
}

// newRecorder starts recording on the given connection.
func newRecorder(conn *sqlite.Conn) *recorder {
	log.Debug("starting sqlite session to record undo data")

	session, err := conn.CreateSession("main")
	if err != nil {
		log.WithError(err).Panic("failed to start sqlite session")
	}
	if err = session.Attach(""); err != nil {
		session.Delete()
		log.WithError(err).Panic("failed to attach all tables to the sqlite session")
	}

	return &recorder{session: session}
}

// extractChangeset serializes the forward changeset recorded so far.
func (r *recorder) extractChangeset() []byte {
	log.Debug("extracting recorded undo data from sqlite session")
	if r.session == nil {
		log.Panic("extract on released recorder")
	}

	var buf bytes.Buffer
	if err := r.session.Changeset(&buf); err != nil {
		log.WithError(err).Panic("failed to extract current session changeset")
	}
	return buf.Bytes()
}

// release deletes the underlying session.  It is safe to call twice.
func (r *recorder) release() {
	if r.session != nil {
		r.session.Delete()
		r.session = nil
	}
}

// invertedChangeset owns the inversion of a stored forward changeset.
// Undo blobs hold the forward form; since most of them are never used for
// a rewind, inversion is deferred until one actually is.
type invertedChangeset struct {
	data []byte
}

// invertChangeset inverts the given forward changeset.
func invertChangeset(undo []byte) (inv *invertedChangeset, err error) {
	var buf bytes.Buffer
	if err = sqlite.ChangesetInvert(&buf, bytes.NewReader(undo)); err != nil {
		err = errors.Wrap(err, "failed to invert sqlite changeset")
		return
	}
	inv = &invertedChangeset{data: buf.Bytes()}
	return
}

// apply applies the inverted changeset to the connection.  A rewind
// unwinds exactly the last recorded block, so any conflict is an
// invariant violation and aborts.
func (c *invertedChangeset) apply(conn *sqlite.Conn) {
	err := conn.ChangesetApply(bytes.NewReader(c.data), nil,
		func(ct sqlite.ConflictType, it sqlite.ChangesetIter) sqlite.ConflictAction {
			log.WithField("conflict", ct).
				Error("changeset application has a conflict")
			return sqlite.SQLITE_CHANGESET_ABORT
		})
	if err != nil {
		log.WithError(err).Panic("failed to apply undo changeset")
	}
}
