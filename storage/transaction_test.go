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
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// recordingStorage counts the transaction calls reaching the underlying
// storage.
type recordingStorage struct {
	begins    int
	commits   int
	rollbacks int
}

func (r *recordingStorage) BeginTransaction()    { r.begins++ }
func (r *recordingStorage) CommitTransaction()   { r.commits++ }
func (r *recordingStorage) RollbackTransaction() { r.rollbacks++ }

func TestTransactionManager(t *testing.T) {
	Convey("Given a transaction manager over a recording storage", t, func() {
		var (
			rec = &recordingStorage{}
			m   = NewTransactionManager(rec)
		)

		Convey("Without batching it is a pass-through", func() {
			m.BeginTransaction()
			m.CommitTransaction()
			m.BeginTransaction()
			m.CommitTransaction()
			So(rec.begins, ShouldEqual, 2)
			So(rec.commits, ShouldEqual, 2)
		})

		Convey("With batching, commits are deferred", func() {
			m.SetBatchSize(3)
			for i := 0; i < 2; i++ {
				m.BeginTransaction()
				m.CommitTransaction()
			}
			So(rec.begins, ShouldEqual, 1)
			So(rec.commits, ShouldEqual, 0)

			Convey("The batch commits when it is full", func() {
				m.BeginTransaction()
				m.CommitTransaction()
				So(rec.commits, ShouldEqual, 1)
			})

			Convey("Flush commits a partial batch", func() {
				m.Flush()
				So(rec.commits, ShouldEqual, 1)
			})

			Convey("Shrinking the batch size commits right away", func() {
				m.SetBatchSize(1)
				So(rec.commits, ShouldEqual, 1)
			})

			Convey("A rollback aborts the whole batch", func() {
				m.BeginTransaction()
				m.RollbackTransaction()
				So(rec.rollbacks, ShouldEqual, 1)
				So(rec.commits, ShouldEqual, 0)

				m.BeginTransaction()
				m.CommitTransaction()
				So(rec.begins, ShouldEqual, 2)
			})

			Convey("Replacing the storage flushes the old batch", func() {
				other := &recordingStorage{}
				m.SetStorage(other)
				So(rec.commits, ShouldEqual, 1)
				m.BeginTransaction()
				m.CommitTransaction()
				So(other.begins, ShouldEqual, 1)
			})
		})

		Convey("Misuse panics", func() {
			So(func() { m.CommitTransaction() }, ShouldPanic)
			So(func() { m.RollbackTransaction() }, ShouldPanic)
			So(func() { m.SetBatchSize(0) }, ShouldPanic)
			m.BeginTransaction()
			So(func() { m.BeginTransaction() }, ShouldPanic)
			So(func() { m.Flush() }, ShouldPanic)
			So(func() { m.SetStorage(&recordingStorage{}) }, ShouldPanic)
		})
	})
}
