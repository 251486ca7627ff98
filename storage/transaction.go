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
	"github.com/CovenantSQL/GameSQL/utils/log"
)

// TxStorage is the transaction face of a storage as seen by the
// TransactionManager.
type TxStorage interface {
	BeginTransaction()
	CommitTransaction()
	RollbackTransaction()
}

// TransactionManager batches logical block transactions into fewer storage
// transactions while the host is catching up.  With a batch size of one it
// is a transparent pass-through.  A rollback always aborts the entire
// current batch.
type TransactionManager struct {
	storage TxStorage

	// batchSize <= 1 disables batching.
	batchSize int

	// batchedCommits counts logically committed but still batched
	// transactions.  If nonzero, a transaction on the underlying storage
	// is open.
	batchedCommits int

	// inTransaction reports a transaction started on the manager itself,
	// independent of batching.
	inTransaction bool
}

// NewTransactionManager returns a manager over the given storage with
// batching disabled.
func NewTransactionManager(s TxStorage) *TransactionManager {
	return &TransactionManager{storage: s, batchSize: 1}
}

// SetStorage replaces the underlying storage.  Batched commits are flushed
// to the previous storage first.  It must not be called while a transaction
// is in progress on the manager.
func (m *TransactionManager) SetStorage(s TxStorage) {
	if m.inTransaction {
		log.Panic("cannot replace storage during a transaction")
	}
	m.Flush()
	m.storage = s
}

// SetBatchSize changes the desired batch size; it must be at least one.
// If the current batch already reaches the new size, it is committed right
// away.
func (m *TransactionManager) SetBatchSize(size int) {
	if size < 1 {
		log.Panicf("invalid transaction batch size %d", size)
	}
	m.batchSize = size
	log.WithField("batch", size).Debug("set transaction batch size")
	if !m.inTransaction && m.batchedCommits >= m.batchSize {
		m.Flush()
	}
}

// Flush commits the currently batched transactions to the underlying
// storage.  It must not be called while a transaction is in progress.
func (m *TransactionManager) Flush() {
	if m.inTransaction {
		log.Panic("cannot flush batched transactions during a transaction")
	}
	if m.batchedCommits == 0 {
		return
	}
	log.WithField("batched", m.batchedCommits).
		Debug("committing batched transactions")
	m.storage.CommitTransaction()
	m.batchedCommits = 0
}

// BeginTransaction starts a transaction on the manager.  The underlying
// storage transaction is only started when no batch is currently open.
func (m *TransactionManager) BeginTransaction() {
	if m.inTransaction {
		log.Panic("cannot start a nested transaction on the manager")
	}
	m.inTransaction = true
	if m.batchedCommits == 0 {
		m.storage.BeginTransaction()
	}
}

// CommitTransaction commits the transaction on the manager.  Depending on
// the batch state this either just records the commit or flushes the whole
// batch to the underlying storage.
func (m *TransactionManager) CommitTransaction() {
	if !m.inTransaction {
		log.Panic("commit without a started transaction on the manager")
	}
	m.inTransaction = false
	m.batchedCommits++
	if m.batchedCommits >= m.batchSize {
		m.Flush()
	}
}

// RollbackTransaction aborts the transaction on the manager together with
// the entire currently batched set.
func (m *TransactionManager) RollbackTransaction() {
	if !m.inTransaction {
		log.Panic("rollback without a started transaction on the manager")
	}
	if m.batchedCommits > 0 {
		log.Warningf("rolling back %d batched transactions as well",
			m.batchedCommits)
	}
	m.storage.RollbackTransaction()
	m.inTransaction = false
	m.batchedCommits = 0
}
