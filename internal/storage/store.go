package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

const (
	writeChannelSize = 1000
	batchSize        = 50
	flushInterval    = 100 * time.Millisecond
)

type writeOp struct {
	opType string
	fetch  *FetchRecord
}

// SQLiteStore persists fetch records through a single batched writer
// goroutine. Reads go straight to the database.
type SQLiteStore struct {
	db              *sql.DB
	writeChan       chan writeOp
	droppedWrites   atomic.Int64
	doneChan        chan struct{}
	closed          atomic.Bool
	cancelMaint     context.CancelFunc
	maintenanceDone chan struct{}
	retentionDays   int
}

func NewSQLiteStore(dbPath string, retentionDays int) (*SQLiteStore, error) {
	return newSQLiteStoreWithChannelSize(dbPath, writeChannelSize, retentionDays)
}

func newSQLiteStoreWithChannelSize(dbPath string, chanSize int, retentionDays int) (*SQLiteStore, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	store := &SQLiteStore{
		db:              db,
		writeChan:       make(chan writeOp, chanSize),
		doneChan:        make(chan struct{}),
		cancelMaint:     cancel,
		maintenanceDone: make(chan struct{}),
		retentionDays:   retentionDays,
	}

	go store.writerLoop()
	store.startMaintenance(ctx)

	return store, nil
}

// RecordFetch queues rec for persistence. It never blocks; when the queue is
// full the write is dropped and counted.
func (s *SQLiteStore) RecordFetch(rec FetchRecord) {
	s.sendWrite(writeOp{opType: "fetch", fetch: &rec})
}

func (s *SQLiteStore) sendWrite(op writeOp) {
	if s.closed.Load() {
		return
	}
	defer func() { _ = recover() }()
	select {
	case s.writeChan <- op:
	default:
		s.droppedWrites.Add(1)
		log.Warn("fetch log write channel full, dropped write", "type", op.opType)
	}
}

func (s *SQLiteStore) DroppedWrites() int64 {
	return s.droppedWrites.Load()
}

func (s *SQLiteStore) Close() error {
	s.closed.Store(true)

	s.cancelMaint()
	select {
	case <-s.maintenanceDone:
	case <-time.After(30 * time.Second):
		log.Warn("maintenance goroutine did not stop within 30s")
	}

	close(s.writeChan)

	select {
	case <-s.doneChan:
	case <-time.After(10 * time.Second):
		log.Error("failed to drain writes within 10s, data may be lost")
	}

	if err := s.runMaintenanceCycle(time.Now()); err != nil {
		log.Error("final maintenance failed", "err", err)
	}

	return s.db.Close()
}

func (s *SQLiteStore) writerLoop() {
	defer close(s.doneChan)

	batch := make([]writeOp, 0, batchSize)
	flushTimer := time.NewTimer(flushInterval)
	defer flushTimer.Stop()

	for {
		select {
		case op, ok := <-s.writeChan:
			if !ok {
				if len(batch) > 0 {
					s.flushBatch(batch)
				}
				return
			}

			batch = append(batch, op)

			if len(batch) >= batchSize {
				s.flushBatch(batch)
				batch = batch[:0]
				flushTimer.Reset(flushInterval)
			}

		case <-flushTimer.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
			flushTimer.Reset(flushInterval)
		}
	}
}

func (s *SQLiteStore) flushBatch(batch []writeOp) {
	tx, err := s.db.Begin()
	if err != nil {
		log.Error("failed to begin transaction", "err", err)
		return
	}
	defer func() { _ = tx.Rollback() }()

	for _, op := range batch {
		if err := s.executeOp(tx, op); err != nil {
			log.Error("failed to execute write op", "type", op.opType, "err", err)
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", "err", err)
	}
}

func (s *SQLiteStore) executeOp(tx *sql.Tx, op writeOp) error {
	switch op.opType {
	case "fetch":
		return writeFetch(tx, op.fetch)
	default:
		return fmt.Errorf("unknown op type: %s", op.opType)
	}
}
