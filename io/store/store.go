// Package store provides the persistent request journal using gowal and BadgerDB.
//
// Every dispatched and settled request is appended to the write-ahead log first
// and then materialised in BadgerDB. On startup the log is replayed so the
// database catches up with entries written before a crash.
package store

import (
	"encoding/binary"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/ledgerpool/core/dto"
	"github.com/vadiminshakov/ledgerpool/core/walrecord"
)

const (
	pendingPrefix = "pending/"
	outcomePrefix = "req/"
	lastReqIDKey  = "meta/last_req_id"
)

// ErrNotFound returned when no outcome is recorded for a request.
var ErrNotFound = errors.New("request not found")

// Store journals requests and serves their recorded outcomes.
type Store struct {
	wal *gowal.Wal
	db  *badger.DB

	mu   sync.Mutex
	next uint64
}

// RecoveryState contains information extracted from the WAL during startup.
type RecoveryState struct {
	// LastReqID is the highest reqId ever dispatched.
	LastReqID uint64
	// Pending lists requests dispatched but never settled, oldest first.
	Pending []*dto.DispatchedRequest
}

// New creates a new WAL-backed journal and catches the database up with the WAL.
func New(wal *gowal.Wal, dbPath string) (*Store, *RecoveryState, error) {
	if wal == nil {
		return nil, nil, errors.New("wal is nil")
	}
	if dbPath == "" {
		return nil, nil, errors.New("db path is empty")
	}

	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return nil, nil, errors.Wrap(err, "create badger directory")
	}

	opts := badger.DefaultOptions(dbPath).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open badger db")
	}

	s := &Store{wal: wal, db: db}

	recovery, err := s.recover()
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return s, recovery, nil
}

// Dispatched journals a request about to be broadcast.
func (s *Store) Dispatched(req *dto.DispatchedRequest) error {
	encoded, err := walrecord.EncodeDispatched(req)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.append(walrecord.KeyDispatched, encoded); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return applyDispatched(txn, req, encoded)
	})
}

// Settled journals the outcome of a request.
func (s *Store) Settled(res *dto.SettledRequest) error {
	encoded, err := walrecord.EncodeSettled(res)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.append(walrecord.KeySettled, encoded); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return applySettled(txn, res)
	})
}

// Outcome returns the recorded outcome of reqID. Returns ErrNotFound if the
// request never settled.
func (s *Store) Outcome(reqID uint64) (*dto.SettledRequest, error) {
	var res dto.SettledRequest
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(outcomeKey(reqID))
		if err != nil {
			if stdErrors.Is(err, badger.ErrKeyNotFound) {
				return errors.Wrapf(ErrNotFound, "request %d", reqID)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &res)
		})
	})
	if err != nil {
		return nil, err
	}

	return &res, nil
}

// LastReqID returns the highest reqId ever dispatched, or 0.
func (s *Store) LastReqID() (uint64, error) {
	var id uint64
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		id, err = lastReqID(txn)
		return err
	})
	return id, err
}

// Pending returns requests dispatched but not settled, oldest first.
func (s *Store) Pending() ([]*dto.DispatchedRequest, error) {
	var pending []*dto.DispatchedRequest
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(pendingPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				req, err := walrecord.DecodeDispatched(val)
				if err != nil {
					return err
				}
				pending = append(pending, req)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(pending, func(i, j int) bool { return pending[i].ReqID < pending[j].ReqID })
	return pending, nil
}

// Close closes the underlying Badger database. The WAL is owned by the caller.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) append(key string, value []byte) error {
	if err := s.wal.Write(s.next, key, value); err != nil {
		return errors.Wrapf(err, "write wal entry %d", s.next)
	}
	s.next++
	return nil
}

func (s *Store) recover() (*RecoveryState, error) {
	var (
		maxIndex   uint64
		hasEntries bool
	)

	for msg := range s.wal.Iterator() {
		if !hasEntries || msg.Idx > maxIndex {
			maxIndex = msg.Idx
		}
		hasEntries = true

		if err := s.db.Update(func(txn *badger.Txn) error {
			switch msg.Key {
			case walrecord.KeyDispatched:
				req, err := walrecord.DecodeDispatched(msg.Value)
				if err != nil {
					return err
				}
				return applyDispatched(txn, req, msg.Value)
			case walrecord.KeySettled:
				res, err := walrecord.DecodeSettled(msg.Value)
				if err != nil {
					return err
				}
				return applySettled(txn, res)
			default:
				log.Warnf("skipping unknown wal entry %d with key %q", msg.Idx, msg.Key)
				return nil
			}
		}); err != nil {
			return nil, errors.Wrapf(err, "apply wal entry %d", msg.Idx)
		}
	}

	if hasEntries {
		s.next = maxIndex + 1
	}

	last, err := s.LastReqID()
	if err != nil {
		return nil, errors.Wrap(err, "read last reqId")
	}
	pending, err := s.Pending()
	if err != nil {
		return nil, errors.Wrap(err, "read pending requests")
	}
	if len(pending) > 0 {
		log.Warnf("%d requests were dispatched but never settled", len(pending))
	}

	return &RecoveryState{LastReqID: last, Pending: pending}, nil
}

func applyDispatched(txn *badger.Txn, req *dto.DispatchedRequest, encoded []byte) error {
	// a replayed dispatch must not resurrect a request that already settled
	if _, err := txn.Get(outcomeKey(req.ReqID)); err == nil {
		return nil
	} else if !stdErrors.Is(err, badger.ErrKeyNotFound) {
		return err
	}

	if err := txn.Set(pendingKey(req.ReqID), cloneBytes(encoded)); err != nil {
		return err
	}

	last, err := lastReqID(txn)
	if err != nil {
		return err
	}
	if req.ReqID > last {
		return txn.Set([]byte(lastReqIDKey), binary.BigEndian.AppendUint64(nil, req.ReqID))
	}
	return nil
}

func applySettled(txn *badger.Txn, res *dto.SettledRequest) error {
	value, err := json.Marshal(res)
	if err != nil {
		return err
	}
	if err := txn.Delete(pendingKey(res.ReqID)); err != nil && !stdErrors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return txn.Set(outcomeKey(res.ReqID), value)
}

func lastReqID(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get([]byte(lastReqIDKey))
	if err != nil {
		if stdErrors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}

	var id uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return errors.Errorf("malformed last reqId of %d bytes", len(val))
		}
		id = binary.BigEndian.Uint64(val)
		return nil
	})
	return id, err
}

// keys are zero padded so badger iterates them in reqId order
func pendingKey(reqID uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", pendingPrefix, reqID))
}

func outcomeKey(reqID uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", outcomePrefix, reqID))
}

func cloneBytes(src []byte) []byte {
	if src == nil {
		return nil
	}

	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}
