package twime

import (
	"encoding/binary"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
)

// SeqStore keeps the sequence numbers of a session across process restarts, a session resumes where it stopped
// instead of detecting the whole trading day as a gap
type SeqStore interface {
	// Load returns 1,1 for a session never saved
	Load(account string) (rxSN uint64, txSN uint64, err error)
	Save(account string, rxSN uint64, txSN uint64) error
	Close() error
}

// OpenSeqStore opens a badger store in dir, or an in memory store if dir is empty
func OpenSeqStore(dir string) (SeqStore, error) {
	if dir == "" {
		return &memSeqStore{seqs: make(map[string][2]uint64)}, nil
	}
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening sequence store %s", dir)
	}
	return &badgerSeqStore{db: db}, nil
}

type memSeqStore struct {
	sync.Mutex
	seqs map[string][2]uint64
}

func (s *memSeqStore) Load(account string) (uint64, uint64, error) {
	s.Lock()
	defer s.Unlock()
	seq, ok := s.seqs[account]
	if !ok {
		return 1, 1, nil
	}
	return seq[0], seq[1], nil
}

func (s *memSeqStore) Save(account string, rxSN uint64, txSN uint64) error {
	s.Lock()
	defer s.Unlock()
	s.seqs[account] = [2]uint64{rxSN, txSN}
	return nil
}

func (s *memSeqStore) Close() error {
	return nil
}

type badgerSeqStore struct {
	db *badger.DB
}

func seqKey(account string) []byte {
	return []byte("twime/seq/" + account)
}

func (s *badgerSeqStore) Load(account string) (rxSN uint64, txSN uint64, err error) {
	rxSN, txSN = 1, 1
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(seqKey(account))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			if len(v) != 16 {
				return errors.Errorf("corrupt sequence record for %s", account)
			}
			rxSN = binary.LittleEndian.Uint64(v[0:])
			txSN = binary.LittleEndian.Uint64(v[8:])
			return nil
		})
	})
	return rxSN, txSN, errors.Wrap(err, "loading sequence numbers")
}

func (s *badgerSeqStore) Save(account string, rxSN uint64, txSN uint64) error {
	v := make([]byte, 16)
	binary.LittleEndian.PutUint64(v[0:], rxSN)
	binary.LittleEndian.PutUint64(v[8:], txSN)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(seqKey(account), v)
	})
	return errors.Wrap(err, "saving sequence numbers")
}

func (s *badgerSeqStore) Close() error {
	return s.db.Close()
}
