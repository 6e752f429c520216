package paramstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mwswap/swapd/swap"
	"go.etcd.io/bbolt"
)

var (
	// dbFileName is the default file name of the parameter store's bbolt
	// file, mirroring the wallet database's own dbFileName convention.
	dbFileName = "swaps.db"

	// swapsBucketKey is the single root bucket. Its immediate children
	// are one bucket per swap id (16 raw bytes), and each of those has
	// one nested bucket per sub-tx id (spec §4.1: sub_tx_id 0 is the
	// default/top-level partition, so it gets a bucket like every other
	// sub-tx).
	swapsBucketKey = []byte("swaps")
)

// fileExists mirrors the wallet database's own existence check.
func fileExists(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return !os.IsNotExist(err)
	}

	return true
}

// Store is the persistent backing for every swap's Parameter Store.
type Store struct {
	db *bbolt.DB
}

// New opens (creating if necessary) the bbolt-backed parameter store at
// dbPath.
func New(dbPath string) (*Store, error) {
	if !fileExists(dbPath) {
		if err := os.MkdirAll(dbPath, 0700); err != nil {
			return nil, err
		}
	}

	path := filepath.Join(dbPath, dbFileName)
	bdb, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	err = bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(swapsBucketKey)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, err
	}

	return &Store{db: bdb}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// swapBucket returns (creating if necessary) the bucket for a swap.
func swapBucket(tx *bbolt.Tx, id swap.ID, create bool) (*bbolt.Bucket, error) {
	root := tx.Bucket(swapsBucketKey)
	if create {
		return root.CreateBucketIfNotExists(id[:])
	}

	return root.Bucket(id[:]), nil
}

// subTxBucket returns (creating if necessary) the nested bucket for one
// sub-tx of one swap.
func subTxBucket(tx *bbolt.Tx, id swap.ID, sub swap.SubTxID,
	create bool) (*bbolt.Bucket, error) {

	sb, err := swapBucket(tx, id, create)
	if err != nil {
		return nil, err
	}
	if sb == nil {
		return nil, nil
	}

	subKey := []byte{byte(sub)}
	if create {
		return sb.CreateBucketIfNotExists(subKey)
	}

	return sb.Bucket(subKey), nil
}

// Get fetches a parameter, returning ok=false if it was never set.
func Get[T any](s *Store, id swap.ID, sub swap.SubTxID, paramID swap.ParamID,
	codec Codec[T]) (T, bool, error) {

	var (
		zero T
		raw  []byte
	)

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := subTxBucket(tx, id, sub, false)
		if err != nil || bucket == nil {
			return err
		}

		v := bucket.Get(key(paramID))
		if v != nil {
			raw = append([]byte(nil), v...)
		}

		return nil
	})
	if err != nil {
		return zero, false, err
	}
	if raw == nil {
		return zero, false, nil
	}

	val, err := codec.Decode(raw)
	if err != nil {
		return zero, false, err
	}

	return val, true, nil
}

// GetRequired fetches a parameter, failing with swap.KindMissingParameter
// if it is absent or malformed.
func GetRequired[T any](s *Store, id swap.ID, sub swap.SubTxID,
	paramID swap.ParamID, codec Codec[T]) (T, error) {

	val, ok, err := Get(s, id, sub, paramID, codec)
	if err != nil {
		var zero T
		return zero, swap.NewError(swap.KindMissingParameter, err)
	}
	if !ok {
		var zero T
		return zero, swap.MissingParameter(sub, paramID)
	}

	return val, nil
}

// Set writes a single parameter immediately, outside of any Batch. Prefer
// Batch for state-machine turns; Set exists for one-off bookkeeping (for
// example recording Status from outside a turn).
func Set[T any](s *Store, id swap.ID, sub swap.SubTxID, paramID swap.ParamID,
	value T, codec Codec[T]) error {

	raw, err := codec.Encode(value)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := subTxBucket(tx, id, sub, true)
		if err != nil {
			return err
		}

		return bucket.Put(key(paramID), raw)
	})
}

// write is a staged, type-erased pending write, used by Batch.
type write struct {
	sub     swap.SubTxID
	param   swap.ParamID
	value   []byte
}

// Batch stages every parameter write produced during one state-machine turn
// and commits them atomically, satisfying the ordering guarantee in spec §5:
// "writes to the Parameter Store produced by one turn are committed
// atomically before the next turn is scheduled."
type Batch struct {
	store  *Store
	id     swap.ID
	writes []write
}

// NewBatch begins staging writes for the given swap.
func (s *Store) NewBatch(id swap.ID) *Batch {
	return &Batch{store: s, id: id}
}

// SetBatch stages a write; it is not visible to Get until Commit succeeds.
func SetBatch[T any](b *Batch, sub swap.SubTxID, paramID swap.ParamID,
	value T, codec Codec[T]) error {

	raw, err := codec.Encode(value)
	if err != nil {
		return err
	}

	b.writes = append(b.writes, write{sub: sub, param: paramID, value: raw})

	return nil
}

// Commit flushes every staged write in a single bbolt transaction. If it
// returns an error, none of the batch's writes are visible — the crash
// atomicity spec §5 requires.
func (b *Batch) Commit() error {
	if len(b.writes) == 0 {
		return nil
	}

	return b.store.db.Update(func(tx *bbolt.Tx) error {
		for _, w := range b.writes {
			bucket, err := subTxBucket(tx, b.id, w.sub, true)
			if err != nil {
				return fmt.Errorf("commit sub-tx %v: %w", w.sub, err)
			}

			if err := bucket.Put(key(w.param), w.value); err != nil {
				return err
			}
		}

		return nil
	})
}

// Discard drops all staged writes without touching the database, used when
// a turn ends in an error path that must not persist partial state.
func (b *Batch) Discard() {
	b.writes = nil
}
