package storage

import (
	"bytes"

	"github.com/boltdb/bolt"
	"golang.org/x/sys/unix"
)

var bucket = []byte("files")

// Bolt is a Backend persisted in a bolt database, one key per object.
type Bolt struct {
	db *bolt.DB
}

func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0644, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Bolt{db: db}, nil
}

func (s *Bolt) Close() error {
	return s.db.Close()
}

func (s *Bolt) Create(name string) error {
	if err := ValidName(name); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(name), []byte{})
	})
}

func (s *Bolt) Size(name string) (size int, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		data, ok := get(tx.Bucket(bucket), name)
		if !ok {
			return unix.ENOENT
		}
		size = len(data)
		return nil
	})
	return size, err
}

func (s *Bolt) ReadAt(name string, p []byte, off int) (n int, err error) {
	verr := s.db.View(func(tx *bolt.Tx) error {
		data, ok := get(tx.Bucket(bucket), name)
		if !ok {
			return unix.ENOENT
		}
		// data is only valid inside the transaction; readAt copies out.
		n, err = readAt(data, p, off)
		return nil
	})
	if verr != nil {
		return 0, verr
	}
	return n, err
}

func (s *Bolt) WriteAt(name string, p []byte, off int) (int, error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		data, ok := get(b, name)
		if !ok {
			return unix.ENOENT
		}
		buf := make([]byte, len(data))
		copy(buf, data)
		return b.Put([]byte(name), writeAt(buf, p, off))
	})
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *Bolt) Remove(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if _, ok := get(b, name); !ok {
			return unix.ENOENT
		}
		return b.Delete([]byte(name))
	})
}

// get tells a missing key from an empty object, which Get cannot.
func get(b *bolt.Bucket, name string) ([]byte, bool) {
	k, v := b.Cursor().Seek([]byte(name))
	if k == nil || !bytes.Equal(k, []byte(name)) {
		return nil, false
	}
	return v, true
}
