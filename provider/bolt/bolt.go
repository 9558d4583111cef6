// Package bolt is a disk-backed provider on a single bbolt bucket.
// TTLs are not enforced by the store; entry frames carry their own expiry.
package bolt

import (
	"context"
	"errors"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"

	pr "github.com/unkn0wn-root/cachechain/provider"
)

const defaultBucket = "cachechain"

var ErrNoPath = errors.New("bolt provider: path is required")

type Provider struct {
	db     *bolt.DB
	bucket []byte
	ownDB  bool
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	Path        string        // database file; created if missing
	Bucket      string        // "" => "cachechain"
	FileMode    os.FileMode   // 0 => 0600
	OpenTimeout time.Duration // lock wait on open; 0 => 1s
	NoSync      bool          // skip fsync per commit (faster, loses last writes on crash)
}

func New(cfg Config) (*Provider, error) {
	if cfg.Path == "" {
		return nil, ErrNoPath
	}
	mode := cfg.FileMode
	if mode == 0 {
		mode = 0o600
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bolt.Open(cfg.Path, mode, &bolt.Options{Timeout: timeout, NoSync: cfg.NoSync})
	if err != nil {
		return nil, err
	}
	p, err := NewWithDB(db, cfg.Bucket)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	p.ownDB = true
	return p, nil
}

// NewWithDB uses an already open database. Close leaves db open.
func NewWithDB(db *bolt.DB, bucket string) (*Provider, error) {
	if bucket == "" {
		bucket = defaultBucket
	}
	p := &Provider{db: db, bucket: []byte(bucket)}
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(p.bucket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	var out []byte
	err := p.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(p.bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			// v is only valid inside the transaction
			out = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	err := p.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(p.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(p.bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// Clear drops and recreates the bucket in one transaction.
func (p *Provider) Clear(_ context.Context) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(p.bucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(p.bucket)
		return err
	})
}

func (p *Provider) Close(_ context.Context) error {
	if !p.ownDB {
		return nil
	}
	err := p.db.Close()
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return nil
	}
	return err
}
