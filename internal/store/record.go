package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

// RecordStore reads and overwrites the whole document; there are no partial writes
type RecordStore interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
}

// Updater is a RecordStore that can apply a read-modify-write cycle exclusively, so
// several processes sharing one document do not overwrite each other's changes.
// apply mutates the freshly loaded document and reports whether it must be written;
// its error is returned unchanged and nothing is written. Update returns the document
// as it stands afterwards.
type Updater interface {
	Update(ctx context.Context, apply func(*Snapshot) (bool, error)) (Snapshot, error)
}

// FileRecordStore keeps the document in a JSON file
type FileRecordStore struct {
	Path string
}

// NewFileRecordStore creates a record store backed by the file at path
func NewFileRecordStore(path string) *FileRecordStore {
	return &FileRecordStore{Path: path}
}

// Load reads the file; a missing file is an empty document
func (f *FileRecordStore) Load(ctx context.Context) (Snapshot, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read %s: %w", f.Path, err)
	}
	return decodeSnapshot(data)
}

// Save writes the document to a temporary file next to Path and renames it into place
func (f *FileRecordStore) Save(ctx context.Context, s Snapshot) error {
	data, err := encodeSnapshot(s)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", f.Path, err)
	}
	return nil
}

// Update holds an exclusive lock on Path+".lock" across load, apply and save
func (f *FileRecordStore) Update(ctx context.Context, apply func(*Snapshot) (bool, error)) (Snapshot, error) {
	unlock, err := lockFile(ctx, f.Path+".lock")
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()

	snap, err := f.Load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	write, err := apply(&snap)
	if err != nil {
		return Snapshot{}, err
	}
	if write {
		if err := f.Save(ctx, snap); err != nil {
			return Snapshot{}, err
		}
	}
	return snap, nil
}

// RedisRecordStore keeps the document as a single JSON value under one key
type RedisRecordStore struct {
	client *redis.Client
	key    string
}

// NewRedisRecordStore creates a record store that reads and writes key on client
func NewRedisRecordStore(client *redis.Client, key string) *RedisRecordStore {
	return &RedisRecordStore{client: client, key: key}
}

// Load reads the document; a missing key is an empty document
func (r *RedisRecordStore) Load(ctx context.Context) (Snapshot, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read %s from redis: %w", r.key, err)
	}
	return decodeSnapshot(data)
}

// Save overwrites the document
func (r *RedisRecordStore) Save(ctx context.Context, s Snapshot) error {
	data, err := encodeSnapshot(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s to redis: %w", r.key, err)
	}
	return nil
}

// maxTxRetries bounds optimistic retries when another writer changes the key mid-update
const maxTxRetries = 10

// Update watches the key and writes inside MULTI/EXEC, retrying when another writer
// got in first
func (r *RedisRecordStore) Update(ctx context.Context, apply func(*Snapshot) (bool, error)) (Snapshot, error) {
	var result Snapshot
	var applyErr error

	txf := func(tx *redis.Tx) error {
		snap := Snapshot{}
		data, err := tx.Get(ctx, r.key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("failed to read %s from redis: %w", r.key, err)
		default:
			if snap, err = decodeSnapshot(data); err != nil {
				return err
			}
		}

		write, err := apply(&snap)
		if err != nil {
			applyErr = err
			return err
		}
		result = snap
		if !write {
			return nil
		}

		encoded, err := encodeSnapshot(snap)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key, encoded, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, r.key)
		if err == nil {
			return result, nil
		}
		if applyErr != nil {
			return Snapshot{}, applyErr
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return Snapshot{}, fmt.Errorf("failed to update %s in redis: %w", r.key, err)
		}
	}
	return Snapshot{}, fmt.Errorf("failed to update %s in redis: too many concurrent writers", r.key)
}
