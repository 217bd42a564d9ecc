package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timshannon/badgerhold/v4"
)

var ErrNotFound = errors.New("session: key not found")

// Store persists named blobs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

type blob struct {
	Key       string
	Data      []byte
	UpdatedAt time.Time
}

// BadgerStore keeps session blobs in an embedded badger database.
type BadgerStore struct {
	store *badgerhold.Store
}

func NewBadgerStore(dir string) (*BadgerStore, error) {
	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return &BadgerStore{store: store}, nil
}

func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	var b blob
	if err := s.store.Get(key, &b); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return b.Data, nil
}

func (s *BadgerStore) Put(ctx context.Context, key string, data []byte) error {
	b := blob{Key: key, Data: data, UpdatedAt: time.Now()}
	if err := s.store.Upsert(key, &b); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.store.Close()
}
