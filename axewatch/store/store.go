// Package store provides the key/value backend for the scan cache.
package store

import (
	"context"
	"errors"
	"fmt"

	valkey "github.com/valkey-io/valkey-go"
)

// ErrNotFound is returned by GetValue when the key does not exist.
var ErrNotFound = errors.New("key not found")

// KVStore defines the key/value operations our store supports.
type KVStore interface {
	// SetValue sets the given key to the specified value.
	SetValue(ctx context.Context, key, value string) error
	// GetValue retrieves the value associated with the given key.
	// Returns an error wrapping ErrNotFound when the key is absent.
	GetValue(ctx context.Context, key string) (string, error)
	// ListKeys retrieves all keys matching the given pattern.
	ListKeys(ctx context.Context, pattern string) ([]string, error)
	// DeleteValue removes the value associated with the given key.
	DeleteValue(ctx context.Context, key string) error
	// Close shuts down the underlying connection.
	Close() error
}

// valkeyStore is a concrete implementation of KVStore using the valkey-go client.
type valkeyStore struct {
	client valkey.Client
}

// NewValkeyStore creates a new store connected to the given address.
func NewValkeyStore(addr string) (KVStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, err
	}
	return &valkeyStore{client: client}, nil
}

// SetValue implements KVStore by executing a SET command.
func (s *valkeyStore) SetValue(ctx context.Context, key, value string) error {
	cmd := s.client.B().Set().Key(key).Value(value).Build()
	return s.client.Do(ctx, cmd).Error()
}

// GetValue implements KVStore by executing a GET command.
func (s *valkeyStore) GetValue(ctx context.Context, key string) (string, error) {
	cmd := s.client.B().Get().Key(key).Build()
	resp := s.client.Do(ctx, cmd)

	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return "", fmt.Errorf("key '%s': %w", key, ErrNotFound)
		}
		return "", fmt.Errorf("valkey GET for key '%s' failed: %w", key, err)
	}

	value, err := resp.ToString()
	if err != nil {
		return "", fmt.Errorf("failed to convert valkey reply to string for key '%s': %w", key, err)
	}
	return value, nil
}

// ListKeys implements KVStore by executing a KEYS command with pattern matching.
func (s *valkeyStore) ListKeys(ctx context.Context, pattern string) ([]string, error) {
	cmd := s.client.B().Keys().Pattern(pattern).Build()
	resp := s.client.Do(ctx, cmd)

	if err := resp.Error(); err != nil {
		return nil, fmt.Errorf("valkey KEYS with pattern '%s' failed: %w", pattern, err)
	}

	keyMessages, err := resp.ToArray()
	if err != nil {
		return nil, fmt.Errorf("failed to convert valkey KEYS reply to array for pattern '%s': %w", pattern, err)
	}

	keys := make([]string, len(keyMessages))
	for i, msg := range keyMessages {
		k, err := msg.ToString()
		if err != nil {
			return nil, fmt.Errorf("failed to convert key at index %d in KEYS result for pattern '%s': %w", i, pattern, err)
		}
		keys[i] = k
	}
	return keys, nil
}

// DeleteValue implements KVStore by executing a DEL command.
func (s *valkeyStore) DeleteValue(ctx context.Context, key string) error {
	cmd := s.client.B().Del().Key(key).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to delete key '%s': %w", key, err)
	}
	return nil
}

// Close shuts down the underlying client connection.
func (s *valkeyStore) Close() error {
	s.client.Close()
	return nil
}
