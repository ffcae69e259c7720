package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/AxeWatch/go-api/axewatch/store"
)

// ScannedURLs returns every URL that currently has a snapshot, sorted.
func (s *Service) ScannedURLs(ctx context.Context) ([]string, error) {
	return s.loadSet(ctx, keyScannedURLs)
}

// TriggerURLs returns every URL known to expose a scan trigger, sorted.
func (s *Service) TriggerURLs(ctx context.Context) ([]string, error) {
	return s.loadSet(ctx, keyTriggerURLs)
}

// loadSet reads a URL set blob. A missing key is an empty set.
func (s *Service) loadSet(ctx context.Context, key string) ([]string, error) {
	value, err := s.kv.GetValue(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("fetch URL set %s: %w", key, err)
	}

	var urls []string
	if err := json.Unmarshal([]byte(value), &urls); err != nil {
		return nil, fmt.Errorf("unmarshal URL set %s: %w", key, err)
	}
	sort.Strings(urls)
	return urls, nil
}

func (s *Service) saveSet(ctx context.Context, key string, urls []string) error {
	sort.Strings(urls)
	data, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("marshal URL set %s: %w", key, err)
	}
	return s.kv.SetValue(ctx, key, string(data))
}

func (s *Service) addToSet(ctx context.Context, key, u string) error {
	urls, err := s.loadSet(ctx, key)
	if err != nil {
		return err
	}
	for _, existing := range urls {
		if existing == u {
			return nil
		}
	}
	return s.saveSet(ctx, key, append(urls, u))
}

func (s *Service) removeFromSet(ctx context.Context, key, u string) error {
	urls, err := s.loadSet(ctx, key)
	if err != nil {
		return err
	}
	kept := urls[:0]
	for _, existing := range urls {
		if existing != u {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(urls) {
		return nil
	}
	return s.saveSet(ctx, key, kept)
}
