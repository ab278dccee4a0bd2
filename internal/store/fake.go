package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// FakeStore is an in-memory Store, grounded on data/cache/cache.go's
// memory type: a mutex-guarded map with expiry-aware entries,
// generalised here to also hold a sorted series per key. It exists so
// the ingestion engine, signal evaluator, and notifier can be tested
// without a live Redis instance.
type FakeStore struct {
	mu      sync.Mutex
	series  map[string][]Point
	kv      map[string]kvEntry
	created map[string]bool
}

type kvEntry struct {
	value string
	exp   time.Time
}

var _ Store = (*FakeStore)(nil)

// NewFake returns an empty FakeStore.
func NewFake() *FakeStore {
	return &FakeStore{
		series:  make(map[string][]Point),
		kv:      make(map[string]kvEntry),
		created: make(map[string]bool),
	}
}

func (f *FakeStore) CreateSeries(ctx context.Context, key string, retention time.Duration, policy DuplicatePolicy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.series[key]; !ok {
		f.series[key] = nil
	}
	f.created[key] = true
	return nil
}

func (f *FakeStore) Add(ctx context.Context, key string, timestampMS int64, value float64, policy DuplicatePolicy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	points := f.series[key]
	for i, p := range points {
		if p.TimestampMS == timestampMS {
			if policy == DuplicateLast {
				points[i].Value = value
			}
			return nil
		}
	}
	points = append(points, Point{TimestampMS: timestampMS, Value: value})
	sort.Slice(points, func(i, j int) bool { return points[i].TimestampMS < points[j].TimestampMS })
	f.series[key] = points
	return nil
}

func (f *FakeStore) Range(ctx context.Context, key string, startMS, endMS int64) ([]Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Point
	for _, p := range f.series[key] {
		if p.TimestampMS >= startMS && p.TimestampMS <= endMS {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *FakeStore) Delete(ctx context.Context, key string, startMS, endMS int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	points := f.series[key]
	kept := points[:0]
	for _, p := range points {
		if p.TimestampMS < startMS || p.TimestampMS > endMS {
			kept = append(kept, p)
		}
	}
	f.series[key] = kept
	return nil
}

func (f *FakeStore) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.kv[key]
	if !ok {
		return "", false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(f.kv, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (f *FakeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := kvEntry{value: value}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	f.kv[key] = e
	return nil
}

func (f *FakeStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.kv[key]
	if !ok {
		return 0, false, nil
	}
	if e.exp.IsZero() {
		return 0, false, nil
	}
	remaining := time.Until(e.exp)
	if remaining <= 0 {
		delete(f.kv, key)
		return 0, false, nil
	}
	return remaining, true, nil
}

func (f *FakeStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := f.Get(ctx, key)
	return ok, err
}

func (f *FakeStore) Close() error { return nil }
