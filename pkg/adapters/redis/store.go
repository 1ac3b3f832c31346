// Package redis stores depletion step records in Redis and provides a
// distributed lock guarding a solver control port.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aretw0/coupler/pkg/domain"
	"github.com/aretw0/coupler/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "coupler:run:"

// farFuture is the index score of runs without expiration (2100-01-01).
const farFuture = 4102444800

// Store implements ports.ResultStore using Redis.
// Each run is a hash of step index to JSON record; a sorted set indexes runs
// by expiration.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

var _ ports.ResultStore = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the expiration of runs, refreshed on every save.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client { return s.client }

func (s *Store) key(runID string) string { return s.prefix + runID }

func (s *Store) indexKey() string { return s.prefix + "index" }

// Save persists the record and refreshes the run's expiration.
func (s *Store) Save(ctx context.Context, rec domain.StepRecord) error {
	if rec.RunID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(rec.RunID), strconv.Itoa(rec.Index), data)

	score := float64(farFuture)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(rec.RunID), s.ttl)
		score = float64(time.Now().Add(s.ttl).Unix())
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: rec.RunID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves one record.
func (s *Store) Load(ctx context.Context, runID string, index int) (domain.StepRecord, error) {
	val, err := s.client.HGet(ctx, s.key(runID), strconv.Itoa(index)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.StepRecord{}, domain.ErrRunNotFound
		}
		return domain.StepRecord{}, fmt.Errorf("failed to get from redis: %w", err)
	}
	return decode(val)
}

func decode(val string) (domain.StepRecord, error) {
	var rec domain.StepRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return domain.StepRecord{}, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return rec, nil
}

// List returns the records of a run ordered by index.
func (s *Store) List(ctx context.Context, runID string) ([]domain.StepRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list run: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrRunNotFound
	}
	records := make([]domain.StepRecord, 0, len(fields))
	for _, val := range fields {
		rec, err := decode(val)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Index < records[j].Index })
	return records, nil
}

// Runs returns the stored runs, pruning expired ones from the index.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired runs: %w", err)
	}
	runs, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Delete removes a run.
func (s *Store) Delete(ctx context.Context, runID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(runID))
	pipe.ZRem(ctx, s.indexKey(), runID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
