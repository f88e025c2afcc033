package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// ErrSnapshotNotFound is returned when no snapshot was published under a name.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore publishes merged tree snapshots to Redis so that processes
// that do not merge themselves can read the current tree.
type SnapshotStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the SnapshotStore.
type Option func(*SnapshotStore)

// WithTTL sets the expiration for published snapshots.
func WithTTL(ttl time.Duration) Option {
	return func(s *SnapshotStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for snapshots.
func WithPrefix(prefix string) Option {
	return func(s *SnapshotStore) {
		s.prefix = prefix
	}
}

// NewSnapshotStore creates a snapshot store from an existing client.
func NewSnapshotStore(client *backend.Client, opts ...Option) *SnapshotStore {
	s := &SnapshotStore{
		client: client,
		prefix: "arbor:tree:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SnapshotStore) key(name string) string {
	return s.prefix + name
}

func (s *SnapshotStore) indexKey() string {
	return s.prefix + "index"
}

// Save publishes snap under name, replacing any previous snapshot.
func (s *SnapshotStore) Save(ctx context.Context, name string, snap domain.NodeSnapshot) error {
	if name == "" {
		return fmt.Errorf("snapshot name cannot be empty")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(name), data, s.ttl)
	pipe.SAdd(ctx, s.indexKey(), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save snapshot to redis: %w", err)
	}
	return nil
}

// Load returns the snapshot published under name.
func (s *SnapshotStore) Load(ctx context.Context, name string) (domain.NodeSnapshot, error) {
	data, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, backend.Nil) {
		return domain.NodeSnapshot{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	if err != nil {
		return domain.NodeSnapshot{}, fmt.Errorf("failed to load snapshot from redis: %w", err)
	}

	var snap domain.NodeSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.NodeSnapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// List returns the names of published snapshots that have not expired.
func (s *SnapshotStore) List(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	var live []string
	for _, name := range names {
		n, err := s.client.Exists(ctx, s.key(name)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check snapshot %s: %w", name, err)
		}
		if n == 0 {
			s.client.SRem(ctx, s.indexKey(), name)
			continue
		}
		live = append(live, name)
	}
	sort.Strings(live)
	return live, nil
}

// Delete removes a published snapshot.
func (s *SnapshotStore) Delete(ctx context.Context, name string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(name))
	pipe.SRem(ctx, s.indexKey(), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
