package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/dto"
	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/adapters/loam"
	redisadapter "github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/redis/go-redis/v9"
)

// manifestSource is what the commands need from a manifest source.
type manifestSource interface {
	ports.ManifestSource
	Documents(ctx context.Context) ([]dto.ModuleDocument, error)
	Watch(ctx context.Context) (<-chan string, error)
}

func openSource(c config.Config) (manifestSource, error) {
	switch c.Source {
	case "loam":
		s, err := loam.Open(c.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return file.NewSource(c.Dir, file.WithStrict(c.Strict)), nil
	}
}

func newRedisClient(c config.Config) *redis.Client {
	if c.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: c.Redis.Addr})
}

// buildTree loads every manifest of src into a new tree.
// When client is not nil, merges are serialized through a Redis lock.
func buildTree(ctx context.Context, c config.Config, src ports.ManifestSource, client *redis.Client, name string, hooks domain.LifecycleHooks) (*arbor.Tree, error) {
	opts := []arbor.Option{
		arbor.WithName(name),
		arbor.WithLogger(logger),
		arbor.WithNotifications(c.Notify),
		arbor.WithLifecycleHooks(hooks),
	}
	if client != nil {
		opts = append(opts, arbor.WithLocker(redisadapter.NewLocker(client, c.Redis.Prefix), c.Redis.LockTTL))
	}

	t := arbor.New(opts...)
	if err := t.Load(ctx, src); err != nil {
		return nil, fmt.Errorf("merge failed: %w", err)
	}
	return t, nil
}

// liveTree serves reads from the most recently merged tree, so a rebuilt
// tree can replace the current one while servers keep running.
type liveTree struct {
	current atomic.Pointer[arbor.Tree]
}

func (l *liveTree) Store(t *arbor.Tree) { l.current.Store(t) }

func (l *liveTree) Snapshot(path string) (domain.NodeSnapshot, error) {
	return l.current.Load().Snapshot(path)
}

func (l *liveTree) Errors() []domain.ReportedError {
	return l.current.Load().Errors()
}

func (l *liveTree) Modules() map[string]bool {
	return l.current.Load().Modules()
}

func (l *liveTree) NodesForCondition(name string) []domain.NodeSnapshot {
	return l.current.Load().NodesForCondition(name)
}

// watchAndRebuild rebuilds the tree on every manifest change until ctx is done.
// A failed rebuild keeps the previous tree.
func watchAndRebuild(ctx context.Context, src manifestSource, rebuild func(context.Context) (*arbor.Tree, error), live *liveTree) error {
	changes, err := src.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for changed := range changes {
			t, err := rebuild(ctx)
			if err != nil {
				logger.Error("rebuild failed", "changed", changed, "err", err)
				continue
			}
			live.Store(t)
			logger.Info("tree rebuilt", "changed", changed, "errors", len(t.Errors()))
		}
	}()
	return nil
}

func countErrors(errs []domain.ReportedError) (errors, warnings int) {
	for _, e := range errs {
		if e.Warning {
			warnings++
		} else {
			errors++
		}
	}
	return errors, warnings
}
