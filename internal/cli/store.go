package cli

import (
	"context"
	"fmt"

	"github.com/aretw0/coupler/internal/config"
	"github.com/aretw0/coupler/pkg/adapters/file"
	"github.com/aretw0/coupler/pkg/adapters/memory"
	redisstore "github.com/aretw0/coupler/pkg/adapters/redis"
	"github.com/aretw0/coupler/pkg/ports"
)

// backend is the record store of a run plus its optional lock.
type backend struct {
	store  ports.ResultStore
	locker ports.DistributedLocker
	close  func() error
}

func openStore(ctx context.Context, cfg config.StoreConfig) (*backend, error) {
	nop := func() error { return nil }
	switch cfg.Kind {
	case config.StoreMemory:
		return &backend{store: memory.NewStore(), close: nop}, nil
	case config.StoreFile:
		return &backend{store: file.New(cfg.Path), close: nop}, nil
	case config.StoreRedis:
		var opts []redisstore.Option
		if cfg.TTL > 0 {
			opts = append(opts, redisstore.WithTTL(cfg.TTL))
		}
		prefix := redisstore.DefaultPrefix
		if cfg.Prefix != "" {
			prefix = cfg.Prefix
			opts = append(opts, redisstore.WithPrefix(prefix))
		}
		s := redisstore.New(cfg.Addr, cfg.Password, cfg.DB, opts...)
		if err := s.Client().Ping(ctx).Err(); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("redis %s unreachable: %w", cfg.Addr, err)
		}
		b := &backend{store: s, close: s.Close}
		if cfg.Lock {
			b.locker = redisstore.NewLocker(s.Client(), prefix)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
}
