package redisholder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/newsupernova0617/convert-for-you/internal/config"
)

// Build connects to redis (cluster first, single-node fallback) and starts
// a background health loop that rebuilds the client on ping failure.
func Build(ctx context.Context, cfg *config.Config) (*Holder, error) {
	cl, err := connect(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("create redis client: %w", err)
	}

	h := NewHolder(cl)
	go healthLoop(ctx, h, &cfg.Redis)
	return h, nil
}

func connect(cfg *config.RedisConfig) (redis.UniversalClient, error) {
	cl, clusterErr := newClusterClient(cfg)
	if clusterErr == nil {
		return cl, nil
	}
	single, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("[redis] cluster client failed (%v); using single-node client", clusterErr)
	return single, nil
}

func healthLoop(ctx context.Context, h *Holder, cfg *config.RedisConfig) {
	interval := cfg.HealthCheckInterval * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	log.Printf("[redis] health loop started (interval=%v)", interval)

	ping := func() {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := h.Get().Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return
		}
		log.Printf("[redis] ping failed (%v); attempting reconnect", err)

		newCl, newErr := connect(cfg)
		if newErr != nil {
			log.Printf("[redis] reconnect failed: %v", newErr)
			return
		}
		if old := h.swap(newCl); old != nil {
			_ = old.Close()
		}
		log.Printf("[redis] reconnected")
	}

	ping()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = h.Close()
			log.Printf("[redis] health loop stopped (%v)", ctx.Err())
			return
		case <-t.C:
			ping()
		}
	}
}

func newClusterClient(cfg *config.RedisConfig) (*redis.ClusterClient, error) {
	if len(cfg.Nodes) < 2 {
		return nil, errors.New("not enough nodes for a cluster")
	}

	nodeAddrs := make([]string, 0, len(cfg.Nodes))
	for _, node := range cfg.Nodes {
		nodeAddrs = append(nodeAddrs, node.Addr())
	}

	cl := redis.NewClusterClient(&redis.ClusterOptions{
		RouteByLatency: true,
		Password:       cfg.Password,
		Addrs:          nodeAddrs,
		DialTimeout:    cfg.DialTimeout * time.Second,
		ReadTimeout:    cfg.ReadTimeout * time.Second,
		WriteTimeout:   cfg.WriteTimeout * time.Second,
		PoolSize:       cfg.PoolSize,
		PoolTimeout:    30 * time.Second,
	})

	if err := cl.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("error pinging redis cluster: %w", err)
	}
	return cl, nil
}

func newClient(cfg *config.RedisConfig) (*redis.Client, error) {
	stickyErr := errors.New("no nodes defined")

	for _, node := range cfg.Nodes {
		cl := redis.NewClient(&redis.Options{
			Addr:         node.Addr(),
			Password:     cfg.Password,
			DB:           cfg.DatabaseID,
			DialTimeout:  cfg.DialTimeout * time.Second,
			ReadTimeout:  cfg.ReadTimeout * time.Second,
			WriteTimeout: cfg.WriteTimeout * time.Second,
		})

		if err := cl.Ping(context.Background()).Err(); err != nil {
			stickyErr = fmt.Errorf("error pinging redis server: %w", err)
			_ = cl.Close()
			continue
		}
		return cl, nil
	}
	return nil, stickyErr
}
