package config

import (
	"fmt"
	"time"

	"gopkg.in/redis.v5"
)

// NewRedisClient connects to the Redis server at addr and pings it.
func NewRedisClient(addr string) (*redis.Client, error) {
	const defaultDialTimeout = time.Second * 5
	const defaultReadTimeout = time.Second * 3
	const defaultWriteTimeout = time.Second * 3
	const defaultPoolSize = 4

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		PoolSize:     defaultPoolSize,
	})

	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return client, nil
}
