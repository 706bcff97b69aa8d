package redis

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"datalens/pkg/logger"

	"github.com/go-redis/redis/v8"
)

type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func Connect(config Config, log *logger.Logger) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%s", config.Host, config.Port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     20,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Redis connected", "addr", addr)
	return client, nil
}

var statKeys = map[string]struct{}{
	"redis_version":     {},
	"connected_clients": {},
	"used_memory_human": {},
	"keyspace_hits":     {},
	"keyspace_misses":   {},
	"uptime_in_seconds": {},
}

// GetStats returns a small subset of INFO fields.
func GetStats(ctx context.Context, client *redis.Client) (map[string]string, error) {
	info, err := client.Info(ctx).Result()
	if err != nil {
		return nil, err
	}
	return ParseInfo(info), nil
}

// ParseInfo extracts the tracked fields from an INFO reply.
func ParseInfo(info string) map[string]string {
	stats := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if _, ok := statKeys[key]; ok {
			stats[key] = value
		}
	}
	return stats
}
