package utils

import (
	"context"
	"testing"
	"time"
)

func TestRedisConfig_Defaults(t *testing.T) {
	got := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if got.DialTimeout <= 0 || got.ReadTimeout <= 0 || got.WriteTimeout <= 0 {
		t.Fatalf("expected timeout defaults, got %+v", got)
	}
	if got.PoolSize <= 0 {
		t.Fatalf("expected pool size default, got %d", got.PoolSize)
	}

	got = RedisConfig{Addr: "localhost:6379", PoolSize: 5, DialTimeout: time.Second}.withDefaults()
	if got.PoolSize != 5 || got.DialTimeout != time.Second {
		t.Fatalf("explicit values overwritten: %+v", got)
	}
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for missing addr")
	}
}
