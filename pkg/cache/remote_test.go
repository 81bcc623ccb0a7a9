package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

// Remote backends are exercised only when a server is configured:
//
//	FLOWTRIM_TEST_REDIS=localhost:6379 FLOWTRIM_TEST_MONGO=mongodb://localhost:27017 go test ./pkg/cache

func exerciseCache(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()
	key := "flowtrim-test:" + time.Now().Format(time.RFC3339Nano)

	if err := c.Set(ctx, key, []byte("payload"), time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, key)
	if err != nil || !hit || string(data) != "payload" {
		t.Fatalf("Get = %q, %v, %v", data, hit, err)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, key); hit {
		t.Error("Get after Delete should miss")
	}
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("FLOWTRIM_TEST_REDIS")
	if addr == "" {
		t.Skip("FLOWTRIM_TEST_REDIS not set")
	}
	c, err := NewRedisCache(context.Background(), addr)
	if err != nil {
		t.Fatalf("NewRedisCache error: %v", err)
	}
	defer c.Close()
	exerciseCache(t, c)
}

func TestMongoCache(t *testing.T) {
	uri := os.Getenv("FLOWTRIM_TEST_MONGO")
	if uri == "" {
		t.Skip("FLOWTRIM_TEST_MONGO not set")
	}
	c, err := NewMongoCache(context.Background(), uri, "flowtrim_test")
	if err != nil {
		t.Fatalf("NewMongoCache error: %v", err)
	}
	defer c.Close()
	exerciseCache(t, c)
}
