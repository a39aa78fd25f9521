package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/peerinst/internal/workflow"
)

func newRedisStore(t *testing.T) (workflow.StageStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return workflow.NewRedisStageStore(rdb, time.Hour), mr
}

func TestRedisStageStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)
	key := workflow.StageKey("alice", "a1", "q1")

	if sd, err := store.Get(ctx, key); err != nil || sd != nil {
		t.Fatalf("expected empty store, got %v, %v", sd, err)
	}

	in := &workflow.StageData{
		FirstAnswerChoice: 2,
		Rationale:         "because",
		Completed:         workflow.CompletedStart,
		RationaleVotes:    map[string]string{"r1": "up"},
	}
	if err := store.Put(ctx, key, in); err != nil {
		t.Fatalf("put: %v", err)
	}
	out, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if out == nil || out.FirstAnswerChoice != 2 || out.Completed != workflow.CompletedStart || out.RationaleVotes["r1"] != "up" {
		t.Fatalf("round trip mismatch: %+v", out)
	}

	if err := store.Clear(ctx, key); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if sd, err := store.Get(ctx, key); err != nil || sd != nil {
		t.Fatalf("expected cleared store, got %v, %v", sd, err)
	}
}

func TestRedisStageStoreSetsTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)
	key := workflow.StageKey("alice", "a1", "q1")

	if err := store.Put(ctx, key, &workflow.StageData{Completed: workflow.CompletedStart}); err != nil {
		t.Fatalf("put: %v", err)
	}
	// Abandoned attempts age out instead of lingering.
	if ttl := mr.TTL("peerinst:stage:" + key); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("unexpected ttl %v", ttl)
	}
	mr.FastForward(2 * time.Hour)
	if sd, err := store.Get(ctx, key); err != nil || sd != nil {
		t.Fatalf("expected expired entry, got %v, %v", sd, err)
	}
}
