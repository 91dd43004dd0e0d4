package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"migrationhub/api/internal/config"
	"migrationhub/api/internal/zapier"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeExpired(context.Context) (int64, error) {
	p.calls.Add(1)
	return 2, p.err
}

func TestPurgeExpiredStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	purger := &countingPurger{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		purgeExpired(ctx, purger, 5*time.Millisecond, zap.NewNop())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for purger.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("purge never ran")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestPurgeExpiredKeepsRunningAfterError(t *testing.T) {
	defer goleak.VerifyNone(t)

	purger := &countingPurger{err: errors.New("connection reset")}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		purgeExpired(ctx, purger, 5*time.Millisecond, zap.NewNop())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for purger.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("purge stopped after the first failure")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestHookURLs(t *testing.T) {
	urls := hookURLs(config.Config{
		ZapierNewMigrationURL: "https://hooks.zapier.test/new",
		ZapierGitHubSyncURL:   "https://hooks.zapier.test/gh",
	})
	if urls[zapier.HookNewMigration] != "https://hooks.zapier.test/new" {
		t.Errorf("new_migration = %q", urls[zapier.HookNewMigration])
	}
	if urls[zapier.HookEmailDraft] != "" {
		t.Errorf("email_draft should be unset, got %q", urls[zapier.HookEmailDraft])
	}
	if urls[zapier.HookGitHubSync] != "https://hooks.zapier.test/gh" {
		t.Errorf("github_sync = %q", urls[zapier.HookGitHubSync])
	}
}
