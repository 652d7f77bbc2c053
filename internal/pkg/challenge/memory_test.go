package challenge

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T, ttl time.Duration) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(ttl, time.Hour)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConsumeIsSingleUse(t *testing.T) {
	s := newTestStore(t, time.Minute)
	ctx := context.Background()

	if err := s.Issue(ctx, 1, FlowRegistration, []byte("session-data")); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, err := s.Consume(ctx, 1, FlowRegistration)
	if err != nil {
		t.Fatalf("first Consume: %v", err)
	}
	if !bytes.Equal(got, []byte("session-data")) {
		t.Errorf("Consume returned %q", got)
	}

	if _, err := s.Consume(ctx, 1, FlowRegistration); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Consume: got %v, want ErrNotFound", err)
	}
}

func TestFlowsAreIndependent(t *testing.T) {
	s := newTestStore(t, time.Minute)
	ctx := context.Background()

	s.Issue(ctx, 1, FlowRegistration, []byte("reg"))
	s.Issue(ctx, 1, FlowAuthentication, []byte("auth"))

	if _, err := s.Consume(ctx, 1, FlowRegistration); err != nil {
		t.Fatalf("Consume registration: %v", err)
	}

	got, err := s.Get(ctx, 1, FlowAuthentication)
	if err != nil {
		t.Fatalf("Get authentication: %v", err)
	}
	if !bytes.Equal(got, []byte("auth")) {
		t.Errorf("authentication flow entry corrupted: %q", got)
	}
}

func TestPrincipalsAreIndependent(t *testing.T) {
	s := newTestStore(t, time.Minute)
	ctx := context.Background()

	s.Issue(ctx, 1, FlowAuthentication, []byte("one"))
	s.Issue(ctx, 2, FlowAuthentication, []byte("two"))

	if _, err := s.Consume(ctx, 1, FlowAuthentication); err != nil {
		t.Fatalf("Consume principal 1: %v", err)
	}
	if _, err := s.Get(ctx, 2, FlowAuthentication); err != nil {
		t.Errorf("principal 2 entry should survive: %v", err)
	}
}

func TestIssueReplacesLiveEntry(t *testing.T) {
	s := newTestStore(t, time.Minute)
	ctx := context.Background()

	s.Issue(ctx, 7, FlowRegistration, []byte("first"))
	s.Issue(ctx, 7, FlowRegistration, []byte("second"))

	got, err := s.Consume(ctx, 7, FlowRegistration)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if !bytes.Equal(got, []byte("second")) {
		t.Errorf("got %q, want the replacement entry", got)
	}
}

func TestExpiredEntryIsGone(t *testing.T) {
	s := newTestStore(t, 10*time.Millisecond)
	ctx := context.Background()

	s.Issue(ctx, 1, FlowAuthentication, []byte("stale"))
	time.Sleep(30 * time.Millisecond)

	if _, err := s.Get(ctx, 1, FlowAuthentication); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after expiry: got %v, want ErrNotFound", err)
	}
	if _, err := s.Consume(ctx, 1, FlowAuthentication); !errors.Is(err, ErrNotFound) {
		t.Errorf("Consume after expiry: got %v, want ErrNotFound", err)
	}
}

func TestGetDoesNotConsume(t *testing.T) {
	s := newTestStore(t, time.Minute)
	ctx := context.Background()

	s.Issue(ctx, 1, FlowRegistration, []byte("data"))

	if _, err := s.Get(ctx, 1, FlowRegistration); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := s.Get(ctx, 1, FlowRegistration); err != nil {
		t.Errorf("second Get should still see the entry: %v", err)
	}
}

func TestConcurrentConsumeYieldsOneWinner(t *testing.T) {
	s := newTestStore(t, time.Minute)
	ctx := context.Background()

	s.Issue(ctx, 42, FlowAuthentication, []byte("contested"))

	const goroutines = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Consume(ctx, 42, FlowAuthentication); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	var count int
	for range wins {
		count++
	}
	if count != 1 {
		t.Errorf("%d goroutines consumed the challenge, want exactly 1", count)
	}
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	s := NewMemoryStore(5*time.Millisecond, 10*time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	s.Issue(ctx, 1, FlowRegistration, []byte("doomed"))
	time.Sleep(50 * time.Millisecond)

	s.mu.Lock()
	remaining := len(s.entries)
	s.mu.Unlock()

	if remaining != 0 {
		t.Errorf("%d entries left after sweep, want 0", remaining)
	}
}
