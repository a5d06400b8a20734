package privacy

import (
	"sync"
	"testing"
	"time"

	"github.com/veridict/veridict/src/common"
)

func TestCheckAndDebit(t *testing.T) {
	m := NewManager(1.0, time.Hour, common.NewTestEntry(t))

	if err := m.CheckAndDebit("alice", 0.4); err != nil {
		t.Fatal(err)
	}
	if err := m.CheckAndDebit("alice", 0.4); err != nil {
		t.Fatal(err)
	}

	err := m.CheckAndDebit("alice", 0.4)
	if !IsBudgetExhausted(err) {
		t.Fatalf("expected BudgetExhaustedError, got %v", err)
	}

	// a failed debit must not consume anything
	if got := m.Remaining("alice"); got < 0.199999 || got > 0.200001 {
		t.Fatalf("remaining should still be ~0.2, got %f", got)
	}

	// other identities are unaffected
	if err := m.CheckAndDebit("bob", 1.0); err != nil {
		t.Fatal(err)
	}
}

func TestNegativeCostRejected(t *testing.T) {
	m := NewManager(1.0, time.Hour, common.NewTestEntry(t))

	if err := m.CheckAndDebit("alice", -0.1); err == nil {
		t.Fatal("negative cost should be rejected")
	}
}

func TestReset(t *testing.T) {
	m := NewManager(1.0, time.Hour, common.NewTestEntry(t))

	if err := m.CheckAndDebit("alice", 1.0); err != nil {
		t.Fatal(err)
	}
	if err := m.CheckAndDebit("alice", 0.1); !IsBudgetExhausted(err) {
		t.Fatalf("expected exhaustion, got %v", err)
	}

	m.Reset("alice")

	if err := m.CheckAndDebit("alice", 1.0); err != nil {
		t.Fatalf("budget should be restored after reset: %v", err)
	}
}

func TestPeriodicReset(t *testing.T) {
	m := NewManager(1.0, 20*time.Millisecond, common.NewTestEntry(t))

	go m.Start()
	defer m.Shutdown()

	if err := m.CheckAndDebit("alice", 1.0); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if m.Remaining("alice") == 1.0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatal("budget was not restored by the periodic reset")
}

func TestConcurrentDebits(t *testing.T) {
	m := NewManager(100, time.Hour, common.NewTestEntry(t))

	var wg sync.WaitGroup
	granted := make(chan struct{}, 200)

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.CheckAndDebit("alice", 1); err == nil {
				granted <- struct{}{}
			}
		}()
	}

	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}

	if count != 100 {
		t.Fatalf("exactly 100 debits should succeed, got %d", count)
	}
}
