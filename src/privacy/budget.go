// Package privacy tracks a depletable disclosure budget per identity.
//
// Every disclosure-bearing operation (casting a vote on a batch root) debits
// the caller's budget. Exhaustion is recoverable for the caller: the item is
// dropped this round, not retried. Budgets replenish on a fixed schedule
// owned by the Manager's timer goroutine.
package privacy

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BudgetExhaustedError is returned by CheckAndDebit when the identity's
// remaining budget cannot cover the cost.
type BudgetExhaustedError struct {
	IdentityID string
	Remaining  float64
	Cost       float64
}

// Error implements the error interface.
func (e BudgetExhaustedError) Error() string {
	return fmt.Sprintf("budget exhausted for %s: remaining %f, cost %f", e.IdentityID, e.Remaining, e.Cost)
}

// IsBudgetExhausted checks that an error is a BudgetExhaustedError.
func IsBudgetExhausted(err error) bool {
	_, ok := err.(BudgetExhaustedError)
	return ok
}

// Budget is the disclosure allowance of one identity.
type Budget struct {
	IdentityID string
	Remaining  float64
	ResetAt    time.Time
}

// Manager holds the budgets of all known identities. It is the one piece of
// cross-call shared state in the core that needs a strict check-then-debit
// atomic section; the mutex is held only for that single operation.
type Manager struct {
	mtx sync.Mutex

	defaultBudget float64
	resetInterval time.Duration
	budgets       map[string]*Budget
	logger        *logrus.Entry

	resetCh    chan string
	shutdownCh chan struct{}
	shutdown   sync.Once
}

// NewManager creates a Manager giving every identity defaultBudget per
// resetInterval. Start must be called for the periodic reset to run.
func NewManager(defaultBudget float64, resetInterval time.Duration, logger *logrus.Entry) *Manager {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &Manager{
		defaultBudget: defaultBudget,
		resetInterval: resetInterval,
		budgets:       make(map[string]*Budget),
		logger:        logger.WithField("component", "privacy"),
		resetCh:       make(chan string),
		shutdownCh:    make(chan struct{}),
	}
}

// Start runs the periodic reset loop until Shutdown. It is usually run as a
// goroutine at node start.
func (m *Manager) Start() {
	ticker := time.NewTicker(m.resetInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.ResetAll()
		case id := <-m.resetCh:
			m.Reset(id)
		case <-m.shutdownCh:
			return
		}
	}
}

// Shutdown stops the reset loop. Safe to call more than once.
func (m *Manager) Shutdown() {
	m.shutdown.Do(func() {
		close(m.shutdownCh)
	})
}

// CheckAndDebit atomically verifies that identityID can afford cost and
// debits it. Cost must be non-negative. On insufficient budget it returns a
// BudgetExhaustedError and debits nothing.
func (m *Manager) CheckAndDebit(identityID string, cost float64) error {
	if cost < 0 {
		return fmt.Errorf("negative cost %f", cost)
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	budget := m.getOrInit(identityID)

	if budget.Remaining < cost {
		return BudgetExhaustedError{
			IdentityID: identityID,
			Remaining:  budget.Remaining,
			Cost:       cost,
		}
	}

	budget.Remaining -= cost

	return nil
}

// Remaining returns the identity's current allowance.
func (m *Manager) Remaining(identityID string) float64 {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.getOrInit(identityID).Remaining
}

// Reset restores one identity's budget to the default.
func (m *Manager) Reset(identityID string) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	budget := m.getOrInit(identityID)
	budget.Remaining = m.defaultBudget
	budget.ResetAt = time.Now().Add(m.resetInterval)
}

// ResetAll restores every known identity's budget to the default.
func (m *Manager) ResetAll() {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	resetAt := time.Now().Add(m.resetInterval)
	for _, budget := range m.budgets {
		budget.Remaining = m.defaultBudget
		budget.ResetAt = resetAt
	}

	m.logger.WithField("identities", len(m.budgets)).Debug("privacy budgets reset")
}

// caller holds the mutex
func (m *Manager) getOrInit(identityID string) *Budget {
	budget, ok := m.budgets[identityID]
	if !ok {
		budget = &Budget{
			IdentityID: identityID,
			Remaining:  m.defaultBudget,
			ResetAt:    time.Now().Add(m.resetInterval),
		}
		m.budgets[identityID] = budget
	}
	return budget
}
