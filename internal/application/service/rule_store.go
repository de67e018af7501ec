package service

import (
	"sync"

	"github.com/exescorp/expense-approval/internal/domain/entity"
)

// ruleStore holds the process-wide approval rule behind a read-write lock.
// Snapshot returns a copy, so one evaluation always sees one consistent
// rule even while a concurrent replacement is in flight.
type ruleStore struct {
	mu   sync.RWMutex
	rule entity.ApprovalRule
}

func newRuleStore(initial entity.ApprovalRule) *ruleStore {
	return &ruleStore{rule: initial}
}

func (s *ruleStore) Snapshot() entity.ApprovalRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rule
}

func (s *ruleStore) Replace(rule entity.ApprovalRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rule = rule
}
