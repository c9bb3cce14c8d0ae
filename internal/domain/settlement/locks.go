package settlement

import "sync"

// loanLocks hands out one mutex per loan id and forgets it when the last
// holder releases it.
type loanLocks struct {
	mu    sync.Mutex
	locks map[string]*loanLock
}

type loanLock struct {
	mu   sync.Mutex
	refs int
}

func newLoanLocks() *loanLocks {
	return &loanLocks{locks: map[string]*loanLock{}}
}

func (l *loanLocks) lock(loanID string) func() {
	l.mu.Lock()
	lk, ok := l.locks[loanID]
	if !ok {
		lk = &loanLock{}
		l.locks[loanID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()
	return func() {
		lk.mu.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, loanID)
		}
		l.mu.Unlock()
	}
}
