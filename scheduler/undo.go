package scheduler

import (
	"sync"
	"time"

	"github.com/pverga/libitip/calendar"
	"github.com/pverga/libitip/itip"
)

// UndoEntry is one recoverable pre-mutation snapshot.
type UndoEntry struct {
	Action   itip.Action
	Snapshot *calendar.Event
	SavedAt  time.Time

	expiresAt time.Time
}

// UndoLedger keeps pre-mutation snapshots for a bounded time so a mutation
// can be reverted. It is owned by the scheduler instance, never global, and
// entries expire after the configured TTL.
type UndoLedger struct {
	entries     map[string]*UndoEntry
	mutex       sync.RWMutex
	ttl         time.Duration
	stopCleanup chan struct{}
}

// NewUndoLedger creates a ledger whose entries expire after ttl.
func NewUndoLedger(ttl time.Duration) *UndoLedger {
	l := &UndoLedger{
		entries:     make(map[string]*UndoEntry),
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Record stores a snapshot, replacing any previous one for the same UID.
func (l *UndoLedger) Record(action itip.Action, snapshot *calendar.Event) {
	if snapshot == nil || snapshot.UID == "" {
		return
	}
	now := time.Now()
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.entries[snapshot.UID] = &UndoEntry{
		Action:    action,
		Snapshot:  snapshot.Clone(),
		SavedAt:   now,
		expiresAt: now.Add(l.ttl),
	}
}

// Pop removes and returns the snapshot for the UID, if one is still live.
func (l *UndoLedger) Pop(uid string) (*UndoEntry, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	entry, ok := l.entries[uid]
	if !ok {
		return nil, false
	}
	delete(l.entries, uid)
	if time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry, true
}

// Len returns the number of live entries.
func (l *UndoLedger) Len() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return len(l.entries)
}

func (l *UndoLedger) cleanupLoop() {
	interval := l.ttl
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			l.mutex.Lock()
			for uid, entry := range l.entries {
				if now.After(entry.expiresAt) {
					delete(l.entries, uid)
				}
			}
			l.mutex.Unlock()
		case <-l.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine and drops all entries.
func (l *UndoLedger) Close() {
	close(l.stopCleanup)
	l.mutex.Lock()
	l.entries = make(map[string]*UndoEntry)
	l.mutex.Unlock()
}
