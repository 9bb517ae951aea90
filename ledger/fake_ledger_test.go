package ledger

import (
	"context"
	"sync"
	"time"
)

// fakeLedger is an in-process stub implementing the Ledger interface,
// used so unit tests don't require a running Redis-compatible server.
// No test in this package runs against the real Client.
type fakeLedger struct {
	mu      sync.Mutex
	hashes  map[string]map[string][]byte
	sets    map[string]map[string]bool
	lists   map[string][]string
	locks   map[string]bool
	lockExp map[string]time.Time
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		hashes:  make(map[string]map[string][]byte),
		sets:    make(map[string]map[string]bool),
		lists:   make(map[string][]string),
		locks:   make(map[string]bool),
		lockExp: make(map[string]time.Time),
	}
}

func hk(namespace, key string) string { return namespace + ":" + key }

func (f *fakeLedger) HSet(ctx context.Context, namespace, key, field string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := hk(namespace, key)
	if f.hashes[k] == nil {
		f.hashes[k] = make(map[string][]byte)
	}
	f.hashes[k][field] = value
	return nil
}

func (f *fakeLedger) HGet(ctx context.Context, namespace, key, field string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.hashes[hk(namespace, key)]
	if !ok {
		return nil, false, nil
	}
	v, ok := m[field]
	return v, ok, nil
}

func (f *fakeLedger) HExists(ctx context.Context, namespace, key, field string) (bool, error) {
	_, ok, err := f.HGet(ctx, namespace, key, field)
	return ok, err
}

func (f *fakeLedger) HDel(ctx context.Context, namespace, key, field string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.hashes[hk(namespace, key)]; ok {
		delete(m, field)
	}
	return nil
}

func (f *fakeLedger) HIncrBy(ctx context.Context, namespace, key, field string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := hk(namespace, key)
	if f.hashes[k] == nil {
		f.hashes[k] = make(map[string][]byte)
	}
	var cur int64
	if v, ok := f.hashes[k][field]; ok {
		cur = parseInt(v)
	}
	cur += delta
	f.hashes[k][field] = []byte(formatInt(cur))
	return cur, nil
}

func (f *fakeLedger) SAdd(ctx context.Context, namespace, key, member string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := hk(namespace, key)
	if f.sets[k] == nil {
		f.sets[k] = make(map[string]bool)
	}
	if f.sets[k][member] {
		return 0, nil
	}
	f.sets[k][member] = true
	return 1, nil
}

func (f *fakeLedger) SIsMember(ctx context.Context, namespace, key, member string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets[hk(namespace, key)][member], nil
}

func (f *fakeLedger) SMembers(ctx context.Context, namespace, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for m := range f.sets[hk(namespace, key)] {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeLedger) SRem(ctx context.Context, namespace, key, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sets[hk(namespace, key)], member)
	return nil
}

func (f *fakeLedger) LPush(ctx context.Context, namespace, key string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := hk(namespace, key)
	f.lists[k] = append([]string{value}, f.lists[k]...)
	return nil
}

func (f *fakeLedger) BRPop(ctx context.Context, timeout time.Duration, namespace, key string) (string, bool, error) {
	f.mu.Lock()
	k := hk(namespace, key)
	if len(f.lists[k]) > 0 {
		n := len(f.lists[k]) - 1
		v := f.lists[k][n]
		f.lists[k] = f.lists[k][:n]
		f.mu.Unlock()
		return v, true, nil
	}
	f.mu.Unlock()
	return "", false, nil
}

func (f *fakeLedger) LLen(ctx context.Context, namespace, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.lists[hk(namespace, key)])), nil
}

func (f *fakeLedger) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if exp, ok := f.lockExp[lockKey]; ok && time.Now().Before(exp) {
		return false, nil
	}
	f.locks[lockKey] = true
	f.lockExp[lockKey] = time.Now().Add(ttl)
	return true, nil
}

func (f *fakeLedger) ReleaseLock(ctx context.Context, lockKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locks, lockKey)
	delete(f.lockExp, lockKey)
	return nil
}

func (f *fakeLedger) HealthCheck(ctx context.Context) error { return nil }

func parseInt(b []byte) int64 {
	var n int64
	neg := false
	for i, c := range b {
		if i == 0 && c == '-' {
			neg = true
			continue
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return n
}

func formatInt(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	return string(buf)
}
