package ledger

import "context"

const activeSessionsKey = "active"

// SessionLedger tracks which request IDs are currently being executed,
// durably enough to survive a process restart. Grounded on
// original_source/src/data/session_ledger.py's SessionLedger, narrowed
// from its full lifecycle (active/idle/closed/expired, per-session
// metadata) to the one thing a restarted Orchestrator actually needs:
// a set of request IDs it was mid-graph on when the process died,
// since graph.State itself is intentionally process-local (§3) and
// cannot be rebuilt.
type SessionLedger struct {
	l Ledger
}

// NewSessionLedger wraps l with request-lifetime bookkeeping.
func NewSessionLedger(l Ledger) *SessionLedger {
	return &SessionLedger{l: l}
}

// Begin records requestID as in flight. Called by
// Orchestrator.StartGraph once the request's graph state exists.
func (s *SessionLedger) Begin(ctx context.Context, requestID string) error {
	if err := s.l.HSet(ctx, string(NamespaceSessions), requestID, "status", []byte("active")); err != nil {
		return err
	}
	_, err := s.l.SAdd(ctx, string(NamespaceSessions), activeSessionsKey, requestID)
	return err
}

// Complete marks requestID as finished, successfully or not — the
// distinction doesn't matter here, since a completed request no longer
// needs restart recovery. Called from the two points a graph leaves
// its in-memory state: Orchestrator.finalize and Orchestrator/Conductor
// failure handling.
func (s *SessionLedger) Complete(ctx context.Context, requestID string) error {
	if err := s.l.HSet(ctx, string(NamespaceSessions), requestID, "status", []byte("done")); err != nil {
		return err
	}
	return s.l.SRem(ctx, string(NamespaceSessions), activeSessionsKey, requestID)
}

// Reconcile returns every request ID still marked active from a prior
// process life. Since graph.State never survives a restart, every
// member found here was abandoned mid-graph — Reconcile marks each one
// Complete so a second call (or a second process racing to reconcile)
// doesn't report it twice.
func (s *SessionLedger) Reconcile(ctx context.Context) ([]string, error) {
	abandoned, err := s.l.SMembers(ctx, string(NamespaceSessions), activeSessionsKey)
	if err != nil {
		return nil, err
	}
	for _, requestID := range abandoned {
		if err := s.Complete(ctx, requestID); err != nil {
			return abandoned, err
		}
	}
	return abandoned, nil
}
