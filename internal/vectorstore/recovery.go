package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// withRecovery runs op, and on a detectable corruption error retries
// through the recovery protocol: (1) probe with PRAGMA
// integrity_check and, if it passes, rerun op; (2) if the probe fails
// and a rebuild callback was installed with WithRecoveryCallback, run
// it and then rerun op. Both steps are retried under the bounded
// exponential backoff before giving up with ErrStoreUnavailable. The
// database is not reopened read-only, and without a callback step (2)
// does nothing.
func (s *SQLiteStore) withRecovery(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || !looksCorrupted(err) {
		return err
	}

	for attempt, wait := range recoveryBackoff {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}

		if probeErr := s.integrityCheck(ctx); probeErr == nil {
			// Store is readable again; retry the original operation once.
			if err := op(); err == nil {
				return nil
			}
		} else if s.recovery != nil {
			if rebuildErr := s.recovery(ctx); rebuildErr == nil {
				if err := op(); err == nil {
					return nil
				}
			}
		}

		if attempt == len(recoveryBackoff)-1 {
			break
		}
	}

	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// looksCorrupted classifies an error as a detectable corruption
// signal: a checksum/header mismatch or an unreadable segment, as
// opposed to an ordinary not-found or constraint error.
func looksCorrupted(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(), []string{
		"database disk image is malformed",
		"file is not a database",
		"database corruption",
		"unable to open database file",
	})
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// integrityCheck attempts the read-only probe step of the recovery
// protocol.
func (s *SQLiteStore) integrityCheck(ctx context.Context) error {
	var result string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity_check: %s", result)
	}
	return nil
}
