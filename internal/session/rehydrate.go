package session

import (
	"context"

	"github.com/felixgeelhaar/okr/internal/domain"
	"github.com/felixgeelhaar/okr/internal/storage"
	"github.com/felixgeelhaar/okr/internal/telemetry"
)

// LoadFromStorage restores the session persisted by a previous run.
//
// A token alone is kept but does not authenticate. A corrupt user blob is
// removed. When both are present the session is authenticated immediately in
// PhaseTentative and validated in the background; Wait blocks until that
// validation resolves to PhaseConfirmed or PhaseRejected.
func (s *Store) LoadFromStorage(ctx context.Context) {
	token, hasToken, err := s.persist.Get(storage.KeyAuthToken)
	if err != nil {
		s.logger.WithError(err).Warn("failed to read stored token")
		hasToken = false
	}

	var user domain.User
	hasUser, err := storage.GetJSON(s.persist, storage.KeyCurrentUser, &user)
	if err != nil {
		s.logger.WithError(err).Warn("discarded stored user")
		hasUser = false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if hasToken {
		s.token = token
	}
	if hasUser {
		s.user = &user
	}
	if !hasToken || !hasUser {
		return
	}

	s.generation++
	s.setPhaseLocked(PhaseTentative)

	done := make(chan struct{})
	s.validating = done
	go s.validate(context.WithoutCancel(ctx), s.generation, done)
}

// validate confirms or rejects the session started at gen.
func (s *Store) validate(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	ctx, span := telemetry.StartSessionSpan(withGeneration(ctx, gen), "validate")
	defer span.End()

	user, err := s.fetchUser(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.WithError(err).InfoContext(ctx, "stored session failed validation")
		s.logoutGeneration(ctx, gen, PhaseRejected)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		s.logger.Debug("discarding validation of a replaced session")
		return
	}
	s.setUserLocked(user)
	s.setPhaseLocked(PhaseConfirmed)
	telemetry.RecordSuccess(span)
}

// Wait blocks until the pending background validation, if any, has resolved.
func (s *Store) Wait(ctx context.Context) error {
	s.mu.RLock()
	done := s.validating
	s.mu.RUnlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
