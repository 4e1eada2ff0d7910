package verification

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/joelikes8/Random-bot/internal/modules/audit"
	"github.com/joelikes8/Random-bot/internal/storage"
)

// Request is what a requester needs to finish verification: the code to put
// in their profile and the account it was issued for.
type Request struct {
	Code       string
	Resolution Resolution
}

type Result struct {
	Outcome Outcome
	Via     string
	Binding storage.Binding
}

type Service struct {
	resolver  *Resolver
	issuer    *Issuer
	confirmer *Confirmer
	store     BindingStore
	audit     Auditor
	clock     Clock
	logger    *zap.Logger
}

func NewService(resolver *Resolver, issuer *Issuer, confirmer *Confirmer, store BindingStore, auditor Auditor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		resolver:  resolver,
		issuer:    issuer,
		confirmer: confirmer,
		store:     store,
		audit:     auditor,
		clock:     realClock{},
		logger:    logger,
	}
}

func (s *Service) WithClock(clock Clock) {
	s.clock = clock
}

func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// RequestVerification resolves the claimed username and stores a new pending
// binding for requesterID, replacing any earlier one.
func (s *Service) RequestVerification(ctx context.Context, requesterID, claimed string) (Request, error) {
	resolution, err := s.resolver.Resolve(ctx, claimed)
	if err != nil {
		s.log(ctx, audit.LevelInfo, requesterID, EventNotFound, fmt.Sprintf("username=%s", claimed))
		return Request{}, err
	}
	if resolution.Overridden() {
		s.log(ctx, audit.LevelWarn, requesterID, EventPolicyOverride,
			fmt.Sprintf("stage=resolve username=%s account_id=%s", claimed, resolution.AccountID))
	}

	code, err := s.issuer.Issue()
	if err != nil {
		return Request{}, fmt.Errorf("issuing code: %w", err)
	}

	if err := s.store.UpsertBinding(ctx, requesterID, resolution.AccountID, claimed, code); err != nil {
		return Request{}, s.persistenceFailure(ctx, requesterID, "upsert", err)
	}

	s.log(ctx, audit.LevelInfo, requesterID, EventRequested,
		fmt.Sprintf("username=%s account_id=%s via=%s", claimed, resolution.AccountID, resolution.Via))
	return Request{Code: code, Resolution: resolution}, nil
}

// UpdateVerification is RequestVerification for requesters that already have
// a binding. It returns ErrNoBinding otherwise.
func (s *Service) UpdateVerification(ctx context.Context, requesterID, claimed string) (Request, error) {
	if _, err := s.store.GetBinding(ctx, requesterID); err != nil {
		if errors.Is(err, storage.ErrBindingNotFound) {
			return Request{}, ErrNoBinding
		}
		return Request{}, s.persistenceFailure(ctx, requesterID, "get", err)
	}
	return s.RequestVerification(ctx, requesterID, claimed)
}

// ConfirmVerification checks the requester's pending code. A binding that is
// already verified is reported as Verified again without being touched.
func (s *Service) ConfirmVerification(ctx context.Context, requesterID string) (Result, error) {
	binding, err := s.store.GetBinding(ctx, requesterID)
	if err != nil {
		if errors.Is(err, storage.ErrBindingNotFound) {
			return Result{Outcome: OutcomeNoPendingBinding}, nil
		}
		return Result{}, s.persistenceFailure(ctx, requesterID, "get", err)
	}
	if binding.Verified {
		return Result{Outcome: OutcomeVerified, Binding: binding}, nil
	}
	if !binding.Pending() {
		return Result{Outcome: OutcomeNoPendingBinding, Binding: binding}, nil
	}

	confirmation := s.confirmer.Confirm(ctx, binding)
	result := Result{Outcome: confirmation.Outcome, Via: confirmation.Via, Binding: binding}

	switch confirmation.Outcome {
	case OutcomeVerified:
		if confirmation.Overridden() {
			s.log(ctx, audit.LevelWarn, requesterID, EventPolicyOverride,
				fmt.Sprintf("stage=confirm account_id=%s via=%s", binding.ExternalAccountID, confirmation.Via))
		}
		updated, err := s.store.MarkVerified(ctx, requesterID, binding.IssuedCode, s.clock.Now())
		if errors.Is(err, storage.ErrBindingChanged) || errors.Is(err, storage.ErrBindingNotFound) {
			return s.bindingChanged(ctx, requesterID, binding), nil
		}
		if err != nil {
			return Result{}, s.persistenceFailure(ctx, requesterID, "mark_verified", err)
		}
		result.Binding = updated
		s.log(ctx, audit.LevelInfo, requesterID, EventConfirmed,
			fmt.Sprintf("account_id=%s via=%s", binding.ExternalAccountID, confirmation.Via))
	case OutcomeCodeNotFound:
		s.log(ctx, audit.LevelInfo, requesterID, EventCodeNotFound, fmt.Sprintf("account_id=%s", binding.ExternalAccountID))
	case OutcomeAccountFetchFailed:
		s.log(ctx, audit.LevelWarn, requesterID, EventFetchFailed, fmt.Sprintf("account_id=%s", binding.ExternalAccountID))
	}
	return result, nil
}

// bindingChanged reports a confirmation whose binding was replaced or removed
// while the profile was being checked. The current binding is returned so the
// requester sees the code they must use now.
func (s *Service) bindingChanged(ctx context.Context, requesterID string, stale storage.Binding) Result {
	s.log(ctx, audit.LevelWarn, requesterID, EventCodeNotFound,
		fmt.Sprintf("account_id=%s binding changed during confirmation", stale.ExternalAccountID))
	current, err := s.store.GetBinding(ctx, requesterID)
	if errors.Is(err, storage.ErrBindingNotFound) {
		return Result{Outcome: OutcomeNoPendingBinding}
	}
	if err != nil {
		s.logger.Warn("reloading changed binding failed", zap.String("requester_id", requesterID), zap.Error(err))
		current = stale
	}
	return Result{Outcome: OutcomeCodeNotFound, Binding: current}
}

func (s *Service) persistenceFailure(ctx context.Context, requesterID, op string, err error) error {
	s.logger.Error("verification store failed", zap.String("op", op), zap.String("requester_id", requesterID), zap.Error(err))
	s.log(ctx, audit.LevelCrit, requesterID, EventPersistenceFail, op)
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func (s *Service) log(ctx context.Context, level, requesterID, event, details string) {
	if s.audit == nil {
		return
	}
	s.audit.Log(ctx, level, requesterID, event, details)
}
