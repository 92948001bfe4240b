package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/linusjb/boedekassen/internal/config"
	"github.com/linusjb/boedekassen/internal/fines"
)

// ErrInvalidPolicy is returned when a policy fails validation. No fine is
// ever created under an invalid policy.
var ErrInvalidPolicy = errors.New("invalid fine policy")

// LatenessBasis selects which timestamp a late response is measured against.
type LatenessBasis string

const (
	// BasisInvitation measures lateness from when the invitation went out.
	BasisInvitation LatenessBasis = "invitation"
	// BasisEventStart measures lateness backwards from the event start.
	BasisEventStart LatenessBasis = "event_start"
)

// Policy holds the fine amounts and lateness rule for one policy version.
// Policies are immutable, a changed amount is a new version.
type Policy struct {
	Version             string
	MissingTrainingFine int64
	MissingMatchFine    int64
	LateResponseFine    int64
	LateThreshold       time.Duration
	Basis               LatenessBasis
}

// FromConfig builds a policy from the configured fine amounts and stamps it
// with a version derived from its own contents.
func FromConfig(cfg config.FinesConfig) Policy {
	p := Policy{
		MissingTrainingFine: cfg.MissingTraining,
		MissingMatchFine:    cfg.MissingMatch,
		LateResponseFine:    cfg.LateResponse,
		LateThreshold:       time.Duration(cfg.LateThresholdHours) * time.Hour,
		Basis:               LatenessBasis(cfg.LateBasis),
	}
	p.Version = p.Fingerprint()
	return p
}

// Validate checks the policy invariants. All errors wrap ErrInvalidPolicy.
func (p Policy) Validate() error {
	if p.MissingTrainingFine < 0 || p.MissingMatchFine < 0 || p.LateResponseFine < 0 {
		return fmt.Errorf("%w: fine amounts must be non-negative", ErrInvalidPolicy)
	}
	if p.LateThreshold <= 0 {
		return fmt.Errorf("%w: late threshold must be positive, got %s", ErrInvalidPolicy, p.LateThreshold)
	}
	switch p.Basis {
	case BasisInvitation, BasisEventStart:
	default:
		return fmt.Errorf("%w: unknown lateness basis %q", ErrInvalidPolicy, p.Basis)
	}
	return nil
}

// Resolve returns the fine amount for a violation kind.
func (p Policy) Resolve(kind fines.ViolationKind) int64 {
	switch kind {
	case fines.ViolationMissingTraining:
		return p.MissingTrainingFine
	case fines.ViolationMissingMatch:
		return p.MissingMatchFine
	case fines.ViolationLateResponse:
		return p.LateResponseFine
	}
	return 0
}

// IsLate reports whether a response given at respondedAt breaks the late
// threshold for an event invited at invitedAt and starting at eventStart.
func (p Policy) IsLate(respondedAt, invitedAt, eventStart int64) bool {
	threshold := int64(p.LateThreshold / time.Second)
	switch p.Basis {
	case BasisEventStart:
		return respondedAt > eventStart-threshold
	default:
		return respondedAt > invitedAt+threshold
	}
}

// Fingerprint derives a stable version string from the policy contents, so
// the same amounts always map to the same version across runs.
func (p Policy) Fingerprint() string {
	payload := fmt.Sprintf("%d|%d|%d|%d|%s",
		p.MissingTrainingFine, p.MissingMatchFine, p.LateResponseFine,
		int64(p.LateThreshold/time.Second), p.Basis)
	sum := sha256.Sum256([]byte(payload))
	return "pol-" + hex.EncodeToString(sum[:4])
}

// Record converts the policy to its persisted form.
func (p Policy) Record(createdAt int64) fines.PolicyRecord {
	return fines.PolicyRecord{
		Version:           p.Version,
		MissingTraining:   p.MissingTrainingFine,
		MissingMatch:      p.MissingMatchFine,
		LateResponse:      p.LateResponseFine,
		LateThresholdSecs: int64(p.LateThreshold / time.Second),
		LateBasis:         string(p.Basis),
		CreatedAt:         createdAt,
	}
}
