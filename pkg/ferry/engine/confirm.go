package engine

import (
	"context"
	"errors"

	"github.com/jamesainslie/ferry/pkg/ferry/safety"
	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

// ErrRejected indicates the operation was declined at the confirmation
// gate, by the operator or by policy. Nothing was mutated.
var ErrRejected = errors.New("operation rejected")

// CriticalPhrase is the exact confirmation an operator must supply for
// CRITICAL operations. Nothing shorter unlocks them.
const CriticalPhrase = "yes-i-am-sure"

// Strength is the confirmation level an operation demands, derived from
// the pre-flight risk.
type Strength int

// Confirmation strengths in ascending order. Gates compare with >=.
const (
	// StrengthNone proceeds without asking.
	StrengthNone Strength = iota

	// StrengthBasic is a yes/no prompt.
	StrengthBasic

	// StrengthStrong demands an explicit override beyond a plain yes.
	StrengthStrong

	// StrengthPhrase demands the typed critical phrase.
	StrengthPhrase
)

// String returns the lowercase name of the strength.
func (s Strength) String() string {
	switch s {
	case StrengthNone:
		return "none"
	case StrengthBasic:
		return "basic"
	case StrengthStrong:
		return "strong"
	case StrengthPhrase:
		return "phrase"
	default:
		return "unknown"
	}
}

// strengthFor maps a risk level to the confirmation it demands.
func strengthFor(risk types.RiskLevel) Strength {
	switch {
	case risk >= types.RiskCritical:
		return StrengthPhrase
	case risk >= types.RiskHigh:
		return StrengthStrong
	case risk >= types.RiskMedium:
		return StrengthBasic
	default:
		return StrengthNone
	}
}

// ConfirmRequest is everything a Confirmer needs to present the decision.
type ConfirmRequest struct {
	// Operation is the logical command awaiting approval.
	Operation types.OperationKind

	// Targets are the paths the operation will act on.
	Targets []string

	// Dest is the destination, for operations that have one.
	Dest string

	// Check is the pre-flight analysis that raised the gate.
	Check *safety.Check

	// Strength is the confirmation level demanded.
	Strength Strength
}

// Confirmer resolves confirmation gates. Implementations prompt the
// operator or apply non-interactive policy. Returning false rejects the
// operation; an error aborts it before anything is mutated.
type Confirmer interface {
	Confirm(ctx context.Context, req ConfirmRequest) (bool, error)
}

// StaticConfirmer resolves gates from fixed policy. It backs the
// non-interactive override flags: ApproveBasic is --yes, ApproveStrong is
// --force, and Phrase carries --confirm.
type StaticConfirmer struct {
	// ApproveBasic approves basic yes/no gates.
	ApproveBasic bool

	// ApproveStrong approves strong-override gates. It implies
	// ApproveBasic.
	ApproveStrong bool

	// Phrase is compared against CriticalPhrase for phrase gates.
	Phrase string
}

// Confirm applies the static policy.
func (s *StaticConfirmer) Confirm(_ context.Context, req ConfirmRequest) (bool, error) {
	switch req.Strength {
	case StrengthNone:
		return true, nil
	case StrengthBasic:
		return s.ApproveBasic || s.ApproveStrong, nil
	case StrengthStrong:
		return s.ApproveStrong, nil
	case StrengthPhrase:
		return s.Phrase == CriticalPhrase, nil
	default:
		return false, nil
	}
}
