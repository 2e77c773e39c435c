package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Outcome is the terminal state of one delivery attempt.
type Outcome string

const (
	OutcomeSent             Outcome = "SENT"
	OutcomeRejected         Outcome = "REJECTED"
	OutcomeUnauthorized     Outcome = "UNAUTHORIZED"
	OutcomeConnectionFailed Outcome = "CONNECTION_FAILED"
	OutcomeFailed           Outcome = "FAILED"
)

func (o Outcome) String() string { return string(o) }

func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeSent, OutcomeRejected, OutcomeUnauthorized, OutcomeConnectionFailed, OutcomeFailed:
		return true
	}
	return false
}

func ParseOutcomeFromString(s string) (Outcome, error) {
	o := Outcome(strings.ToUpper(strings.TrimSpace(s)))
	if !o.IsValid() {
		return "", fmt.Errorf("%w: invalid outcome %q", ErrValidation, s)
	}
	return o, nil
}

// DeliveryAttempt records a single push transaction against a gateway.
type DeliveryAttempt struct {
	ID            string
	CorrelationID string
	Environment   Environment
	Gateway       string
	TokenSuffix   string
	FrameBytes    int
	Identifier    *uint32
	Outcome       Outcome
	Error         *string
	Duration      time.Duration
	CreatedAt     time.Time
}

// TokenSuffix returns the last hex characters of a token for audit records.
func TokenSuffix(token []byte) string {
	const keep = 4
	if len(token) > keep {
		token = token[len(token)-keep:]
	}
	return fmt.Sprintf("%x", token)
}

// OutcomeFor classifies the error returned by a push transaction.
func OutcomeFor(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSent
	case errors.Is(err, ErrTLSAuthorization):
		return OutcomeUnauthorized
	case errors.Is(err, ErrConnection):
		return OutcomeConnectionFailed
	case errors.Is(err, ErrMissingCredentials),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrMissingDestination),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrInvalidParameter),
		errors.Is(err, ErrEncoding):
		return OutcomeRejected
	}
	return OutcomeFailed
}
