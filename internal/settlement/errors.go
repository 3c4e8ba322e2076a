package settlement

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrSessionNotFound = fmt.Errorf("loot split session %w", ErrNotFound)
	ErrRegearNotFound  = fmt.Errorf("regear request %w", ErrNotFound)
	ErrAccountNotFound = fmt.Errorf("payout account %w", ErrNotFound)

	ErrUnauthorized         = errors.New("approver lacks the authorization role")
	ErrConfigurationMissing = errors.New("guild configuration missing")

	ErrInvalidState   = errors.New("invalid state for this operation")
	ErrAlreadySettled = fmt.Errorf("%w: already settled", ErrInvalidState)
	ErrNotSettled     = fmt.Errorf("%w: not settled", ErrInvalidState)

	ErrSessionExpired   = errors.New("loot split session expired")
	ErrNoParticipants   = errors.New("no participants")
	ErrInvalidInput     = errors.New("invalid input")
	ErrSettlementFailed = errors.New("settlement failed")
)
