package domain

import "errors"

// Error kinds. Callers compare with errors.Is; messages shown to users come from UserMessage.
var (
	ErrInvalidIdentifier   = errors.New("invalid identifier")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrUnauthenticated     = errors.New("not logged in")
	ErrForbidden           = errors.New("forbidden")
	ErrCampaignInactive    = errors.New("campaign inactive")
	ErrAlreadyScanned      = errors.New("code already scanned")
	ErrCodeMismatch        = errors.New("code does not belong to campaign")
	ErrSingleEntryExceeded = errors.New("single giveaway entry exceeded")
	ErrScannedOwnCode      = errors.New("scanned own code")
	ErrInsufficientEntries = errors.New("insufficient giveaway entries")
	ErrInsufficientPoints  = errors.New("insufficient points")
	ErrTransactionConflict = errors.New("transaction conflict")
	ErrWrongCampaignType   = errors.New("wrong campaign type")
	ErrAlreadyRedeemed     = errors.New("already redeemed")
	ErrNothingToRedeem     = errors.New("nothing to redeem")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrUnknownCampaignType = errors.New("unknown campaign type")
)

// Error attaches a user-facing message to an error kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Kind.Error() + ": " + e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// WithMessage returns kind with a specific user-facing message.
func WithMessage(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

const genericUserMessage = "There was an error, please try again later."

var userMessages = []struct {
	kind    error
	message string
}{
	{ErrInvalidIdentifier, "Invalid ID."},
	{ErrInvalidInput, "Bad parameters."},
	{ErrNotFound, "The requested item does not exist."},
	{ErrUnauthenticated, "Please log in."},
	{ErrForbidden, "You do not have access to that campaign."},
	{ErrCampaignInactive, "Unfortunately, that campaign is no longer active."},
	{ErrAlreadyScanned, "Code has already been scanned."},
	{ErrCodeMismatch, "Invalid code ID, please try again."},
	{ErrSingleEntryExceeded, "This campaign only allows you to enter once in the giveaway."},
	{ErrScannedOwnCode, "You scanned your own Code."},
	{ErrInsufficientEntries, "There are not enough giveaway entries for that many draws. Please enter a smaller number."},
	{ErrInsufficientPoints, "User does not have enough points to redeem."},
	{ErrTransactionConflict, "Somebody else changed this at the same time, please try again."},
	{ErrWrongCampaignType, "Invalid campaign type."},
	{ErrAlreadyRedeemed, "That reward has already been redeemed."},
	{ErrNothingToRedeem, "There is nothing left to redeem for that account."},
	{ErrInvalidAmount, "Invalid amount entered."},
	{ErrUnknownCampaignType, "Unknown campaign type."},
}

// UserMessage returns the plain-language text for err. Unknown errors get a generic message
// so internal details never reach the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var withMsg *Error
	if errors.As(err, &withMsg) && withMsg.Message != "" {
		return withMsg.Message
	}
	for _, m := range userMessages {
		if errors.Is(err, m.kind) {
			return m.message
		}
	}
	return genericUserMessage
}

// Known reports whether err carries one of the kinds above.
func Known(err error) bool {
	for _, m := range userMessages {
		if errors.Is(err, m.kind) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether the caller may safely resubmit the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionConflict)
}
