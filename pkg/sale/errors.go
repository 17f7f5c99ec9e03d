package sale

import (
	"errors"
	"fmt"
)

// Code is a stable numeric error identifier surfaced to callers.
// The numeric order is part of the wire compatibility contract.
type Code uint32

// Engine error codes.
const (
	CodeInvalidAccountDataLength     Code = 0
	CodeMintAndSaleAuthorityMismatch Code = 1
	CodeMustBeNonExecutable          Code = 2
	CodeNeedSigner                   Code = 3
	CodeUnexpectedPDASeeds           Code = 4
	CodeAccountUninitialized         Code = 5
	CodeFailedToDecodeSha256Hash     Code = 6
	CodeInvalidTokenProgramID        Code = 7
	CodeAccountsAndTokenBaseMismatch Code = 8
	CodeNotWhitelisted               Code = 9
	CodeIncompatibleProof            Code = 10
)

// String returns the human-readable description of the code.
func (c Code) String() string {
	switch c {
	case CodeInvalidAccountDataLength:
		return "invalid account data length"
	case CodeMintAndSaleAuthorityMismatch:
		return "mint and sale authority don't match"
	case CodeMustBeNonExecutable:
		return "account must be non-executable"
	case CodeNeedSigner:
		return "not a signer"
	case CodeUnexpectedPDASeeds:
		return "unexpected PDA seeds"
	case CodeAccountUninitialized:
		return "account not yet initialized"
	case CodeFailedToDecodeSha256Hash:
		return "failed to decode hash"
	case CodeInvalidTokenProgramID:
		return "invalid token program"
	case CodeAccountsAndTokenBaseMismatch:
		return "accounts and sale config don't match"
	case CodeNotWhitelisted:
		return "not whitelisted"
	case CodeIncompatibleProof:
		return "incompatible proof format"
	default:
		return fmt.Sprintf("unknown error code %d", uint32(c))
	}
}

// Error is an engine error carrying its stable code and the label of the
// account it pertains to. Only the code is authoritative for programmatic
// handling; the label is diagnostic.
type Error struct {
	Code  Code
	Label string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Label == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Label, e.Code)
}

func newError(code Code, label string) *Error {
	return &Error{Code: code, Label: label}
}

// AsCode extracts the stable code from err if it is an engine Error.
func AsCode(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

// Host-level errors, outside the custom code space. These mirror the
// execution host's own error set and abort the instruction like any other
// failure.
var (
	// ErrAlreadyInitialized is returned when creating a record over an
	// allocated slot.
	ErrAlreadyInitialized = errors.New("account already initialized")

	// ErrInvalidAccountOwner is returned when a record account is not owned
	// by this program.
	ErrInvalidAccountOwner = errors.New("invalid account owner")

	// ErrInvalidInstructionData is returned on truncated or unrecognized
	// instruction bytes.
	ErrInvalidInstructionData = errors.New("invalid instruction data")

	// ErrIncorrectProgramID is returned when a program account slot holds
	// the wrong program.
	ErrIncorrectProgramID = errors.New("incorrect program id")

	// ErrNotEnoughAccounts is returned when the instruction supplies fewer
	// accounts than its layout requires.
	ErrNotEnoughAccounts = errors.New("not enough account keys")

	// ErrAccountNotWritable is returned when a writable slot was supplied
	// read-only.
	ErrAccountNotWritable = errors.New("account not writable")

	// ErrArithmeticOverflow is returned when balance math overflows.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrInsufficientFunds is returned when a transfer exceeds the payer's
	// balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSaleNotRunning is returned when buying from a paused sale.
	ErrSaleNotRunning = errors.New("sale is not running")

	// ErrNothingToConfigure is returned when ConfigureSale carries no fields.
	ErrNothingToConfigure = errors.New("configure with no fields")
)
