package domain

import "errors"

// Kind groups error codes by how callers should react to them.
type Kind string

const (
	KindAuthorization Kind = "authorization"
	KindValidation    Kind = "validation"
	KindArithmetic    Kind = "arithmetic"
	KindStateConflict Kind = "state_conflict"
	KindAsset         Kind = "asset"
)

// Code is a machine-readable error code.
type Code string

const (
	// Authorization
	CodeUnauthorizedAdmin        Code = "UnauthorizedAdmin"
	CodeInvalidProjectOwner      Code = "InvalidProjectOwner"
	CodeInvalidPlatformAuthority Code = "InvalidPlatformAuthority"
	CodeNotPurchaseOwner         Code = "NotPurchaseOwner"
	CodeInvalidBuyer             Code = "InvalidBuyer"

	// Validation
	CodeInvalidAmount                 Code = "InvalidAmount"
	CodeInvalidFeeRate                Code = "InvalidFeeRate"
	CodeInvalidReceiptDescriptor      Code = "InvalidReceiptDescriptor"
	CodeInvalidRequestID              Code = "InvalidRequestID"
	CodeProjectInactive               Code = "ProjectInactive"
	CodeInsufficientTokens            Code = "InsufficientTokens"
	CodeInsufficientRemainingTokens   Code = "InsufficientRemainingTokens"
	CodeInvalidProject                Code = "InvalidProject"
	CodeInvalidPurchase               Code = "InvalidPurchase"
	CodeInvalidOffsetRequest          Code = "InvalidOffsetRequest"
	CodeInvalidReceiptAccount         Code = "InvalidReceiptAccount"
	CodeInvalidReceiptAsset           Code = "InvalidReceiptAsset"
	CodeInvalidPaymentAssetDescriptor Code = "InvalidPaymentAssetDescriptor"
	CodeInvalidRequestStatus          Code = "InvalidRequestStatus"
	CodeLedgerNotInitialized          Code = "LedgerNotInitialized"

	// Arithmetic
	CodeMathOverflow Code = "MathOverflow"

	// State conflict
	CodeAlreadyInitialized  Code = "AlreadyInitialized"
	CodeProjectExists       Code = "ProjectExists"
	CodePurchaseExists      Code = "PurchaseExists"
	CodeOffsetRequestExists Code = "OffsetRequestExists"
	CodeWriteConflict       Code = "WriteConflict"

	// Asset transfer
	CodeAssetNotFound         Code = "AssetNotFound"
	CodeInsufficientFunds     Code = "InsufficientFunds"
	CodeMintAuthorityMismatch Code = "MintAuthorityMismatch"
	CodeOwnerMismatch         Code = "OwnerMismatch"
	CodeSupplyCapExceeded     Code = "SupplyCapExceeded"
)

// Error is a coded ledger error. Two errors match under errors.Is when their
// codes are equal, so a wrapped error with extra context still matches its sentinel.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of e with a more specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: msg}
}

func newError(kind Kind, code Code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrUnauthorizedAdmin        = newError(KindAuthorization, CodeUnauthorizedAdmin, "Only the ledger admin can perform this action")
	ErrInvalidProjectOwner      = newError(KindAuthorization, CodeInvalidProjectOwner, "Invalid project owner")
	ErrInvalidPlatformAuthority = newError(KindAuthorization, CodeInvalidPlatformAuthority, "Invalid platform authority")
	ErrNotPurchaseOwner         = newError(KindAuthorization, CodeNotPurchaseOwner, "Only the purchase owner can request an offset")
	ErrInvalidBuyer             = newError(KindAuthorization, CodeInvalidBuyer, "Buyer identity is required")

	ErrInvalidAmount                 = newError(KindValidation, CodeInvalidAmount, "Amount must be greater than 0")
	ErrInvalidFeeRate                = newError(KindValidation, CodeInvalidFeeRate, "Fee rate must be between 0 and 10000 basis points")
	ErrInvalidReceiptDescriptor      = newError(KindValidation, CodeInvalidReceiptDescriptor, "Invalid receipt descriptor")
	ErrInvalidRequestID              = newError(KindValidation, CodeInvalidRequestID, "Request id must be between 1 and 64 bytes")
	ErrProjectInactive               = newError(KindValidation, CodeProjectInactive, "Project is not active")
	ErrInsufficientTokens            = newError(KindValidation, CodeInsufficientTokens, "Insufficient tokens available")
	ErrInsufficientRemainingTokens   = newError(KindValidation, CodeInsufficientRemainingTokens, "Insufficient remaining tokens in the purchase")
	ErrInvalidProject                = newError(KindValidation, CodeInvalidProject, "Invalid project")
	ErrInvalidPurchase               = newError(KindValidation, CodeInvalidPurchase, "Purchase not found")
	ErrInvalidOffsetRequest          = newError(KindValidation, CodeInvalidOffsetRequest, "Offset request not found")
	ErrInvalidReceiptAccount         = newError(KindValidation, CodeInvalidReceiptAccount, "Receipt account must hold at least one token")
	ErrInvalidReceiptAsset           = newError(KindValidation, CodeInvalidReceiptAsset, "Invalid receipt asset")
	ErrInvalidPaymentAssetDescriptor = newError(KindValidation, CodeInvalidPaymentAssetDescriptor, "Invalid payment asset descriptor")
	ErrInvalidRequestStatus          = newError(KindValidation, CodeInvalidRequestStatus, "Invalid offset request status")
	ErrLedgerNotInitialized          = newError(KindValidation, CodeLedgerNotInitialized, "Ledger is not initialized")

	ErrMathOverflow = newError(KindArithmetic, CodeMathOverflow, "Math operation overflow")

	ErrAlreadyInitialized  = newError(KindStateConflict, CodeAlreadyInitialized, "Ledger already initialized")
	ErrProjectExists       = newError(KindStateConflict, CodeProjectExists, "Project already exists")
	ErrPurchaseExists      = newError(KindStateConflict, CodePurchaseExists, "Purchase already exists")
	ErrOffsetRequestExists = newError(KindStateConflict, CodeOffsetRequestExists, "Offset request already exists")
	ErrWriteConflict       = newError(KindStateConflict, CodeWriteConflict, "Record was modified concurrently; resubmit the operation")

	ErrAssetNotFound         = newError(KindAsset, CodeAssetNotFound, "Asset not found")
	ErrInsufficientFunds     = newError(KindAsset, CodeInsufficientFunds, "Insufficient funds")
	ErrMintAuthorityMismatch = newError(KindAsset, CodeMintAuthorityMismatch, "Signer is not the mint authority")
	ErrOwnerMismatch         = newError(KindAsset, CodeOwnerMismatch, "Signer does not own the token account")
	ErrSupplyCapExceeded     = newError(KindAsset, CodeSupplyCapExceeded, "Mint supply cap exceeded")
)

// KindOf returns the kind of a ledger error, or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the code of a ledger error, or "" for anything else.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
