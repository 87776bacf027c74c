package ledger

import "errors"

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidSide          = errors.New("invalid trade side")
	ErrInvalidDuration      = errors.New("invalid pump duration")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrNoSuchHolding        = errors.New("no such holding")
	ErrNoEligibleHolding    = errors.New("no eligible holding for pump")
	ErrUnknownAsset         = errors.New("unknown asset")
)
