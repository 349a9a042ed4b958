package core

import "errors"

// Errors
var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidSlippage  = errors.New("invalid slippage")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInvalidActor     = errors.New("invalid actor id")
	ErrOrderExists      = errors.New("order exists")
	ErrNonexistentOrder = errors.New("nonexistent order")
	ErrUnauthorized     = errors.New("order belongs to another user")
)
