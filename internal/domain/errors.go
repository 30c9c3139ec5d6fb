package domain

import "errors"

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPersistence       = errors.New("persistence failure")
)
