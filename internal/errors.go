package internal

import "errors"

var (
	ErrInvalidState = errors.New("invalid order state")
	ErrForbidden    = errors.New("action is not permitted for role")

	ErrNotFound  = errors.New("not found")
	ErrNoRecords = errors.New("no records")

	ErrRateLimited = errors.New("rate limit exceeded")

	ErrLuhnInvalid = errors.New("number invalid by luhn")

	ErrDispatchFailure   = errors.New("analytics dispatch failed")
	ErrLedgerUnavailable = errors.New("dispatch ledger unavailable")
	ErrOrderNumberTaken  = errors.New("order number is already taken")
	ErrDispatchQueueFull = errors.New("dispatch queue is full")
	ErrUnknownAction     = errors.New("unknown lifecycle action")
)
