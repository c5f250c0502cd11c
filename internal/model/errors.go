package model

import "errors"

var (
	ErrUnparseableTime  = errors.New("unparseable time")
	ErrUnparseableDate  = errors.New("unparseable date")
	ErrIncompleteRecord = errors.New("incomplete record")
	ErrDateMismatch     = errors.New("date mismatch")

	// Fetch errors are soft: they degrade to the no-reference path
	ErrFetchFailure = errors.New("fetch failure")
	ErrFetchTimeout = errors.New("fetch timeout")
)
