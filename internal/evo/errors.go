package evo

import "errors"

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrStateNotFound     = errors.New("engine state not found")
	ErrIncompatibleState = errors.New("incompatible engine state")
	ErrNotActive         = errors.New("engine is not active")
	ErrHalted            = errors.New("engine halted after a failed generation")
)
