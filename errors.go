package pricewatch

import "errors"

// ErrInvalidInput is returned when a URL fails normalization or validation.
var ErrInvalidInput = errors.New("pricewatch: invalid input")

// ErrCycleRunning is returned when a cycle is requested while one is in flight.
var ErrCycleRunning = errors.New("pricewatch: cycle already running")
