package database

import "errors"

var (
	ErrNotFound               = errors.New("record not found")
	ErrSlotTaken              = errors.New("time slot is no longer available")
	ErrConcurrentModification = errors.New("record was modified concurrently")
	ErrAlreadyOnWaitlist      = errors.New("client is already waiting for this day")
)
