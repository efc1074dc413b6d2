package domain

import "errors"

var (
	// ErrSlotTaken is returned when a confirmed appointment already covers part of the requested interval.
	ErrSlotTaken = errors.New("time slot already booked")
	ErrNotFound  = errors.New("record not found")
)
