package database

import "receptionist/internal/domain"

var (
	ErrSlotTaken = domain.ErrSlotTaken
	ErrNotFound  = domain.ErrNotFound
)
