package domain

import "errors"

// --- ERREURS DU DOMAINE ---
var (
	ErrPostNotFound   = errors.New("post not found")
	ErrDuplicateID    = errors.New("duplicate post id in snapshot")
	ErrNegativeCount  = errors.New("count must not be negative")
	ErrUnknownAction  = errors.New("unknown action")
	ErrQueueFull      = errors.New("action queue is full")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrEmptyContent   = errors.New("post content is empty")
	ErrViewerRequired = errors.New("viewer id is required")
)
