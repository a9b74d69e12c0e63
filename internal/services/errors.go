// Package services implements the question lifecycle: ingestion with rate
// limiting, the delayed-answer scheduler with its moderation-override check,
// the moderator-reply detector, feedback recording, and retention sweeps.
// This file centralizes service-level error values.
package services

import "errors"

var (
	// ErrDuplicateQuestion is returned when an open question already exists
	// for the incoming message id.
	ErrDuplicateQuestion = errors.New("question already recorded for this message")

	// ErrInvalidFeedback is returned when a feedback value is outside the
	// allowed set (-1 or 1).
	ErrInvalidFeedback = errors.New("feedback value must be -1 or 1")
)
