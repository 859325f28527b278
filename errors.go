package bento

import (
	"goflare.io/bento/internal/config"
	"goflare.io/bento/internal/models"
)

var (
	ErrPreconditionFailed = models.ErrPreconditionFailed
	ErrMutationInFlight   = models.ErrMutationInFlight
	ErrRemote             = models.ErrRemote
	ErrSubscriptionClosed = models.ErrSubscriptionClosed
	ErrTypeMismatch       = models.ErrTypeMismatch
	ErrKeyNotFound        = models.ErrKeyNotFound

	ErrTransitionTooLong = config.ErrTransitionTooLong
	ErrInvalidSize       = config.ErrInvalidSize
)
