package model

import "errors"

var (
	// ErrValidation marks malformed contact input. Normalization filters these silently.
	ErrValidation = errors.New("validation error")

	// ErrElementNotFound is returned when a UI wait times out.
	ErrElementNotFound = errors.New("element not found")

	// ErrFilesystem is returned when attachments cannot be persisted.
	ErrFilesystem = errors.New("filesystem error")

	// ErrSession is returned when an account session fails to open or has crashed.
	ErrSession = errors.New("session error")

	ErrNumberUnavailable = errors.New("number is not reachable on this platform")
	ErrNoSessions        = errors.New("no account sessions available")
	ErrNothingToSend     = errors.New("no message or attachment to send")
	ErrNoNumbers         = errors.New("no phone numbers to blast")
	ErrBlastRunning      = errors.New("a blast is already running")
	ErrBlastNotFound     = errors.New("blast not found")
	ErrSetupRunning      = errors.New("session setup already in progress")
)
