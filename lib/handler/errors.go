package handler

import "errors"

// Sequencing errors. Any of them ends the handler.
var (
	ErrUnexpectedPacket        = errors.New("unexpected inbound packet")
	ErrMissingSession          = errors.New("no session with peer")
	ErrMissingChallenge        = errors.New("no active challenge for peer")
	ErrChallengeExists         = errors.New("challenge already active for peer")
	ErrScriptExhausted         = errors.New("behaviour script exhausted")
	ErrUnexpectedRequest       = errors.New("unexpected request")
	ErrCapturedRequestNotFound = errors.New("captured request not found")
	ErrInvalidAction           = errors.New("action not applicable to packet")
	ErrRecordMismatch          = errors.New("handshake record does not match sender")
	ErrHandlerStopped          = errors.New("handler stopped")
)
