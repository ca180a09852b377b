package types

import "errors"

// Errors surfaced to the person editing a photo. All of them leave the edit
// session intact so the step can be retried.
var (
	ErrFileTooLarge      = errors.New("file too large")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrPhotoSaveFailed   = errors.New("photo save failed")

	ErrSessionBusy   = errors.New("session busy")
	ErrSessionClosed = errors.New("session closed")
)
