package intakeerr

import "errors"

var (
	ErrValidation       = errors.New("unexpected input for current step")
	ErrDownload         = errors.New("attachment download failed")
	ErrUpload           = errors.New("attachment upload failed")
	ErrTicketCreation   = errors.New("ticket creation failed")
	ErrStoreUnavailable = errors.New("state store unavailable")
)
