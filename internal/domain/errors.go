package domain

import "errors"

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrNoFile               = errors.New("no file provided")
	ErrStorage              = errors.New("storage failure")
	ErrStorageMisconfigured = errors.New("storage bucket not found")
	ErrExtractionEmpty      = errors.New("no items found in image")
)
