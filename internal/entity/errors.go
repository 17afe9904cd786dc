package entity

import "errors"

var (
	// Image errors
	ErrImageDecode = errors.New("image decode failed")
	ErrInvalidCrop = errors.New("region crop is empty")

	// Model errors
	ErrModelLoad   = errors.New("model initialization failed")
	ErrRecognition = errors.New("text recognition failed")

	// Request errors
	ErrNoRegions = errors.New("no valid regions")
)
