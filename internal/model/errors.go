package model

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCamera  = errors.New("unknown camera")
	ErrCameraDisabled = errors.New("camera disabled")
	ErrDuplicateFace  = errors.New("face name already enrolled")
	ErrFaceNotFound   = errors.New("face not enrolled")
	ErrNoFaceFound    = errors.New("no face found in image")
	ErrInvalidName    = errors.New("invalid face name")
	ErrWorkerStopped  = errors.New("detector worker stopped")
)

// DeviceError reports a camera open or read failure.
type DeviceError struct {
	CameraID int
	Op       string
	Err      error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("camera %d: %s: %v", e.CameraID, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// ConfigurationError reports an unknown or disabled camera or a malformed config.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ModelError reports a detector failure.
type ModelError struct {
	Op  string
	Err error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("detector: %s: %v", e.Op, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// DeliveryError reports a notification transport failure.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery via %s: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// PersistenceError reports a screenshot or log store write failure.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("persistence: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
