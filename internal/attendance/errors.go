package attendance

import "errors"

// ErrInvalidImage marks a malformed or undersized input image.
// Recoverable: reported to the caller, never retried.
var ErrInvalidImage = errors.New("invalid image")

// ErrFaceNotDetected marks an image with no usable face.
// Recoverable: reported to the caller; counted and skipped in batch mode.
var ErrFaceNotDetected = errors.New("no face detected in image")
