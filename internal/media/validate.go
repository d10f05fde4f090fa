package media

import "fmt"

// OrientationMismatchError reports a probed orientation that contradicts the
// one the content record declares.
type OrientationMismatchError struct {
	Detected Orientation
	Declared Orientation
}

func (e *OrientationMismatchError) Error() string {
	return fmt.Sprintf("orientation mismatch: detected %s, declared %s", e.Detected, e.Declared)
}

// ValidateOrientation gates publishing on the probed orientation. A degraded
// probe always passes: when the file could not be inspected the declared
// value is trusted rather than the upload being rejected.
func ValidateOrientation(result ProbeResult, declared Orientation) error {
	if result.Degraded {
		return nil
	}
	if result.Orientation != declared {
		return &OrientationMismatchError{Detected: result.Orientation, Declared: declared}
	}
	return nil
}
