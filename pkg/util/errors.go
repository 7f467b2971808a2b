package util

import "fmt"

// ResourceError marks a failure to acquire something a run cannot proceed
// without: scratch storage, the output artifact, or an external subprocess.
// Resource errors are fatal and trigger the cleanup path.
type ResourceError struct {
	// Op names the resource operation, e.g. "start ctags" or "create scratch file".
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewResourceError wraps err as a ResourceError for op.
func NewResourceError(op string, err error) error {
	return &ResourceError{Op: op, Err: err}
}
