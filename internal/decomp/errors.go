package decomp

import "fmt"

// DimensionalityError reports a mask volume that is not purely 3-D.
type DimensionalityError struct {
	Path       string
	Timepoints int
}

func (e *DimensionalityError) Error() string {
	return fmt.Sprintf("mask %s must have only 3 dimensions, has %d timepoints", e.Path, e.Timepoints)
}

// DimensionMismatchError reports inter-file or mask/data geometry mismatch.
type DimensionMismatchError struct {
	Path string
	Want string
	Got  string
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: dimensions %s do not match %s", e.Path, e.Got, e.Want)
}

// InvalidConfigError reports an unknown normalization method or
// decomposition type.
type InvalidConfigError struct {
	Field string
	Value string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("illegal %s %q", e.Field, e.Value)
}

// ModelLoadError reports a trained-model file that could not be read. The
// message carries the type of the underlying cause, the path, and its
// message.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("an error of type %T occurred when trying to open %s: %v", e.Err, e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }
