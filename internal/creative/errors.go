package creative

import "fmt"

// UnusableCopyShapeError means a parsed JSON value could not be interpreted
// as copy variants: not an object list, not a string list, and not an
// envelope wrapping one of those.
type UnusableCopyShapeError struct {
	Detail string
}

func (e *UnusableCopyShapeError) Error() string {
	if e.Detail == "" {
		return "copy output has no usable variant shape"
	}
	return "copy output has no usable variant shape: " + e.Detail
}

// CopyGenerationExhaustedError means the bounded generation loop finished all
// its cycles without reaching the requested variant count.
type CopyGenerationExhaustedError struct {
	Target   int
	Got      int
	Attempts int
}

func (e *CopyGenerationExhaustedError) Error() string {
	return fmt.Sprintf("copy generation produced %d of %d variants after %d attempts", e.Got, e.Target, e.Attempts)
}
