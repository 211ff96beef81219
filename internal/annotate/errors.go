package annotate

import "errors"

// ErrUnknownRow is returned when an annotation row name cannot be resolved.
var ErrUnknownRow = errors.New("annotate: unknown row")
