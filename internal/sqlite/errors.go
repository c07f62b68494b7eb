package sqlite

import "errors"

// ErrAlreadyAttached is returned by Attach on an attached backend.
var ErrAlreadyAttached = errors.New("backend is already attached")
