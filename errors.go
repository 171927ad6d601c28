package bitrow

import "errors"

// ErrClosed is returned by operations on an index after Close.
var ErrClosed = errors.New("bitrow: index closed")
