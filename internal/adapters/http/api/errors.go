package api

import "errors"

// ErrBodyTooBig is returned when a request body exceeds the decode limit.
var ErrBodyTooBig = errors.New("request body too large")
