package keyclient

import "errors"

var ErrUnavailable = errors.New("key server unavailable")
