package bridge

import "errors"

// ErrNilCallback is returned by Invoke when there is nowhere to deliver the result.
var ErrNilCallback = errors.New("bridge: nil result callback")
