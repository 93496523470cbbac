package protocol

import "errors"

// ErrBadMagic is returned by Decode when the stream does not start with a bridge frame.
var ErrBadMagic = errors.New("invalid magic number")
