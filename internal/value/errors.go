package value

import "errors"

var (
	// ErrNoneTag is returned when an insert is attempted with the None tag.
	ErrNoneTag = errors.New("value: None is not a storable tag")
	// ErrUnknownTag is returned for a tag outside the closed set.
	ErrUnknownTag = errors.New("value: unknown tag")
	// ErrBadPayload is returned when data does not match the shape a tag requires.
	ErrBadPayload = errors.New("value: payload does not match tag")
)
