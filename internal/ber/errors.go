package ber

import (
	"errors"
	"fmt"
)

// Errors returned by the decoder and encoder.
var (
	ErrTruncated        = errors.New("ber: content shorter than declared length")
	ErrLengthTooLarge   = errors.New("ber: declared length exceeds ceiling")
	ErrIndefiniteLength = errors.New("ber: indefinite length not supported")
	ErrLengthOctets     = errors.New("ber: too many length octets")
	ErrLongFormTag      = errors.New("ber: long form tags not supported")
	ErrNegativeLength   = errors.New("ber: negative length")
	ErrUnexpectedTag    = errors.New("ber: unexpected tag")
	ErrInvalidValue     = errors.New("ber: invalid primitive value")
)

// DecodeError records where in the input a decoding failure happened.
type DecodeError struct {
	Offset  int
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ber: %s at offset %d: %v", e.Message, e.Offset, e.Err)
	}
	return fmt.Sprintf("ber: %s at offset %d", e.Message, e.Offset)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewDecodeError creates a DecodeError.
func NewDecodeError(offset int, message string, err error) *DecodeError {
	return &DecodeError{Offset: offset, Message: message, Err: err}
}
