package ber

import (
	"fmt"
	"io"
)

// Element is one decoded TLV. Content holds exactly the declared number of
// octets; for constructed elements it is the concatenation of the children.
type Element struct {
	Tag     byte
	Content []byte
}

// DecodeLength decodes a definite length from the start of data and returns
// the length together with the number of octets it occupied.
func DecodeLength(data []byte) (length, consumed int, err error) {
	if len(data) == 0 {
		return 0, 0, NewDecodeError(0, "cannot read length", ErrTruncated)
	}
	first := data[0]
	if first&lengthLongForm == 0 {
		return int(first), 1, nil
	}
	k := int(first &^ lengthLongForm)
	if k == 0 {
		return 0, 0, NewDecodeError(0, "cannot read length", ErrIndefiniteLength)
	}
	if k > MaxLengthOctets {
		return 0, 0, NewDecodeError(0, fmt.Sprintf("length announces %d octets", k), ErrLengthOctets)
	}
	if len(data) < 1+k {
		return 0, 0, NewDecodeError(1, "cannot read long form length", ErrTruncated)
	}
	for _, b := range data[1 : 1+k] {
		length = length<<8 | int(b)
	}
	return length, 1 + k, nil
}

// ReadHeader reads one tag octet and a definite length from r. It reads
// exactly as many octets as the header occupies and returns them in raw.
// I/O failures are returned unwrapped so that callers can tell a broken
// stream from malformed input; format problems are *DecodeError values.
func ReadHeader(r io.Reader, maxLength int) (tag byte, length int, raw []byte, err error) {
	var hdr [1 + 1 + MaxLengthOctets]byte
	if _, err = io.ReadFull(r, hdr[:2]); err != nil {
		return 0, 0, nil, err
	}
	tag = hdr[0]
	if tag&0x1F == 0x1F {
		return 0, 0, nil, NewDecodeError(0, "cannot read tag", ErrLongFormTag)
	}

	n := 2
	if hdr[1]&lengthLongForm != 0 {
		k := int(hdr[1] &^ lengthLongForm)
		switch {
		case k == 0:
			return 0, 0, nil, NewDecodeError(1, "cannot read length", ErrIndefiniteLength)
		case k > MaxLengthOctets:
			return 0, 0, nil, NewDecodeError(1, fmt.Sprintf("length announces %d octets", k), ErrLengthOctets)
		}
		if _, err = io.ReadFull(r, hdr[2:2+k]); err != nil {
			return 0, 0, nil, err
		}
		n += k
	}

	length, _, err = DecodeLength(hdr[1:n])
	if err != nil {
		return 0, 0, nil, err
	}
	if maxLength > 0 && length > maxLength {
		return 0, 0, nil, NewDecodeError(1, fmt.Sprintf("length %d exceeds %d", length, maxLength), ErrLengthTooLarge)
	}
	raw = append([]byte(nil), hdr[:n]...)
	return tag, length, raw, nil
}

// ReadElement reads one complete TLV from r, blocking until all declared
// content octets have arrived.
func ReadElement(r io.Reader, maxLength int) (Element, error) {
	tag, length, _, err := ReadHeader(r, maxLength)
	if err != nil {
		return Element{}, err
	}
	content := make([]byte, length)
	if _, err := io.ReadFull(r, content); err != nil {
		return Element{}, err
	}
	return Element{Tag: tag, Content: content}, nil
}

// Parse decodes the first TLV of data and returns it with the remaining bytes.
func Parse(data []byte, maxLength int) (Element, []byte, error) {
	if len(data) == 0 {
		return Element{}, nil, NewDecodeError(0, "cannot read tag", ErrTruncated)
	}
	tag := data[0]
	if tag&0x1F == 0x1F {
		return Element{}, nil, NewDecodeError(0, "cannot read tag", ErrLongFormTag)
	}
	length, consumed, err := DecodeLength(data[1:])
	if err != nil {
		if de, ok := err.(*DecodeError); ok {
			de.Offset++
		}
		return Element{}, nil, err
	}
	if maxLength > 0 && length > maxLength {
		return Element{}, nil, NewDecodeError(1, fmt.Sprintf("length %d exceeds %d", length, maxLength), ErrLengthTooLarge)
	}
	start := 1 + consumed
	if len(data)-start < length {
		return Element{}, nil, NewDecodeError(start, fmt.Sprintf("need %d content octets, have %d", length, len(data)-start), ErrTruncated)
	}
	return Element{Tag: tag, Content: data[start : start+length]}, data[start+length:], nil
}

// Children decodes the content of a constructed element into its TLVs.
func (e Element) Children() ([]Element, error) {
	var out []Element
	rest := e.Content
	offset := 0
	for len(rest) > 0 {
		child, next, err := Parse(rest, 0)
		if err != nil {
			if de, ok := err.(*DecodeError); ok {
				de.Offset += offset
			}
			return nil, err
		}
		offset += len(rest) - len(next)
		out = append(out, child)
		rest = next
	}
	return out, nil
}

// Expect returns an error unless the element carries the given tag.
func (e Element) Expect(tag byte) error {
	if e.Tag != tag {
		return fmt.Errorf("%w: got 0x%02x, want 0x%02x", ErrUnexpectedTag, e.Tag, tag)
	}
	return nil
}

// Int decodes the content as a two's complement INTEGER or ENUMERATED.
func (e Element) Int() (int64, error) {
	if len(e.Content) == 0 || len(e.Content) > 8 {
		return 0, fmt.Errorf("%w: integer of %d octets", ErrInvalidValue, len(e.Content))
	}
	v := int64(int8(e.Content[0]))
	for _, b := range e.Content[1:] {
		v = v<<8 | int64(b)
	}
	return v, nil
}

// Bool decodes the content as a BOOLEAN; any non-zero octet is TRUE.
func (e Element) Bool() (bool, error) {
	if len(e.Content) != 1 {
		return false, fmt.Errorf("%w: boolean of %d octets", ErrInvalidValue, len(e.Content))
	}
	return e.Content[0] != 0, nil
}

// Str returns the content as a string.
func (e Element) Str() string {
	return string(e.Content)
}

// Bytes re-encodes the element as a TLV.
func (e Element) Bytes() []byte {
	return TLV(e.Tag, e.Content)
}
