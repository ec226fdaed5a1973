package ber

import "fmt"

// EncodeLength encodes n as a definite BER length. Values up to 127 use the
// short form; larger values use 0x80|k followed by k big-endian octets, with
// k the minimal count (1 to 4).
func EncodeLength(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeLength
	}
	if n <= MaxShortFormLength {
		return []byte{byte(n)}, nil
	}

	k := 0
	for v := n; v > 0; v >>= 8 {
		k++
	}
	if k > MaxLengthOctets {
		return nil, ErrLengthOctets
	}

	out := make([]byte, 1+k)
	out[0] = byte(lengthLongForm | k)
	for i := 0; i < k; i++ {
		out[k-i] = byte(n >> (8 * i))
	}
	return out, nil
}

// TLV concatenates tag, the encoded length of content, and content.
// Content must already be fully encoded; nothing is patched afterwards.
// It panics if content is too large to be framed with four length octets.
func TLV(tag byte, content []byte) []byte {
	length, err := EncodeLength(len(content))
	if err != nil {
		panic(fmt.Sprintf("ber: cannot frame %d content octets: %v", len(content), err))
	}
	out := make([]byte, 0, 1+len(length)+len(content))
	out = append(out, tag)
	out = append(out, length...)
	return append(out, content...)
}

// Constructed wraps already-encoded children in a constructed TLV with the
// given tag. The parent length is the sum of the children's lengths.
func Constructed(tag byte, children ...[]byte) []byte {
	size := 0
	for _, c := range children {
		size += len(c)
	}
	content := make([]byte, 0, size)
	for _, c := range children {
		content = append(content, c...)
	}
	return TLV(tag, content)
}

// Sequence encodes a universal SEQUENCE of the given children.
func Sequence(children ...[]byte) []byte {
	return Constructed(TagSequence, children...)
}

// Set encodes a universal SET of the given children.
func Set(children ...[]byte) []byte {
	return Constructed(TagSet, children...)
}

// Integer encodes v as a universal INTEGER.
func Integer(v int64) []byte {
	return TLV(TagInteger, encodeInteger(v))
}

// Enumerated encodes v as a universal ENUMERATED.
func Enumerated(v int64) []byte {
	return TLV(TagEnumerated, encodeInteger(v))
}

// Boolean encodes v as a universal BOOLEAN. TRUE is written as 0xFF.
func Boolean(v bool) []byte {
	if v {
		return TLV(TagBoolean, []byte{0xFF})
	}
	return TLV(TagBoolean, []byte{0x00})
}

// OctetString encodes raw bytes as a universal OCTET STRING.
func OctetString(v []byte) []byte {
	return TLV(TagOctetString, v)
}

// String encodes s as a universal OCTET STRING.
func String(s string) []byte {
	return TLV(TagOctetString, []byte(s))
}

// encodeInteger returns the minimal two's complement encoding of v.
func encodeInteger(v int64) []byte {
	n := 1
	for n < 8 {
		// Stop once the remaining high octets are pure sign extension.
		hi := v >> (8*n - 1)
		if hi == 0 || hi == -1 {
			break
		}
		n++
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = byte(v >> (8 * i))
	}
	return out
}
