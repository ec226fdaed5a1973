// Package ber implements the subset of ASN.1 BER (ITU-T X.690) needed to
// speak LDAPv3: single-octet tags, definite lengths and the universal
// INTEGER, OCTET STRING, BOOLEAN, ENUMERATED, SEQUENCE and SET types.
//
// Encoding is strictly bottom-up. Every constructor returns a complete
// TLV byte slice, so a parent is only assembled once all of its children
// have been serialized and its length is known.
package ber

// Tag class bits.
const (
	ClassUniversal   = 0x00
	ClassApplication = 0x40
	ClassContext     = 0x80
	ClassPrivate     = 0xC0
)

// Constructed flag.
const (
	TypePrimitive   = 0x00
	TypeConstructed = 0x20
)

// Universal tags, already combined with their primitive/constructed bit.
const (
	TagBoolean     byte = 0x01
	TagInteger     byte = 0x02
	TagOctetString byte = 0x04
	TagEnumerated  byte = 0x0A
	TagSequence    byte = 0x30
	TagSet         byte = 0x31
)

const (
	// lengthLongForm marks a length octet that announces a count of
	// following length octets.
	lengthLongForm = 0x80
	// MaxShortFormLength is the largest length encodable in one octet.
	MaxShortFormLength = 127
	// MaxLengthOctets is the largest number of long-form length octets
	// accepted or produced.
	MaxLengthOctets = 4
	// DefaultMaxLength is the default ceiling for a declared content length.
	DefaultMaxLength = 10 << 20
)

// Tag builds a single tag octet from class, constructed flag and number.
// Numbers above 30 need the long tag form, which LDAP never uses.
func Tag(class, constructed int, number int) byte {
	return byte(class) | byte(constructed) | byte(number&0x1F)
}

// ContextTag returns the context-specific tag [number].
func ContextTag(number int, constructed bool) byte {
	if constructed {
		return Tag(ClassContext, TypeConstructed, number)
	}
	return Tag(ClassContext, TypePrimitive, number)
}

// ApplicationTag returns the application tag [APPLICATION number].
func ApplicationTag(number int, constructed bool) byte {
	if constructed {
		return Tag(ClassApplication, TypeConstructed, number)
	}
	return Tag(ClassApplication, TypePrimitive, number)
}

// Class extracts the class bits of a tag.
func Class(tag byte) int { return int(tag & 0xC0) }

// IsConstructed reports whether the tag has the constructed bit set.
func IsConstructed(tag byte) bool { return tag&TypeConstructed != 0 }

// Number extracts the tag number.
func Number(tag byte) int { return int(tag & 0x1F) }
