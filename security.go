package ldap

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-ldap/ldap/v3"
)

// Input limits.
const (
	// MaxDNLength defines the maximum length for Distinguished Names
	MaxDNLength = 8000
	// MaxAttributeNameLength defines the maximum length for attribute descriptions
	MaxAttributeNameLength = 255
)

// ValidateDN checks that dn is a syntactically valid RFC 4514 DN and returns
// it with surrounding whitespace removed.
func ValidateDN(dn string) (string, error) {
	dn = strings.TrimSpace(dn)
	if dn == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDN)
	}
	if len(dn) > MaxDNLength {
		return "", fmt.Errorf("%w: %d characters (max %d)", ErrInvalidDN, len(dn), MaxDNLength)
	}
	for _, r := range dn {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: contains control characters", ErrInvalidDN)
		}
	}
	if _, err := ldap.ParseDN(dn); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDN, err)
	}
	return dn, nil
}

// ValidateAttributeName checks an attribute description: a letter followed
// by letters, digits and hyphens, optionally with ;options.
func ValidateAttributeName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidAttribute)
	}
	if len(name) > MaxAttributeNameLength {
		return fmt.Errorf("%w: name too long", ErrInvalidAttribute)
	}
	base, _, _ := strings.Cut(name, ";")
	for i, r := range base {
		switch {
		case r < unicode.MaxASCII && unicode.IsLetter(r):
		case i > 0 && (r == '-' || (r >= '0' && r <= '9')):
		default:
			return fmt.Errorf("%w: %q", ErrInvalidAttribute, name)
		}
	}
	if base == "" {
		return fmt.Errorf("%w: %q", ErrInvalidAttribute, name)
	}
	return nil
}

// escapeRDNValue escapes an attribute value for use in a DN (RFC 4514 §2.4).
func escapeRDNValue(value string) string {
	var sb strings.Builder
	for i, r := range value {
		switch {
		case strings.ContainsRune(`,+"\<>;=`, r):
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '#' && i == 0:
			sb.WriteString(`\#`)
		case r == ' ' && (i == 0 || i == len(value)-1):
			sb.WriteString(`\ `)
		case r == 0:
			sb.WriteString(`\00`)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// maskSensitiveData masks sensitive information for logging
func maskSensitiveData(data string) string {
	if len(data) <= 4 {
		return "***"
	}

	// Show first 2 and last 2 characters, mask the middle
	visible := 2
	if len(data) < 6 {
		visible = 1
	}

	prefix := data[:visible]
	suffix := data[len(data)-visible:]
	masked := strings.Repeat("*", len(data)-2*visible)

	return prefix + masked + suffix
}
