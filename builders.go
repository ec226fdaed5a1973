package ldap

import (
	"errors"
	"fmt"
	"strings"
)

// Friend is a phonebook entry stored as an inetOrgPerson.
type Friend struct {
	// Name is the common name and the RDN value of the entry.
	Name            string
	Surname         string
	TelephoneNumber string
}

// FriendBuilder implements the builder pattern for Friend entries.
//
// Example:
//
//	friend, err := NewFriendBuilder().
//	    WithName("Bob").
//	    WithSurname("Builder").
//	    WithTelephoneNumber("5551234").
//	    Build()
type FriendBuilder struct {
	friend *Friend
	errors []error
}

// NewFriendBuilder creates an empty FriendBuilder.
func NewFriendBuilder() *FriendBuilder {
	return &FriendBuilder{friend: &Friend{}, errors: make([]error, 0)}
}

// WithName sets the common name.
func (b *FriendBuilder) WithName(name string) *FriendBuilder {
	name = strings.TrimSpace(name)
	if name == "" {
		b.errors = append(b.errors, errors.New("name cannot be empty"))
		return b
	}
	b.friend.Name = name
	return b
}

// WithSurname sets the surname (sn), which inetOrgPerson requires.
func (b *FriendBuilder) WithSurname(surname string) *FriendBuilder {
	surname = strings.TrimSpace(surname)
	if surname == "" {
		b.errors = append(b.errors, errors.New("surname cannot be empty"))
		return b
	}
	b.friend.Surname = surname
	return b
}

// WithTelephoneNumber sets the telephone number. Only digits, spaces and
// "+-().#" are accepted.
func (b *FriendBuilder) WithTelephoneNumber(phone string) *FriendBuilder {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		b.errors = append(b.errors, errors.New("telephone number cannot be empty"))
		return b
	}
	for _, r := range phone {
		if (r < '0' || r > '9') && !strings.ContainsRune(" +-().#", r) {
			b.errors = append(b.errors, fmt.Errorf("telephone number contains invalid character %q", r))
			return b
		}
	}
	b.friend.TelephoneNumber = phone
	return b
}

// Build returns the Friend or the errors collected while building.
func (b *FriendBuilder) Build() (*Friend, error) {
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("friend builder validation failed: %w", errors.Join(b.errors...))
	}
	if b.friend.Name == "" {
		return nil, errors.New("name is required")
	}
	if b.friend.Surname == "" {
		return nil, errors.New("surname is required")
	}
	if b.friend.TelephoneNumber == "" {
		return nil, errors.New("telephone number is required")
	}
	return b.friend, nil
}

// DN returns the entry DN cn=<name>,<baseDN>.
func (f *Friend) DN(baseDN string) string {
	return AttrCommonName + "=" + escapeRDNValue(f.Name) + "," + baseDN
}

// Attributes returns the attributes of the inetOrgPerson entry.
func (f *Friend) Attributes() []Attribute {
	return []Attribute{
		NewAttribute("objectClass", "top", "person", "organizationalPerson", PersonObjectClass),
		NewAttribute(AttrCommonName, f.Name),
		NewAttribute(AttrSurname, f.Surname),
		NewAttribute(AttrTelephoneNumber, f.TelephoneNumber),
	}
}
