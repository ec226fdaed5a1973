package ldap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Attribute names of a phonebook entry.
const (
	AttrCommonName      = "cn"
	AttrSurname         = "sn"
	AttrTelephoneNumber = "telephoneNumber"
)

// Lookup outcomes that are not errors.
const (
	NoMatchingEntry   = "No matching entry found"
	NoTelephoneNumber = "No telephone number found"
)

// ErrEmptyName is returned when a lookup or add is given an empty name.
var ErrEmptyName = errors.New("ldap: name cannot be empty")

// Search runs filter below the configured base DN over the whole subtree.
func (l *LDAP) Search(ctx context.Context, filter Filter, attributes ...string) (*SearchResult, error) {
	start := time.Now()
	result, err := l.search(ctx, filter, attributes)
	l.perfMonitor.RecordOperation("Search", time.Since(start), err)
	return result, err
}

func (l *LDAP) search(ctx context.Context, filter Filter, attributes []string) (*SearchResult, error) {
	conn, err := l.GetConnection(ctx)
	if err != nil {
		return nil, err
	}
	return conn.Search(ctx, &SearchRequest{
		BaseDN:       l.config.BaseDN,
		Scope:        ScopeWholeSubtree,
		DerefAliases: DerefAlways,
		Filter:       filter,
		Attributes:   attributes,
	})
}

// FindPhoneNumber looks up the entry whose cn equals name and returns its
// telephoneNumber. When nothing matches it returns NoMatchingEntry, and
// NoTelephoneNumber when the entry has no number; neither is an error.
func (l *LDAP) FindPhoneNumber(ctx context.Context, name string) (string, error) {
	return l.findPhoneNumber(ctx, "FindPhoneNumber", name, BuildExactMatch)
}

// FindPhoneNumberContaining is FindPhoneNumber with a substring match on cn.
func (l *LDAP) FindPhoneNumberContaining(ctx context.Context, name string) (string, error) {
	return l.findPhoneNumber(ctx, "FindPhoneNumberContaining", name, BuildContainsMatch)
}

func (l *LDAP) findPhoneNumber(ctx context.Context, op, name string, build func(attr, value string) *AndFilter) (string, error) {
	start := time.Now()
	if name == "" {
		return "", ErrEmptyName
	}

	filter := build(AttrCommonName, name)
	result, err := l.search(ctx, filter, []string{AttrTelephoneNumber})
	l.perfMonitor.RecordOperation(op, time.Since(start), err)
	if err != nil {
		return "", err
	}

	phone, matched, found := result.FirstValue(AttrTelephoneNumber)
	l.logger.Debug("ldap_phone_lookup_completed",
		slog.String("operation", op),
		slog.String("name", name),
		slog.Int("entries", len(result.Entries)),
		slog.Bool("found", found),
		slog.Duration("duration", time.Since(start)))

	switch {
	case !matched:
		return NoMatchingEntry, nil
	case !found:
		return NoTelephoneNumber, nil
	default:
		return phone, nil
	}
}

// AddFriend creates the inetOrgPerson entry cn=<name>,<baseDN>.
func (l *LDAP) AddFriend(ctx context.Context, friend *Friend) error {
	start := time.Now()
	if friend == nil || friend.Name == "" {
		return ErrEmptyName
	}

	dn, err := ValidateDN(friend.DN(l.config.BaseDN))
	if err != nil {
		return fmt.Errorf("AddFriend: %w", err)
	}

	err = l.add(ctx, dn, friend.Attributes())
	l.perfMonitor.RecordOperation("AddFriend", time.Since(start), err)
	return err
}

func (l *LDAP) add(ctx context.Context, dn string, attrs []Attribute) error {
	for _, a := range attrs {
		if err := ValidateAttributeName(a.Name); err != nil {
			return err
		}
	}
	conn, err := l.GetConnection(ctx)
	if err != nil {
		return err
	}
	return conn.Add(ctx, dn, attrs)
}
