package ldap

import (
	"context"
	"iter"
	"time"
)

// SearchIter runs filter below the base DN and returns an iterator over the
// matching entries. The search completes before the first entry is yielded;
// a failed search yields a single (nil, err) pair.
func (l *LDAP) SearchIter(ctx context.Context, filter Filter, attributes ...string) iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		start := time.Now()
		result, err := l.search(ctx, filter, attributes)
		l.perfMonitor.RecordOperation("SearchIter", time.Since(start), err)
		if err != nil {
			yield(nil, err)
			return
		}

		for _, entry := range result.Entries {
			if !yield(entry, nil) {
				return
			}
		}
	}
}

// FriendsIter iterates over every person entry below the base DN.
func (l *LDAP) FriendsIter(ctx context.Context) iter.Seq2[*Friend, error] {
	return func(yield func(*Friend, error) bool) {
		filter := Equal("objectClass", PersonObjectClass)
		for entry, err := range l.SearchIter(ctx, filter, AttrCommonName, AttrSurname, AttrTelephoneNumber) {
			if err != nil {
				yield(nil, err)
				return
			}
			friend := &Friend{
				Name:            entry.GetAttributeValue(AttrCommonName),
				Surname:         entry.GetAttributeValue(AttrSurname),
				TelephoneNumber: entry.GetAttributeValue(AttrTelephoneNumber),
			}
			if !yield(friend, nil) {
				return
			}
		}
	}
}
