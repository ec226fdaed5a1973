package ldap

// SearchResult collects the responses to one SearchRequest.
type SearchResult struct {
	Entries []*Entry
	// Referrals holds URIs from SearchResultReference responses.
	Referrals []string
	// Code is the resultCode of the SearchResultDone.
	Code ResultCode
}

// Entry is a directory entry returned by a search.
type Entry struct {
	DN         string
	Attributes []Attribute
}

// GetAttributeValues returns all values of the named attribute. Names are
// compared case-sensitively.
func (e *Entry) GetAttributeValues(name string) []string {
	for _, a := range e.Attributes {
		if a.Name == name {
			out := make([]string, 0, len(a.Values))
			for _, v := range a.Values {
				out = append(out, string(v))
			}
			return out
		}
	}
	return nil
}

// GetAttributeValue returns the first value of the named attribute, or ""
// when the entry does not carry it.
func (e *Entry) GetAttributeValue(name string) string {
	v, _ := e.FirstValue(name)
	return v
}

// FirstValue returns the first value of the named attribute and whether it
// was present.
func (e *Entry) FirstValue(name string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Name == name && len(a.Values) > 0 {
			return string(a.Values[0]), true
		}
	}
	return "", false
}

// FirstValue returns the first value of attr from the first entry that
// carries it. found is false when no entry matched or none has attr;
// matched tells the two apart.
func (r *SearchResult) FirstValue(attr string) (value string, matched, found bool) {
	if len(r.Entries) == 0 {
		return "", false, false
	}
	for _, e := range r.Entries {
		if v, ok := e.FirstValue(attr); ok {
			return v, true, true
		}
	}
	return "", true, false
}
