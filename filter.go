package ldap

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/netresearch/raw-ldap-go/internal/ber"
)

// Filter tags (RFC 4511 §4.5.1).
var (
	tagFilterAnd       = ber.ContextTag(0, true)
	tagFilterOr        = ber.ContextTag(1, true)
	tagFilterNot       = ber.ContextTag(2, true)
	tagFilterEquality  = ber.ContextTag(3, true)
	tagFilterSubstring = ber.ContextTag(4, true)

	tagSubstringInitial = ber.ContextTag(0, false)
	tagSubstringAny     = ber.ContextTag(1, false)
	tagSubstringFinal   = ber.ContextTag(2, false)
)

// Filter is a node of a search filter tree.
type Filter interface {
	// Encode returns the complete TLV of the filter.
	Encode() ([]byte, error)
	// String renders the filter in RFC 4515 notation.
	String() string
}

// AndFilter matches when every child matches.
type AndFilter struct {
	Filters []Filter
}

// OrFilter matches when any child matches.
type OrFilter struct {
	Filters []Filter
}

// NotFilter inverts its child.
type NotFilter struct {
	Filter Filter
}

// EqualityFilter matches entries whose Attribute has Value.
type EqualityFilter struct {
	Attribute string
	Value     []byte
}

// SubstringFilter matches Attribute against initial*any*...*final. Nil or
// empty Initial and Final are absent.
type SubstringFilter struct {
	Attribute string
	Initial   []byte
	Any       [][]byte
	Final     []byte
}

// And combines filters with a logical AND.
func And(filters ...Filter) *AndFilter { return &AndFilter{Filters: filters} }

// Or combines filters with a logical OR.
func Or(filters ...Filter) *OrFilter { return &OrFilter{Filters: filters} }

// Not negates a filter.
func Not(f Filter) *NotFilter { return &NotFilter{Filter: f} }

// Equal builds an equality match.
func Equal(attr, value string) *EqualityFilter {
	return &EqualityFilter{Attribute: attr, Value: []byte(value)}
}

// Contains builds a substring match with a single any component.
func Contains(attr, value string) *SubstringFilter {
	return &SubstringFilter{Attribute: attr, Any: [][]byte{[]byte(value)}}
}

// PersonObjectClass is the structural object class searched for by the
// name lookups.
const PersonObjectClass = "inetOrgPerson"

// BuildExactMatch returns (&(objectClass=inetOrgPerson)(attr=value)).
func BuildExactMatch(attr, value string) *AndFilter {
	return And(Equal("objectClass", PersonObjectClass), Equal(attr, value))
}

// BuildContainsMatch returns (&(objectClass=inetOrgPerson)(attr=*value*)).
func BuildContainsMatch(attr, value string) *AndFilter {
	return And(Equal("objectClass", PersonObjectClass), Contains(attr, value))
}

func (f *AndFilter) Encode() ([]byte, error) {
	return encodeFilterSet(tagFilterAnd, "AND", f.Filters)
}

func (f *AndFilter) String() string { return filterSetString('&', f.Filters) }

func (f *OrFilter) Encode() ([]byte, error) {
	return encodeFilterSet(tagFilterOr, "OR", f.Filters)
}

func (f *OrFilter) String() string { return filterSetString('|', f.Filters) }

func (f *NotFilter) Encode() ([]byte, error) {
	if f.Filter == nil {
		return nil, fmt.Errorf("%w: NOT without operand", ErrInvalidFilter)
	}
	inner, err := f.Filter.Encode()
	if err != nil {
		return nil, err
	}
	return ber.Constructed(tagFilterNot, inner), nil
}

func (f *NotFilter) String() string {
	if f.Filter == nil {
		return "(!)"
	}
	return "(!" + f.Filter.String() + ")"
}

func (f *EqualityFilter) Encode() ([]byte, error) {
	if f.Attribute == "" {
		return nil, fmt.Errorf("%w: equality without attribute", ErrInvalidFilter)
	}
	return ber.Constructed(tagFilterEquality,
		ber.String(f.Attribute),
		ber.OctetString(f.Value),
	), nil
}

func (f *EqualityFilter) String() string {
	return "(" + f.Attribute + "=" + ldap.EscapeFilter(string(f.Value)) + ")"
}

// Encode tags every component with its own context tag: initial [0],
// any [1], final [2].
func (f *SubstringFilter) Encode() ([]byte, error) {
	if f.Attribute == "" {
		return nil, fmt.Errorf("%w: substring without attribute", ErrInvalidFilter)
	}
	var parts [][]byte
	if len(f.Initial) > 0 {
		parts = append(parts, ber.TLV(tagSubstringInitial, f.Initial))
	}
	for _, a := range f.Any {
		if len(a) == 0 {
			return nil, fmt.Errorf("%w: empty any component", ErrInvalidFilter)
		}
		parts = append(parts, ber.TLV(tagSubstringAny, a))
	}
	if len(f.Final) > 0 {
		parts = append(parts, ber.TLV(tagSubstringFinal, f.Final))
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: substring without components", ErrInvalidFilter)
	}
	return ber.Constructed(tagFilterSubstring,
		ber.String(f.Attribute),
		ber.Sequence(parts...),
	), nil
}

func (f *SubstringFilter) String() string {
	var sb strings.Builder
	sb.WriteString("(" + f.Attribute + "=")
	sb.WriteString(ldap.EscapeFilter(string(f.Initial)))
	sb.WriteByte('*')
	for _, a := range f.Any {
		sb.WriteString(ldap.EscapeFilter(string(a)))
		sb.WriteByte('*')
	}
	sb.WriteString(ldap.EscapeFilter(string(f.Final)))
	sb.WriteByte(')')
	return sb.String()
}

func encodeFilterSet(tag byte, name string, filters []Filter) ([]byte, error) {
	if len(filters) == 0 {
		return nil, fmt.Errorf("%w: empty %s", ErrInvalidFilter, name)
	}
	children := make([][]byte, 0, len(filters))
	for _, f := range filters {
		if f == nil {
			return nil, fmt.Errorf("%w: nil operand in %s", ErrInvalidFilter, name)
		}
		enc, err := f.Encode()
		if err != nil {
			return nil, err
		}
		children = append(children, enc)
	}
	return ber.Constructed(tag, children...), nil
}

func filterSetString(op byte, filters []Filter) string {
	var sb strings.Builder
	sb.WriteByte('(')
	sb.WriteByte(op)
	for _, f := range filters {
		if f != nil {
			sb.WriteString(f.String())
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

// DecodeFilter decodes a filter TLV produced by Encode.
func DecodeFilter(el ber.Element) (Filter, error) {
	switch el.Tag {
	case tagFilterAnd, tagFilterOr:
		children, err := el.Children()
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		filters := make([]Filter, 0, len(children))
		for _, c := range children {
			f, err := DecodeFilter(c)
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		}
		if el.Tag == tagFilterAnd {
			return And(filters...), nil
		}
		return Or(filters...), nil

	case tagFilterNot:
		children, err := el.Children()
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		if len(children) != 1 {
			return nil, fmt.Errorf("%w: NOT with %d operands", ErrInvalidFilter, len(children))
		}
		inner, err := DecodeFilter(children[0])
		if err != nil {
			return nil, err
		}
		return Not(inner), nil

	case tagFilterEquality:
		children, err := el.Children()
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		if len(children) != 2 {
			return nil, fmt.Errorf("%w: equality with %d components", ErrInvalidFilter, len(children))
		}
		return &EqualityFilter{Attribute: children[0].Str(), Value: children[1].Content}, nil

	case tagFilterSubstring:
		children, err := el.Children()
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		if len(children) != 2 {
			return nil, fmt.Errorf("%w: substring with %d components", ErrInvalidFilter, len(children))
		}
		parts, err := children[1].Children()
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		f := &SubstringFilter{Attribute: children[0].Str()}
		for _, p := range parts {
			switch p.Tag {
			case tagSubstringInitial:
				f.Initial = p.Content
			case tagSubstringAny:
				f.Any = append(f.Any, p.Content)
			case tagSubstringFinal:
				f.Final = p.Content
			default:
				return nil, fmt.Errorf("%w: substring component tag 0x%02x", ErrInvalidFilter, p.Tag)
			}
		}
		return f, nil

	default:
		return nil, fmt.Errorf("%w: unsupported filter tag 0x%02x", ErrInvalidFilter, el.Tag)
	}
}
