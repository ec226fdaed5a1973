package ldap

import "github.com/netresearch/raw-ldap-go/internal/ber"

// ProtocolVersion is the only LDAP version spoken by this package.
const ProtocolVersion = 3

// DefaultPort is the standard LDAP port.
const DefaultPort = 389

// Application tags of the protocol operations (RFC 4511 §4.2 - §4.7).
var (
	tagBindRequest       = ber.ApplicationTag(0, true)
	tagBindResponse      = ber.ApplicationTag(1, true)
	tagUnbindRequest     = ber.ApplicationTag(2, false)
	tagSearchRequest     = ber.ApplicationTag(3, true)
	tagSearchResultEntry = ber.ApplicationTag(4, true)
	tagSearchResultDone  = ber.ApplicationTag(5, true)
	tagSearchResultRef   = ber.ApplicationTag(19, true)
	tagAddRequest        = ber.ApplicationTag(8, true)
	tagAddResponse       = ber.ApplicationTag(9, true)

	tagSimpleAuth = ber.ContextTag(0, false)
	tagControls   = ber.ContextTag(0, true)
)

// Scope selects how deep below the base object a search descends.
type Scope int

const (
	ScopeBaseObject   Scope = 0
	ScopeSingleLevel  Scope = 1
	ScopeWholeSubtree Scope = 2
)

// DerefAliases controls alias dereferencing during a search.
type DerefAliases int

const (
	NeverDerefAliases   DerefAliases = 0
	DerefInSearching    DerefAliases = 1
	DerefFindingBaseObj DerefAliases = 2
	DerefAlways         DerefAliases = 3
)

// Attribute is an attribute description with its values.
type Attribute struct {
	Name   string
	Values [][]byte
}

// NewAttribute builds an Attribute from string values.
func NewAttribute(name string, values ...string) Attribute {
	a := Attribute{Name: name, Values: make([][]byte, 0, len(values))}
	for _, v := range values {
		a.Values = append(a.Values, []byte(v))
	}
	return a
}

// ProtocolOp is one of the operations an LDAPMessage can carry.
type ProtocolOp interface {
	// Name is the operation name used in logs and errors.
	Name() string
	// encode returns the complete TLV of the operation.
	encode() ([]byte, error)
}

// BindRequest authenticates with a DN and a simple password.
type BindRequest struct {
	Version  int
	DN       string
	Password []byte
}

// Name implements ProtocolOp.
func (*BindRequest) Name() string { return "BindRequest" }

// LDAPResult is the common body of every response operation.
type LDAPResult struct {
	Code              ResultCode
	MatchedDN         string
	DiagnosticMessage string
}

// BindResponse answers a BindRequest.
type BindResponse struct {
	LDAPResult
}

// Name implements ProtocolOp.
func (*BindResponse) Name() string { return "BindResponse" }

// UnbindRequest ends the session. The server sends no response.
type UnbindRequest struct{}

// Name implements ProtocolOp.
func (*UnbindRequest) Name() string { return "UnbindRequest" }

// SearchRequest asks for entries below BaseDN matching Filter.
type SearchRequest struct {
	BaseDN       string
	Scope        Scope
	DerefAliases DerefAliases
	SizeLimit    int
	TimeLimit    int
	TypesOnly    bool
	Filter       Filter
	Attributes   []string
}

// Name implements ProtocolOp.
func (*SearchRequest) Name() string { return "SearchRequest" }

// SearchResultEntry carries one entry matched by a search.
type SearchResultEntry struct {
	DN         string
	Attributes []Attribute
}

// Name implements ProtocolOp.
func (*SearchResultEntry) Name() string { return "SearchResultEntry" }

// SearchResultDone terminates the responses to a SearchRequest.
type SearchResultDone struct {
	LDAPResult
}

// Name implements ProtocolOp.
func (*SearchResultDone) Name() string { return "SearchResultDone" }

// SearchResultReference is a continuation reference returned by a search.
// Referrals are not chased; the URIs are kept for logging.
type SearchResultReference struct {
	URIs []string
}

// Name implements ProtocolOp.
func (*SearchResultReference) Name() string { return "SearchResultReference" }

// AddRequest creates an entry.
type AddRequest struct {
	DN         string
	Attributes []Attribute
}

// Name implements ProtocolOp.
func (*AddRequest) Name() string { return "AddRequest" }

// AddResponse answers an AddRequest.
type AddResponse struct {
	LDAPResult
}

// Name implements ProtocolOp.
func (*AddResponse) Name() string { return "AddResponse" }

// Message is one LDAPMessage envelope.
type Message struct {
	ID int32
	Op ProtocolOp
	// Controls holds the raw encoded [0] Controls element, if any.
	Controls []byte
}
