package ldap

import (
	"errors"
	"fmt"
	"math"

	"github.com/netresearch/raw-ldap-go/internal/ber"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// Encode serializes the message bottom-up: the message ID and the operation
// are encoded first, then wrapped in the outer SEQUENCE.
func (m *Message) Encode() ([]byte, error) {
	if m.Op == nil {
		return nil, errors.New("ldap: message has no operation")
	}
	if m.ID < 0 {
		return nil, fmt.Errorf("ldap: invalid message ID %d", m.ID)
	}
	op, err := m.Op.encode()
	if err != nil {
		return nil, err
	}
	children := [][]byte{ber.Integer(int64(m.ID)), op}
	if len(m.Controls) > 0 {
		children = append(children, m.Controls)
	}
	return ber.Sequence(children...), nil
}

func (r *BindRequest) encode() ([]byte, error) {
	version := r.Version
	if version == 0 {
		version = ProtocolVersion
	}
	return ber.Constructed(tagBindRequest,
		ber.Integer(int64(version)),
		ber.String(r.DN),
		ber.TLV(tagSimpleAuth, r.Password),
	), nil
}

func (*UnbindRequest) encode() ([]byte, error) {
	return ber.TLV(tagUnbindRequest, nil), nil
}

func (r *SearchRequest) encode() ([]byte, error) {
	if r.Filter == nil {
		return nil, fmt.Errorf("%w: search without filter", ErrInvalidFilter)
	}
	filter, err := r.Filter.Encode()
	if err != nil {
		return nil, err
	}
	attrs := make([][]byte, 0, len(r.Attributes))
	for _, a := range r.Attributes {
		attrs = append(attrs, ber.String(a))
	}
	return ber.Constructed(tagSearchRequest,
		ber.String(r.BaseDN),
		ber.Enumerated(int64(r.Scope)),
		ber.Enumerated(int64(r.DerefAliases)),
		ber.Integer(int64(r.SizeLimit)),
		ber.Integer(int64(r.TimeLimit)),
		ber.Boolean(r.TypesOnly),
		filter,
		ber.Sequence(attrs...),
	), nil
}

func (r *AddRequest) encode() ([]byte, error) {
	return ber.Constructed(tagAddRequest,
		ber.String(r.DN),
		encodeAttributes(r.Attributes),
	), nil
}

func (r *SearchResultEntry) encode() ([]byte, error) {
	return ber.Constructed(tagSearchResultEntry,
		ber.String(r.DN),
		encodeAttributes(r.Attributes),
	), nil
}

func (r *SearchResultReference) encode() ([]byte, error) {
	uris := make([][]byte, 0, len(r.URIs))
	for _, u := range r.URIs {
		uris = append(uris, ber.String(u))
	}
	return ber.Constructed(tagSearchResultRef, uris...), nil
}

func (r *BindResponse) encode() ([]byte, error) {
	return r.LDAPResult.encode(tagBindResponse), nil
}

func (r *SearchResultDone) encode() ([]byte, error) {
	return r.LDAPResult.encode(tagSearchResultDone), nil
}

func (r *AddResponse) encode() ([]byte, error) {
	return r.LDAPResult.encode(tagAddResponse), nil
}

func (r LDAPResult) encode(tag byte) []byte {
	return ber.Constructed(tag,
		ber.Enumerated(int64(r.Code)),
		ber.String(r.MatchedDN),
		ber.String(r.DiagnosticMessage),
	)
}

// encodeAttributes encodes SEQUENCE OF SEQUENCE { type, SET OF value }.
func encodeAttributes(attrs []Attribute) []byte {
	list := make([][]byte, 0, len(attrs))
	for _, a := range attrs {
		values := make([][]byte, 0, len(a.Values))
		for _, v := range a.Values {
			values = append(values, ber.OctetString(v))
		}
		list = append(list, ber.Sequence(ber.String(a.Name), ber.Set(values...)))
	}
	return ber.Sequence(list...)
}

// DecodeMessage decodes a complete LDAPMessage TLV.
func DecodeMessage(el ber.Element) (*Message, error) {
	if err := el.Expect(ber.TagSequence); err != nil {
		return nil, fmt.Errorf("message envelope: %w", err)
	}
	children, err := el.Children()
	if err != nil {
		return nil, fmt.Errorf("message envelope: %w", err)
	}
	if len(children) < 2 {
		return nil, fmt.Errorf("message envelope: %d components, want at least 2", len(children))
	}

	if err := children[0].Expect(ber.TagInteger); err != nil {
		return nil, fmt.Errorf("message ID: %w", err)
	}
	id, err := children[0].Int()
	if err != nil {
		return nil, fmt.Errorf("message ID: %w", err)
	}
	if id < 0 || id > math.MaxInt32 {
		return nil, fmt.Errorf("message ID %d out of range", id)
	}

	op, err := decodeProtocolOp(children[1])
	if err != nil {
		return nil, err
	}

	msg := &Message{ID: int32(id), Op: op}
	if len(children) > 2 && children[2].Tag == tagControls {
		msg.Controls = children[2].Bytes()
	}
	return msg, nil
}

func decodeProtocolOp(el ber.Element) (ProtocolOp, error) {
	switch el.Tag {
	case tagBindRequest:
		return decodeBindRequest(el)
	case tagBindResponse:
		res, err := decodeLDAPResult(el)
		if err != nil {
			return nil, fmt.Errorf("BindResponse: %w", err)
		}
		return &BindResponse{LDAPResult: res}, nil
	case tagUnbindRequest:
		return &UnbindRequest{}, nil
	case tagSearchRequest:
		return decodeSearchRequest(el)
	case tagSearchResultEntry:
		dn, attrs, err := decodeEntry(el)
		if err != nil {
			return nil, fmt.Errorf("SearchResultEntry: %w", err)
		}
		return &SearchResultEntry{DN: dn, Attributes: attrs}, nil
	case tagSearchResultDone:
		res, err := decodeLDAPResult(el)
		if err != nil {
			return nil, fmt.Errorf("SearchResultDone: %w", err)
		}
		return &SearchResultDone{LDAPResult: res}, nil
	case tagSearchResultRef:
		children, err := el.Children()
		if err != nil {
			return nil, fmt.Errorf("SearchResultReference: %w", err)
		}
		ref := &SearchResultReference{}
		for _, c := range children {
			ref.URIs = append(ref.URIs, c.Str())
		}
		return ref, nil
	case tagAddRequest:
		dn, attrs, err := decodeEntry(el)
		if err != nil {
			return nil, fmt.Errorf("AddRequest: %w", err)
		}
		return &AddRequest{DN: dn, Attributes: attrs}, nil
	case tagAddResponse:
		res, err := decodeLDAPResult(el)
		if err != nil {
			return nil, fmt.Errorf("AddResponse: %w", err)
		}
		return &AddResponse{LDAPResult: res}, nil
	default:
		return nil, fmt.Errorf("%w: protocolOp tag 0x%02x", ErrUnexpectedResponse, el.Tag)
	}
}

// decodeLDAPResult reads resultCode and, when present, matchedDN and
// diagnosticMessage. Trailing components (referral, SASL credentials) are
// ignored.
func decodeLDAPResult(el ber.Element) (LDAPResult, error) {
	var res LDAPResult
	children, err := el.Children()
	if err != nil {
		return res, err
	}
	if len(children) == 0 {
		return res, errors.New("missing resultCode")
	}
	if err := children[0].Expect(ber.TagEnumerated); err != nil {
		return res, fmt.Errorf("resultCode: %w", err)
	}
	code, err := children[0].Int()
	if err != nil {
		return res, fmt.Errorf("resultCode: %w", err)
	}
	res.Code = ResultCode(code)

	if len(children) > 1 && children[1].Tag == ber.TagOctetString {
		if res.MatchedDN, err = utf8String("matchedDN", children[1].Content); err != nil {
			return res, err
		}
	}
	if len(children) > 2 && children[2].Tag == ber.TagOctetString {
		res.DiagnosticMessage = children[2].Str()
	}
	return res, nil
}

func decodeBindRequest(el ber.Element) (*BindRequest, error) {
	children, err := el.Children()
	if err != nil {
		return nil, fmt.Errorf("BindRequest: %w", err)
	}
	if len(children) != 3 {
		return nil, fmt.Errorf("BindRequest: %d components, want 3", len(children))
	}
	version, err := children[0].Int()
	if err != nil {
		return nil, fmt.Errorf("BindRequest version: %w", err)
	}
	if err := children[2].Expect(tagSimpleAuth); err != nil {
		return nil, fmt.Errorf("BindRequest authentication: %w", err)
	}
	return &BindRequest{
		Version:  int(version),
		DN:       children[1].Str(),
		Password: children[2].Content,
	}, nil
}

func decodeSearchRequest(el ber.Element) (*SearchRequest, error) {
	c, err := el.Children()
	if err != nil {
		return nil, fmt.Errorf("SearchRequest: %w", err)
	}
	if len(c) != 8 {
		return nil, fmt.Errorf("SearchRequest: %d components, want 8", len(c))
	}
	req := &SearchRequest{BaseDN: c[0].Str()}
	ints := make([]int64, 4)
	for i := range ints {
		if ints[i], err = c[1+i].Int(); err != nil {
			return nil, fmt.Errorf("SearchRequest: %w", err)
		}
	}
	req.Scope = Scope(ints[0])
	req.DerefAliases = DerefAliases(ints[1])
	req.SizeLimit = int(ints[2])
	req.TimeLimit = int(ints[3])
	if req.TypesOnly, err = c[5].Bool(); err != nil {
		return nil, fmt.Errorf("SearchRequest typesOnly: %w", err)
	}
	if req.Filter, err = DecodeFilter(c[6]); err != nil {
		return nil, fmt.Errorf("SearchRequest: %w", err)
	}
	attrs, err := c[7].Children()
	if err != nil {
		return nil, fmt.Errorf("SearchRequest attributes: %w", err)
	}
	for _, a := range attrs {
		req.Attributes = append(req.Attributes, a.Str())
	}
	return req, nil
}

// decodeEntry decodes the shared layout of SearchResultEntry and AddRequest:
// a DN followed by SEQUENCE OF SEQUENCE { type, SET OF value }.
func decodeEntry(el ber.Element) (string, []Attribute, error) {
	children, err := el.Children()
	if err != nil {
		return "", nil, err
	}
	if len(children) != 2 {
		return "", nil, fmt.Errorf("%d components, want 2", len(children))
	}
	if err := children[0].Expect(ber.TagOctetString); err != nil {
		return "", nil, fmt.Errorf("DN: %w", err)
	}
	dn, err := utf8String("DN", children[0].Content)
	if err != nil {
		return "", nil, err
	}

	if err := children[1].Expect(ber.TagSequence); err != nil {
		return "", nil, fmt.Errorf("attributes: %w", err)
	}
	list, err := children[1].Children()
	if err != nil {
		return "", nil, fmt.Errorf("attributes: %w", err)
	}
	attrs := make([]Attribute, 0, len(list))
	for _, item := range list {
		parts, err := item.Children()
		if err != nil {
			return "", nil, fmt.Errorf("attribute: %w", err)
		}
		if len(parts) != 2 {
			return "", nil, fmt.Errorf("attribute: %d components, want 2", len(parts))
		}
		name, err := utf8String("attribute type", parts[0].Content)
		if err != nil {
			return "", nil, err
		}
		if err := parts[1].Expect(ber.TagSet); err != nil {
			return "", nil, fmt.Errorf("attribute %s values: %w", name, err)
		}
		values, err := parts[1].Children()
		if err != nil {
			return "", nil, fmt.Errorf("attribute %s values: %w", name, err)
		}
		attr := Attribute{Name: name, Values: make([][]byte, 0, len(values))}
		for _, v := range values {
			attr.Values = append(attr.Values, v.Content)
		}
		attrs = append(attrs, attr)
	}
	return dn, attrs, nil
}

// utf8String validates that an LDAPString is well-formed UTF-8.
func utf8String(field string, b []byte) (string, error) {
	if _, _, err := transform.Bytes(encoding.UTF8Validator, b); err != nil {
		return "", fmt.Errorf("%s is not valid UTF-8: %w", field, err)
	}
	return string(b), nil
}
