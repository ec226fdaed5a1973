//go:build !integration

package ldap

import (
	"testing"

	asn1ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netresearch/raw-ldap-go/internal/ber"
)

func envelope(id int64) *asn1ber.Packet {
	p := asn1ber.Encode(asn1ber.ClassUniversal, asn1ber.TypeConstructed, asn1ber.TagSequence, nil, "LDAP Request")
	p.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagInteger, id, "MessageID"))
	return p
}

func octetString(s string) *asn1ber.Packet {
	return asn1ber.NewString(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagOctetString, s, "")
}

func decodeBytes(t *testing.T, data []byte) *Message {
	t.Helper()
	el, rest, err := ber.Parse(data, ber.DefaultMaxLength)
	require.NoError(t, err)
	require.Empty(t, rest)
	msg, err := DecodeMessage(el)
	require.NoError(t, err)
	return msg
}

// TestRequestEncodingMatchesASN1BER compares encoded requests with the same
// messages assembled by the asn1-ber reference codec.
func TestRequestEncodingMatchesASN1BER(t *testing.T) {
	t.Run("bind", func(t *testing.T) {
		msg := &Message{ID: 1, Op: &BindRequest{DN: "cn=admin,dc=example,dc=com", Password: []byte("secret")}}
		got, err := msg.Encode()
		require.NoError(t, err)

		want := envelope(1)
		bind := asn1ber.Encode(asn1ber.ClassApplication, asn1ber.TypeConstructed, 0, nil, "Bind Request")
		bind.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagInteger, int64(3), "Version"))
		bind.AppendChild(octetString("cn=admin,dc=example,dc=com"))
		bind.AppendChild(asn1ber.NewString(asn1ber.ClassContext, asn1ber.TypePrimitive, 0, "secret", "Password"))
		want.AppendChild(bind)

		assert.Equal(t, want.Bytes(), got)
		assert.Equal(t, byte(0x60), got[5])
	})

	t.Run("unbind", func(t *testing.T) {
		got, err := (&Message{ID: 4, Op: &UnbindRequest{}}).Encode()
		require.NoError(t, err)

		want := envelope(4)
		want.AppendChild(asn1ber.Encode(asn1ber.ClassApplication, asn1ber.TypePrimitive, 2, nil, "Unbind Request"))
		assert.Equal(t, want.Bytes(), got)
		assert.Equal(t, []byte{0x30, 0x05, 0x02, 0x01, 0x04, 0x42, 0x00}, got)
	})

	t.Run("search", func(t *testing.T) {
		req := &SearchRequest{
			BaseDN:       "ou=Friends,dc=example,dc=com",
			Scope:        ScopeWholeSubtree,
			DerefAliases: DerefAlways,
			Filter:       BuildExactMatch("cn", "Bob"),
			Attributes:   []string{"telephoneNumber"},
		}
		got, err := (&Message{ID: 2, Op: req}).Encode()
		require.NoError(t, err)

		filter, err := ldap.CompileFilter("(&(objectClass=inetOrgPerson)(cn=Bob))")
		require.NoError(t, err)
		attrs := asn1ber.Encode(asn1ber.ClassUniversal, asn1ber.TypeConstructed, asn1ber.TagSequence, nil, "Attributes")
		attrs.AppendChild(octetString("telephoneNumber"))

		search := asn1ber.Encode(asn1ber.ClassApplication, asn1ber.TypeConstructed, 3, nil, "Search Request")
		search.AppendChild(octetString("ou=Friends,dc=example,dc=com"))
		search.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagEnumerated, 2, "Scope"))
		search.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagEnumerated, 3, "Deref Aliases"))
		search.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagInteger, 0, "Size Limit"))
		search.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagInteger, 0, "Time Limit"))
		search.AppendChild(asn1ber.NewBoolean(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagBoolean, false, "Types Only"))
		search.AppendChild(filter)
		search.AppendChild(attrs)
		want := envelope(2)
		want.AppendChild(search)

		assert.Equal(t, want.Bytes(), got)
	})

	t.Run("add", func(t *testing.T) {
		friend := &Friend{Name: "Bob", Surname: "Builder", TelephoneNumber: "5551234"}
		req := &AddRequest{DN: friend.DN("ou=Friends,dc=example,dc=com"), Attributes: friend.Attributes()}
		got, err := (&Message{ID: 3, Op: req}).Encode()
		require.NoError(t, err)

		list := asn1ber.Encode(asn1ber.ClassUniversal, asn1ber.TypeConstructed, asn1ber.TagSequence, nil, "Attributes")
		for _, a := range req.Attributes {
			attr := asn1ber.Encode(asn1ber.ClassUniversal, asn1ber.TypeConstructed, asn1ber.TagSequence, nil, "Attribute")
			attr.AppendChild(octetString(a.Name))
			set := asn1ber.Encode(asn1ber.ClassUniversal, asn1ber.TypeConstructed, asn1ber.TagSet, nil, "Values")
			for _, v := range a.Values {
				set.AppendChild(octetString(string(v)))
			}
			attr.AppendChild(set)
			list.AppendChild(attr)
		}
		add := asn1ber.Encode(asn1ber.ClassApplication, asn1ber.TypeConstructed, 8, nil, "Add Request")
		add.AppendChild(octetString("cn=Bob,ou=Friends,dc=example,dc=com"))
		add.AppendChild(list)
		want := envelope(3)
		want.AppendChild(add)

		assert.Equal(t, want.Bytes(), got)
	})
}

func TestMessageEncodeErrors(t *testing.T) {
	_, err := (&Message{ID: 1}).Encode()
	assert.Error(t, err)

	_, err = (&Message{ID: -1, Op: &UnbindRequest{}}).Encode()
	assert.Error(t, err)

	_, err = (&Message{ID: 1, Op: &SearchRequest{BaseDN: "dc=example"}}).Encode()
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestDecodeResponses(t *testing.T) {
	t.Run("search result entry", func(t *testing.T) {
		p := envelope(2)
		entry := asn1ber.Encode(asn1ber.ClassApplication, asn1ber.TypeConstructed, 4, nil, "Search Result Entry")
		entry.AppendChild(octetString("cn=Bob,ou=Friends,dc=example,dc=com"))
		attrs := asn1ber.Encode(asn1ber.ClassUniversal, asn1ber.TypeConstructed, asn1ber.TagSequence, nil, "Attributes")
		attr := asn1ber.Encode(asn1ber.ClassUniversal, asn1ber.TypeConstructed, asn1ber.TagSequence, nil, "Attribute")
		attr.AppendChild(octetString("telephoneNumber"))
		vals := asn1ber.Encode(asn1ber.ClassUniversal, asn1ber.TypeConstructed, asn1ber.TagSet, nil, "Values")
		vals.AppendChild(octetString("5551234"))
		vals.AppendChild(octetString("5559999"))
		attr.AppendChild(vals)
		attrs.AppendChild(attr)
		entry.AppendChild(attrs)
		p.AppendChild(entry)

		msg := decodeBytes(t, p.Bytes())
		assert.Equal(t, int32(2), msg.ID)
		op, ok := msg.Op.(*SearchResultEntry)
		require.True(t, ok)
		assert.Equal(t, "cn=Bob,ou=Friends,dc=example,dc=com", op.DN)
		e := &Entry{DN: op.DN, Attributes: op.Attributes}
		assert.Equal(t, []string{"5551234", "5559999"}, e.GetAttributeValues("telephoneNumber"))
	})

	t.Run("search result done", func(t *testing.T) {
		p := envelope(2)
		done := asn1ber.Encode(asn1ber.ClassApplication, asn1ber.TypeConstructed, 5, nil, "Search Result Done")
		done.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagEnumerated, 32, "resultCode"))
		done.AppendChild(octetString("dc=example,dc=com"))
		done.AppendChild(octetString("no such entry"))
		p.AppendChild(done)

		msg := decodeBytes(t, p.Bytes())
		op, ok := msg.Op.(*SearchResultDone)
		require.True(t, ok)
		assert.Equal(t, ResultNoSuchObject, op.Code)
		assert.Equal(t, "dc=example,dc=com", op.MatchedDN)
		assert.Equal(t, "no such entry", op.DiagnosticMessage)
	})

	t.Run("bind response with only result code", func(t *testing.T) {
		msg := decodeBytes(t, []byte{0x30, 0x08, 0x02, 0x01, 0x01, 0x61, 0x03, 0x0A, 0x01, 0x31})
		op, ok := msg.Op.(*BindResponse)
		require.True(t, ok)
		assert.Equal(t, ResultInvalidCredentials, op.Code)
		assert.Empty(t, op.MatchedDN)
	})

	t.Run("search result reference", func(t *testing.T) {
		p := envelope(5)
		ref := asn1ber.Encode(asn1ber.ClassApplication, asn1ber.TypeConstructed, 19, nil, "Search Result Reference")
		ref.AppendChild(octetString("ldap://other.example.com/dc=example,dc=com"))
		p.AppendChild(ref)

		op, ok := decodeBytes(t, p.Bytes()).Op.(*SearchResultReference)
		require.True(t, ok)
		assert.Equal(t, []string{"ldap://other.example.com/dc=example,dc=com"}, op.URIs)
	})

	t.Run("controls are kept", func(t *testing.T) {
		p := envelope(3)
		add := asn1ber.Encode(asn1ber.ClassApplication, asn1ber.TypeConstructed, 9, nil, "Add Response")
		add.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagEnumerated, 0, "resultCode"))
		add.AppendChild(octetString(""))
		add.AppendChild(octetString(""))
		p.AppendChild(add)
		controls := asn1ber.Encode(asn1ber.ClassContext, asn1ber.TypeConstructed, 0, nil, "Controls")
		control := asn1ber.Encode(asn1ber.ClassUniversal, asn1ber.TypeConstructed, asn1ber.TagSequence, nil, "Control")
		control.AppendChild(octetString("1.2.840.113556.1.4.319"))
		controls.AppendChild(control)
		p.AppendChild(controls)

		msg := decodeBytes(t, p.Bytes())
		_, ok := msg.Op.(*AddResponse)
		require.True(t, ok)
		assert.Equal(t, controls.Bytes(), msg.Controls)
	})
}

func TestDecodeRequestsRoundTrip(t *testing.T) {
	msgs := []*Message{
		{ID: 1, Op: &BindRequest{Version: 3, DN: "cn=admin,dc=example,dc=com", Password: []byte("secret")}},
		{ID: 2, Op: &SearchRequest{
			BaseDN:       "ou=Friends,dc=example,dc=com",
			Scope:        ScopeSingleLevel,
			DerefAliases: NeverDerefAliases,
			SizeLimit:    10,
			TimeLimit:    30,
			TypesOnly:    true,
			Filter:       BuildContainsMatch("cn", "ob"),
			Attributes:   []string{"cn", "telephoneNumber"},
		}},
		{ID: 3, Op: &AddRequest{DN: "cn=Bob,ou=Friends,dc=example,dc=com", Attributes: []Attribute{NewAttribute("cn", "Bob")}}},
		{ID: 4, Op: &UnbindRequest{}},
	}
	for _, m := range msgs {
		t.Run(m.Op.Name(), func(t *testing.T) {
			data, err := m.Encode()
			require.NoError(t, err)
			decoded := decodeBytes(t, data)
			assert.Equal(t, m.ID, decoded.ID)
			assert.Equal(t, m.Op.Name(), decoded.Op.Name())

			again, err := decoded.Encode()
			require.NoError(t, err)
			assert.Equal(t, data, again)
		})
	}
}

func TestDecodeMessageErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not a sequence", []byte{0x04, 0x00}},
		{"missing operation", []byte{0x30, 0x03, 0x02, 0x01, 0x01}},
		{"negative message ID", []byte{0x30, 0x07, 0x02, 0x01, 0xFF, 0x61, 0x02, 0x0A, 0x00}},
		{"unknown operation", []byte{0x30, 0x05, 0x02, 0x01, 0x01, 0x77, 0x00}},
		{"empty result", []byte{0x30, 0x05, 0x02, 0x01, 0x01, 0x61, 0x00}},
		{"result code not enumerated", []byte{0x30, 0x08, 0x02, 0x01, 0x01, 0x61, 0x03, 0x02, 0x01, 0x00}},
		{"invalid UTF-8 DN", []byte{0x30, 0x0B, 0x02, 0x01, 0x02, 0x64, 0x06, 0x04, 0x02, 0xC3, 0x28, 0x30, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, _, err := ber.Parse(tt.data, ber.DefaultMaxLength)
			require.NoError(t, err)
			_, err = DecodeMessage(el)
			assert.Error(t, err)
		})
	}

	t.Run("unknown operation is unexpected response", func(t *testing.T) {
		el, _, err := ber.Parse([]byte{0x30, 0x05, 0x02, 0x01, 0x01, 0x77, 0x00}, ber.DefaultMaxLength)
		require.NoError(t, err)
		_, err = DecodeMessage(el)
		assert.ErrorIs(t, err, ErrUnexpectedResponse)
	})

	t.Run("multibyte UTF-8 DN is accepted", func(t *testing.T) {
		msg := decodeBytes(t, []byte{0x30, 0x0B, 0x02, 0x01, 0x02, 0x64, 0x06, 0x04, 0x02, 0xC3, 0xBC, 0x30, 0x00})
		entry, ok := msg.Op.(*SearchResultEntry)
		require.True(t, ok)
		assert.Equal(t, "ü", entry.DN)
	})
}
