//go:build !integration

package ldap

import (
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netresearch/raw-ldap-go/internal/ber"
)

// TestFilterEncodingMatchesGoLDAP compares encoded filters with the packets
// go-ldap compiles from the equivalent RFC 4515 string.
func TestFilterEncodingMatchesGoLDAP(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		text   string
	}{
		{"equality", Equal("cn", "Bob"), "(cn=Bob)"},
		{"empty value", Equal("description", ""), "(description=)"},
		{"substring any", Contains("cn", "ob"), "(cn=*ob*)"},
		{"substring all components", &SubstringFilter{
			Attribute: "cn",
			Initial:   []byte("A"),
			Any:       [][]byte{[]byte("li"), []byte("ce")},
			Final:     []byte("th"),
		}, "(cn=A*li*ce*th)"},
		{"substring initial", &SubstringFilter{Attribute: "sn", Initial: []byte("Bu")}, "(sn=Bu*)"},
		{"substring final", &SubstringFilter{Attribute: "sn", Final: []byte("er")}, "(sn=*er)"},
		{"exact match", BuildExactMatch("cn", "Bob"), "(&(objectClass=inetOrgPerson)(cn=Bob))"},
		{"contains match", BuildContainsMatch("cn", "Bob"), "(&(objectClass=inetOrgPerson)(cn=*Bob*))"},
		{"or", Or(Equal("cn", "Bob"), Equal("cn", "Alice")), "(|(cn=Bob)(cn=Alice))"},
		{"not", Not(Equal("cn", "Bob")), "(!(cn=Bob))"},
		{"nested", And(Equal("objectClass", "inetOrgPerson"), Or(Contains("cn", "Bo"), Not(Equal("sn", "Smith")))),
			"(&(objectClass=inetOrgPerson)(|(cn=*Bo*)(!(sn=Smith))))"},
		{"escaped value", Equal("cn", "a*b(c)"), `(cn=a\2ab\28c\29)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.filter.Encode()
			require.NoError(t, err)

			packet, err := ldap.CompileFilter(tt.text)
			require.NoError(t, err)
			assert.Equal(t, packet.Bytes(), got)
			assert.Equal(t, tt.text, tt.filter.String())
		})
	}
}

// TestFilterAndLength checks that an AND's length octets equal the sum of its
// encoded children.
func TestFilterAndLength(t *testing.T) {
	tests := []struct {
		name       string
		and        *AndFilter
		first, sec Filter
	}{
		{"exact", BuildExactMatch("cn", "Alice"), Equal("objectClass", "inetOrgPerson"), Equal("cn", "Alice")},
		{"contains", BuildContainsMatch("cn", "Bob"), Equal("objectClass", "inetOrgPerson"), Contains("cn", "Bob")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, err := tt.first.Encode()
			require.NoError(t, err)
			second, err := tt.sec.Encode()
			require.NoError(t, err)

			got, err := tt.and.Encode()
			require.NoError(t, err)

			assert.Equal(t, byte(0xA0), got[0])
			length, consumed, err := ber.DecodeLength(got[1:])
			require.NoError(t, err)
			assert.Equal(t, len(first)+len(second), length)
			assert.Equal(t, append(first, second...), got[1+consumed:])
		})
	}
}

func TestFilterTags(t *testing.T) {
	tests := []struct {
		filter Filter
		tag    byte
	}{
		{And(Equal("a", "b")), 0xA0},
		{Or(Equal("a", "b")), 0xA1},
		{Not(Equal("a", "b")), 0xA2},
		{Equal("a", "b"), 0xA3},
		{Contains("a", "b"), 0xA4},
	}
	for _, tt := range tests {
		t.Run(tt.filter.String(), func(t *testing.T) {
			got, err := tt.filter.Encode()
			require.NoError(t, err)
			assert.Equal(t, tt.tag, got[0])
		})
	}

	t.Run("substring component tags", func(t *testing.T) {
		got, err := (&SubstringFilter{
			Attribute: "cn",
			Initial:   []byte("i"),
			Any:       [][]byte{[]byte("a")},
			Final:     []byte("f"),
		}).Encode()
		require.NoError(t, err)

		el, _, err := ber.Parse(got, ber.DefaultMaxLength)
		require.NoError(t, err)
		children, err := el.Children()
		require.NoError(t, err)
		require.Len(t, children, 2)
		parts, err := children[1].Children()
		require.NoError(t, err)
		require.Len(t, parts, 3)
		assert.Equal(t, byte(0x80), parts[0].Tag)
		assert.Equal(t, byte(0x81), parts[1].Tag)
		assert.Equal(t, byte(0x82), parts[2].Tag)
	})
}

func TestFilterValidation(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
	}{
		{"empty and", And()},
		{"empty or", Or()},
		{"nil operand", And(Equal("cn", "Bob"), nil)},
		{"not without operand", Not(nil)},
		{"equality without attribute", Equal("", "Bob")},
		{"substring without attribute", Contains("", "Bob")},
		{"substring without components", &SubstringFilter{Attribute: "cn"}},
		{"empty any component", Contains("cn", "")},
		{"invalid child", And(Equal("cn", "Bob"), Or())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.filter.Encode()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidFilter)
		})
	}
}

func TestDecodeFilter(t *testing.T) {
	filters := []Filter{
		BuildExactMatch("cn", "Bob"),
		BuildContainsMatch("cn", "Bob"),
		Or(Not(Equal("sn", "Smith")), &SubstringFilter{Attribute: "cn", Initial: []byte("A"), Final: []byte("z")}),
	}
	for _, f := range filters {
		t.Run(f.String(), func(t *testing.T) {
			encoded, err := f.Encode()
			require.NoError(t, err)
			el, rest, err := ber.Parse(encoded, ber.DefaultMaxLength)
			require.NoError(t, err)
			require.Empty(t, rest)

			decoded, err := DecodeFilter(el)
			require.NoError(t, err)
			assert.Equal(t, f.String(), decoded.String())

			again, err := decoded.Encode()
			require.NoError(t, err)
			assert.Equal(t, encoded, again)
		})
	}

	t.Run("unsupported tag", func(t *testing.T) {
		_, err := DecodeFilter(ber.Element{Tag: 0x87, Content: []byte("cn")})
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})
}
