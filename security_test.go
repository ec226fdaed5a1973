//go:build !integration

package ldap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDN(t *testing.T) {
	tests := []struct {
		name    string
		dn      string
		want    string
		wantErr bool
	}{
		{"simple", "cn=admin,dc=example,dc=com", "cn=admin,dc=example,dc=com", false},
		{"trimmed", "  ou=Friends,dc=example,dc=com ", "ou=Friends,dc=example,dc=com", false},
		{"escaped comma", `cn=Smith\, John,dc=example,dc=com`, `cn=Smith\, John,dc=example,dc=com`, false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"missing value separator", "cn", "", true},
		{"control character", "cn=bob\x00,dc=example", "", true},
		{"too long", "cn=" + strings.Repeat("a", MaxDNLength), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateDN(tt.dn)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidDN)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateAttributeName(t *testing.T) {
	valid := []string{"cn", "telephoneNumber", "objectClass", "x-custom-attr", "userCertificate;binary", "sn2"}
	for _, name := range valid {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, ValidateAttributeName(name))
		})
	}

	invalid := []string{"", "2cn", "-cn", "tele phone", "cn=", "ümlaut", ";binary", strings.Repeat("a", MaxAttributeNameLength+1)}
	for _, name := range invalid {
		t.Run("invalid "+name, func(t *testing.T) {
			err := ValidateAttributeName(name)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidAttribute)
		})
	}
}

func TestEscapeRDNValue(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Bob", "Bob"},
		{"a,b", `a\,b`},
		{`say "hi"`, `say \"hi\"`},
		{"#tag", `\#tag`},
		{"mid#hash", "mid#hash"},
		{" padded ", `\ padded\ `},
		{"a;b<c>d", `a\;b\<c\>d`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeRDNValue(tt.in))
		})
	}
}

func TestMaskSensitiveData(t *testing.T) {
	assert.Equal(t, "***", maskSensitiveData("abc"))
	assert.Equal(t, "***", maskSensitiveData("abcd"))
	assert.Equal(t, "h***o", maskSensitiveData("hello"))
	assert.Equal(t, "se**et", maskSensitiveData("secret"))
	assert.NotContains(t, maskSensitiveData("hunter2hunter2"), "hunter2")
}
