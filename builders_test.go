//go:build !integration

package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewFriendBuilder tests the FriendBuilder constructor
func TestNewFriendBuilder(t *testing.T) {
	builder := NewFriendBuilder()
	assert.NotNil(t, builder.friend)
	assert.Empty(t, builder.errors)
}

// TestFriendBuilderBuild tests building complete and incomplete friends
func TestFriendBuilderBuild(t *testing.T) {
	t.Run("builds valid friend", func(t *testing.T) {
		friend, err := NewFriendBuilder().
			WithName("  Bob ").
			WithSurname("Builder").
			WithTelephoneNumber("+1 (555) 123-4567").
			Build()
		require.NoError(t, err)
		assert.Equal(t, "Bob", friend.Name)
		assert.Equal(t, "Builder", friend.Surname)
		assert.Equal(t, "+1 (555) 123-4567", friend.TelephoneNumber)
	})

	t.Run("name is required", func(t *testing.T) {
		friend, err := NewFriendBuilder().WithSurname("Builder").WithTelephoneNumber("5551234").Build()
		require.Error(t, err)
		assert.Nil(t, friend)
		assert.Contains(t, err.Error(), "name is required")
	})

	t.Run("surname is required", func(t *testing.T) {
		_, err := NewFriendBuilder().WithName("Bob").WithTelephoneNumber("5551234").Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "surname is required")
	})

	t.Run("telephone number is required", func(t *testing.T) {
		_, err := NewFriendBuilder().WithName("Bob").WithSurname("Builder").Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "telephone number is required")
	})

	t.Run("collects every validation error", func(t *testing.T) {
		_, err := NewFriendBuilder().
			WithName("").
			WithSurname(" ").
			WithTelephoneNumber("555-CALL").
			Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "friend builder validation failed")
		assert.Contains(t, err.Error(), "name cannot be empty")
		assert.Contains(t, err.Error(), "surname cannot be empty")
		assert.Contains(t, err.Error(), `invalid character 'C'`)
	})
}

// TestFriendBuilderWithTelephoneNumber tests the accepted telephone characters
func TestFriendBuilderWithTelephoneNumber(t *testing.T) {
	tests := []struct {
		phone string
		valid bool
	}{
		{"5551234", true},
		{"+49 30 1234567", true},
		{"(555) 123-4567 #12", true},
		{"555.123.4567", true},
		{"555-CALL", false},
		{"555_1234", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			builder := NewFriendBuilder().WithTelephoneNumber(tt.phone)
			if tt.valid {
				assert.Empty(t, builder.errors)
				assert.Equal(t, tt.phone, builder.friend.TelephoneNumber)
			} else {
				assert.Len(t, builder.errors, 1)
			}
		})
	}
}

// TestFriendDN tests DN construction with escaping
func TestFriendDN(t *testing.T) {
	base := "ou=Friends,dc=example,dc=com"
	tests := []struct {
		name string
		want string
	}{
		{"Bob", "cn=Bob,ou=Friends,dc=example,dc=com"},
		{"Smith, John", `cn=Smith\, John,ou=Friends,dc=example,dc=com`},
		{"#1 Fan", `cn=\#1 Fan,ou=Friends,dc=example,dc=com`},
		{"a+b=c", `cn=a\+b\=c,ou=Friends,dc=example,dc=com`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dn := (&Friend{Name: tt.name}).DN(base)
			assert.Equal(t, tt.want, dn)
			_, err := ValidateDN(dn)
			assert.NoError(t, err)
		})
	}
}

// TestFriendAttributes tests the inetOrgPerson attribute set
func TestFriendAttributes(t *testing.T) {
	friend := &Friend{Name: "Bob", Surname: "Builder", TelephoneNumber: "5551234"}
	attrs := friend.Attributes()
	require.Len(t, attrs, 4)

	entry := &Entry{Attributes: attrs}
	assert.Equal(t, []string{"top", "person", "organizationalPerson", "inetOrgPerson"}, entry.GetAttributeValues("objectClass"))
	assert.Equal(t, "Bob", entry.GetAttributeValue("cn"))
	assert.Equal(t, "Builder", entry.GetAttributeValue("sn"))
	assert.Equal(t, "5551234", entry.GetAttributeValue("telephoneNumber"))
}
