package testutil

import "testing"

// Fixture values shared by the directory tests.
const (
	AdminDN       = "cn=admin,dc=example,dc=com"
	AdminPassword = "secret"
	FriendsBaseDN = "ou=Friends,dc=example,dc=com"
)

// SetupFriends loads the standard friend entries into a mock directory.
func SetupFriends(mock *MockDirectory) {
	mock.AddEntry("cn=Bob,"+FriendsBaseDN, map[string][]string{
		"objectClass":     {"top", "person", "organizationalPerson", "inetOrgPerson"},
		"cn":              {"Bob"},
		"sn":              {"Builder"},
		"telephoneNumber": {"5551234"},
	})
	mock.AddEntry("cn=Alice Smith,"+FriendsBaseDN, map[string][]string{
		"objectClass":     {"top", "person", "organizationalPerson", "inetOrgPerson"},
		"cn":              {"Alice Smith"},
		"sn":              {"Smith"},
		"telephoneNumber": {"+49 30 1234567"},
	})
	// Carol has no telephone number.
	mock.AddEntry("cn=Carol,"+FriendsBaseDN, map[string][]string{
		"objectClass": {"top", "person", "organizationalPerson", "inetOrgPerson"},
		"cn":          {"Carol"},
		"sn":          {"Jones"},
	})
	// Not a person, so the person filters must skip it.
	mock.AddEntry("cn=Printer,"+FriendsBaseDN, map[string][]string{
		"objectClass":     {"top", "device"},
		"cn":              {"Printer"},
		"telephoneNumber": {"5550000"},
	})
}

// NewFriendsDirectory starts a mock directory with the admin account and the
// standard friend entries.
func NewFriendsDirectory(t testing.TB) *MockDirectory {
	t.Helper()
	m := NewMockDirectory(t, AdminDN, AdminPassword)
	SetupFriends(m)
	return m
}
