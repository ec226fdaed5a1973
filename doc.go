// Package ldap is a small LDAPv3 client that speaks the protocol directly
// over TCP. It carries its own BER codec and implements the Bind (simple
// authentication), Search, Add and Unbind operations.
//
// Two levels of API are provided:
//   - Conn is one protocol session with an explicit state machine
//     (Disconnected, Connected, Bound) and per-connection message IDs.
//   - LDAP is a client for a phonebook directory of inetOrgPerson entries.
//     It connects and binds lazily and reconnects after transport failures.
//
// # Basic Usage
//
//	config := &ldap.Config{
//		Server: "ldap.example.com",
//		BaseDN: "ou=Friends,dc=example,dc=com",
//	}
//
//	client, err := ldap.New(config, "cn=admin,dc=example,dc=com", "secret")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	phone, err := client.FindPhoneNumber(ctx, "Bob")
//	if err != nil {
//		log.Printf("Lookup failed: %v", err)
//		return
//	}
//	fmt.Println(phone) // "5551234" or "No matching entry found"
//
// # Error Handling
//
// Every failure is one of four typed errors:
//   - *TransportError: connect, read or write failed, timed out, or the
//     stream closed early. The connection is discarded.
//   - *ProtocolError: malformed response, message ID mismatch (ErrSync) or
//     an unexpected operation.
//   - *AuthenticationError: Bind completed with a non-zero resultCode.
//   - *OperationError: Search or Add completed with a non-zero resultCode.
//
// Use errors.Is with ErrTransport, ErrProtocol, ErrAuthentication and
// ErrOperation, or errors.As to reach the result code.
//
// TLS, SASL and connection pooling are not supported.
package ldap
