package ldap

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

// ResultCode is the resultCode carried by every LDAP response operation.
type ResultCode int

// Result codes with a dedicated meaning in this package. Any other value is
// still a valid ResultCode and is reported as Other(code).
const (
	ResultSuccess            ResultCode = 0
	ResultOperationsError    ResultCode = 1
	ResultNoSuchObject       ResultCode = 32
	ResultInvalidCredentials ResultCode = 49
	ResultInsufficientAccess ResultCode = 50
	ResultBusy               ResultCode = 51
	ResultUnavailable        ResultCode = 52
	ResultUnwillingToPerform ResultCode = 53
	ResultTimeLimitExceeded  ResultCode = 54
)

var resultReasons = map[ResultCode]string{
	ResultSuccess:            "Success",
	ResultOperationsError:    "Operations error",
	ResultNoSuchObject:       "Entry does not exist",
	ResultInvalidCredentials: "Invalid credentials",
	ResultInsufficientAccess: "Insufficient access rights",
	ResultBusy:               "Server is busy",
	ResultUnavailable:        "Server is unavailable",
	ResultUnwillingToPerform: "Server is unwilling to perform",
	ResultTimeLimitExceeded:  "Time limit exceeded",
}

// IsKnown reports whether the code belongs to the canonical set.
func (c ResultCode) IsKnown() bool {
	_, ok := resultReasons[c]
	return ok
}

// Reason returns a human readable description. Codes outside the canonical
// set fall back to the RFC 4511 name, or "Other".
func (c ResultCode) Reason() string {
	if r, ok := resultReasons[c]; ok {
		return r
	}
	if c >= 0 && c <= 0xFFFF {
		if name, ok := ldap.LDAPResultCodeMap[uint16(c)]; ok {
			return name
		}
	}
	return "Other"
}

// String renders the code as "<reason> (<code>)", e.g. "Invalid credentials (49)".
func (c ResultCode) String() string {
	return fmt.Sprintf("%s (%d)", c.Reason(), int(c))
}
