// Package validation implements the pure input rules applied to every payment
// request before it reaches the registry: address format and EIP-55 checksum
// checks, integer amount checks, and token whitelist checks.
package validation

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Code classifies a validation failure so callers can branch on the cause
// without parsing the message.
type Code string

const (
	CodeRequired         Code = "required"
	CodeInvalidFormat    Code = "invalid_format"
	CodeInvalidChecksum  Code = "invalid_checksum"
	CodeNotAnInteger     Code = "not_an_integer"
	CodeNonPositive      Code = "non_positive"
	CodeUnsupportedToken Code = "unsupported_token"
	CodeSameAddress      Code = "same_address"
)

// Error describes a single invalid input field with a human-readable reason.
type Error struct {
	Field   string
	Code    Code
	message string
}

func (e *Error) Error() string { return e.message }

func newError(field string, code Code, format string, args ...interface{}) *Error {
	return &Error{Field: field, Code: code, message: fmt.Sprintf(format, args...)}
}

var (
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	integerPattern = regexp.MustCompile(`^[0-9]+$`)
)

// ValidateAddress checks that value is a 0x-prefixed 20-byte hex address.
// A mixed-case value must carry a valid EIP-55 checksum; a pure-lowercase or
// pure-uppercase value is accepted without checksum verification. That
// relaxation is intentional: wallets commonly emit all-lowercase addresses.
func ValidateAddress(value, field string) error {
	v := strings.TrimSpace(value)
	if v == "" {
		return newError(field, CodeRequired, "%s is required", field)
	}
	if !addressPattern.MatchString(v) {
		return newError(field, CodeInvalidFormat,
			"invalid %s format: must be a 0x-prefixed address of 40 hex characters", field)
	}

	hexPart := v[2:]
	if hexPart == strings.ToLower(hexPart) || hexPart == strings.ToUpper(hexPart) {
		return nil
	}

	// Mixed case: the value must match the checksum derived from its
	// lowercase form exactly.
	if common.HexToAddress(v).Hex() != v {
		return newError(field, CodeInvalidChecksum,
			"invalid %s checksum: address has mixed case but an invalid EIP-55 checksum", field)
	}
	return nil
}

// ValidateAmount checks that value is a positive integer string in the token's
// smallest unit. Signs, decimal points and exponents are rejected rather than
// rounded. There is no upper bound.
func ValidateAmount(value, field string) error {
	v := strings.TrimSpace(value)
	if v == "" {
		return newError(field, CodeRequired, "%s is required", field)
	}
	if !integerPattern.MatchString(v) {
		return newError(field, CodeNotAnInteger,
			"%s must be a positive integer without decimals, received: %s", field, v)
	}

	n, ok := new(big.Int).SetString(v, 10)
	if !ok || n.Sign() <= 0 {
		return newError(field, CodeNonPositive, "%s must be greater than zero", field)
	}
	return nil
}

// ValidateToken checks value against the configured whitelist of token
// symbols. Matching is case-insensitive on the upper-cased value.
func ValidateToken(value, field string, supported []string) error {
	v := strings.TrimSpace(value)
	if v == "" {
		return newError(field, CodeRequired, "%s is required", field)
	}

	upper := strings.ToUpper(v)
	for _, s := range supported {
		if strings.ToUpper(s) == upper {
			return nil
		}
	}
	return newError(field, CodeUnsupportedToken,
		"%s not supported, supported tokens: %s, received: %s",
		field, strings.Join(supported, ", "), value)
}

// ValidatePaymentRequest runs the field checks in order (sender, recipient,
// amount, token), short-circuiting on the first failure, then rejects
// requests whose sender and recipient are the same address under
// case-insensitive comparison.
func ValidatePaymentRequest(from, to, amount, token string, supported []string) error {
	if err := ValidateAddress(from, "from"); err != nil {
		return err
	}
	if err := ValidateAddress(to, "to"); err != nil {
		return err
	}
	if err := ValidateAmount(amount, "amount"); err != nil {
		return err
	}
	if err := ValidateToken(token, "token", supported); err != nil {
		return err
	}

	if strings.EqualFold(strings.TrimSpace(from), strings.TrimSpace(to)) {
		return newError("to", CodeSameAddress,
			"sender and recipient addresses must be different")
	}
	return nil
}
