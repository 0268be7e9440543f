// Package qrpayment implements the scannable payment request payload: a short
// URI-like string a wallet can decode back into the structured request, plus
// PNG rendering for display as a QR code.
package qrpayment

import (
	"errors"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultBase is the scheme and action prefix of every payload.
const DefaultBase = "evvm://pay"

// ErrMalformedPayload is returned by Decode when the payload is not
// syntactically a URI or carries no query parameters.
var ErrMalformedPayload = errors.New("malformed payment payload")

// Request holds the fields carried by a payment payload. Decode extracts them
// verbatim; validation is the caller's responsibility.
type Request struct {
	ID          string `json:"id,omitempty"`
	From        string `json:"from,omitempty"`
	To          string `json:"to"`
	Amount      string `json:"amount"`
	Token       string `json:"token"`
	Description string `json:"description,omitempty"`
}

// Codec encodes and decodes payment request payloads for a fixed base URI.
type Codec struct {
	base string
}

// NewCodec creates a codec for the given base URI (e.g. "evvm://pay").
// An empty base falls back to DefaultBase.
func NewCodec(base string) *Codec {
	if base == "" {
		base = DefaultBase
	}
	return &Codec{base: base}
}

// Encode produces a payment request payload. The to, amount and token fields
// are always emitted; description is appended only when non-empty.
func (c *Codec) Encode(to, amount, token, description string) string {
	params := url.Values{}
	params.Set("to", to)
	params.Set("amount", amount)
	params.Set("token", token)
	if description != "" {
		params.Set("description", description)
	}
	return c.base + "?" + params.Encode()
}

// EncodePayment produces a payload for an already-registered payment,
// carrying its id and sender alongside the request fields.
func (c *Codec) EncodePayment(id, from, to, amount, token string) string {
	params := url.Values{}
	params.Set("id", id)
	params.Set("from", from)
	params.Set("to", to)
	params.Set("amount", amount)
	params.Set("token", token)
	return c.base + "?" + params.Encode()
}

// Decode parses a payload back into its fields. Field order in the query
// string is not significant. No validation is performed on the extracted
// values.
func (c *Codec) Decode(payload string) (*Request, error) {
	u, err := url.Parse(payload)
	if err != nil {
		return nil, ErrMalformedPayload
	}
	if u.RawQuery == "" {
		return nil, ErrMalformedPayload
	}

	params, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, ErrMalformedPayload
	}

	return &Request{
		ID:          params.Get("id"),
		From:        params.Get("from"),
		To:          params.Get("to"),
		Amount:      params.Get("amount"),
		Token:       params.Get("token"),
		Description: params.Get("description"),
	}, nil
}

// RenderPNG renders a payload as a QR code PNG of the given pixel size.
func (c *Codec) RenderPNG(payload string, size int) ([]byte, error) {
	return qrcode.Encode(payload, qrcode.Medium, size)
}
