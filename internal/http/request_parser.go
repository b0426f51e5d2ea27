package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"allowance/internal/core"
)

var errInvalidJSON = errors.New("invalid json")

// RequestBodyParser reads a body once and exposes its fields whether it
// was sent as a JSON object or as a form.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]json.RawMessage
	formData url.Values
}

// ParseRequestBody reads at most limit bytes of r's body. A body starting
// with '{' must be a JSON object; anything else is parsed as a form.
func ParseRequestBody(w http.ResponseWriter, r *http.Request, limit int64) (*RequestBodyParser, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	p := &RequestBodyParser{body: body}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		if err := json.Unmarshal(trimmed, &p.jsonData); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidJSON, err)
		}
		return p, nil
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return nil, errInvalidJSON
	}
	p.formData, err = url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	return p, nil
}

// Get returns a field as a string. JSON strings and numbers are
// returned as written; other JSON values read as empty.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		raw, ok := p.jsonData[key]
		if !ok {
			return ""
		}
		return sanitizeInput(jsonScalar(raw))
	}
	return sanitizeInput(p.formData.Get(key))
}

// Has reports whether the field was sent at all.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		raw, ok := p.jsonData[key]
		return ok && string(raw) != "null"
	}
	_, ok := p.formData[key]
	return ok
}

// Amount parses an integer field. A JSON integer and an integer string
// are both accepted; fractions, booleans and missing values are not.
func (p *RequestBodyParser) Amount(key string) (int64, error) {
	return core.ParseAmount(p.Get(key))
}

func jsonScalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case c == '-' || (c >= '0' && c <= '9'):
		return string(raw)
	}
	return ""
}

// sanitizeInput drops control characters other than tab and trims
// surrounding whitespace. Newlines go too: a label is a single CSV field.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		if r == 0x7f {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// entryRequest is the POST /api/records body.
type entryRequest struct {
	Item   string
	Amount int64
	Date   string
}

// parseEntryRequest validates in the order the messages are reported:
// item, amount, then date.
func parseEntryRequest(p *RequestBodyParser) (entryRequest, error) {
	item, err := core.ValidateItem(p.Get("item"))
	if err != nil {
		return entryRequest{}, err
	}
	amount, err := p.Amount("amount")
	if err != nil {
		return entryRequest{}, err
	}
	date := p.Get("date")
	if date != "" {
		if _, err := core.ParseDate(date); err != nil {
			return entryRequest{}, err
		}
	}
	return entryRequest{Item: item, Amount: amount, Date: date}, nil
}

// parseKeyedAmount reads a {key, amount} body for goals and presets.
func parseKeyedAmount(p *RequestBodyParser, key string) (string, int64, error) {
	label, err := core.ValidateLabel(key, p.Get(key))
	if err != nil {
		return "", 0, err
	}
	amount, err := p.Amount("amount")
	if err != nil {
		return "", 0, err
	}
	return label, amount, nil
}
