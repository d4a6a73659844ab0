package provisioning

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strconv"
	"strings"
)

var (
	ErrMalformedBody = errors.New("request body is not a JSON object")
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidID     = errors.New("id is not numeric")
	ErrInvalidEmail  = errors.New("email is not a valid address")
)

// AccountRequest is a decoded create-account payload.
type AccountRequest struct {
	ProviderID int
	Email      string
	// Newsletter and OCSAPI are set when the key is present, whatever its value.
	Newsletter bool
	OCSAPI     bool
}

// ParseAccountRequest decodes and validates a create-account body.
func ParseAccountRequest(body []byte) (AccountRequest, error) {
	var fields map[string]json.RawMessage

	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&fields); err != nil || fields == nil {
		return AccountRequest{}, ErrMalformedBody
	}

	rawEmail, hasEmail := fields["email"]
	rawID, hasID := fields["id"]

	if !hasEmail || !hasID {
		return AccountRequest{}, ErrMissingField
	}

	id, err := parseID(rawID)
	if err != nil {
		return AccountRequest{}, err
	}

	email, err := parseEmail(rawEmail)
	if err != nil {
		return AccountRequest{}, err
	}

	_, newsletter := fields["newsletter"]
	_, ocsapi := fields["ocsapi"]

	return AccountRequest{
		ProviderID: id,
		Email:      email,
		Newsletter: newsletter,
		OCSAPI:     ocsapi,
	}, nil
}

// parseID accepts a JSON number or a numeric string and truncates it toward zero.
func parseID(raw json.RawMessage) (int, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, ErrInvalidID
	}

	var s string

	switch t := v.(type) {
	case float64:
		s = strconv.FormatFloat(t, 'g', -1, 64)
	case string:
		s = strings.TrimSpace(t)
	default:
		return 0, ErrInvalidID
	}

	// ParseFloat also takes hex floats; only decimal ids are numeric.
	if unsigned := strings.TrimLeft(s, "+-"); strings.HasPrefix(unsigned, "0x") || strings.HasPrefix(unsigned, "0X") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}

	// Out of range ids never resolve.
	if f > math.MaxInt32 || f < math.MinInt32 {
		return -1, nil
	}

	return int(f), nil
}

// parseEmail accepts a single bare address with a hostname domain.
func parseEmail(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return "", ErrInvalidEmail
	}

	at := strings.LastIndexByte(s, '@')
	if !validDomain(s[at+1:]) {
		return "", ErrInvalidEmail
	}

	return s, nil
}

// validDomain requires at least two hostname labels.
func validDomain(domain string) bool {
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}

	for _, label := range labels {
		if label == "" || label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}

		for _, r := range label {
			if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-') {
				return false
			}
		}
	}

	return true
}
