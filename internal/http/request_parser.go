package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"moneymanager/internal/core"
)

// errBadRequest marks malformed input, answered with 400.
var errBadRequest = errors.New("bad request")

// amountField accepts an amount sent as a JSON number or string. The raw
// text is kept so the core parsers decide what is valid.
type amountField struct {
	raw string
	set bool
}

func (a *amountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	a.set = true
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &a.raw)
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a number or string: %w", err)
	}
	a.raw = n.String()
	return nil
}

// Amount parses a strictly positive amount.
func (a amountField) Amount() (decimal.Decimal, error) {
	if !a.set {
		return decimal.Zero, fmt.Errorf("%w: missing", core.ErrInvalidAmount)
	}
	return core.ParseAmount(a.raw)
}

// Estimate parses an amount where blank and zero are allowed.
func (a amountField) Estimate() (decimal.Decimal, error) {
	return core.ParseEstimate(a.raw)
}

// decodeJSON reads one JSON object from the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: body larger than %d bytes", errBadRequest, tooLarge.Limit)
		}
		return fmt.Errorf("%w: invalid JSON body: %w", errBadRequest, err)
	}
	return nil
}

// parseOptionalDate reads a date field; blank means now.
func parseOptionalDate(s string, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, err := core.ParseTimestamp(s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return t, nil
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
