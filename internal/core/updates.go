package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Field names of the stored row format.
const (
	FieldID             = "id"
	FieldDate           = "date"
	FieldUserID         = "userId"
	FieldType           = "type"
	FieldAmount         = "amount"
	FieldOriginalAmount = "original_amount"
	FieldBankAccount    = "bank_account"
	FieldReason         = "reason"
	FieldIsPaid         = "is_paid"
	FieldCustomerName   = "customer_name"
	FieldPhoneName      = "phone_name"
	FieldFault          = "fault"
	FieldPriceStatus    = "price_status"
)

// Columns lists the stored fields in row order.
func Columns() []string {
	return []string{
		FieldID, FieldDate, FieldUserID, FieldType, FieldAmount, FieldOriginalAmount,
		FieldBankAccount, FieldReason, FieldIsPaid, FieldCustomerName, FieldPhoneName,
		FieldFault, FieldPriceStatus,
	}
}

// FieldUpdates is a partial overwrite of a transaction. Nil fields are left
// untouched. The id and owner of a row can never be patched.
type FieldUpdates struct {
	Date           *time.Time
	Type           *TransactionType
	Amount         *decimal.Decimal
	OriginalAmount *decimal.Decimal
	BankAccount    *string
	Reason         *string
	IsPaid         *bool
	CustomerName   *string
	PhoneName      *string
	Fault          *string
	PriceStatus    *PriceStatus
}

// IsEmpty reports whether the update would change nothing.
func (u FieldUpdates) IsEmpty() bool {
	return len(u.Fields()) == 0
}

// Fields returns the names of the patched fields in row order.
func (u FieldUpdates) Fields() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(u.Date != nil, FieldDate)
	add(u.Type != nil, FieldType)
	add(u.Amount != nil, FieldAmount)
	add(u.OriginalAmount != nil, FieldOriginalAmount)
	add(u.BankAccount != nil, FieldBankAccount)
	add(u.Reason != nil, FieldReason)
	add(u.IsPaid != nil, FieldIsPaid)
	add(u.CustomerName != nil, FieldCustomerName)
	add(u.PhoneName != nil, FieldPhoneName)
	add(u.Fault != nil, FieldFault)
	add(u.PriceStatus != nil, FieldPriceStatus)
	return out
}

// Apply returns a copy of t with the patched fields overwritten.
func (u FieldUpdates) Apply(t Transaction) Transaction {
	if u.Date != nil {
		t.Date = *u.Date
	}
	if u.Type != nil {
		t.Type = *u.Type
	}
	if u.Amount != nil {
		t.Amount = *u.Amount
	}
	if u.OriginalAmount != nil {
		t.OriginalAmount = *u.OriginalAmount
	}
	if u.BankAccount != nil {
		t.BankAccount = *u.BankAccount
	}
	if u.Reason != nil {
		t.Reason = *u.Reason
	}
	if u.IsPaid != nil {
		t.IsPaid = *u.IsPaid
	}
	if u.CustomerName != nil {
		t.CustomerName = *u.CustomerName
	}
	if u.PhoneName != nil {
		t.PhoneName = *u.PhoneName
	}
	if u.Fault != nil {
		t.Fault = *u.Fault
	}
	if u.PriceStatus != nil {
		t.PriceStatus = *u.PriceStatus
	}
	return t
}

// ParseFieldUpdates converts a loosely typed update map, as sent by clients,
// into FieldUpdates. amount and original_amount are coerced to numbers;
// is_paid is true only for true, "true" or "TRUE" and false for anything else.
// id, userId and unknown keys are ignored.
func ParseFieldUpdates(m map[string]any) (FieldUpdates, error) {
	var u FieldUpdates
	for key, raw := range m {
		switch key {
		case FieldDate:
			s, err := asString(raw)
			if err != nil {
				return FieldUpdates{}, fmt.Errorf("%s: %w", key, err)
			}
			d, err := ParseTimestamp(s, time.UTC)
			if err != nil {
				return FieldUpdates{}, fmt.Errorf("%s: %w", key, err)
			}
			u.Date = &d
		case FieldType:
			s, err := asString(raw)
			if err != nil {
				return FieldUpdates{}, fmt.Errorf("%s: %w", key, err)
			}
			tt := TransactionType(s)
			if !tt.IsValid() {
				return FieldUpdates{}, fmt.Errorf("%w: %q", ErrInvalidType, s)
			}
			u.Type = &tt
		case FieldAmount, FieldOriginalAmount:
			d, err := CoerceNumber(raw)
			if err != nil {
				return FieldUpdates{}, fmt.Errorf("%s: %w", key, err)
			}
			if key == FieldAmount {
				u.Amount = &d
			} else {
				u.OriginalAmount = &d
			}
		case FieldIsPaid:
			b := CoerceBool(raw)
			u.IsPaid = &b
		case FieldPriceStatus:
			s, err := asString(raw)
			if err != nil {
				return FieldUpdates{}, fmt.Errorf("%s: %w", key, err)
			}
			ps := PriceStatus(s)
			if !ps.IsValid() {
				return FieldUpdates{}, fmt.Errorf("%w: %q", ErrInvalidStatus, s)
			}
			u.PriceStatus = &ps
		case FieldBankAccount, FieldReason, FieldCustomerName, FieldPhoneName, FieldFault:
			s, err := asString(raw)
			if err != nil {
				return FieldUpdates{}, fmt.Errorf("%s: %w", key, err)
			}
			switch key {
			case FieldBankAccount:
				u.BankAccount = &s
			case FieldReason:
				u.Reason = &s
			case FieldCustomerName:
				u.CustomerName = &s
			case FieldPhoneName:
				u.PhoneName = &s
			case FieldFault:
				u.Fault = &s
			}
		}
	}
	return u, nil
}

// CoerceNumber turns a JSON-ish value into a decimal. Blank strings and nil
// read as zero.
func CoerceNumber(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return n, nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return decimal.Zero, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, ErrInvalidAmount
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported %T", ErrInvalidAmount, v)
	}
}

// CoerceBool accepts the boolean true and the strings "true" and "TRUE".
func CoerceBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true" || b == "TRUE"
	default:
		return false
	}
}

func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case nil:
		return "", nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}
