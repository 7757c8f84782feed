package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	gsheet "google.golang.org/api/sheets/v4"

	"moneymanager/internal/core"
)

// table is a values matrix whose first row is the header. Column positions
// are looked up by name so reordered sheets keep working.
type table struct {
	cols map[string]int
	rows [][]any
}

func newTable(values [][]any) table {
	t := table{cols: map[string]int{}}
	if len(values) == 0 {
		return t
	}
	for i, h := range values[0] {
		name := strings.TrimSpace(fmt.Sprint(h))
		if name != "" {
			t.cols[name] = i
		}
	}
	t.rows = values[1:]
	return t
}

func (t table) cell(row int, field string) any {
	col, ok := t.cols[field]
	if !ok || row < 0 || row >= len(t.rows) || col >= len(t.rows[row]) {
		return nil
	}
	return t.rows[row][col]
}

func (t table) cellString(row int, field string) string {
	return cellText(t.cell(row, field))
}

// find returns the data-row index of id owned by userID, or -1.
func (t table) find(userID, id string) int {
	for i := range t.rows {
		if t.cellString(i, core.FieldID) == id && t.cellString(i, core.FieldUserID) == userID {
			return i
		}
	}
	return -1
}

// transaction decodes a data row, coercing amounts to numbers and is_paid to
// a boolean the same way updates are coerced.
func (t table) transaction(row int) (core.Transaction, error) {
	id := t.cellString(row, core.FieldID)
	if id == "" {
		return core.Transaction{}, core.ErrEmptyID
	}
	date, err := core.ParseTimestamp(t.cellString(row, core.FieldDate), time.UTC)
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.CoerceNumber(t.cell(row, core.FieldAmount))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount: %w", err)
	}
	original, err := core.CoerceNumber(t.cell(row, core.FieldOriginalAmount))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("original_amount: %w", err)
	}
	return core.Transaction{
		ID:             id,
		Date:           date,
		Type:           core.TransactionType(t.cellString(row, core.FieldType)),
		Amount:         amount,
		OriginalAmount: original,
		BankAccount:    t.cellString(row, core.FieldBankAccount),
		Reason:         t.cellString(row, core.FieldReason),
		IsPaid:         core.CoerceBool(t.cell(row, core.FieldIsPaid)),
		CustomerName:   t.cellString(row, core.FieldCustomerName),
		PhoneName:      t.cellString(row, core.FieldPhoneName),
		Fault:          t.cellString(row, core.FieldFault),
		PriceStatus:    core.PriceStatus(t.cellString(row, core.FieldPriceStatus)),
	}, nil
}

// patchRanges returns one single-cell range per patched field of the row at
// index row. Fields missing from the header are skipped.
func (t table) patchRanges(sheet string, row int, u core.FieldUpdates, updated core.Transaction) []*gsheet.ValueRange {
	values := rowValues("", updated)
	var out []*gsheet.ValueRange
	for _, field := range u.Fields() {
		col, ok := t.cols[field]
		if !ok {
			continue
		}
		out = append(out, &gsheet.ValueRange{
			Range:  fmt.Sprintf("%s!%s%d", sheet, columnLetter(col), row+2),
			Values: [][]any{{values[field]}},
		})
	}
	return out
}

// encodeRow lays tx out under the table's header, so reordered sheets are
// written the way they are read. Without a header the canonical column order
// is used. Header columns that are not transaction fields are left blank.
func (t table) encodeRow(userID string, tx core.Transaction) []any {
	values := rowValues(userID, tx)
	if len(t.cols) == 0 {
		row := make([]any, 0, len(values))
		for _, col := range core.Columns() {
			row = append(row, values[col])
		}
		return row
	}
	width := 0
	for _, i := range t.cols {
		width = max(width, i+1)
	}
	row := make([]any, width)
	for i := range row {
		row[i] = ""
	}
	for name, i := range t.cols {
		if v, ok := values[name]; ok {
			row[i] = v
		}
	}
	return row
}

func rowValues(userID string, tx core.Transaction) map[string]any {
	return map[string]any{
		core.FieldID:             tx.ID,
		core.FieldDate:           core.FormatTimestamp(tx.Date),
		core.FieldUserID:         userID,
		core.FieldType:           string(tx.Type),
		core.FieldAmount:         tx.Amount.InexactFloat64(),
		core.FieldOriginalAmount: tx.OriginalAmount.InexactFloat64(),
		core.FieldBankAccount:    tx.BankAccount,
		core.FieldReason:         tx.Reason,
		core.FieldIsPaid:         tx.IsPaid,
		core.FieldCustomerName:   tx.CustomerName,
		core.FieldPhoneName:      tx.PhoneName,
		core.FieldFault:          tx.Fault,
		core.FieldPriceStatus:    string(tx.PriceStatus),
	}
}

// cellText renders an unformatted cell value as text. Integral numbers lose
// their trailing ".0".
func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// columnLetter converts a zero-based column index to A1 notation.
func columnLetter(idx int) string {
	s := ""
	for idx >= 0 {
		s = string(rune('A'+idx%26)) + s
		idx = idx/26 - 1
	}
	return s
}
