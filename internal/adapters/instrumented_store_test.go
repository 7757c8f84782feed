package adapters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneymanager/internal/core"
	"moneymanager/internal/secret"
	"moneymanager/internal/sheets"
	"moneymanager/internal/sheets/memory"
)

type storeCall struct {
	op string
	ok bool
}

type callRecorder struct{ calls []storeCall }

func (r *callRecorder) RecordStoreCall(op string, err error) {
	r.calls = append(r.calls, storeCall{op, err == nil})
}

func TestInstrumentedStore(t *testing.T) {
	ctx := context.Background()
	rec := &callRecorder{}
	s := NewInstrumentedStore(memory.New(secret.MustNew("4321")), rec)

	require.NoError(t, s.Append(ctx, "u1", withdrawal("w1")))
	_, err := s.FetchAll(ctx, "u1")
	require.NoError(t, err)

	paid := false
	_, err = s.Update(ctx, "u1", "w1", core.FieldUpdates{IsPaid: &paid}, "0000")
	assert.ErrorIs(t, err, sheets.ErrInvalidSecret)

	bad := withdrawal("w2")
	bad.Type = "gift"
	assert.Error(t, s.Append(ctx, "u1", bad))
	require.NoError(t, s.Ping(ctx))

	assert.Equal(t, []storeCall{
		{"append", true},
		{"fetch", true},
		{"update", true},
		{"append", false},
		{"ping", true},
	}, rec.calls)
}
