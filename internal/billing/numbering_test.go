package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBillNumber(t *testing.T) {
	assert.Equal(t, "MPS/00001", FormatBillNumber("MPS", 5, 1))
	assert.Equal(t, "MPS/00042", FormatBillNumber("MPS", 5, 42))
	assert.Equal(t, "MPS/123456", FormatBillNumber("MPS", 5, 123456))
	assert.Equal(t, "INV/7", FormatBillNumber("INV", 1, 7))
}

func TestParseBillNumber(t *testing.T) {
	tests := []struct {
		number string
		want   int64
		ok     bool
	}{
		{"MPS/00001", 1, true},
		{"MPS/00120", 120, true},
		{"MPS/123456", 123456, true},
		{"MPS/", 0, false},
		{"MPS/00000", 0, false},
		{"MPS/12a", 0, false},
		{"MPS/-4", 0, false},
		{"INV/00003", 0, false},
		{"MPS00003", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			got, ok := ParseBillNumber("MPS", tt.number)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumbererNext(t *testing.T) {
	ctx := context.Background()
	ledger := &memoryLedger{}
	numberer := NewNumberer(ledger, "MPS", 5)

	number, value, err := numberer.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "MPS/00001", number)
	assert.Equal(t, int64(1), value)

	ledger.seed("MPS/00003", "MPS/00099", "MPS/00010")
	number, value, err = numberer.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "MPS/00100", number)
	assert.Equal(t, int64(100), value)
}

func TestNumbererCheckPrefix(t *testing.T) {
	ctx := context.Background()
	ledger := &memoryLedger{}

	require.NoError(t, NewNumberer(ledger, "MPS", 5).CheckPrefix(ctx))

	ledger.seed("MPS/00001", "MPS/garbage", "notes")
	require.NoError(t, NewNumberer(ledger, "MPS", 5).CheckPrefix(ctx))

	err := NewNumberer(ledger, "INV", 4).CheckPrefix(ctx)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Contains(t, err.Error(), "MPS/00001")

	ledger.scanError = errStoreDown
	assert.Equal(t, KindStoreUnavailable, KindOf(NewNumberer(ledger, "MPS", 5).CheckPrefix(ctx)))
}
