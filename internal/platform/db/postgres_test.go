package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidDSN(t *testing.T) {
	pool, err := New(context.Background(), "postgres://localhost:notaport/cashflow", Options{ReadOnly: true})
	require.Error(t, err)
	require.Nil(t, pool)
	require.Contains(t, err.Error(), "parse config")
}
