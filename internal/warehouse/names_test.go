package warehouse

import (
	"testing"

	pkgerrors "github.com/angelmondragon/salespulse/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTableName(t *testing.T) {
	schema, table, err := ParseTableName(" ANALYTICS.CUSTOMER_SILVER ")
	require.NoError(t, err)
	assert.Equal(t, "ANALYTICS", schema)
	assert.Equal(t, "CUSTOMER_SILVER", table)

	schema, table, err = ParseTableName("orders_silver")
	require.NoError(t, err)
	assert.Empty(t, schema)
	assert.Equal(t, "orders_silver", table)
}

func TestParseTableNameRejectsUnsafeNames(t *testing.T) {
	cases := []string{
		"",
		".ORDERS",
		"ANALYTICS.",
		"A.B.C",
		"ANALYTICS.ORDERS; DROP TABLE X",
		"1ORDERS",
		"ANALYTICS.ORD-ERS",
		"`ANALYTICS`.ORDERS",
	}
	for _, name := range cases {
		_, _, err := ParseTableName(name)
		require.Error(t, err, name)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), name)
	}
}

func TestTableString(t *testing.T) {
	assert.Equal(t, "ANALYTICS.ORDERS_SILVER", Table{Schema: "ANALYTICS", Name: "ORDERS_SILVER"}.String())
	assert.Equal(t, "cache_1", Table{Name: "cache_1"}.String())
}

func TestDialectExpressions(t *testing.T) {
	assert.Equal(t, "DATE_TRUNC(O_ORDERDATE, MONTH)", DialectBigQuery.TruncMonth("O_ORDERDATE"))
	assert.Equal(t, "CAST(DATE_TRUNC('month', O_ORDERDATE) AS DATE)", DialectPostgres.TruncMonth("O_ORDERDATE"))
	assert.Equal(t, "date(O_ORDERDATE, 'start of month')", DialectSQLite.TruncMonth("O_ORDERDATE"))

	assert.Equal(t, "DATE_DIFF(@as_of, MAX(d), DAY)", DialectBigQuery.DaysBetween("MAX(d)", "@as_of"))
	assert.Equal(t, "(CAST(@as_of AS DATE) - CAST(MAX(d) AS DATE))", DialectPostgres.DaysBetween("MAX(d)", "@as_of"))
	assert.Equal(t, "CAST(julianday(@as_of) - julianday(MAX(d)) AS INTEGER)", DialectSQLite.DaysBetween("MAX(d)", "@as_of"))
}
