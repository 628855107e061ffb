package warehouse_test

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/salespulse/internal/warehouse"
	"github.com/angelmondragon/salespulse/internal/warehouse/warehousetest"
	pkgerrors "github.com/angelmondragon/salespulse/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLEngineTable(t *testing.T) {
	wh := warehousetest.NewSQLite(t)
	ctx := context.Background()

	assert.Equal(t, warehouse.DialectSQLite, wh.Engine.Dialect())

	table, err := wh.Engine.Table(ctx, warehousetest.CustomersTable)
	require.NoError(t, err)
	assert.Equal(t, "ANALYTICS", table.Schema)
	assert.Equal(t, "CUSTOMER_SILVER", table.Name)
	assert.Equal(t, "CUSTOMER_SILVER", table.Ref)

	_, err = wh.Engine.Table(ctx, "ANALYTICS.MISSING")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = wh.Engine.Table(ctx, "ANALYTICS.BAD NAME")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestSQLEngineQueryBindsDateParams(t *testing.T) {
	wh := warehousetest.NewSQLite(t)

	asOf := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)
	rows, err := wh.Engine.Query(context.Background(), "SELECT @as_of AS as_of, 1 AS one", warehouse.DateParam("as_of", asOf))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-03-01", rows[0].String("AS_OF"))

	one, ok, err := rows[0].Int64("ONE")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), one)
}

func TestSQLEngineQueryFailureIsDependencyError(t *testing.T) {
	wh := warehousetest.NewSQLite(t)

	_, err := wh.Engine.Query(context.Background(), "SELECT NOPE FROM CUSTOMER_SILVER")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
}

func TestSQLEngineSaveAsTableOverwrites(t *testing.T) {
	wh := warehousetest.NewSQLite(t)
	ctx := context.Background()
	wh.AddCustomers(t,
		warehousetest.Customer{Key: 1, Name: "Ada"},
		warehousetest.Customer{Key: 2, Name: "Bo"},
	)

	query := "SELECT C_CUSTKEY, C_NAME FROM CUSTOMER_SILVER"
	for i := 0; i < 2; i++ {
		saved, err := wh.Engine.SaveAsTable(ctx, query, "ANALYTICS.CUSTOMER_COPY")
		require.NoError(t, err)
		assert.Equal(t, "CUSTOMER_COPY", saved.Ref)

		n, err := wh.Engine.Count(ctx, saved)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	}
}

func TestSQLEngineSaveAsTableKeepsOldTableOnFailure(t *testing.T) {
	wh := warehousetest.NewSQLite(t)
	ctx := context.Background()
	wh.AddCustomers(t, warehousetest.Customer{Key: 1, Name: "Ada"})

	saved, err := wh.Engine.SaveAsTable(ctx, "SELECT C_CUSTKEY FROM CUSTOMER_SILVER", "ANALYTICS.CUSTOMER_KEYS")
	require.NoError(t, err)

	_, err = wh.Engine.SaveAsTable(ctx, "SELECT NOPE FROM CUSTOMER_SILVER", "ANALYTICS.CUSTOMER_KEYS")
	require.Error(t, err)

	n, err := wh.Engine.Count(ctx, saved)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLEngineCacheResultDroppedOnClose(t *testing.T) {
	wh := warehousetest.NewSQLite(t)
	ctx := context.Background()
	wh.AddCustomers(t, warehousetest.Customer{Key: 1, Name: "Ada"})

	cached, err := wh.Engine.CacheResult(ctx, "SELECT * FROM CUSTOMER_SILVER")
	require.NoError(t, err)
	assert.Empty(t, cached.Schema)
	assert.True(t, wh.HasTable(cached.Ref))

	rows, err := wh.Engine.Query(ctx, "SELECT C_NAME FROM "+cached.Ref)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ada", rows[0].String("C_NAME"))

	require.NoError(t, wh.Engine.Close(ctx))
	assert.False(t, wh.HasTable(cached.Ref))
	require.NoError(t, wh.Engine.Close(ctx))
}

func TestSQLEngineDropCachedKeepsEngineUsable(t *testing.T) {
	wh := warehousetest.NewSQLite(t)
	ctx := context.Background()
	wh.AddCustomers(t, warehousetest.Customer{Key: 1, Name: "Ada"})

	first, err := wh.Engine.CacheResult(ctx, "SELECT * FROM CUSTOMER_SILVER")
	require.NoError(t, err)
	require.NoError(t, wh.Engine.DropCached(ctx))
	assert.False(t, wh.HasTable(first.Ref))

	second, err := wh.Engine.CacheResult(ctx, "SELECT * FROM CUSTOMER_SILVER")
	require.NoError(t, err)
	assert.True(t, wh.HasTable(second.Ref))
	n, err := wh.Engine.Count(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, wh.Engine.DropCached(ctx))
	assert.False(t, wh.HasTable(second.Ref))
}
