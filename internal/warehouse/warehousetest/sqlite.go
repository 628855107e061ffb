// Package warehousetest seeds an in-memory SQLite warehouse with the silver tables.
package warehousetest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/angelmondragon/salespulse/internal/warehouse"
	"github.com/angelmondragon/salespulse/pkg/db"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	CustomersTable = "ANALYTICS.CUSTOMER_SILVER"
	OrdersTable    = "ANALYTICS.ORDERS_SILVER"
	RFMTable       = "ANALYTICS.CUSTOMER_RFM_SCORES"
)

const (
	createCustomers = `CREATE TABLE CUSTOMER_SILVER (C_CUSTKEY INTEGER PRIMARY KEY, C_NAME TEXT NOT NULL)`
	createOrders    = `CREATE TABLE ORDERS_SILVER (
  O_ORDERKEY INTEGER PRIMARY KEY,
  O_CUSTKEY INTEGER NOT NULL,
  O_ORDERDATE DATE NOT NULL,
  O_TOTALPRICE NUMERIC NOT NULL
)`
)

type Customer struct {
	Key  int64
	Name string
}

// Order dates are YYYY-MM-DD and totals decimal strings.
type Order struct {
	Key      int64
	Customer int64
	Date     string
	Total    string
}

type SQLite struct {
	Engine *warehouse.SQLEngine
	DB     *db.Client
}

// NewSQLite opens a private in-memory database with empty silver tables.
func NewSQLite(t testing.TB) *SQLite {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	client := db.Wrap(conn)
	ctx := context.Background()
	require.NoError(t, client.Exec(ctx, createCustomers).Error)
	require.NoError(t, client.Exec(ctx, createOrders).Error)

	engine, err := warehouse.NewSQLEngine(client, nil)
	require.NoError(t, err)

	return &SQLite{Engine: engine, DB: client}
}

func (s *SQLite) AddCustomers(t testing.TB, customers ...Customer) {
	t.Helper()
	for _, c := range customers {
		err := s.DB.Exec(context.Background(),
			"INSERT INTO CUSTOMER_SILVER (C_CUSTKEY, C_NAME) VALUES (?, ?)", c.Key, c.Name).Error
		require.NoError(t, err)
	}
}

func (s *SQLite) AddOrders(t testing.TB, orders ...Order) {
	t.Helper()
	for _, o := range orders {
		err := s.DB.Exec(context.Background(),
			"INSERT INTO ORDERS_SILVER (O_ORDERKEY, O_CUSTKEY, O_ORDERDATE, O_TOTALPRICE) VALUES (?, ?, ?, ?)",
			o.Key, o.Customer, o.Date, o.Total).Error
		require.NoError(t, err)
	}
}

// Tables resolves the customer and order handles.
func (s *SQLite) Tables(t testing.TB) (customers, orders warehouse.Table) {
	t.Helper()
	ctx := context.Background()
	customers, err := s.Engine.Table(ctx, CustomersTable)
	require.NoError(t, err)
	orders, err = s.Engine.Table(ctx, OrdersTable)
	require.NoError(t, err)
	return customers, orders
}

// HasTable reports whether name exists in the database.
func (s *SQLite) HasTable(name string) bool {
	return s.DB.DB().Migrator().HasTable(name)
}

// CacheTables lists the tables the engine created through CacheResult.
func (s *SQLite) CacheTables(t testing.TB) []string {
	t.Helper()
	var names []string
	require.NoError(t, s.DB.Raw(context.Background(),
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE 'cache_%'").Scan(&names).Error)
	return names
}
