package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/salespulse/internal/warehouse"
	"github.com/angelmondragon/salespulse/pkg/config"
	"github.com/angelmondragon/salespulse/pkg/logger"
)

// Sources are the cached copies of the silver tables every report reads from.
type Sources struct {
	Customers warehouse.Table
	Orders    warehouse.Table
}

type Loader struct {
	engine    warehouse.Engine
	logg      *logger.Logger
	customers string
	orders    string
}

func New(engine warehouse.Engine, tables config.TablesConfig, logg *logger.Logger) (*Loader, error) {
	if engine == nil {
		return nil, errors.New("warehouse engine required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	customers := strings.TrimSpace(tables.Customers)
	if customers == "" {
		return nil, errors.New("customers table is required")
	}
	orders := strings.TrimSpace(tables.Orders)
	if orders == "" {
		return nil, errors.New("orders table is required")
	}
	return &Loader{engine: engine, logg: logg, customers: customers, orders: orders}, nil
}

// Load verifies both tables exist and asks the engine to cache them.
func (l *Loader) Load(ctx context.Context) (Sources, error) {
	customers, err := l.engine.Table(ctx, l.customers)
	if err != nil {
		return Sources{}, err
	}
	orders, err := l.engine.Table(ctx, l.orders)
	if err != nil {
		return Sources{}, err
	}
	l.logg.Info(ctx, "load completed")

	cachedCustomers, err := l.cache(ctx, customers)
	if err != nil {
		return Sources{}, err
	}
	cachedOrders, err := l.cache(ctx, orders)
	if err != nil {
		return Sources{}, err
	}
	return Sources{Customers: cachedCustomers, Orders: cachedOrders}, nil
}

func (l *Loader) cache(ctx context.Context, table warehouse.Table) (warehouse.Table, error) {
	cached, err := l.engine.CacheResult(ctx, "SELECT * FROM "+table.Ref)
	if err != nil {
		return warehouse.Table{}, fmt.Errorf("cache %s: %w", table, err)
	}
	l.logg.Info(l.logg.WithField(l.logg.WithTable(ctx, table.String()), "cache_table", cached.Name), "table cached")
	return cached, nil
}
