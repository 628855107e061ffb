package trend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/angelmondragon/salespulse/internal/warehouse"
	"github.com/angelmondragon/salespulse/pkg/logger"
	"github.com/shopspring/decimal"
)

const monthlySQL = `
SELECT
  %s AS MONTH,
  COUNT(O_ORDERKEY) AS ORDER_COUNT,
  SUM(O_TOTALPRICE) AS TOTAL_REVENUE,
  AVG(O_TOTALPRICE) AS AVG_ORDER_VALUE
FROM %s
GROUP BY MONTH
ORDER BY MONTH
`

// Point is one calendar month of order activity. Month is the first day of
// the month at midnight UTC.
type Point struct {
	Month         time.Time
	OrderCount    int64
	TotalRevenue  decimal.Decimal
	AvgOrderValue decimal.Decimal
}

// MonthlyQuery buckets orders by calendar month. Months without orders produce no row.
func MonthlyQuery(d warehouse.Dialect, orders warehouse.Table) string {
	return fmt.Sprintf(monthlySQL, d.TruncMonth("O_ORDERDATE"), orders.Ref)
}

type Aggregator struct {
	engine warehouse.Engine
	logg   *logger.Logger
}

func NewAggregator(engine warehouse.Engine, logg *logger.Logger) (*Aggregator, error) {
	if engine == nil {
		return nil, errors.New("warehouse engine required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Aggregator{engine: engine, logg: logg}, nil
}

// Run caches the monthly aggregation and reads it back in chronological order.
func (a *Aggregator) Run(ctx context.Context, orders warehouse.Table) ([]Point, error) {
	cached, err := a.engine.CacheResult(ctx, MonthlyQuery(a.engine.Dialect(), orders))
	if err != nil {
		return nil, fmt.Errorf("cache monthly sales: %w", err)
	}

	rows, err := a.engine.Query(ctx, "SELECT MONTH, ORDER_COUNT, TOTAL_REVENUE, AVG_ORDER_VALUE FROM "+cached.Ref+" ORDER BY MONTH")
	if err != nil {
		return nil, fmt.Errorf("read monthly sales: %w", err)
	}

	points := make([]Point, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		p, ok, err := pointFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("decode monthly sales row: %w", err)
		}
		if !ok {
			skipped++
			continue
		}
		points = append(points, p)
	}
	SortByMonth(points)

	if skipped > 0 {
		a.logg.Warn(a.logg.WithField(ctx, "skipped", skipped), "orders without a date left out of the monthly trend")
	}

	a.logg.Info(a.logg.WithField(ctx, "months", len(points)), "monthly sales trend computed")
	return points, nil
}

// SortByMonth orders points chronologically, keeping the order of equal months.
func SortByMonth(points []Point) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Month.Before(points[j].Month)
	})
}

// pointFromRow reports false for the bucket of orders whose date is NULL;
// it has no place on a month axis.
func pointFromRow(row warehouse.Row) (Point, bool, error) {
	month, ok, err := row.Date("MONTH")
	if err != nil || !ok {
		return Point{}, false, err
	}
	count, _, err := row.Int64("ORDER_COUNT")
	if err != nil {
		return Point{}, false, err
	}
	revenue, err := row.Decimal("TOTAL_REVENUE")
	if err != nil {
		return Point{}, false, err
	}
	avg, err := row.Decimal("AVG_ORDER_VALUE")
	if err != nil {
		return Point{}, false, err
	}
	return Point{
		Month:         month,
		OrderCount:    count,
		TotalRevenue:  revenue.Decimal,
		AvgOrderValue: avg.Decimal,
	}, true, nil
}
