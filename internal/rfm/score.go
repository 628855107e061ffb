package rfm

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/angelmondragon/salespulse/internal/warehouse"
	"github.com/shopspring/decimal"
)

// Score is one customer's recency, frequency and monetary metrics.
type Score struct {
	CustomerKey   int64
	CustomerName  string
	LastOrderDate *time.Time
	Frequency     int64
	Monetary      decimal.NullDecimal
	RecencyDays   *int64
}

func scoreFromRow(row warehouse.Row) (Score, error) {
	key, ok, err := row.Int64("C_CUSTKEY")
	if err != nil {
		return Score{}, err
	}
	if !ok {
		return Score{}, fmt.Errorf("C_CUSTKEY is null")
	}
	s := Score{CustomerKey: key, CustomerName: row.String("C_NAME")}

	if d, ok, err := row.Date("LAST_ORDER_DATE"); err != nil {
		return Score{}, err
	} else if ok {
		s.LastOrderDate = &d
	}
	if s.Frequency, _, err = row.Int64("FREQUENCY"); err != nil {
		return Score{}, err
	}
	if s.Monetary, err = row.Decimal("MONETARY"); err != nil {
		return Score{}, err
	}
	if days, ok, err := row.Int64("RECENCY_DAYS"); err != nil {
		return Score{}, err
	} else if ok {
		s.RecencyDays = &days
	}
	return s, nil
}

const null = "NULL"

// WriteTable prints scores as an aligned text table.
func WriteTable(w io.Writer, scores []Score) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "C_CUSTKEY\tC_NAME\tLAST_ORDER_DATE\tFREQUENCY\tMONETARY\tRECENCY_DAYS\t")
	for _, s := range scores {
		last, monetary, recency := null, null, null
		if s.LastOrderDate != nil {
			last = s.LastOrderDate.Format(time.DateOnly)
		}
		if s.Monetary.Valid {
			monetary = s.Monetary.Decimal.StringFixed(2)
		}
		if s.RecencyDays != nil {
			recency = strconv.FormatInt(*s.RecencyDays, 10)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t\n", s.CustomerKey, s.CustomerName, last, s.Frequency, monetary, recency)
	}
	return tw.Flush()
}
