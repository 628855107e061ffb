package rfm

import (
	"fmt"

	"github.com/angelmondragon/salespulse/internal/warehouse"
)

// AsOfParam is the query parameter holding the date recency is measured against.
const AsOfParam = "as_of"

const scoresSQL = `
SELECT
  c.C_CUSTKEY AS C_CUSTKEY,
  c.C_NAME AS C_NAME,
  MAX(o.O_ORDERDATE) AS LAST_ORDER_DATE,
  COUNT(o.O_ORDERKEY) AS FREQUENCY,
  SUM(o.O_TOTALPRICE) AS MONETARY,
  %s AS RECENCY_DAYS
FROM %s AS c
LEFT JOIN %s AS o ON c.C_CUSTKEY = o.O_CUSTKEY
GROUP BY c.C_CUSTKEY, c.C_NAME
`

const sampleSQL = `
SELECT C_CUSTKEY, C_NAME, LAST_ORDER_DATE, FREQUENCY, MONETARY, RECENCY_DAYS
FROM %s
WHERE FREQUENCY > 0
ORDER BY C_CUSTKEY
LIMIT %d
`

// ScoresQuery left-joins orders onto customers so customers without orders keep a
// row with FREQUENCY 0 and NULL date, monetary and recency.
func ScoresQuery(d warehouse.Dialect, customers, orders warehouse.Table) string {
	recency := d.DaysBetween("MAX(o.O_ORDERDATE)", "@"+AsOfParam)
	return fmt.Sprintf(scoresSQL, recency, customers.Ref, orders.Ref)
}

func sampleQuery(scores warehouse.Table, limit int) string {
	return fmt.Sprintf(sampleSQL, scores.Ref, limit)
}
