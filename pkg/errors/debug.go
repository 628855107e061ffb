package errors

import (
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/status"
)

// ErrorDump flattens an error chain into log-friendly fields, including the
// driver detail of whichever warehouse produced it.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`

	APIStatus  int    `json:"api_status,omitempty"`
	APIReason  string `json:"api_reason,omitempty"`
	APIMessage string `json:"api_message,omitempty"`

	BQReason   string `json:"bq_reason,omitempty"`
	BQLocation string `json:"bq_location,omitempty"`

	GRPCCode string `json:"grpc_code,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.PGCode = pgxErr.Code
		d.PGConstraint = pgxErr.ConstraintName
		d.PGTable = pgxErr.TableName
		d.PGDetail = pgxErr.Detail
		d.PGMessage = pgxErr.Message
	case errors.As(err, &pqErr):
		d.PGCode = string(pqErr.Code)
		d.PGConstraint = pqErr.Constraint
		d.PGTable = pqErr.Table
		d.PGDetail = pqErr.Detail
		d.PGMessage = pqErr.Message
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		d.APIStatus = apiErr.Code
		d.APIMessage = apiErr.Message
		if len(apiErr.Errors) > 0 {
			d.APIReason = apiErr.Errors[0].Reason
		}
	}

	var bqErr *bigquery.Error
	if errors.As(err, &bqErr) {
		d.BQReason = bqErr.Reason
		d.BQLocation = bqErr.Location
	}

	if st, ok := status.FromError(err); ok && st != nil {
		d.GRPCCode = st.Code().String()
	}

	return d
}

// Fields returns the non-empty parts of the dump keyed for structured logs.
// The top message is left out since Logger.Error already records it.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	if len(d.Chain) > 0 {
		fields["error_chain"] = d.Chain
	}
	put := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}
	put("pg_code", d.PGCode)
	put("pg_constraint", d.PGConstraint)
	put("pg_table", d.PGTable)
	put("pg_detail", d.PGDetail)
	put("pg_message", d.PGMessage)
	if d.APIStatus != 0 {
		fields["api_status"] = d.APIStatus
	}
	put("api_reason", d.APIReason)
	put("api_message", d.APIMessage)
	put("bq_reason", d.BQReason)
	put("bq_location", d.BQLocation)
	put("grpc_code", d.GRPCCode)
	return fields
}
