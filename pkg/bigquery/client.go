package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/angelmondragon/salespulse/pkg/config"
	"github.com/angelmondragon/salespulse/pkg/logger"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	metadataCheckTimeout = 10 * time.Second
)

type Client struct {
	client       *bigquery.Client
	projectID    string
	location     string
	cacheDataset string
}

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

type Pinger interface {
	Ping(context.Context) error
}

// NewClient creates a BigQuery client and verifies the dataset used for cached results.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	cacheDataset := strings.TrimSpace(cfg.CacheDataset)
	if cacheDataset == "" {
		return nil, errDatasetRequired
	}

	opts := clientOptions(gcp)
	bqClient, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	if location := strings.TrimSpace(cfg.Location); location != "" {
		bqClient.Location = location
	}

	client := &Client{
		client:       bqClient,
		projectID:    projectID,
		location:     strings.TrimSpace(cfg.Location),
		cacheDataset: cacheDataset,
	}

	if err := client.Ping(ctx); err != nil {
		_ = bqClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(ctx, "bigquery client initialized")
	}

	return client, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}
	return opts
}

// ProjectID returns the project every table reference is qualified with.
func (c *Client) ProjectID() string {
	if c == nil {
		return ""
	}
	return c.projectID
}

// CacheDataset returns the dataset that holds materialized results.
func (c *Client) CacheDataset() string {
	if c == nil {
		return ""
	}
	return c.cacheDataset
}

// Ping verifies the cache dataset is accessible.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	if _, err := c.client.Dataset(c.cacheDataset).Metadata(ctx); err != nil {
		if IsNotFound(err) {
			return fmt.Errorf("dataset %q does not exist", c.cacheDataset)
		}
		return fmt.Errorf("checking dataset %q: %w", c.cacheDataset, err)
	}
	return nil
}

// Table returns a handle for dataset.table in the configured project.
func (c *Client) Table(dataset, table string) (*bigquery.Table, error) {
	if c == nil || c.client == nil {
		return nil, errClientNotInitialized
	}
	dataset = strings.TrimSpace(dataset)
	if dataset == "" {
		return nil, errDatasetRequired
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errTableNameRequired
	}
	return c.client.Dataset(dataset).Table(table), nil
}

// TableMetadata fetches metadata and fails when the table does not exist.
func (c *Client) TableMetadata(ctx context.Context, dataset, table string) (*bigquery.TableMetadata, error) {
	handle, err := c.Table(dataset, table)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	return handle.Metadata(ctx)
}

// Query executes SQL against BigQuery and returns the row iterator.
func (c *Client) Query(ctx context.Context, sql string, params []bigquery.QueryParameter) (*bigquery.RowIterator, error) {
	if c == nil || c.client == nil {
		return nil, errClientNotInitialized
	}
	if strings.TrimSpace(sql) == "" {
		return nil, errors.New("sql query is required")
	}
	q := c.client.Query(sql)
	q.Parameters = params
	return q.Read(ctx)
}

// QueryInto runs SQL as a job writing into dst with the given disposition and waits for completion.
func (c *Client) QueryInto(ctx context.Context, sql string, params []bigquery.QueryParameter, dst *bigquery.Table, disposition bigquery.TableWriteDisposition) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	if strings.TrimSpace(sql) == "" {
		return errors.New("sql query is required")
	}
	if dst == nil {
		return errTableNameRequired
	}

	q := c.client.Query(sql)
	q.Parameters = params
	q.Dst = dst
	q.WriteDisposition = disposition
	q.CreateDisposition = bigquery.CreateIfNeeded

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("starting query job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for query job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("query job %s: %w", job.ID(), err)
	}
	return nil
}

// ExpireTable sets an expiration time on an existing table.
func (c *Client) ExpireTable(ctx context.Context, table *bigquery.Table, at time.Time) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	if table == nil {
		return errTableNameRequired
	}
	_, err := table.Update(ctx, bigquery.TableMetadataToUpdate{ExpirationTime: at}, "")
	return err
}

// DeleteTable drops the table, treating a missing table as already deleted.
func (c *Client) DeleteTable(ctx context.Context, table *bigquery.Table) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	if table == nil {
		return errTableNameRequired
	}
	if err := table.Delete(ctx); err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}

// Close releases the BigQuery client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// IsNotFound reports whether err is a googleapi 404.
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Code == http.StatusNotFound
	}
	return false
}
