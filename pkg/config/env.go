package config

// EnvPrefix is empty: every field carries its fully-qualified variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EngineBigQuery = "bigquery"
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"

	ChartSinkFile = "file"
	ChartSinkGCS  = "gcs"
)

const (
	EnvAppEnv          = "SALESPULSE_APP_ENV"
	EnvLogLevel        = "SALESPULSE_LOG_LEVEL"
	EnvWarehouseEngine = "SALESPULSE_WAREHOUSE_ENGINE"

	EnvDBDSN  = "SALESPULSE_DB_DSN"
	EnvDBHost = "SALESPULSE_DB_HOST"
	EnvDBUser = "SALESPULSE_DB_USER"
	EnvDBName = "SALESPULSE_DB_NAME"

	EnvRedisURL     = "SALESPULSE_REDIS_URL"
	EnvGCPProjectID = "SALESPULSE_GCP_PROJECT_ID"
	EnvGCSBucket    = "SALESPULSE_GCS_BUCKET_NAME"

	EnvBigQueryCacheTTL = "SALESPULSE_BIGQUERY_CACHE_TTL"

	EnvTableCustomers = "SALESPULSE_TABLE_CUSTOMERS"
	EnvTableOrders    = "SALESPULSE_TABLE_ORDERS"
	EnvTableRFMScores = "SALESPULSE_TABLE_RFM_SCORES"

	EnvReportSampleSize = "SALESPULSE_REPORT_SAMPLE_SIZE"
	EnvReportAsOf       = "SALESPULSE_REPORT_AS_OF"
	EnvReportInterval   = "SALESPULSE_REPORT_INTERVAL"

	EnvChartSink   = "SALESPULSE_CHART_SINK"
	EnvChartOutput = "SALESPULSE_CHART_OUTPUT"

	EnvViewerAddr      = "SALESPULSE_VIEWER_ADDR"
	EnvMetricsTextfile = "SALESPULSE_METRICS_TEXTFILE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
