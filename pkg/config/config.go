package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	Warehouse WarehouseConfig
	DB        DBConfig
	Redis     RedisConfig
	GCP       GCPConfig
	GCS       GCSConfig
	BigQuery  BigQueryConfig
	Tables    TablesConfig
	Report    ReportConfig
	Chart     ChartConfig
	Viewer    ViewerConfig
	Metrics   MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Warehouse.Engine = cfg.Warehouse.normalized()
	cfg.Chart.Sink = strings.ToLower(strings.TrimSpace(cfg.Chart.Sink))
	if err := cfg.Warehouse.validate(); err != nil {
		return nil, err
	}
	if cfg.Warehouse.UsesSQL() {
		if err := cfg.DB.ensureDSN(cfg.Warehouse.Engine); err != nil {
			return nil, err
		}
	}
	if err := cfg.Chart.validate(cfg.GCS); err != nil {
		return nil, err
	}
	if _, err := cfg.Report.AsOfDate(time.Now()); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SALESPULSE_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"SALESPULSE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"SALESPULSE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"SALESPULSE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SALESPULSE_SERVICE_KIND" default:"report"`
}

type WarehouseConfig struct {
	Engine string `envconfig:"SALESPULSE_WAREHOUSE_ENGINE" default:"bigquery"`
}

// UsesSQL reports whether the warehouse is served by the gorm-backed engine.
func (w WarehouseConfig) UsesSQL() bool {
	switch w.normalized() {
	case EngineBigQuery:
		return false
	default:
		return true
	}
}

func (w WarehouseConfig) normalized() string {
	return strings.ToLower(strings.TrimSpace(w.Engine))
}

func (w WarehouseConfig) validate() error {
	switch w.normalized() {
	case EngineBigQuery, EnginePostgres, EngineSQLite:
		return nil
	default:
		return fmt.Errorf("%s must be one of %s, %s, %s", EnvWarehouseEngine, EngineBigQuery, EnginePostgres, EngineSQLite)
	}
}

type DBConfig struct {
	DSN string `envconfig:"SALESPULSE_DB_DSN"`

	LegacyHost     string `envconfig:"SALESPULSE_DB_HOST"`
	LegacyPort     int    `envconfig:"SALESPULSE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SALESPULSE_DB_USER"`
	LegacyPassword string `envconfig:"SALESPULSE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SALESPULSE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SALESPULSE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SALESPULSE_DB_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int           `envconfig:"SALESPULSE_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"SALESPULSE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SALESPULSE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool          `envconfig:"SALESPULSE_DB_AUTO_MIGRATE" default:"false"`
	SlowQuery   time.Duration `envconfig:"SALESPULSE_DB_SLOW_QUERY" default:"5s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SALESPULSE_REDIS_URL"`
	Address      string        `envconfig:"SALESPULSE_REDIS_ADDR"`
	Password     string        `envconfig:"SALESPULSE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SALESPULSE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SALESPULSE_REDIS_POOL_SIZE" default:"4"`
	MinIdleConns int           `envconfig:"SALESPULSE_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"SALESPULSE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SALESPULSE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SALESPULSE_REDIS_WRITE_TIMEOUT" default:"5s"`
	LockTTL      time.Duration `envconfig:"SALESPULSE_REDIS_LOCK_TTL" default:"2h"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SALESPULSE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SALESPULSE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SALESPULSE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"SALESPULSE_GCS_BUCKET_NAME"`
}

type BigQueryConfig struct {
	Location     string        `envconfig:"SALESPULSE_BIGQUERY_LOCATION"`
	CacheDataset string        `envconfig:"SALESPULSE_BIGQUERY_CACHE_DATASET" default:"ANALYTICS"`
	CacheTTL     time.Duration `envconfig:"SALESPULSE_BIGQUERY_CACHE_TTL" default:"24h"`
}

type TablesConfig struct {
	Customers string `envconfig:"SALESPULSE_TABLE_CUSTOMERS" default:"ANALYTICS.CUSTOMER_SILVER"`
	Orders    string `envconfig:"SALESPULSE_TABLE_ORDERS" default:"ANALYTICS.ORDERS_SILVER"`
	RFMScores string `envconfig:"SALESPULSE_TABLE_RFM_SCORES" default:"ANALYTICS.CUSTOMER_RFM_SCORES"`
}

type ReportConfig struct {
	SampleSize int           `envconfig:"SALESPULSE_REPORT_SAMPLE_SIZE" default:"10"`
	AsOf       string        `envconfig:"SALESPULSE_REPORT_AS_OF"`
	Interval   time.Duration `envconfig:"SALESPULSE_REPORT_INTERVAL" default:"0s"`
}

// AsOfDate returns the configured recency anchor, or the UTC date of now.
func (r ReportConfig) AsOfDate(now time.Time) (time.Time, error) {
	value := strings.TrimSpace(r.AsOf)
	if value == "" {
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD: %w", EnvReportAsOf, err)
	}
	return parsed, nil
}

type ChartConfig struct {
	Sink   string `envconfig:"SALESPULSE_CHART_SINK" default:"file"`
	Output string `envconfig:"SALESPULSE_CHART_OUTPUT" default:"monthly_revenue_vs_aov.svg"`
	Width  int    `envconfig:"SALESPULSE_CHART_WIDTH" default:"1200"`
	Height int    `envconfig:"SALESPULSE_CHART_HEIGHT" default:"600"`
}

func (c ChartConfig) validate(gcs GCSConfig) error {
	switch strings.ToLower(strings.TrimSpace(c.Sink)) {
	case ChartSinkFile:
	case ChartSinkGCS:
		if strings.TrimSpace(gcs.BucketName) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvGCSBucket, EnvChartSink, ChartSinkGCS)
		}
	default:
		return fmt.Errorf("%s must be %s or %s", EnvChartSink, ChartSinkFile, ChartSinkGCS)
	}
	if strings.TrimSpace(c.Output) == "" {
		return fmt.Errorf("%s is required", EnvChartOutput)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("chart width and height must be positive")
	}
	return nil
}

type ViewerConfig struct {
	Addr string `envconfig:"SALESPULSE_VIEWER_ADDR"`
}

type MetricsConfig struct {
	TextfilePath string `envconfig:"SALESPULSE_METRICS_TEXTFILE"`
}

func (db *DBConfig) ensureDSN(engine string) error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(strings.TrimSpace(engine), EngineSQLite) {
		return fmt.Errorf("%s is required for the %s engine", EnvDBDSN, EngineSQLite)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
