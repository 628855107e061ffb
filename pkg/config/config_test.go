package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "production" {
		t.Fatalf("expected App.Env to be production, got %q", cfg.App.Env)
	}
	if cfg.Tables.Customers != "ANALYTICS.CUSTOMER_SILVER" {
		t.Fatalf("unexpected customers table %q", cfg.Tables.Customers)
	}
	if cfg.Tables.RFMScores != "ANALYTICS.CUSTOMER_RFM_SCORES" {
		t.Fatalf("unexpected rfm table %q", cfg.Tables.RFMScores)
	}
	if cfg.Report.SampleSize != 10 {
		t.Fatalf("expected sample size 10, got %d", cfg.Report.SampleSize)
	}
	if cfg.BigQuery.CacheTTL != 24*time.Hour {
		t.Fatalf("expected cache ttl 24h, got %v", cfg.BigQuery.CacheTTL)
	}
	if cfg.Warehouse.UsesSQL() {
		t.Fatal("expected bigquery engine by default")
	}
	if cfg.Redis.Enabled() {
		t.Fatal("expected redis to be disabled without a url")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAppEnv); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAppEnv, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_SQLEngineRequiresDSN(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvWarehouseEngine, "sqlite")

	if _, err := Load(); err == nil {
		t.Fatal("expected sqlite engine without dsn to fail")
	}

	t.Setenv(EnvDBDSN, "file:salespulse.db")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Warehouse.UsesSQL() {
		t.Fatal("expected sql engine")
	}
}

func TestLoad_PostgresLegacyDSN(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvWarehouseEngine, "postgres")
	t.Setenv(EnvDBHost, "localhost")
	t.Setenv(EnvDBUser, "analyst")
	t.Setenv(EnvDBName, "warehouse")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "postgres://analyst@localhost:5432/warehouse?sslmode=disable"
	if cfg.DB.DSN != want {
		t.Fatalf("expected dsn %q, got %q", want, cfg.DB.DSN)
	}
}

func TestLoad_RejectsUnknownEngine(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvWarehouseEngine, "snowflake")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown engine to fail")
	}
}

func TestLoad_GCSSinkRequiresBucket(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvChartSink, "gcs")

	if _, err := Load(); err == nil {
		t.Fatal("expected gcs sink without bucket to fail")
	}

	t.Setenv(EnvGCSBucket, "charts")
	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReportAsOfDate(t *testing.T) {
	now := time.Date(2025, 3, 9, 22, 15, 0, 0, time.FixedZone("x", -5*3600))

	got, err := ReportConfig{}.AsOfDate(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	got, err = ReportConfig{AsOf: "2024-02-29"}.AsOfDate(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if _, err := (ReportConfig{AsOf: "29/02/2024"}).AsOfDate(now); err == nil {
		t.Fatal("expected malformed date to fail")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "production")
	t.Setenv(EnvGCPProjectID, "project-123")
	unsetEnv(t,
		EnvWarehouseEngine,
		EnvDBDSN,
		EnvDBHost,
		EnvDBUser,
		EnvDBName,
		EnvRedisURL,
		EnvChartSink,
		EnvGCSBucket,
		EnvReportAsOf,
	)
}

// unsetEnv clears keys for the test; t.Setenv restores the prior values on cleanup.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
	if prodConfig.IsDev() {
		t.Fatalf("expected IsDev false for %q", prodConfig.Env)
	}
}
