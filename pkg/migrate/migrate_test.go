package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/salespulse/pkg/config"
	"github.com/angelmondragon/salespulse/pkg/db"
	"github.com/angelmondragon/salespulse/pkg/logger"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestSilverMigrationContainsTables(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_analytics_silver_tables.sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	checks := []string{
		"CREATE SCHEMA IF NOT EXISTS analytics",
		"CREATE TABLE IF NOT EXISTS analytics.customer_silver",
		"CREATE TABLE IF NOT EXISTS analytics.orders_silver",
		"o_totalprice NUMERIC(15, 2) NOT NULL",
		"DROP TABLE IF EXISTS analytics.orders_silver",
		"DROP TABLE IF EXISTS analytics.customer_silver",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestShippedMigrationsValidate(t *testing.T) {
	versions, err := ValidateDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, versions)
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "create_things.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	_, err := ValidateDir(dir)
	require.Error(t, err)
}

func TestValidateDirRequiresGooseMarkers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20250101000000_things.sql"), []byte("-- +goose Up\nSELECT 1;\n"), 0o644))
	_, err := ValidateDir(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "-- +goose Down")
}

func TestValidateDirChecksStatementBlocks(t *testing.T) {
	cases := map[string]string{
		"unclosed": "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\nSELECT 1;\n",
		"nested":   "-- +goose Up\n-- +goose StatementBegin\n-- +goose StatementBegin\n",
		"stray":    "-- +goose Up\n-- +goose StatementEnd\n-- +goose Down\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "20250101000000_things.sql"), []byte(body), 0o644))
			_, err := ValidateDir(dir)
			require.Error(t, err)
			require.Contains(t, err.Error(), "Statement")
		})
	}
}

func TestValidateDirRejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	body := []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20250101000000_a.sql"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20250101000000_b.sql"), body, 0o644))
	_, err := ValidateDir(dir)
	require.ErrorContains(t, err, "duplicate migration version")
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 3, 1, 9, 30, 0, 0, time.FixedZone("x", 3600))

	path, err := CreateSQLMigration(dir, "Add Orders Index!", now)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "20250301083000_add_orders_index.sql"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "analytics schema")

	versions, err := ValidateDir(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"20250301083000"}, versions)

	_, err = CreateSQLMigration(dir, "add orders index", now)
	require.ErrorContains(t, err, "already exists")

	_, err = CreateSQLMigration(dir, "!!!", now)
	require.Error(t, err)
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("20250301090000")
	require.NoError(t, err)
	require.Equal(t, int64(20250301090000), v)

	_, err = parseVersion("2025")
	require.Error(t, err)
	_, err = parseVersion("not-a-version!")
	require.Error(t, err)
}

func TestMaybeRunDevSkipsNonPostgres(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_skip?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		App: config.AppConfig{Env: config.AppEnvDev},
		DB:  config.DBConfig{AutoMigrate: true},
	}
	logg := logger.New(logger.Options{ServiceName: "migrate-test"})
	require.NoError(t, MaybeRunDev(context.Background(), cfg, logg, db.Wrap(conn)))
}

func TestUpRequiresDB(t *testing.T) {
	_, err := Up(context.Background(), nil, os.DirFS("migrations"))
	require.ErrorContains(t, err, "db is required")
}
