// Copyright (c) 2026 WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Package config loads the service and export settings from environment
// variables. A .env file, when present, is loaded by the commands before
// LoadConfig runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/yalansy1989/code128/internal/barcode"
	"github.com/yalansy1989/code128/internal/label"
	"github.com/yalansy1989/code128/internal/model"
	"github.com/yalansy1989/code128/internal/money"
	"github.com/yalansy1989/code128/internal/store"
)

const (
	PortKey            = "PORT"
	ReadTimeoutKey     = "READ_TIMEOUT"
	WriteTimeoutKey    = "WRITE_TIMEOUT"
	ShutdownTimeoutKey = "SHUTDOWN_TIMEOUT"
	MaxBodySizeKey     = "MAX_BODY_SIZE"

	QRMinSizeKey     = "QR_MIN_SIZE"
	QRMaxSizeKey     = "QR_MAX_SIZE"
	QRDefaultSizeKey = "QR_DEFAULT_SIZE"

	LabelWidthInKey     = "LABEL_WIDTH_IN"
	LabelHeightInKey    = "LABEL_HEIGHT_IN"
	LabelDPIKey         = "LABEL_DPI"
	LabelQuietZoneKey   = "LABEL_QUIET_ZONE_MM"
	LabelModuleWidthKey = "LABEL_MODULE_WIDTH_MM"
	LabelModeKey        = "LABEL_MODE"

	FitMinModuleKey    = "FIT_MIN_MODULE_MM"
	FitMaxModuleKey    = "FIT_MAX_MODULE_MM"
	FitToleranceKey    = "FIT_TOLERANCE_MM"
	FitEpsilonKey      = "FIT_EPSILON_MM"
	FitMaxIterationKey = "FIT_MAX_ITERATIONS"

	VATRateKey = "VAT_RATE"

	StoreDBTypeKey         = "STORE_DB_TYPE"
	StoreDBHostKey         = "STORE_DB_HOST"
	StoreDBPortKey         = "STORE_DB_PORT"
	StoreDBNameKey         = "STORE_DB_NAME"
	StoreDBUserKey         = "STORE_DB_USER"
	StoreDBPasswordKey     = "STORE_DB_PASSWORD"
	StoreDBMaxOpenConns    = "STORE_DB_MAX_OPEN_CONNECTIONS"
	StoreDBMaxIdleConns    = "STORE_DB_MAX_IDLE_CONNECTIONS"
	StoreDBConnMaxLifetime = "STORE_DB_CONN_MAX_LIFETIME"
	StoreDBMigrateKey      = "STORE_DB_MIGRATE"
	storeDBConnTimeoutKey  = "STORE_DB_CONN_TIMEOUT"
	storeDBReadTimeoutKey  = "STORE_DB_READ_TIMEOUT"
	storeDBWriteTimeoutKey = "STORE_DB_WRITE_TIMEOUT"
	storeDBStmtTimeoutKey  = "STORE_DB_STATEMENT_TIMEOUT"
	storeDBSSLModeKey      = "STORE_DB_SSLMODE"
	storeDBTLSKey          = "STORE_DB_TLS"

	GCPProjectID       = "GCP_PROJECT_ID"
	BQDatasetID        = "BQ_DATASET_ID"
	BQLabelTableKey    = "BQ_LABEL_TABLE"
	BQInvoiceTableKey  = "BQ_INVOICE_TABLE"
	ExportSinceKey     = "EXPORT_SINCE"
	ExportBatchSizeKey = "EXPORT_BATCH_SIZE"
	ExportTimeoutKey   = "EXPORT_TIMEOUT"
	DryRunKey          = "DRY_RUN"
	CreateTablesKey    = "AUTO_CREATE_TABLES"
)

// Store types accepted in STORE_DB_TYPE. An empty value disables the issuance log.
const (
	StoreMySQL    = "mysql"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds the HTTP service configuration.
type Config struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodySize     int64

	QRMinSize     int
	QRMaxSize     int
	QRDefaultSize int

	Label   label.Defaults
	VATRate decimal.Decimal

	// StoreType is empty when the issuance log is disabled.
	StoreType    string
	Store        store.Config
	MigrateStore bool
}

// LoadConfig reads the service configuration. Malformed numbers fall back to
// their defaults with a warning; settings that cannot be defaulted are errors.
func LoadConfig(logger *zap.Logger) (*Config, error) {
	logger.Debug("Loading configuration from environment variables")

	cfg := &Config{
		Port:            getEnv(PortKey, "8080"),
		ReadTimeout:     parseDuration(logger, ReadTimeoutKey, "5s", 5*time.Second),
		WriteTimeout:    parseDuration(logger, WriteTimeoutKey, "10s", 10*time.Second),
		ShutdownTimeout: parseDuration(logger, ShutdownTimeoutKey, "5s", 5*time.Second),
		MaxBodySize:     int64(parsePositiveInt(logger, MaxBodySizeKey, "524288", 524288)),

		QRMinSize:     parsePositiveInt(logger, QRMinSizeKey, "64", 64),
		QRMaxSize:     parsePositiveInt(logger, QRMaxSizeKey, "2048", 2048),
		QRDefaultSize: parsePositiveInt(logger, QRDefaultSizeKey, "256", 256),

		MigrateStore: parseBool(getEnv(StoreDBMigrateKey, "true")),
	}
	if cfg.QRMinSize > cfg.QRMaxSize {
		return nil, fmt.Errorf("%s (%d) must not exceed %s (%d)", QRMinSizeKey, cfg.QRMinSize, QRMaxSizeKey, cfg.QRMaxSize)
	}
	if cfg.QRDefaultSize < cfg.QRMinSize || cfg.QRDefaultSize > cfg.QRMaxSize {
		return nil, fmt.Errorf("%s must be between %d and %d", QRDefaultSizeKey, cfg.QRMinSize, cfg.QRMaxSize)
	}

	var err error
	if cfg.Label, err = loadLabelDefaults(logger); err != nil {
		return nil, err
	}
	if cfg.VATRate, err = money.ParseRate(getEnv(VATRateKey, "0.15")); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", VATRateKey, err)
	}
	if cfg.StoreType, cfg.Store, err = loadStoreConfig(logger); err != nil {
		return nil, err
	}

	logger.Info("Configuration loaded successfully",
		zap.String("port", cfg.Port),
		zap.Float64("label_width_mm", cfg.Label.WidthMM),
		zap.Float64("label_height_mm", cfg.Label.HeightMM),
		zap.Int("label_dpi", cfg.Label.DPI),
		zap.String("label_mode", string(cfg.Label.Mode)),
		zap.String("vat_rate", cfg.VATRate.String()),
		zap.String("store", storeLabel(cfg.StoreType)),
	)
	return cfg, nil
}

func loadLabelDefaults(logger *zap.Logger) (label.Defaults, error) {
	d := label.JarirDefaults()
	d.WidthMM = barcode.InchesToMM(parseFloat(logger, LabelWidthInKey, "1.86", 1.86))
	d.HeightMM = barcode.InchesToMM(parseFloat(logger, LabelHeightInKey, "0.28", 0.28))
	d.DPI = parsePositiveInt(logger, LabelDPIKey, "600", 600)
	d.QuietZoneMM = parseFloat(logger, LabelQuietZoneKey, "2", 2)
	d.NaturalModuleMM = parseFloat(logger, LabelModuleWidthKey, "0.2", 0.2)
	d.Mode = label.Mode(strings.ToLower(getEnv(LabelModeKey, string(label.ModeFit))))

	d.Fit.MinModuleMM = parseFloat(logger, FitMinModuleKey, "0.02", barcode.DefaultMinModuleMM)
	d.Fit.MaxModuleMM = parseFloat(logger, FitMaxModuleKey, "1.0", barcode.DefaultMaxModuleMM)
	d.Fit.ToleranceMM = parseFloat(logger, FitToleranceKey, "0.02", barcode.DefaultToleranceMM)
	d.Fit.EpsilonMM = parseFloat(logger, FitEpsilonKey, "0.00001", barcode.DefaultEpsilonMM)
	d.Fit.MaxIterations = parsePositiveInt(logger, FitMaxIterationKey, "40", barcode.DefaultMaxIterations)

	switch d.Mode {
	case label.ModeFit, label.ModePad, label.ModeScale:
	default:
		return d, fmt.Errorf("invalid %s %q: want fit, pad or scale", LabelModeKey, d.Mode)
	}
	if d.WidthMM <= 0 || d.HeightMM <= 0 || d.DPI > label.MaxDPI {
		return d, fmt.Errorf("invalid label size %vx%v mm at %d dpi", d.WidthMM, d.HeightMM, d.DPI)
	}
	if d.QuietZoneMM < 0 || d.NaturalModuleMM <= 0 {
		return d, fmt.Errorf("%s must not be negative and %s must be positive", LabelQuietZoneKey, LabelModuleWidthKey)
	}
	if d.Fit.MinModuleMM <= 0 || d.Fit.MaxModuleMM <= d.Fit.MinModuleMM {
		return d, fmt.Errorf("invalid module width interval [%v, %v] mm", d.Fit.MinModuleMM, d.Fit.MaxModuleMM)
	}
	return d, nil
}

// loadStoreConfig reads the issuance log settings. The returned type is empty
// when the log is disabled.
func loadStoreConfig(logger *zap.Logger) (string, store.Config, error) {
	dbType := strings.ToLower(strings.TrimSpace(getEnv(StoreDBTypeKey, "")))
	switch dbType {
	case "", StoreMemory:
		return dbType, store.Config{Type: dbType}, nil
	case StoreMySQL, StorePostgres:
	default:
		return "", store.Config{}, fmt.Errorf("invalid %s %q: want mysql, postgres or memory", StoreDBTypeKey, dbType)
	}

	defaultPort := "3306"
	if dbType == StorePostgres {
		defaultPort = "5432"
	}
	host := getEnv(StoreDBHostKey, "localhost")
	port := getEnv(StoreDBPortKey, defaultPort)
	database := getEnv(StoreDBNameKey, "")
	user := getEnv(StoreDBUserKey, "")
	password := getEnv(StoreDBPasswordKey, "")
	if database == "" || user == "" {
		return "", store.Config{}, fmt.Errorf("missing required config: %s and %s are required", StoreDBNameKey, StoreDBUserKey)
	}

	return dbType, store.Config{
		Type:             dbType,
		ConnectionString: buildConnectionString(logger, dbType, host, port, database, user, password),
		MaxOpenConns:     parseInt(logger, StoreDBMaxOpenConns, "10", 10),
		MaxIdleConns:     parseInt(logger, StoreDBMaxIdleConns, "10", 10),
		ConnMaxLifetime:  parseDuration(logger, StoreDBConnMaxLifetime, "1m", time.Minute),
	}, nil
}

// buildConnectionString creates a DSN for the given driver. Timeouts are
// plain integers in seconds.
func buildConnectionString(logger *zap.Logger, dbType, host, port, database, user, password string) string {
	timeoutSec := func(key string, def int) int {
		return parseInt(logger, key, strconv.Itoa(def), def)
	}

	connTimeoutSec := timeoutSec(storeDBConnTimeoutKey, 30)
	readTimeoutSec := timeoutSec(storeDBReadTimeoutKey, 60)
	writeTimeoutSec := timeoutSec(storeDBWriteTimeoutKey, 60)

	switch dbType {
	case StorePostgres:
		if connTimeoutSec < 1 {
			connTimeoutSec = 1
		}
		statementTimeoutMs := timeoutSec(storeDBStmtTimeoutKey, readTimeoutSec) * 1000
		if statementTimeoutMs < 1 {
			statementTimeoutMs = 60000
		}
		return fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d options='-c statement_timeout=%d'",
			host, port, user, password, database, getEnv(storeDBSSLModeKey, "require"), connTimeoutSec, statementTimeoutMs,
		)

	default:
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?tls=%s&parseTime=true&loc=UTC&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
			user, password, host, port, database, getEnv(storeDBTLSKey, "true"),
			connTimeoutSec, readTimeoutSec, writeTimeoutSec,
		)
	}
}

// LoadExportConfig reads the BigQuery export settings and the SQL store it
// exports from.
func LoadExportConfig(logger *zap.Logger) (*model.ExportConfig, store.Config, error) {
	logger.Info("Loading export configuration from environment variables")

	gcpProjectID := getEnv(GCPProjectID, "")
	bqDatasetID := getEnv(BQDatasetID, "")
	if gcpProjectID == "" || bqDatasetID == "" {
		return nil, store.Config{}, fmt.Errorf("%s and %s are required", GCPProjectID, BQDatasetID)
	}

	dbType, storeCfg, err := loadStoreConfig(logger)
	if err != nil {
		return nil, store.Config{}, err
	}
	if dbType != StoreMySQL && dbType != StorePostgres {
		return nil, store.Config{}, fmt.Errorf("%s must be mysql or postgres for export", StoreDBTypeKey)
	}

	var since time.Time
	if v := getEnv(ExportSinceKey, ""); v != "" {
		if since, err = time.Parse(time.RFC3339, v); err != nil {
			return nil, store.Config{}, fmt.Errorf("invalid %s: %w", ExportSinceKey, err)
		}
	}

	cfg := &model.ExportConfig{
		GCPProjectID:      gcpProjectID,
		BigQueryDatasetID: bqDatasetID,
		LabelTable:        getEnv(BQLabelTableKey, "issued_labels"),
		InvoiceTable:      getEnv(BQInvoiceTableKey, "issued_invoices"),
		Since:             since,
		BatchSize:         parsePositiveInt(logger, ExportBatchSizeKey, "1000", 1000),
		Timeout:           parseDuration(logger, ExportTimeoutKey, "10m", 10*time.Minute),
		DryRun:            parseBool(getEnv(DryRunKey, "false")),
		CreateTables:      parseBool(getEnv(CreateTablesKey, "true")),
	}

	logger.Info("Export configuration loaded successfully",
		zap.String("gcp_project", cfg.GCPProjectID),
		zap.String("bq_dataset", cfg.BigQueryDatasetID),
		zap.String("db_type", dbType),
		zap.Time("since", cfg.Since),
		zap.Bool("dry_run", cfg.DryRun),
	)
	return cfg, storeCfg, nil
}

func storeLabel(dbType string) string {
	if dbType == "" {
		return "disabled"
	}
	return dbType
}

// getEnv retrieves the value of the environment variable for the given key.
// If the variable is not set or empty, it returns the provided defaultValue.
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parseInt fetches an environment variable by key and converts it to an
// integer. If conversion fails, it logs a warning and returns fallback.
func parseInt(logger *zap.Logger, key, defaultValue string, fallback int) int {
	v := getEnv(key, defaultValue)
	i, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn(fmt.Sprintf("Invalid %s, using default", key),
			zap.String("value", v),
			zap.Int("default", fallback),
			zap.Error(err))
		return fallback
	}
	return i
}

// parsePositiveInt is parseInt for settings that must be greater than zero.
func parsePositiveInt(logger *zap.Logger, key, defaultValue string, fallback int) int {
	i := parseInt(logger, key, defaultValue, fallback)
	if i <= 0 {
		logger.Warn(fmt.Sprintf("Invalid %s, using default", key),
			zap.Int("value", i),
			zap.Int("default", fallback))
		return fallback
	}
	return i
}

// parseFloat fetches an environment variable by key and converts it to a
// float. If conversion fails, it logs a warning and returns fallback.
func parseFloat(logger *zap.Logger, key, defaultValue string, fallback float64) float64 {
	v := getEnv(key, defaultValue)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warn(fmt.Sprintf("Invalid %s, using default", key),
			zap.String("value", v),
			zap.Float64("default", fallback),
			zap.Error(err))
		return fallback
	}
	return f
}

// parseDuration reads a duration string from the environment using the given key.
// If parsing fails or the value is not positive, it returns the fallback duration.
func parseDuration(logger *zap.Logger, key, defaultValue string, fallback time.Duration) time.Duration {
	v := getEnv(key, defaultValue)
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn(fmt.Sprintf("Invalid %s, using default", key),
			zap.String("value", v),
			zap.Duration("default", fallback),
			zap.Error(err))
		return fallback
	}
	if d <= 0 {
		return fallback
	}
	return d
}

// parseBool converts a string into a boolean.
func parseBool(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return v == "true" || v == "1" || v == "yes"
}
