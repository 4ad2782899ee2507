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

// Package main is the entry point for the issuance log export. It copies
// issued labels and invoices from the SQL store into BigQuery.
package main

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/yalansy1989/code128/internal/config"
	"github.com/yalansy1989/code128/internal/logger"
	"github.com/yalansy1989/code128/internal/pipeline"
	"github.com/yalansy1989/code128/internal/store"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	logger.InitLogger()

	if err := run(); err != nil {
		logger.Logger.Error("Export failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Logger.Info("Export completed successfully")
	logger.Sync()
}

func run() error {
	username := "unknown"
	if currentUser, err := user.Current(); err == nil {
		username = currentUser.Username
	}

	logger.Logger.Info("Starting issuance log export",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("user", username),
		zap.String("timestamp", time.Now().Format(time.RFC3339)),
	)

	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		logger.Logger.Debug("No .env file found, using environment variables")
	} else {
		logger.Logger.Info(".env file loaded successfully")
	}

	cfg, storeCfg, err := config.LoadExportConfig(logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	st, err := store.Open(ctx, storeCfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to open issuance store: %w", err)
	}
	defer st.Close()

	logger.Logger.Info("Starting export pipeline",
		zap.Duration("timeout", cfg.Timeout),
		zap.Bool("dry_run", cfg.DryRun),
	)
	return pipeline.Start(ctx, cfg, st, logger.Logger)
}
