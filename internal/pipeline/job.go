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

// Package pipeline exports the issuance log from the SQL store into BigQuery.
// Each table is exported by its own job; jobs run concurrently and load their
// rows in batches as newline-delimited JSON.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yalansy1989/code128/internal/model"
	"github.com/yalansy1989/code128/internal/store"
)

// Loader writes rows to the warehouse.
type Loader interface {
	// EnsureTable creates the target table or brings its schema up to date.
	EnsureTable(ctx context.Context, table model.BQTable) error
	// Load appends newline-delimited JSON rows to table.
	Load(ctx context.Context, table string, rows []byte, count int) error
}

// Start connects to BigQuery and exports both issuance tables from st.
func Start(ctx context.Context, cfg *model.ExportConfig, st store.Store, logger *zap.Logger) error {
	if err := validateBigQueryIdentifier(cfg.BigQueryDatasetID, "dataset ID"); err != nil {
		return err
	}

	var loader Loader
	if !cfg.DryRun {
		logger.Info("Initializing BigQuery client",
			zap.String("project_id", cfg.GCPProjectID),
			zap.String("dataset_id", cfg.BigQueryDatasetID),
		)
		bqClient, err := bigquery.NewClient(ctx, cfg.GCPProjectID)
		if err != nil {
			return fmt.Errorf("failed to create BigQuery client: %w", err)
		}
		defer bqClient.Close()
		loader = NewBigQueryLoader(bqClient, cfg.BigQueryDatasetID, logger)
	}

	_, err := Run(ctx, cfg, Jobs(cfg, st), loader, logger)
	return err
}

// Jobs returns the export jobs for the label and invoice tables of st.
func Jobs(cfg *model.ExportConfig, st store.Store) []model.Job {
	return []model.Job{
		{
			Name:        "issued_labels",
			TargetTable: cfg.LabelTable,
			Schema:      model.LabelSchema,
			Fetch: func(ctx context.Context, since time.Time, limit int) ([]model.Savable, time.Time, error) {
				rows, err := st.LabelsSince(ctx, since, limit)
				if err != nil {
					return nil, since, err
				}
				out := make([]model.Savable, 0, len(rows))
				for _, r := range rows {
					out = append(out, r)
					since = r.CreatedAt
				}
				return out, since, nil
			},
		},
		{
			Name:        "issued_invoices",
			TargetTable: cfg.InvoiceTable,
			Schema:      model.InvoiceSchema,
			Fetch: func(ctx context.Context, since time.Time, limit int) ([]model.Savable, time.Time, error) {
				rows, err := st.InvoicesSince(ctx, since, limit)
				if err != nil {
					return nil, since, err
				}
				out := make([]model.Savable, 0, len(rows))
				for _, r := range rows {
					out = append(out, r)
					since = r.CreatedAt
				}
				return out, since, nil
			},
		},
	}
}

// Run executes jobs concurrently. A nil loader is a dry run: rows are read
// and counted but nothing is written. The first failing job cancels the rest.
func Run(ctx context.Context, cfg *model.ExportConfig, jobs []model.Job, loader Loader, logger *zap.Logger) (*model.SyncSummary, error) {
	start := time.Now()
	summary := &model.SyncSummary{
		TotalTables: len(jobs),
		Results:     make([]*model.SyncResult, 0, len(jobs)),
	}
	var mu sync.Mutex

	logger.Info("Starting export pipeline",
		zap.Int("tables", len(jobs)),
		zap.Time("since", cfg.Since),
		zap.Bool("dry_run", loader == nil),
	)

	g, gCtx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		job := job
		jobLogger := logger.With(
			zap.String("source_table", job.Name),
			zap.String("target_table", job.TargetTable),
		)

		g.Go(func() error {
			result := runJob(gCtx, cfg, job, loader, jobLogger)

			mu.Lock()
			defer mu.Unlock()
			summary.Results = append(summary.Results, result)
			if result.Error != nil {
				summary.FailedSyncs++
				return result.Error
			}
			summary.SuccessfulSyncs++
			summary.TotalRowsSynced += result.RowsSynced
			return nil
		})
	}

	err := g.Wait()
	summary.TotalDuration = time.Since(start)
	logSyncSummary(logger, summary)
	if err != nil {
		logger.Error("One or more export jobs failed",
			zap.Error(err),
			zap.Int("successful", summary.SuccessfulSyncs),
			zap.Int("failed", summary.FailedSyncs),
		)
		return summary, err
	}
	return summary, nil
}

// runJob exports one table batch by batch, starting after cfg.Since.
func runJob(ctx context.Context, cfg *model.ExportConfig, job model.Job, loader Loader, logger *zap.Logger) *model.SyncResult {
	result := &model.SyncResult{
		TableName:   job.Name,
		TargetTable: job.TargetTable,
		StartedAt:   time.Now(),
	}
	finish := func(err error) *model.SyncResult {
		result.Error = err
		result.CompletedAt = time.Now()
		result.Duration = result.CompletedAt.Sub(result.StartedAt)
		return result
	}

	logger.Info("Starting table export job")

	if err := validateBigQueryIdentifier(job.TargetTable, "table name"); err != nil {
		return finish(err)
	}

	if loader != nil && cfg.CreateTables {
		if err := loader.EnsureTable(ctx, model.BQTable{Name: job.TargetTable, Schema: job.Schema}); err != nil {
			logger.Error("BigQuery table creation failed", zap.Error(err))
			return finish(fmt.Errorf("failed to create/update BigQuery table: %w", err))
		}
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}

	since := cfg.Since
	for {
		rows, last, err := job.Fetch(ctx, since, batchSize)
		if err != nil {
			logger.Error("Failed to read source rows", zap.Error(err))
			return finish(fmt.Errorf("failed to read %s: %w", job.Name, err))
		}
		if len(rows) == 0 {
			break
		}

		var buf bytes.Buffer
		encoder := json.NewEncoder(&buf)
		for _, row := range rows {
			if err := encoder.Encode(row.ToSaveable()); err != nil {
				return finish(fmt.Errorf("failed to encode row: %w", err))
			}
		}

		if loader == nil {
			logger.Info("Dry run mode - skipping BigQuery load", zap.Int("rows", len(rows)))
		} else if err := loader.Load(ctx, job.TargetTable, buf.Bytes(), len(rows)); err != nil {
			logger.Error("BigQuery load failed", zap.Error(err))
			return finish(fmt.Errorf("job execution failed: %w", err))
		}

		result.RowsSynced += int64(len(rows))
		logger.Debug("Batch exported",
			zap.Int("rows", len(rows)),
			zap.Time("watermark", last),
		)

		if len(rows) < batchSize {
			break
		}
		since = last
	}

	finish(nil)
	logger.Info("Table export job completed successfully",
		zap.Int64("rows_synced", result.RowsSynced),
		zap.Duration("duration", result.Duration),
	)
	return result
}

// logSyncSummary logs a detailed summary of all export results.
func logSyncSummary(logger *zap.Logger, summary *model.SyncSummary) {
	logger.Info("Export Summary",
		zap.Int("total_tables", summary.TotalTables),
		zap.Int("successful_syncs", summary.SuccessfulSyncs),
		zap.Int("failed_syncs", summary.FailedSyncs),
		zap.Int64("total_rows_synced", summary.TotalRowsSynced),
		zap.Duration("total_duration", summary.TotalDuration),
	)

	for _, result := range summary.Results {
		if result.Error != nil {
			logger.Error("Table export failed",
				zap.String("table", result.TableName),
				zap.Error(result.Error),
			)
			continue
		}
		logger.Info("Table export result",
			zap.String("table", result.TableName),
			zap.String("target", result.TargetTable),
			zap.Int64("rows", result.RowsSynced),
			zap.Duration("duration", result.Duration),
		)
	}
}
