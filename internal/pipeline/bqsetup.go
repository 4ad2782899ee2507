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

package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"

	"github.com/yalansy1989/code128/internal/model"
)

// validIdentifierRegex matches valid BigQuery identifiers.
// BigQuery identifiers can contain letters (a-z, A-Z), digits (0-9), underscores (_), and hyphens (-).
// They must start with a letter or underscore.
var validIdentifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// validateBigQueryIdentifier checks if an identifier is safe for use as a dataset or table name.
func validateBigQueryIdentifier(identifier string, identifierType string) error {
	if identifier == "" {
		return fmt.Errorf("%s cannot be empty", identifierType)
	}
	if len(identifier) > 1024 {
		return fmt.Errorf("%s exceeds maximum length of 1024 characters", identifierType)
	}
	if !validIdentifierRegex.MatchString(identifier) {
		return fmt.Errorf("%s '%s' contains invalid characters; must match pattern [a-zA-Z_][a-zA-Z0-9_-]*", identifierType, identifier)
	}
	return nil
}

// BigQueryLoader loads rows into one BigQuery dataset.
type BigQueryLoader struct {
	client    *bigquery.Client
	datasetID string
	logger    *zap.Logger
}

// NewBigQueryLoader creates a loader for datasetID.
func NewBigQueryLoader(client *bigquery.Client, datasetID string, logger *zap.Logger) *BigQueryLoader {
	return &BigQueryLoader{client: client, datasetID: datasetID, logger: logger}
}

// EnsureTable implements Loader.
func (l *BigQueryLoader) EnsureTable(ctx context.Context, table model.BQTable) error {
	return createOrUpdateTable(ctx, l.client, l.datasetID, table, l.logger)
}

// Load implements Loader with a JSON load job in append mode.
func (l *BigQueryLoader) Load(ctx context.Context, table string, rows []byte, count int) error {
	source := bigquery.NewReaderSource(bytes.NewReader(rows))
	source.SourceFormat = bigquery.JSON

	loader := l.client.Dataset(l.datasetID).Table(table).LoaderFrom(source)
	loader.WriteDisposition = bigquery.WriteAppend

	l.logger.Info("Starting BigQuery load job",
		zap.String("table", table),
		zap.Int("rows", count),
	)

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to create BigQuery load job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("failed to wait for BigQuery job to complete: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("BigQuery load job failed: %w", err)
	}

	l.logger.Info("BigQuery load job completed successfully",
		zap.String("table", table),
		zap.Int("rows_loaded", count),
	)
	return nil
}

// isNotFound reports whether a BigQuery API error means the table does not exist.
func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "Not found") || strings.Contains(err.Error(), "notFound")
}

// createOrUpdateTable ensures that a target table in BigQuery exists and that its schema matches the provided schema.
// If the table does not exist, it is created. If the schema differs, the table schema is updated.
// Issued records are never dropped: an update BigQuery refuses is returned as an error.
func createOrUpdateTable(ctx context.Context, client *bigquery.Client, datasetID string, table model.BQTable, logger *zap.Logger) error {
	logger.Info("Checking BigQuery table",
		zap.String("dataset", datasetID),
		zap.String("table", table.Name))

	tableRef := client.Dataset(datasetID).Table(table.Name)
	metadata, err := tableRef.Metadata(ctx)
	if err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("failed to get table metadata for '%s': %w", table.Name, err)
		}

		logger.Info("Table not found, creating new table",
			zap.String("table", table.Name),
			zap.Int("schema_fields", len(table.Schema)))
		if err := tableRef.Create(ctx, &bigquery.TableMetadata{
			Name:   table.Name,
			Schema: table.Schema,
			TimePartitioning: &bigquery.TimePartitioning{
				Type:  bigquery.DayPartitioningType,
				Field: "created_at",
			},
		}); err != nil {
			return fmt.Errorf("failed to create table '%s': %w", table.Name, err)
		}
		logger.Info("Table created successfully", zap.String("table", table.Name))
		return nil
	}

	if model.SchemasMatch(metadata.Schema, table.Schema, logger) {
		logger.Debug("Table schema is up to date", zap.String("table", table.Name))
		return nil
	}

	logger.Warn("Schema mismatch detected, attempting update",
		zap.String("table", table.Name),
		zap.Int("existing_fields", len(metadata.Schema)),
		zap.Int("new_fields", len(table.Schema)))

	update := bigquery.TableMetadataToUpdate{Schema: table.Schema}
	if _, err := tableRef.Update(ctx, update, metadata.ETag); err != nil {
		return fmt.Errorf("failed to update schema of table '%s': %w", table.Name, err)
	}
	logger.Info("Table schema updated", zap.String("table", table.Name))
	return nil
}
