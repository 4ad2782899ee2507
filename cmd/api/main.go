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

// Package main is the entry point for the label and ZATCA QR service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/yalansy1989/code128/internal/config"
	"github.com/yalansy1989/code128/internal/label"
	"github.com/yalansy1989/code128/internal/logger"
	"github.com/yalansy1989/code128/internal/qr"
	"github.com/yalansy1989/code128/internal/store"
	transport "github.com/yalansy1989/code128/internal/transport/http"
	"github.com/yalansy1989/code128/internal/zatca"
)

func main() {
	// .env must be in place before the logger reads LOG_ENV and LOG_LEVEL.
	envErr := godotenv.Load()

	log := logger.InitLogger()
	defer logger.Sync()

	if envErr != nil {
		log.Debug("No .env file found, using environment variables")
	} else {
		log.Info(".env file loaded successfully")
	}

	cfg, err := config.LoadConfig(log)
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	st, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to open issuance store", zap.Error(err))
	}
	defer st.Close()

	qrSvc := qr.NewService(log, cfg.QRMinSize, cfg.QRMaxSize)
	labelSvc := label.NewService(cfg.Label, st, log)
	zatcaSvc := zatca.NewService(qrSvc, st, log)
	log.Debug("Services initialized")

	h := transport.NewHandler(labelSvc, zatcaSvc, qrSvc, log, transport.Options{
		MaxBodySize: cfg.MaxBodySize,
		MinSize:     cfg.QRMinSize,
		MaxSize:     cfg.QRMaxSize,
		DefaultSize: cfg.QRDefaultSize,
		VATRate:     cfg.VATRate,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           h.Routes(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	log.Debug("HTTP server configured",
		zap.String("addr", srv.Addr),
		zap.Duration("read_timeout", cfg.ReadTimeout),
		zap.Duration("write_timeout", cfg.WriteTimeout),
	)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("port", cfg.Port), zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 2)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		st.Close()
		log.Fatal("Server failed", zap.Error(err))
	case sig := <-quit:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err), zap.Duration("timeout", cfg.ShutdownTimeout))
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("Shutdown timeout exceeded, closing connections")
			srv.Close()
		}
		st.Close()
		logger.Sync()
		os.Exit(1)
	}

	log.Info("Server exited gracefully")
}

// openStore returns the issuance log selected by STORE_DB_TYPE.
func openStore(cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.StoreType {
	case "":
		log.Info("Issuance log disabled")
		return store.NopStore{}, nil
	case config.StoreMemory:
		log.Info("Issuance log kept in memory")
		return store.NewMemoryStore(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		return nil, err
	}
	if cfg.MigrateStore {
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
	}
	return st, nil
}
