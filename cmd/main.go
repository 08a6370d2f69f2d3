// Package main is the entry point for the stream scanner service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/streamscan/stream-scanner/internal/api"
	"github.com/streamscan/stream-scanner/internal/channel"
	"github.com/streamscan/stream-scanner/internal/config"
	"github.com/streamscan/stream-scanner/internal/ffmpeg"
	"github.com/streamscan/stream-scanner/internal/publisher"
	"github.com/streamscan/stream-scanner/internal/scanner"
	"github.com/streamscan/stream-scanner/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Info("Starting stream scanner service")
	sugar.Infow("Configuration loaded",
		"port", cfg.Server.Port,
		"max_concurrency", cfg.Scanner.MaxConcurrency,
		"smart_scan", cfg.Scanner.SmartScan,
	)

	// Initialize media client
	media := ffmpeg.NewClient(sugar)
	if !media.Available() {
		sugar.Warn("ffprobe not found in PATH; stream validation will report probe errors")
	} else if version := media.Version(context.Background()); version != "" {
		sugar.Infow("FFmpeg tools detected", "version", version)
	}

	// Initialize channel storage
	repository, err := storage.NewJSONRepository(cfg.Storage.ChannelsFile, sugar)
	if err != nil {
		sugar.Fatalf("Failed to initialize channel storage: %v", err)
	}

	// Initialize RabbitMQ publisher when enabled
	var pub *publisher.Publisher
	if cfg.RabbitMQ.Enabled {
		pub, err = publisher.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, sugar)
		if err != nil {
			sugar.Fatalf("Failed to initialize publisher: %v", err)
		}
		defer pub.Close()
	}

	// Initialize scan manager
	validator := scanner.NewStreamValidator(media, sugar)
	presets := scanner.NewPresetLoader(cfg.Scanner.PresetFile)
	manager := scanner.NewManager(validator, presets, scanner.ManagerConfig{
		MaxConcurrency:   cfg.Scanner.MaxConcurrency,
		DefaultTimeout:   cfg.Scanner.Timeout,
		LaunchRate:       cfg.Scanner.LaunchRate,
		SmartScan:        cfg.Scanner.SmartScan,
		DiscoveryTimeout: time.Duration(cfg.Scanner.DiscoveryTimeout) * time.Second,
	}, sugar)

	// Persist every valid stream as a channel, and publish it when
	// eventing is enabled.
	manager.OnResult(func(result scanner.ValidationResult) error {
		if !result.IsValid {
			return nil
		}
		if err := storeDiscoveredStream(repository, result); err != nil {
			return err
		}
		if pub != nil {
			return pub.PublishStreamDiscovered(result)
		}
		return nil
	})
	if pub != nil {
		manager.OnComplete(pub.PublishScanFinished)
	}

	// Initialize API server
	server := api.New(cfg.Server, manager, presets, repository, media, cfg.FFmpeg, sugar)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		sugar.Infof("HTTP server listening on port %d", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sugar.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := httpServer.Shutdown(ctx); err != nil {
		sugar.Errorf("Server forced to shutdown: %v", err)
	}

	sugar.Info("Server stopped")
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// storeDiscoveredStream upserts a valid probe result into channel storage.
// The repository deduplicates by URL, so repeated scans refresh the same
// channel instead of accumulating copies.
func storeDiscoveredStream(repository *storage.JSONRepository, result scanner.ValidationResult) error {
	ch, err := channel.New(channelName(result.URL), result.URL)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	ch.Resolution = result.Resolution
	ch.IsOnline = true
	ch.ValidationStatus = channel.StatusOnline
	ch.LastValidated = &now

	_, err = repository.Add(ch)
	return err
}

// channelName derives a provisional display name from the stream URL host.
func channelName(streamURL string) string {
	parsed, err := url.Parse(streamURL)
	if err != nil || parsed.Host == "" {
		return streamURL
	}
	return parsed.Host
}
