// Command pinenut-daemon is the long-running adapter that keeps a
// single domain's Logger alive alongside its optional admin HTTP
// surface, periodic archival, and tracing/metrics wiring, in the manner
// the teacher's own cmd (retrieved only as cmd/loadtest/main.go, a
// load-testing harness rather than a service entrypoint) would have
// structured a "run the thing" command: flag-parsed config path,
// logrus diagnostics, a root context cancelled on SIGINT/SIGTERM.
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kenneth/pinenut/internal/admin"
	"github.com/kenneth/pinenut/internal/archive"
	"github.com/kenneth/pinenut/internal/config"
	"github.com/kenneth/pinenut/internal/crypto"
	"github.com/kenneth/pinenut/internal/logger"
	"github.com/kenneth/pinenut/internal/rotationcache"
	"github.com/kenneth/pinenut/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults applied if omitted)")
	directory := flag.String("dir", ".", "domain directory")
	identifier := flag.String("identifier", "default", "domain identifier")
	archiveInterval := flag.Duration("archive-interval", 5*time.Minute, "how often to sweep rotated logfiles for archival")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pinenut-daemon: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	log := telemetry.NewLogrusLogger(cfg.Telemetry)
	metrics := telemetry.NewDefault()
	tracker := telemetry.NewTracker(*identifier, log, metrics, cfg.Tracker.MaxEvents)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		log.WithError(err).Fatal("pinenut-daemon: init tracing")
	}
	defer shutdownTracing(context.Background())

	key, err := decodePublicKey(cfg.Logger.PublicKeyBase64)
	if err != nil {
		log.WithError(err).Fatal("pinenut-daemon: decode public key")
	}

	domain := logger.Domain{Identifier: *identifier, Directory: *directory}
	l, err := logger.New(domain, logger.Config{
		UseMmap:          cfg.Logger.UseMmap,
		BufferLen:        cfg.Logger.BufferLen,
		Rotation:         rotationFromConfig(cfg.Logger.Rotation),
		Key:              key,
		CompressionLevel: cfg.Logger.CompressionLevel,
		Tracker:          tracker,
	})
	if err != nil {
		log.WithError(err).Fatal("pinenut-daemon: start logger")
	}

	archiver, err := archive.New(cfg.Archive)
	if err != nil {
		log.WithError(err).Fatal("pinenut-daemon: start archiver")
	}

	cache, err := rotationcache.New(cfg.RotationCache)
	if err != nil {
		log.WithError(err).Fatal("pinenut-daemon: start rotation cache")
	}
	if cache != nil {
		defer cache.Close()
	}

	if cfg.Admin.Enabled {
		go func() {
			if err := admin.Serve(ctx, cfg.Admin, domain, log, metrics, tracker); err != nil {
				log.WithError(err).Error("pinenut-daemon: admin server exited")
			}
		}()
	}

	if archiver != nil {
		hostname, _ := os.Hostname()
		go runArchiveLoop(ctx, log, metrics, archiver, cache, domain, *archiveInterval, hostname)
	}

	<-ctx.Done()
	log.Info("pinenut-daemon: shutting down")
	if err := l.Shutdown(); err != nil {
		log.WithError(err).Error("pinenut-daemon: logger shutdown")
	}
}

// runArchiveLoop periodically uploads every rotated-out logfile for
// domain. When cache is non-nil, it first claims the sweep itself under
// a host-identified owner key so a fleet of daemons watching the same
// archive bucket (but each with its own domain directory) doesn't
// duplicate uploads during the brief window they overlap.
func runArchiveLoop(ctx context.Context, log *logrus.Logger, metrics *telemetry.Metrics, a *archive.Archiver, cache *rotationcache.Cache, domain logger.Domain, interval time.Duration, owner string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			bucket := tick.UTC().Format("2006-01-02T15:04")
			if cache != nil {
				claimed, err := cache.Claim(ctx, domain.Identifier, bucket, owner)
				if err != nil {
					log.WithError(err).Warn("pinenut-daemon: rotation cache claim failed, archiving anyway")
				} else if !claimed {
					continue
				}
			}
			if err := a.UploadAll(ctx, domain.Directory, domain.Identifier, nil); err != nil {
				metrics.RecordArchiveUpload(domain.Identifier, err)
				log.WithError(err).Error("pinenut-daemon: archive sweep failed")
				continue
			}
			metrics.RecordArchiveUpload(domain.Identifier, nil)
		}
	}
}

func decodePublicKey(b64 string) (crypto.PublicKey, error) {
	if b64 == "" {
		return crypto.EmptyPublicKey, nil
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return crypto.PublicKey{}, fmt.Errorf("decode: %w", err)
	}
	if len(raw) != crypto.PublicKeyLen {
		return crypto.PublicKey{}, fmt.Errorf("expected %d bytes, got %d", crypto.PublicKeyLen, len(raw))
	}
	var key crypto.PublicKey
	copy(key[:], raw)
	return key, nil
}

func rotationFromConfig(r config.Rotation) logger.TimeDimension {
	switch r {
	case config.RotationHour:
		return logger.Hour
	case config.RotationDay:
		return logger.Day
	default:
		return logger.Minute
	}
}
