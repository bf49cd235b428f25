package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/molt-labs/molt-negotiation/internal/attestation"
	"github.com/molt-labs/molt-negotiation/internal/automation"
	"github.com/molt-labs/molt-negotiation/internal/config"
	"github.com/molt-labs/molt-negotiation/internal/decision"
	"github.com/molt-labs/molt-negotiation/internal/httpapi"
	"github.com/molt-labs/molt-negotiation/internal/kms"
	"github.com/molt-labs/molt-negotiation/internal/metrics"
	"github.com/molt-labs/molt-negotiation/internal/policy"
	"github.com/molt-labs/molt-negotiation/internal/runtime"
	"github.com/molt-labs/molt-negotiation/internal/sealed"
	"github.com/molt-labs/molt-negotiation/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := slog.Default()
	log.Info("negotiationd starting", "env", cfg.Env, "listen_addr", cfg.ListenAddr)

	if err := policy.CheckLaunchReadiness(policy.Resolve(), policy.ReadinessInputs{
		Production:    cfg.Production(),
		HasSealingKey: cfg.Sealing.MasterKey != "",
		HasSignerKey:  cfg.Signer.Key != "",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "launch readiness check failed: %v\n", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.DB.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	sealingRaw, err := unwrapKeyMaterial(context.Background(), cfg.Sealing.MasterKey, cfg.Sealing.KMSKeyID, cfg.Sealing.AWSRegion, cfg.LocalStackEndpoint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to unwrap sealing key: %v\n", err)
		os.Exit(1)
	}
	masterKey, err := sealed.KeyFromConfig(sealingRaw, cfg.Production(), cfg.Sealing.AllowInsecureDevKeys)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve sealing key: %v\n", err)
		os.Exit(1)
	}
	sealedStore := sealed.NewStore(masterKey)

	signerRaw, err := unwrapKeyMaterial(context.Background(), cfg.Signer.Key, cfg.Signer.KMSKeyID, cfg.Signer.AWSRegion, cfg.LocalStackEndpoint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to unwrap signer key: %v\n", err)
		os.Exit(1)
	}
	signer, err := attestation.KeyFromConfig(signerRaw, cfg.Production(), true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve attestation signer key: %v\n", err)
		os.Exit(1)
	}

	decisionClient := decision.NewClient(0)
	runtimeVerifier := runtime.NewVerifier()

	recorder := newMetricsRecorder(cfg)

	automationLoop := automation.New(db, time.Duration(cfg.Automation.IntervalSec)*time.Second, log)

	server := httpapi.New(httpapi.Deps{
		Config:          cfg,
		Store:           db,
		SealedStore:     sealedStore,
		Signer:          signer,
		DecisionClient:  decisionClient,
		RuntimeVerifier: runtimeVerifier,
		Metrics:         recorder,
		Automation:      automationLoop,
		Logger:          log,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go automationLoop.Run(ctx)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Router(),
	}

	go func() {
		log.Info("http server listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("negotiationd shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", "error", err)
	}
}

// unwrapKeyMaterial resolves a configured key value into the raw form
// internal/sealed and internal/attestation expect. When kmsKeyID is set,
// raw is treated as a base64-encoded KMS ciphertext blob and decrypted;
// otherwise raw passes through unchanged (plaintext hex/base64, or dev-mode
// empty string).
func unwrapKeyMaterial(ctx context.Context, raw, kmsKeyID, region, localStackEndpoint string) (string, error) {
	if kmsKeyID == "" || raw == "" {
		return raw, nil
	}
	ciphertext, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("decode kms ciphertext: %w", err)
	}
	client, err := kms.New(ctx, region, localStackEndpoint)
	if err != nil {
		return "", fmt.Errorf("init kms client: %w", err)
	}
	plaintext, err := client.Decrypt(ctx, ciphertext)
	if err != nil {
		return "", fmt.Errorf("kms decrypt: %w", err)
	}
	return string(plaintext), nil
}

func newMetricsRecorder(cfg *config.Config) metrics.Recorder {
	if cfg.Metrics.RedisAddr == "" {
		return metrics.NewMemoryRecorder()
	}
	client := metrics.NewGoRedisClient(cfg.Metrics.RedisAddr, cfg.Metrics.RedisPassword, cfg.Metrics.RedisDB)
	return metrics.NewRedisRecorder(client)
}
