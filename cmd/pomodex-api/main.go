package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/api"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/auth"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/cloudiam"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/config"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/dockerctl"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/orchestrator"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/snapshot"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/store"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/sweeper"
)

func main() {
	logger := log.New(os.Stdout, "pomodex-api ", log.LstdFlags|log.LUTC)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatalf("db: %v", err)
	}
	defer st.Close()

	docker, err := dockerctl.NewClient()
	if err != nil {
		logger.Fatalf("docker: %v", err)
	}
	defer docker.Close()

	ctx := context.Background()
	cloud, err := cloudiam.New(ctx, cfg.CloudProjectID, cfg.ObjectStoreBucket, logger)
	if err != nil {
		logger.Fatalf("cloud iam: %v", err)
	}

	snaps := snapshot.New(docker.Raw(), cfg.RegistryBaseURL)

	issuer := auth.NewIssuer(cfg.TokenSigningKey, cfg.AccessTokenTTL)
	authSvc := auth.NewService(st, issuer, cfg.RefreshTokenTTL)

	orch := orchestrator.New(st, docker, cloud, snaps, orchestrator.Config{
		BaseSandboxImage:  cfg.BaseSandboxImage,
		RegistryBaseURL:   cfg.RegistryBaseURL,
		ObjectStoreBucket: cfg.ObjectStoreBucket,
		SSHHostIP:         cfg.SSHHostIP,
		PortRangeLow:      cfg.DockerPortRangeStart,
		PortRangeHigh:     cfg.DockerPortRangeEnd,
	}, logger)

	sweep := sweeper.New(st, orch, cfg.IdleThreshold, cfg.SweeperInterval, logger)
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	go sweep.Run(sweepCtx)
	defer cancelSweep()

	termBaseURL := "wss://" + cfg.SSHHostIP + ":" + strconv.Itoa(cfg.TermProxyExternalPort)
	srv := api.New(authSvc, st, orch, termBaseURL, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Printf("shutting down...")
	_ = httpSrv.Close()
}
