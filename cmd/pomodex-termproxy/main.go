package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/audit"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/config"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/dockerctl"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/termproxy"
)

func main() {
	logger := log.New(os.Stdout, "pomodex-termproxy ", log.LstdFlags|log.LUTC)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	docker, err := dockerctl.NewClient()
	if err != nil {
		logger.Fatalf("docker: %v", err)
	}
	defer docker.Close()

	auditFile, err := os.OpenFile(cfg.AuditLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Fatalf("audit log: %v", err)
	}
	defer auditFile.Close()
	auditLogger := audit.New(auditFile)

	proxy := termproxy.New(docker, cfg.InternalValidateURL, auditLogger, logger)

	httpSrv := &http.Server{
		Addr:              cfg.TermProxyInternalAddr,
		Handler:           proxy.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.TermProxyInternalAddr)
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
