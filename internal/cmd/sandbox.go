package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/crewdesk/crewdesk-go/internal/config"
	"github.com/crewdesk/crewdesk-go/internal/sandbox"
)

// DoSandbox runs the local development API server until interrupted.
func DoSandbox(cfg *config.Config) {
	sandboxCfg := cfg.Sandbox
	if len(sandboxCfg.Users) == 0 {
		sandboxCfg.Users = []config.SandboxUser{
			{Email: "dev@crewdesk.local", Password: "devpass", Name: "Sandbox Dev"},
		}
		log.Info("no sandbox users configured, seeding dev@crewdesk.local / devpass")
	}

	server, err := sandbox.NewServer(sandboxCfg)
	if err != nil {
		log.Fatalf("failed to start sandbox: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = server.Run(ctx); err != nil {
		log.Fatalf("sandbox server failed: %v", err)
	}
}
