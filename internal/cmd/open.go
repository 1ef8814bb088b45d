package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"

	"github.com/crewdesk/crewdesk-go/internal/config"
)

// DoOpen opens the browser dashboard.
func DoOpen(cfg *config.Config) {
	if err := open.Run(cfg.WebURL); err != nil {
		log.Errorf("failed to open browser: %v", err)
		log.Infof("dashboard: %s", cfg.WebURL)
	}
}
