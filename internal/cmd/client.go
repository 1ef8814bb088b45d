// Package cmd provides command-line interface functionality for the
// CrewDesk CLI: login, resource listings, the live dashboard, and the local
// sandbox server.
package cmd

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/crewdesk/crewdesk-go/internal/config"
	"github.com/crewdesk/crewdesk-go/sdk/crewdesk"
	"github.com/crewdesk/crewdesk-go/sdk/session"
)

// newClient builds an API client from the CLI config, backed by the durable
// credential store so sessions survive between invocations. The returned
// cleanup closes the store file.
func newClient(cfg *config.Config) (*crewdesk.Client, func(), error) {
	store, err := session.OpenBoltStore(cfg.AuthStore)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if errClose := store.Close(); errClose != nil {
			log.Debugf("failed to close credential store: %v", errClose)
		}
	}

	opts := []crewdesk.Option{
		crewdesk.WithStore(store),
		crewdesk.WithLogger(log.StandardLogger()),
		crewdesk.WithUserAgent("crewdesk-cli"),
	}
	if cfg.ProxyURL != "" {
		opts = append(opts, crewdesk.WithProxy(cfg.ProxyURL))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, crewdesk.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		}))
	}

	client, err := crewdesk.New(cfg.BaseURL, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	client.Session().OnTeardown(func() {
		log.Warn("session expired, please run `crewdesk login` again")
	})
	return client, cleanup, nil
}
