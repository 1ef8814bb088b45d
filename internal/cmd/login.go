package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/crewdesk/crewdesk-go/internal/config"
	"github.com/crewdesk/crewdesk-go/sdk/crewdesk"
)

// LoginOptions carries the credentials for DoLogin. Empty fields are
// prompted for interactively.
type LoginOptions struct {
	Email    string
	Password string
}

// DoLogin signs in and persists the session.
func DoLogin(cfg *config.Config, options *LoginOptions) {
	if options == nil {
		options = &LoginOptions{}
	}
	email := options.Email
	password := options.Password
	reader := bufio.NewReader(os.Stdin)
	if email == "" {
		fmt.Print("Email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Fatalf("failed to read email: %v", err)
		}
		email = strings.TrimSpace(line)
	}
	if password == "" {
		fmt.Print("Password: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Fatalf("failed to read password: %v", err)
		}
		password = strings.TrimSpace(line)
	}

	client, cleanup, err := newClient(cfg)
	if err != nil {
		log.Fatalf("failed to initialize client: %v", err)
	}
	defer cleanup()

	identity, err := client.Auth.Login(context.Background(), email, password)
	if err != nil {
		log.Fatalf("login failed: %s", crewdesk.Message(err))
	}
	log.Infof("signed in as %s <%s>", identity.Name, identity.Email)
}

// DoWhoami prints the identity attached to the stored session.
func DoWhoami(cfg *config.Config) {
	client, cleanup, err := newClient(cfg)
	if err != nil {
		log.Fatalf("failed to initialize client: %v", err)
	}
	defer cleanup()

	identity, err := client.Auth.Me(context.Background())
	if err != nil {
		log.Fatalf("not signed in: %s", crewdesk.Message(err))
	}
	fmt.Printf("%s <%s> (%s)\n", identity.Name, identity.Email, identity.ID)
}

// DoLogout revokes the session and clears stored credentials.
func DoLogout(cfg *config.Config) {
	client, cleanup, err := newClient(cfg)
	if err != nil {
		log.Fatalf("failed to initialize client: %v", err)
	}
	defer cleanup()

	if err = client.Auth.Logout(context.Background()); err != nil {
		log.Debugf("server-side logout failed: %v", err)
	}
	log.Info("signed out")
}
