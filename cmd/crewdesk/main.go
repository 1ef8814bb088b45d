// Command crewdesk is the CrewDesk command-line client: sign in to the API,
// inspect the task board and dashboard, or run a local sandbox API server.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/crewdesk/crewdesk-go/internal/cmd"
	"github.com/crewdesk/crewdesk-go/internal/config"
	"github.com/crewdesk/crewdesk-go/internal/logging"
	"github.com/crewdesk/crewdesk-go/internal/util"
)

func main() {
	var configPath string
	var email string
	var password string
	var status string
	var interval int

	flag.StringVar(&configPath, "config", "", "Configure File Path")
	flag.StringVar(&email, "email", "", "Account email for login")
	flag.StringVar(&password, "password", "", "Account password for login")
	flag.StringVar(&status, "status", "", "Task status filter for the tasks command")
	flag.IntVar(&interval, "interval", 30, "Refresh interval in seconds for the watch command")
	flag.Parse()

	logging.SetupBaseLogger()

	var err error
	var cfg *config.Config

	if configPath == "" {
		wd, errWd := os.Getwd()
		if errWd != nil {
			log.Fatalf("failed to get working directory: %v", errWd)
		}
		configPath = filepath.Join(wd, "config.yaml")
	}
	cfg, err = config.LoadConfig(configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Fatalf("failed to load config: %v", err)
		}
		log.Debugf("no config file at %s, using defaults", configPath)
		cfg = config.Default()
	}

	if err = logging.ConfigureLogOutput(cfg.LoggingToFile); err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}
	util.SetLogLevel(cfg)

	switch flag.Arg(0) {
	case "login":
		cmd.DoLogin(cfg, &cmd.LoginOptions{Email: email, Password: password})
	case "logout":
		cmd.DoLogout(cfg)
	case "whoami":
		cmd.DoWhoami(cfg)
	case "tasks":
		cmd.DoListTasks(cfg, status)
	case "dashboard":
		cmd.DoDashboard(cfg)
	case "watch":
		cmd.DoWatch(cfg, configPath, time.Duration(interval)*time.Second)
	case "open":
		cmd.DoOpen(cfg)
	case "sandbox":
		cmd.DoSandbox(cfg)
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: crewdesk [flags] <command>

Commands:
  login       Sign in and store the session
  logout      Revoke the session and clear stored credentials
  whoami      Show the signed-in identity
  tasks       List tasks (use -status to filter)
  dashboard   Print a one-shot dashboard summary
  watch       Keep printing the dashboard summary (-interval seconds)
  open        Open the web dashboard in a browser
  sandbox     Run the local development API server

Flags:
`)
	flag.PrintDefaults()
	os.Exit(2)
}
