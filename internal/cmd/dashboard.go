package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/crewdesk/crewdesk-go/internal/config"
	"github.com/crewdesk/crewdesk-go/internal/util"
	"github.com/crewdesk/crewdesk-go/internal/watcher"
	"github.com/crewdesk/crewdesk-go/sdk/crewdesk"
)

// DoListTasks prints the task board.
func DoListTasks(cfg *config.Config, status string) {
	client, cleanup, err := newClient(cfg)
	if err != nil {
		log.Fatalf("failed to initialize client: %v", err)
	}
	defer cleanup()

	var opts *crewdesk.TaskListOptions
	if status != "" {
		opts = &crewdesk.TaskListOptions{Status: status}
	}
	tasks, err := client.Tasks.List(context.Background(), opts)
	if err != nil {
		log.Fatalf("failed to list tasks: %s", crewdesk.Message(err))
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tTITLE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, t.Title)
	}
	_ = w.Flush()
}

// dashboardSnapshot aggregates the three dashboard fetches.
type dashboardSnapshot struct {
	report *crewdesk.DashboardReport
	tasks  []crewdesk.Task
	skills []crewdesk.Skill
}

// fetchDashboard issues the report, task, and skill requests concurrently.
// All three share one session; if the access token has expired, a single
// refresh serves every in-flight call.
func fetchDashboard(ctx context.Context, client *crewdesk.Client) (*dashboardSnapshot, error) {
	var snap dashboardSnapshot
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		report, err := client.Reports.Dashboard(ctx)
		snap.report = report
		return err
	})
	group.Go(func() error {
		tasks, err := client.Tasks.List(ctx, nil)
		snap.tasks = tasks
		return err
	})
	group.Go(func() error {
		skills, err := client.Skills.List(ctx)
		snap.skills = skills
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}

func printSnapshot(snap *dashboardSnapshot) {
	fmt.Printf("open: %d  in progress: %d  done: %d  overdue: %d  |  %d tasks, %d skills\n",
		snap.report.OpenTasks, snap.report.InProgress, snap.report.CompletedTasks,
		snap.report.OverdueTasks, len(snap.tasks), len(snap.skills))
}

// DoDashboard prints a one-shot dashboard summary.
func DoDashboard(cfg *config.Config) {
	client, cleanup, err := newClient(cfg)
	if err != nil {
		log.Fatalf("failed to initialize client: %v", err)
	}
	defer cleanup()

	snap, err := fetchDashboard(context.Background(), client)
	if err != nil {
		log.Fatalf("failed to fetch dashboard: %s", crewdesk.Message(err))
	}
	printSnapshot(snap)
}

// DoWatch keeps printing the dashboard summary, hot-reloading the config
// file so base-url and proxy changes apply without a restart.
func DoWatch(cfg *config.Config, configPath string, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reloaded := make(chan *config.Config, 1)
	if configPath != "" {
		configWatcher, err := watcher.NewWatcher(configPath, func(next *config.Config) {
			select {
			case reloaded <- next:
			default:
			}
		})
		if err != nil {
			log.Fatalf("failed to create config watcher: %v", err)
		}
		if err = configWatcher.Start(ctx); err != nil {
			log.Fatalf("failed to start config watcher: %v", err)
		}
		defer func() {
			_ = configWatcher.Stop()
		}()
	}

	client, cleanup, err := newClient(cfg)
	if err != nil {
		log.Fatalf("failed to initialize client: %v", err)
	}
	defer func() { cleanup() }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	refresh := func() {
		snap, errFetch := fetchDashboard(ctx, client)
		if errFetch != nil {
			log.Errorf("dashboard fetch failed: %s", crewdesk.Message(errFetch))
			return
		}
		printSnapshot(snap)
	}
	refresh()

	for {
		select {
		case <-ctx.Done():
			return
		case next := <-reloaded:
			util.SetLogLevel(next)
			cleanup()
			client, cleanup, err = newClient(next)
			if err != nil {
				log.Fatalf("failed to rebuild client after config reload: %v", err)
			}
			refresh()
		case <-ticker.C:
			refresh()
		}
	}
}
