// Package scheduler runs the periodic check_all_servers job: for every
// enabled MCP server across every project, probe it (spawn a short-lived
// child, initialize, tools/list), diff the discovered tools against the
// repository, persist
// changes, and append a job history record. A single in-flight run at a
// time (max_instances=1) with coalescing — a tick that lands while the
// previous run is still going is skipped rather than queued.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"muster/internal/domain"
	"muster/internal/mcpserver"
	"muster/internal/mcptypes"
	"muster/internal/repository"
	"muster/pkg/logging"
)

const subsystem = "Scheduler"

// probeTimeout bounds the one-shot spawn/initialize/tools-list probe
// connection the scheduler opens per server, independent of that server's
// own configured request timeout.
const probeTimeout = 15 * time.Second

// StartChild spawns and initializes a client for server, used by the
// scheduler's probe step. cmd/serve.go's defaultStartChild supplies the
// real implementation; tests supply a fake.
type StartChild func(ctx context.Context, server *domain.McpServer) (*mcpserver.Client, error)

// Worker owns the check_all_servers ticker and its concurrency bound.
type Worker struct {
	repo       repository.Repository
	startChild StartChild

	running int32 // atomic; guards max_instances=1 coalescing

	stop chan struct{}
	done chan struct{}
}

// NewWorker builds a Worker. Each tick opens its own ephemeral
// spawn/initialize/tools-list/kill connection per server via startChild —
// it never touches the shared child pool live sessions use, so a server no
// client has opened a session for is never kept running just because the
// scheduler probed it.
func NewWorker(repo repository.Repository, startChild StartChild) *Worker {
	return &Worker{
		repo:       repo,
		startChild: startChild,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run starts the ticking loop and blocks until ctx is cancelled or Stop
// is called. The tick interval and max_workers bound are re-read from the
// repository's WorkerConfig on every tick, so operators can edit the
// cadence at runtime without restarting the process.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	for {
		cfg, err := w.repo.GetWorkerConfig()
		if err != nil {
			logging.Error(subsystem, err, "failed to load worker config, using defaults")
			cfg = domain.DefaultWorkerConfig()
		}

		timer := time.NewTimer(cfg.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-w.stop:
			timer.Stop()
			return
		case <-timer.C:
			w.tick(ctx, cfg)
		}
	}
}

// Stop signals Run to exit and waits for it to do so.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Worker) tick(ctx context.Context, cfg domain.WorkerConfig) {
	if cfg.Coalesce && !atomic.CompareAndSwapInt32(&w.running, 0, 1) {
		logging.Debug(subsystem, "check_all_servers already running, skipping this tick")
		return
	}
	defer atomic.StoreInt32(&w.running, 0)

	if err := w.CheckAllServers(ctx, cfg); err != nil {
		logging.Error(subsystem, err, "check_all_servers failed")
	}
}

// CheckAllServers runs one pass over every project/server, bounded to
// cfg.MaxWorkers concurrent probes via a weighted semaphore, and appends
// one JobHistoryEntry per project summarizing the run.
func (w *Worker) CheckAllServers(ctx context.Context, cfg domain.WorkerConfig) error {
	projects, err := w.repo.ListProjects()
	if err != nil {
		return err
	}

	for _, project := range projects {
		if err := w.checkProject(ctx, project, cfg); err != nil {
			logging.Error(subsystem, err, "check_all_servers: project %s failed", project.ID)
		}
	}
	return nil
}

func (w *Worker) checkProject(ctx context.Context, project domain.Project, cfg domain.WorkerConfig) error {
	servers, err := w.repo.ListServers(project.ID)
	if err != nil {
		return err
	}

	start := time.Now()
	sem := semaphore.NewWeighted(int64(maxInt(cfg.MaxWorkers, 1)))
	grp, grpCtx := errgroup.WithContext(ctx)

	var checked, updated, errored, toolsSynced int64

	for i := range servers {
		server := servers[i]
		if !server.IsEnabled {
			continue
		}

		if err := sem.Acquire(grpCtx, 1); err != nil {
			break
		}
		grp.Go(func() error {
			defer sem.Release(1)

			atomic.AddInt64(&checked, 1)
			changed, synced, probeErr := w.probeServer(grpCtx, &server)
			if probeErr != nil {
				atomic.AddInt64(&errored, 1)
				w.logServerFailure(&server, probeErr)
				return nil // isolate one server's failure from the rest of the run
			}
			if changed {
				atomic.AddInt64(&updated, 1)
			}
			atomic.AddInt64(&toolsSynced, int64(synced))
			return nil
		})
	}
	_ = grp.Wait()

	return w.repo.AppendJobHistory(&domain.JobHistoryEntry{
		ProjectID:   project.ID,
		RunAt:       start,
		Duration:    time.Since(start),
		Checked:     int(checked),
		Updated:     int(updated),
		Errored:     int(errored),
		ToolsSynced: int(toolsSynced),
	})
}

// probeServer opens a short-lived connection of its own — spawn,
// initialize, one tools/list, then kill — lists its tools, diffs against
// the repository's last-known set, and persists the result. It never
// reaches into the shared child pool live sessions use: the probe
// connection is torn down before probeServer returns regardless of
// outcome, so a scheduler tick never leaves a process running just
// because it checked that server. changed reports whether the tool set
// differs from what was stored.
func (w *Worker) probeServer(ctx context.Context, server *domain.McpServer) (changed bool, toolCount int, err error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	client, err := w.startChild(probeCtx, server)
	if err != nil {
		return false, 0, err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), probeTimeout)
		defer closeCancel()
		_ = client.Close(closeCtx)
	}()

	discovered, err := client.ListTools(probeCtx)
	if err != nil {
		return false, 0, err
	}

	previous, err := w.repo.ListTools(server.ID)
	if err != nil {
		return false, 0, err
	}

	merged, changed := diffAndMerge(server.ID, previous, discovered)
	if err := w.repo.ReplaceTools(server.ID, merged); err != nil {
		return false, 0, err
	}

	server.Status = domain.ServerStatusActive
	if err := w.repo.SaveServer(server); err != nil {
		return false, 0, err
	}

	return changed, len(merged), nil
}

// diffAndMerge applies spec.md's tool deletion policy (delete on first
// successful discovery that omits a tool), refreshes LastSeenAt for every
// discovered tool, keeps DiscoveredAt for tools still present and sets it
// for new ones.
func diffAndMerge(serverID string, previous []domain.McpTool, discovered []mcptypes.Tool) ([]domain.McpTool, bool) {
	byName := make(map[string]domain.McpTool, len(previous))
	for _, t := range previous {
		byName[t.Name] = t
	}

	now := time.Now()
	merged := make([]domain.McpTool, 0, len(discovered))
	changed := len(discovered) != len(previous)

	for _, t := range discovered {
		existing, existed := byName[t.Name]
		entry := domain.McpTool{
			ID:           existing.ID,
			ServerID:     serverID,
			Name:         t.Name,
			Description:  t.Description,
			DiscoveredAt: existing.DiscoveredAt,
			LastSeenAt:   now,
			UsageCount:   existing.UsageCount,
		}
		if !existed {
			entry.DiscoveredAt = now
			changed = true
		}
		merged = append(merged, entry)
	}

	return merged, changed
}

func (w *Worker) logServerFailure(server *domain.McpServer, err error) {
	errType := domain.ClassifyError(err.Error())
	_ = w.repo.AppendServerLog(&domain.ServerLog{
		ServerID:  server.ID,
		ProjectID: server.ProjectID,
		Level:     domain.LogLevelError,
		Category:  string(errType),
		Message:   err.Error(),
		Timestamp: time.Now(),
	})

	server.Status = domain.ServerStatusError
	server.LastError = err.Error()
	_ = w.repo.SaveServer(server)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
