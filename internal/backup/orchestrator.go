package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/lucsky/cuid"
	"golang.org/x/sync/semaphore"

	"github.com/aelpxy/dockup/internal/fault"
	"github.com/aelpxy/dockup/internal/project"
	"github.com/aelpxy/dockup/internal/transfer"
	"github.com/aelpxy/dockup/pkg/models"
)

const (
	defaultConcurrency = 2
	defaultAppTimeout  = time.Hour
)

type Resolver interface {
	Resolve(app models.Application) ([]models.VolumeRef, error)
}

type Archiver interface {
	ArchiveDirectory(ctx context.Context, path string, w io.Writer) (int64, error)
	ArchiveVolume(ctx context.Context, volumeID string, w io.Writer) (int64, error)
}

// Transport opens one remote session per pipeline.
type Transport interface {
	Open(ctx context.Context) (Session, error)
}

type Session interface {
	EnsureRemoteLayout(ctx context.Context, app, runTimestamp string) (transfer.Layout, error)
	SendFile(ctx context.Context, localPath, remotePath string) (int64, error)
	Close() error
}

type transferTransport struct {
	client *transfer.Client
}

// NewTransport adapts a transfer client to the orchestrator.
func NewTransport(client *transfer.Client) Transport {
	return transferTransport{client: client}
}

func (t transferTransport) Open(ctx context.Context) (Session, error) {
	session, err := t.client.Open(ctx)
	if err != nil {
		return nil, err
	}
	return session, nil
}

type Options struct {
	Concurrency int
	AppTimeout  time.Duration
	ScratchDir  string
}

func OptionsFromSettings(settings models.BackupSettings) Options {
	return Options{
		Concurrency: settings.Concurrency,
		AppTimeout:  settings.AppTimeout.Duration,
		ScratchDir:  settings.ScratchDir,
	}
}

// Orchestrator runs one backup pipeline per application on a bounded pool.
type Orchestrator struct {
	resolver  Resolver
	archiver  Archiver
	transport Transport
	opts      Options
	logger    *slog.Logger

	scan  func(parent string) (iter.Seq[models.Application], error)
	now   func() time.Time
	newID func() string
}

func NewOrchestrator(resolver Resolver, archiver Archiver, transport Transport, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.AppTimeout <= 0 {
		opts.AppTimeout = defaultAppTimeout
	}
	return &Orchestrator{
		resolver:  resolver,
		archiver:  archiver,
		transport: transport,
		opts:      opts,
		logger:    logger,
		scan:      project.Scan,
		now:       time.Now,
		newID:     cuid.New,
	}
}

// resultCell is the slot a pipeline writes its result into.
type resultCell struct {
	result *Result
}

// Run discovers the applications under parent and backs each one up. It
// returns once every pipeline has finished. A scan failure yields an
// ABORTED report with no results.
func (o *Orchestrator) Run(ctx context.Context, parent string) *RunReport {
	report := &RunReport{
		RunID:     o.newID(),
		StartedAt: o.now().UTC(),
	}
	logger := o.logger.With("run_id", report.RunID)
	defer func() {
		report.Duration = o.now().Sub(report.StartedAt)
	}()

	apps, err := o.scan(parent)
	if err != nil {
		logger.Error("scan failed", "parent", parent, "error", err)
		report.Status = RunAborted
		report.AbortReason = err
		return report
	}

	logger.Info("backup run started", "parent", parent, "timestamp", report.RunTimestamp(), "concurrency", o.opts.Concurrency)

	sem := semaphore.NewWeighted(int64(o.opts.Concurrency))
	var wg sync.WaitGroup
	var cells []*resultCell

	stopped := false
	for app := range apps {
		cell := &resultCell{}
		cells = append(cells, cell)

		// Once canceled, the rest of the scan is still recorded, never started.
		if stopped || acquire(ctx, sem) != nil {
			cell.result = o.canceled(app, fault.FromContext(ctx, "backup "+app.Name))
			if !stopped {
				logger.Warn("run canceled before all applications started", "app", app.Name)
			}
			stopped = true
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			cell.result = o.pipeline(ctx, logger.With("app", app.Name), app, report.RunTimestamp())
		}()
	}

	wg.Wait()

	report.Results = make([]*Result, len(cells))
	for i, cell := range cells {
		report.Results[i] = cell.result
	}
	report.Status = runStatus(report.Results)

	logger.Info("backup run finished", "status", report.Status, "applications", len(report.Results))
	return report
}

// acquire fails as soon as ctx is done, even with free slots.
func acquire(ctx context.Context, sem *semaphore.Weighted) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return sem.Acquire(ctx, 1)
}

func (o *Orchestrator) canceled(app models.Application, err error) *Result {
	b := newResultBuilder(app.Name, o.now)
	b.reach(StateScanned)
	b.fail(err)
	return b.seal()
}

// pipeline drives one application from SCANNED to DONE or FAILED.
func (o *Orchestrator) pipeline(ctx context.Context, logger *slog.Logger, app models.Application, runTimestamp string) *Result {
	b := newResultBuilder(app.Name, o.now)
	b.reach(StateScanned)

	ctx, cancel := context.WithTimeout(ctx, o.opts.AppTimeout)
	defer cancel()

	logger.Info("backing up application", "path", app.Path)
	defer func() {
		r := b.seal()
		logger.Info("application finished", "status", r.Status(), "state", r.LastReached(), "duration", r.Duration().Round(time.Millisecond))
	}()

	volumes, ok := o.resolve(ctx, b, app)
	if !ok {
		return b.seal()
	}

	scratch, err := os.MkdirTemp(o.opts.ScratchDir, "dockup-"+project.NormalizeProjectName(app.Name)+"-")
	if err != nil {
		b.fail(fault.New(fault.KindArchive, "backup "+app.Name, fmt.Errorf("failed to create scratch directory: %w", err)))
		return b.seal()
	}
	defer os.RemoveAll(scratch)

	repo, ok := o.archiveRepo(ctx, b, app, scratch)
	if !ok {
		return b.seal()
	}

	archived, ok := o.archiveVolumes(ctx, logger, b, volumes, scratch)
	if !ok {
		return b.seal()
	}

	o.transferArtifacts(ctx, logger, b, app, runTimestamp, repo, archived)
	return b.seal()
}

// artifact is an archive waiting in scratch storage.
type artifact struct {
	target    string
	localPath string
	volume    bool
}

func (o *Orchestrator) resolve(ctx context.Context, b *resultBuilder, app models.Application) ([]models.VolumeRef, bool) {
	start := o.now()
	volumes, err := o.resolver.Resolve(app)
	phase := Phase{Kind: PhaseResolve, Target: app.Name, Status: PhaseOK, Duration: o.now().Sub(start)}
	if err == nil {
		err = fault.FromContext(ctx, "resolve "+app.Name)
	}
	if err != nil {
		phase.Status = PhaseFailed
		phase.Err = err
		b.record(phase)
		b.fail(nil)
		return nil, false
	}

	b.record(phase)
	b.setVolumes(volumes)
	b.reach(StateResolved)
	return volumes, true
}

func (o *Orchestrator) archiveRepo(ctx context.Context, b *resultBuilder, app models.Application, scratch string) (artifact, bool) {
	repo := artifact{target: app.Name, localPath: filepath.Join(scratch, "repo.tar.gz")}

	start := o.now()
	size, err := archiveToFile(repo.localPath, func(w io.Writer) (int64, error) {
		return o.archiver.ArchiveDirectory(ctx, app.Path, w)
	})
	phase := Phase{Kind: PhaseRepoArchive, Target: app.Name, Status: PhaseOK, Bytes: size, Duration: o.now().Sub(start)}
	if err != nil {
		phase.Status = PhaseFailed
		phase.Err = err
		b.record(phase)
		b.fail(nil)
		return artifact{}, false
	}

	b.record(phase)
	b.reach(StateRepoArchived)
	return repo, true
}

// archiveVolumes archives each volume independently. It reports false only
// when the pipeline's context ended.
func (o *Orchestrator) archiveVolumes(ctx context.Context, logger *slog.Logger, b *resultBuilder, volumes []models.VolumeRef, scratch string) ([]artifact, bool) {
	var archived []artifact

	for i, ref := range volumes {
		if err := fault.FromContext(ctx, "archive volume "+ref.Resolved); err != nil {
			b.fail(err)
			return nil, false
		}

		vol := artifact{
			target:    ref.Resolved,
			localPath: filepath.Join(scratch, "volume-"+strconv.Itoa(i)+".tar.gz"),
			volume:    true,
		}

		start := o.now()
		size, err := archiveToFile(vol.localPath, func(w io.Writer) (int64, error) {
			return o.archiver.ArchiveVolume(ctx, ref.Resolved, w)
		})
		phase := Phase{Kind: PhaseVolumeArchive, Target: ref.Resolved, Status: PhaseOK, Bytes: size, Duration: o.now().Sub(start)}
		if err != nil {
			phase.Status = PhaseFailed
			phase.Err = err
			b.record(phase)
			if isContextFailure(err) {
				b.fail(nil)
				return nil, false
			}
			logger.Warn("volume archive failed", "volume", ref.Resolved, "error", err)
			continue
		}

		b.record(phase)
		archived = append(archived, vol)
	}

	b.reach(StateVolumesArchived)
	return archived, true
}

func (o *Orchestrator) transferArtifacts(ctx context.Context, logger *slog.Logger, b *resultBuilder, app models.Application, runTimestamp string, repo artifact, volumes []artifact) {
	all := append([]artifact{repo}, volumes...)

	session, err := o.transport.Open(ctx)
	if err != nil {
		o.skipTransfers(b, all, err)
		return
	}
	defer session.Close()

	layout, err := session.EnsureRemoteLayout(ctx, app.Name, runTimestamp)
	if err != nil {
		o.skipTransfers(b, all, err)
		return
	}
	b.setRemotePath(layout.RunDir)

	if !o.send(ctx, b, session, repo, layout.RepoArchive()) {
		o.skipTransfers(b, volumes, nil)
		return
	}

	for i, vol := range volumes {
		if !o.send(ctx, b, session, vol, layout.VolumeArchive(vol.target)) {
			if isContextFailure(ctx.Err()) {
				o.skipTransfers(b, volumes[i+1:], nil)
				b.fail(nil)
				return
			}
			logger.Warn("volume transfer failed", "volume", vol.target)
		}
	}

	b.reach(StateTransferred)
	b.reach(StateDone)
}

// send ships one artifact and records its transfer phase. Failing to ship
// the configuration archive fails the pipeline.
func (o *Orchestrator) send(ctx context.Context, b *resultBuilder, session Session, a artifact, remotePath string) bool {
	start := o.now()
	n, err := session.SendFile(ctx, a.localPath, remotePath)
	phase := Phase{
		Kind:       PhaseTransfer,
		Target:     a.target,
		Status:     PhaseOK,
		Bytes:      n,
		RemotePath: remotePath,
		Duration:   o.now().Sub(start),
	}
	if err != nil {
		phase.Status = PhaseFailed
		phase.Err = err
		b.record(phase)
		if !a.volume {
			b.fail(nil)
		}
		return false
	}

	b.record(phase)
	return true
}

// skipTransfers records a transfer phase for artifacts that were never sent.
// With a non-nil cause they are failures and the pipeline fails.
func (o *Orchestrator) skipTransfers(b *resultBuilder, artifacts []artifact, cause error) {
	for i, a := range artifacts {
		phase := Phase{Kind: PhaseTransfer, Target: a.target, Status: PhaseSkipped}
		if cause != nil {
			phase.Status = PhaseFailed
			if i == 0 {
				phase.Err = cause
			}
		}
		b.record(phase)
	}
	if cause != nil {
		b.fail(nil)
	}
}

func archiveToFile(path string, write func(io.Writer) (int64, error)) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return 0, fault.New(fault.KindArchive, "create scratch file", err)
	}

	n, err := write(f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fault.New(fault.KindArchive, "close scratch file", closeErr)
	}
	if err != nil {
		os.Remove(path)
		return n, err
	}
	return n, nil
}

func isContextFailure(err error) bool {
	return fault.Is(err, fault.KindTimeout) || fault.Is(err, fault.KindCanceled) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
