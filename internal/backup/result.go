package backup

import (
	"slices"
	"time"

	"github.com/aelpxy/dockup/internal/transfer"
	"github.com/aelpxy/dockup/pkg/models"
)

// State is a step of the per-application pipeline.
type State string

const (
	StateInit            State = "INIT"
	StateScanned         State = "SCANNED"
	StateResolved        State = "RESOLVED"
	StateRepoArchived    State = "REPO_ARCHIVED"
	StateVolumesArchived State = "VOLUMES_ARCHIVED"
	StateTransferred     State = "TRANSFERRED"
	StateDone            State = "DONE"
	StateFailed          State = "FAILED"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusPartial Status = "PARTIAL"
	StatusFailed  Status = "FAILED"
)

type RunStatus string

const (
	RunAllOK    RunStatus = "ALL_OK"
	RunDegraded RunStatus = "DEGRADED"
	RunAborted  RunStatus = "ABORTED"
)

type PhaseKind string

const (
	PhaseResolve       PhaseKind = "resolve"
	PhaseRepoArchive   PhaseKind = "repo-archive"
	PhaseVolumeArchive PhaseKind = "volume-archive"
	PhaseTransfer      PhaseKind = "transfer"
)

type PhaseStatus string

const (
	PhaseOK      PhaseStatus = "ok"
	PhaseFailed  PhaseStatus = "failed"
	PhaseSkipped PhaseStatus = "skipped"
)

// Phase is the outcome of one step for one target. Target is the
// application name for resolve and repo phases and the resolved volume name
// for volume phases; transfer phases name the artifact they shipped.
type Phase struct {
	Kind       PhaseKind
	Target     string
	Status     PhaseStatus
	Bytes      int64
	RemotePath string
	Duration   time.Duration
	Err        error
}

// Result is the sealed outcome of one application's pipeline.
type Result struct {
	app         string
	volumes     []models.VolumeRef
	phases      []Phase
	errs        []error
	status      Status
	state       State
	lastReached State
	remotePath  string
	duration    time.Duration
}

func (r *Result) App() string                 { return r.app }
func (r *Result) Volumes() []models.VolumeRef { return slices.Clone(r.volumes) }
func (r *Result) Phases() []Phase             { return slices.Clone(r.phases) }
func (r *Result) Errors() []error             { return slices.Clone(r.errs) }
func (r *Result) Status() Status              { return r.status }
func (r *Result) RemotePath() string          { return r.remotePath }
func (r *Result) Duration() time.Duration     { return r.duration }

// State is DONE or FAILED.
func (r *Result) State() State { return r.state }

// LastReached is the furthest pipeline state completed before the result
// was sealed.
func (r *Result) LastReached() State { return r.lastReached }

// PhasesOf returns the phases of the given kind in execution order.
func (r *Result) PhasesOf(kind PhaseKind) []Phase {
	var phases []Phase
	for _, p := range r.phases {
		if p.Kind == kind {
			phases = append(phases, p)
		}
	}
	return phases
}

// TransferredBytes sums the bytes of every successful transfer.
func (r *Result) TransferredBytes() int64 {
	var total int64
	for _, p := range r.PhasesOf(PhaseTransfer) {
		if p.Status == PhaseOK {
			total += p.Bytes
		}
	}
	return total
}

// resultBuilder accumulates a pipeline's bookkeeping until it is sealed.
type resultBuilder struct {
	result  Result
	started time.Time
	now     func() time.Time
	failed  bool
	sealed  *Result
}

func newResultBuilder(app string, now func() time.Time) *resultBuilder {
	return &resultBuilder{
		result:  Result{app: app, lastReached: StateInit},
		started: now(),
		now:     now,
	}
}

func (b *resultBuilder) reach(state State) {
	b.result.lastReached = state
}

func (b *resultBuilder) setVolumes(volumes []models.VolumeRef) {
	b.result.volumes = slices.Clone(volumes)
}

func (b *resultBuilder) setRemotePath(path string) {
	b.result.remotePath = path
}

// record appends a phase and keeps its error, if any.
func (b *resultBuilder) record(phase Phase) {
	b.result.phases = append(b.result.phases, phase)
	if phase.Err != nil {
		b.result.errs = append(b.result.errs, phase.Err)
	}
}

// fail marks the whole pipeline FAILED. Pass a nil err when a recorded
// phase already carries the cause.
func (b *resultBuilder) fail(err error) {
	b.failed = true
	if err != nil {
		b.result.errs = append(b.result.errs, err)
	}
}

// seal freezes the result. Later calls return the same value.
func (b *resultBuilder) seal() *Result {
	if b.sealed != nil {
		return b.sealed
	}

	r := b.result
	r.duration = b.now().Sub(b.started)
	switch {
	case b.failed:
		r.status = StatusFailed
		r.state = StateFailed
	case hasFailedPhase(r.phases):
		r.status = StatusPartial
		r.state = StateDone
	default:
		r.status = StatusSuccess
		r.state = StateDone
	}

	b.sealed = &r
	return b.sealed
}

func hasFailedPhase(phases []Phase) bool {
	for _, p := range phases {
		if p.Status == PhaseFailed {
			return true
		}
	}
	return false
}

// RunReport is the outcome of one invocation.
type RunReport struct {
	RunID       string
	StartedAt   time.Time
	Duration    time.Duration
	Results     []*Result
	Status      RunStatus
	AbortReason error
}

// RunTimestamp is the start time in the form used for remote directories.
func (r *RunReport) RunTimestamp() string {
	return transfer.FormatTimestamp(r.StartedAt)
}

// Counts reports how many results ended in each status.
func (r *RunReport) Counts() map[Status]int {
	counts := map[Status]int{StatusSuccess: 0, StatusPartial: 0, StatusFailed: 0}
	for _, result := range r.Results {
		counts[result.Status()]++
	}
	return counts
}

func (r *RunReport) TransferredBytes() int64 {
	var total int64
	for _, result := range r.Results {
		total += result.TransferredBytes()
	}
	return total
}

func runStatus(results []*Result) RunStatus {
	for _, result := range results {
		if result.Status() != StatusSuccess {
			return RunDegraded
		}
	}
	return RunAllOK
}
