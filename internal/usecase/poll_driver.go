package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vitos/live_price_chart/internal/domain"
	"go.uber.org/zap"
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseFetching  Phase = "fetching"
	PhaseApplying  Phase = "applying"
	PhaseCancelled Phase = "cancelled"
	PhaseFailed    Phase = "failed"
)

const DefaultPollInterval = 5 * time.Second

type PollDriverConfig struct {
	DefaultRange domain.RangeKey
	FetchTimeout time.Duration // 0 disables the per-cycle timeout
	MaxBackoff   time.Duration // 0 disables failure backoff
}

// DriverSnapshot is a copy of the driver state for readers outside the run loop.
type DriverSnapshot struct {
	Running     bool            `json:"running"`
	Series      string          `json:"series"`
	Range       domain.RangeKey `json:"range"`
	Phase       Phase           `json:"phase"`
	Points      []domain.Point  `json:"points"`
	LastPlotted *domain.Cursor  `json:"last_plotted,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	LastSuccess time.Time       `json:"last_success"`
	Failures    int             `json:"failures"`
}

type commandKind int

const (
	cmdSetRange commandKind = iota
	cmdSetSeries
)

type command struct {
	kind   commandKind
	key    domain.RangeKey
	series string
}

type fetchResult struct {
	gen    uint64
	series string
	force  bool
	rows   []domain.RawRow
	err    error
}

// PollDriver runs poll cycles on a single goroutine. Fetches run concurrently
// but only the result of the newest cycle is ever applied.
type PollDriver struct {
	feed       domain.FeedSource
	normalizer *RowNormalizer
	reducer    *SeriesReducer
	planner    *MergePlanner
	sink       domain.RenderSink
	status     domain.StatusSink
	prefs      domain.PreferenceRepository
	cfg        PollDriverConfig
	logger     *zap.Logger
	timeNow    func() time.Time // For testing

	mu          sync.RWMutex
	running     bool // cleared only by the run loop on exit
	stopping    bool
	series      string
	rangeKey    domain.RangeKey
	state       domain.SeriesState
	phase       Phase
	lastErr     string
	lastSuccess time.Time
	failures    int

	cmds    chan command
	results chan fetchResult
	stopCh  chan struct{}
	done    chan struct{}

	// Owned by the run loop.
	gen           uint64
	inflight      context.CancelFunc
	inflightForce bool
	cycleStarted  time.Time
	nextAllowed   time.Time
}

func NewPollDriver(
	feed domain.FeedSource,
	normalizer *RowNormalizer,
	reducer *SeriesReducer,
	planner *MergePlanner,
	sink domain.RenderSink,
	status domain.StatusSink,
	prefs domain.PreferenceRepository,
	cfg PollDriverConfig,
	logger *zap.Logger,
) *PollDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultRange == "" {
		cfg.DefaultRange = domain.Range6H
	}
	return &PollDriver{
		feed:       feed,
		normalizer: normalizer,
		reducer:    reducer,
		planner:    planner,
		sink:       sink,
		status:     status,
		prefs:      prefs,
		cfg:        cfg,
		logger:     logger,
		timeNow:    time.Now,
		phase:      PhaseIdle,
	}
}

// Start runs an immediate full cycle and then polls every interval until Stop
// or until ctx is cancelled. An empty key restores the remembered range.
func (d *PollDriver) Start(ctx context.Context, series string, key domain.RangeKey, interval time.Duration) error {
	if key == "" {
		key = d.restoreRange(ctx, series)
	}
	if !d.reducer.Ranges().Has(key) {
		return fmt.Errorf("%w: %q", domain.ErrUnknownRange, key)
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return domain.ErrDriverRunning
	}
	d.running = true
	d.stopping = false
	d.series = series
	d.rangeKey = key
	d.state.Reset()
	d.phase = PhaseIdle
	d.lastErr = ""
	d.failures = 0
	d.cmds = make(chan command)
	d.results = make(chan fetchResult)
	d.stopCh = make(chan struct{})
	d.done = make(chan struct{})
	d.mu.Unlock()

	d.gen = 0
	d.inflight = nil
	d.nextAllowed = time.Time{}

	d.logger.Info("Starting poll driver",
		zap.String("series", series),
		zap.String("range", string(key)),
		zap.Duration("interval", interval),
		zap.String("feed", d.feed.Name()))
	d.report(ctx, series, domain.StatusStarted, domain.SeverityInfo,
		fmt.Sprintf("Live chart started for %q (default %s)", series, key))

	go d.run(ctx, interval)
	return nil
}

// SetRange switches the lookback window and triggers an immediate full cycle.
func (d *PollDriver) SetRange(ctx context.Context, key domain.RangeKey) error {
	if !d.reducer.Ranges().Has(key) {
		return fmt.Errorf("%w: %q", domain.ErrUnknownRange, key)
	}
	if err := d.send(ctx, command{kind: cmdSetRange, key: key}); err != nil {
		return err
	}

	series := d.Snapshot().Series
	if d.prefs != nil {
		if err := d.prefs.SaveRange(ctx, series, key); err != nil {
			d.logger.Warn("Failed to remember range", zap.String("series", series), zap.Error(err))
		}
	}
	d.report(ctx, series, domain.StatusRangeChanged, domain.SeverityInfo, fmt.Sprintf("Range=%s", key))
	return nil
}

// SetSeries switches the displayed series. The current state is discarded.
func (d *PollDriver) SetSeries(ctx context.Context, series string) error {
	if series == "" {
		return fmt.Errorf("series identifier is empty")
	}
	return d.send(ctx, command{kind: cmdSetSeries, series: series})
}

// Stop cancels the timer and any in-flight fetch and waits for the loop to exit.
func (d *PollDriver) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	stopCh, done := d.stopCh, d.done
	first := !d.stopping
	d.stopping = true
	d.mu.Unlock()

	if first {
		close(stopCh)
	}
	<-done
	if first {
		d.logger.Info("Poll driver stopped")
	}
}

func (d *PollDriver) Snapshot() DriverSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st := d.state.Clone()
	return DriverSnapshot{
		Running:     d.running,
		Series:      d.series,
		Range:       d.rangeKey,
		Phase:       d.phase,
		Points:      st.Points,
		LastPlotted: st.LastPlotted,
		LastError:   d.lastErr,
		LastSuccess: d.lastSuccess,
		Failures:    d.failures,
	}
}

func (d *PollDriver) send(ctx context.Context, cmd command) error {
	d.mu.RLock()
	running, cmds, done := d.running && !d.stopping, d.cmds, d.done
	d.mu.RUnlock()
	if !running {
		return domain.ErrDriverStopped
	}
	select {
	case cmds <- cmd:
		return nil
	case <-done:
		return domain.ErrDriverStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *PollDriver) restoreRange(ctx context.Context, series string) domain.RangeKey {
	if d.prefs != nil {
		key, err := d.prefs.GetRange(ctx, series)
		if err != nil {
			d.logger.Debug("No remembered range", zap.String("series", series), zap.Error(err))
		} else if d.reducer.Ranges().Has(key) {
			return key
		}
	}
	return d.cfg.DefaultRange
}

func (d *PollDriver) run(ctx context.Context, interval time.Duration) {
	d.mu.RLock()
	cmds, results, stopCh, done := d.cmds, d.results, d.stopCh, d.done
	d.mu.RUnlock()

	defer close(done)
	defer func() {
		d.cancelInflight()
		d.mu.Lock()
		d.running = false
		d.phase = PhaseIdle
		d.mu.Unlock()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.beginCycle(ctx, true)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if now := d.timeNow(); now.Before(d.nextAllowed) {
				d.logger.Debug("Skipping poll during backoff", zap.Time("next_allowed", d.nextAllowed))
				continue
			}
			d.beginCycle(ctx, false)
		case cmd := <-cmds:
			d.handle(ctx, cmd)
		case res := <-results:
			d.complete(ctx, res, interval)
		}
	}
}

func (d *PollDriver) handle(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdSetRange:
		d.mu.Lock()
		d.rangeKey = cmd.key
		d.mu.Unlock()
	case cmdSetSeries:
		d.mu.Lock()
		d.series = cmd.series
		d.state.Reset()
		d.mu.Unlock()
		d.logger.Info("Switched series", zap.String("series", cmd.series))
	}
	d.beginCycle(ctx, true)
}

// beginCycle supersedes any in-flight fetch and starts a new one.
func (d *PollDriver) beginCycle(ctx context.Context, force bool) {
	if d.inflight != nil {
		d.logger.Debug("Superseding in-flight fetch", zap.Uint64("cycle", d.gen))
		d.inflight()
		force = force || d.inflightForce
	}
	d.gen++
	gen := d.gen

	var cctx context.Context
	var cancel context.CancelFunc
	if d.cfg.FetchTimeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, d.cfg.FetchTimeout)
	} else {
		cctx, cancel = context.WithCancel(ctx)
	}
	d.inflight = cancel
	d.inflightForce = force
	d.cycleStarted = d.timeNow()

	d.mu.Lock()
	series := d.series
	d.phase = PhaseFetching
	results, done := d.results, d.done
	d.mu.Unlock()

	go func() {
		rows, err := d.feed.Fetch(cctx, series)
		select {
		case results <- fetchResult{gen: gen, series: series, force: force, rows: rows, err: err}:
		case <-done:
		}
	}()
}

func (d *PollDriver) cancelInflight() {
	if d.inflight != nil {
		d.inflight()
		d.inflight = nil
	}
}

func (d *PollDriver) complete(ctx context.Context, res fetchResult, interval time.Duration) {
	if res.gen != d.gen {
		d.logger.Debug("Discarding superseded fetch result", zap.Uint64("cycle", res.gen), zap.Uint64("current", d.gen),
			zap.Error(domain.ErrFetchCancelled))
		return
	}
	d.cancelInflight()

	if res.err != nil {
		if errors.Is(res.err, context.Canceled) {
			d.setPhase(PhaseCancelled)
			d.logger.Debug("Fetch aborted", zap.Uint64("cycle", res.gen),
				zap.Error(fmt.Errorf("%w: %v", domain.ErrFetchCancelled, res.err)))
			d.setPhase(PhaseIdle)
			return
		}
		d.fail(ctx, res.series, interval, res.err)
		return
	}

	d.setPhase(PhaseApplying)
	if err := d.apply(ctx, res); err != nil {
		d.mu.Lock()
		d.lastErr = err.Error()
		d.mu.Unlock()
	}
	d.setPhase(PhaseIdle)
}

func (d *PollDriver) fail(ctx context.Context, series string, interval time.Duration, cause error) {
	err := fmt.Errorf("%w: %v", domain.ErrFetchFailed, cause)

	d.mu.Lock()
	d.failures++
	failures := d.failures
	d.lastErr = err.Error()
	d.phase = PhaseFailed
	d.mu.Unlock()

	if delay := d.backoffDelay(interval, failures); delay > 0 {
		d.nextAllowed = d.cycleStarted.Add(delay)
	}
	d.report(ctx, series, domain.StatusFetchFailed, domain.SeverityError, "Update error: "+cause.Error())
	d.setPhase(PhaseIdle)
}

func (d *PollDriver) backoffDelay(interval time.Duration, failures int) time.Duration {
	if d.cfg.MaxBackoff <= 0 || failures < 2 {
		return 0
	}
	shift := failures - 1
	if shift > 16 {
		shift = 16
	}
	delay := interval << shift
	if delay > d.cfg.MaxBackoff || delay <= 0 {
		delay = d.cfg.MaxBackoff
	}
	return delay
}

func (d *PollDriver) apply(ctx context.Context, res fetchResult) error {
	d.mu.RLock()
	key := d.rangeKey
	d.mu.RUnlock()

	points, err := d.normalizer.Normalize(res.rows, res.series)
	if err != nil {
		d.report(ctx, res.series, domain.StatusNoData, domain.SeverityError,
			fmt.Sprintf("No entries for ticker %q in feed.", res.series))
		return err
	}

	reduced, err := d.reducer.Reduce(points, key)
	if err != nil {
		if errors.Is(err, domain.ErrNoPlottablePoints) {
			d.report(ctx, res.series, domain.StatusNoPoints, domain.SeverityError, "No valid price data to plot.")
		} else {
			d.logger.Error("Reduce failed", zap.String("series", res.series), zap.Error(err))
		}
		return err
	}

	d.mu.Lock()
	plan := d.planner.Merge(&d.state, reduced, key, res.force)
	d.failures = 0
	d.lastErr = ""
	d.lastSuccess = d.timeNow()
	var frame domain.Frame
	if plan.Render {
		frame = domain.NewFrame(res.series, key, plan.Mode, d.state.Points, len(plan.Appended))
	}
	d.mu.Unlock()
	d.nextAllowed = time.Time{}

	d.logger.Debug("Cycle applied",
		zap.String("series", res.series),
		zap.String("range", string(key)),
		zap.String("mode", string(plan.Mode)),
		zap.Int("reduced", len(reduced)),
		zap.Int("appended", len(plan.Appended)))

	if !plan.Render {
		return nil
	}
	if err := d.sink.Render(ctx, frame); err != nil {
		d.logger.Error("Render failed", zap.String("series", res.series), zap.Error(err))
		return err
	}
	return nil
}

func (d *PollDriver) setPhase(p Phase) {
	d.mu.Lock()
	d.phase = p
	d.mu.Unlock()
}

func (d *PollDriver) report(ctx context.Context, series string, kind domain.StatusKind, sev domain.Severity, msg string) {
	if d.status == nil {
		return
	}
	d.status.Report(ctx, domain.StatusEvent{
		Series:   series,
		Kind:     kind,
		Severity: sev,
		Message:  msg,
		At:       d.timeNow(),
	})
}
