package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/logging"
	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/repomanager"
)

const (
	defaultSummaryDays = 7
	maxSummaryDays     = 365
	topPathsLimit      = 10
	persistTimeout     = 5 * time.Second
	maxPathLength      = 2048
)

// VisitInput is what a page view reports about itself.
type VisitInput struct {
	Path      string
	SessionID string
	IP        string
	UserAgent string
	Referrer  string
}

type VisitMetrics interface {
	VisitRecorded()
	VisitDropped()
	VisitFailed()
}

type nopVisitMetrics struct{}

func (nopVisitMetrics) VisitRecorded() {}
func (nopVisitMetrics) VisitDropped()  {}
func (nopVisitMetrics) VisitFailed()   {}

type RecorderOptions struct {
	QueueSize      int
	Workers        int
	EnqueueTimeout time.Duration
}

// VisitorRecorder persists page views in the background. A bounded queue is
// drained by a fixed worker pool; callers wait at most EnqueueTimeout for a
// free slot and the visit is dropped otherwise.
type VisitorRecorder struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	opts        RecorderOptions
	metrics     VisitMetrics
	log         logging.Logger
	now         func() time.Time

	queue chan *models.Visit
	wg    sync.WaitGroup

	// mu guards closed; senders hold it shared so Close never closes the
	// queue under them.
	mu     sync.RWMutex
	closed bool
}

// NewVisitorRecorder starts the workers. A nil metrics disables counting.
func NewVisitorRecorder(db *sql.DB, m repomanager.RepositoryManager, opts RecorderOptions, metrics VisitMetrics, log logging.Logger) *VisitorRecorder {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.EnqueueTimeout <= 0 {
		opts.EnqueueTimeout = 50 * time.Millisecond
	}
	if metrics == nil {
		metrics = nopVisitMetrics{}
	}

	r := &VisitorRecorder{
		db:          db,
		repomanager: m,
		opts:        opts,
		metrics:     metrics,
		log:         log.With("module", "visitors"),
		now:         time.Now,
		queue:       make(chan *models.Visit, opts.QueueSize),
	}

	r.wg.Add(opts.Workers)
	for range opts.Workers {
		go r.worker()
	}
	return r
}

// RecordVisit queues a visit stamped with the current time. It reports
// whether the visit was queued; a dropped visit is logged and counted, never
// returned as an error.
func (r *VisitorRecorder) RecordVisit(ctx context.Context, in VisitInput) bool {
	v := r.newVisit(in)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(ctx, v, "recorder closed")
		return false
	}

	select {
	case r.queue <- v:
		return true
	default:
	}

	timer := time.NewTimer(r.opts.EnqueueTimeout)
	defer timer.Stop()

	select {
	case r.queue <- v:
		return true
	case <-timer.C:
		r.drop(ctx, v, "queue full")
	case <-ctx.Done():
		r.drop(ctx, v, "request canceled")
	}
	return false
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (r *VisitorRecorder) newVisit(in VisitInput) *models.Visit {
	path := truncateUTF8(strings.ToValidUTF8(strings.TrimSpace(in.Path), ""), maxPathLength)
	device, browser, os := parseUserAgent(in.UserAgent)
	return &models.Visit{
		IP:        in.IP,
		Path:      path,
		UserAgent: in.UserAgent,
		Referrer:  in.Referrer,
		SessionID: in.SessionID,
		Device:    device,
		Browser:   browser,
		OS:        os,
		CreatedAt: r.now().UTC(),
	}
}

func (r *VisitorRecorder) drop(ctx context.Context, v *models.Visit, reason string) {
	r.metrics.VisitDropped()
	r.log.Warn(ctx, "visit dropped", "reason", reason, "path", v.Path)
}

func (r *VisitorRecorder) worker() {
	defer r.wg.Done()
	for v := range r.queue {
		r.persist(v)
	}
}

func (r *VisitorRecorder) persist(v *models.Visit) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := r.repomanager.Visitors(r.db).Insert(ctx, v); err != nil {
		r.metrics.VisitFailed()
		r.log.Error(ctx, "failed to persist visit", "path", v.Path, "error", err)
		return
	}
	r.metrics.VisitRecorded()
}

// Close stops accepting visits and waits until the queue is drained or ctx
// ends. It is safe to call more than once.
func (r *VisitorRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("visitor queue not drained: %w", ctx.Err())
	}
}

// Summary aggregates the trailing days (1..365; 0 means 7). The window
// starts at UTC midnight days-1 days ago so the current day is included.
func (r *VisitorRecorder) Summary(ctx context.Context, days int) (*models.VisitSummary, error) {
	if days == 0 {
		days = defaultSummaryDays
	}
	if days < 1 || days > maxSummaryDays {
		return nil, common.NewValidationError("days", fmt.Sprintf("must be between 1 and %d", maxSummaryDays))
	}

	today := r.now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(days - 1))

	repo := r.repomanager.Visitors(r.db)

	views, visitors, err := repo.Totals(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("error counting visits: %w", err)
	}
	daily, err := repo.Daily(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("error loading daily visits: %w", err)
	}
	top, err := repo.TopPaths(ctx, since, topPathsLimit)
	if err != nil {
		return nil, fmt.Errorf("error loading top paths: %w", err)
	}

	return &models.VisitSummary{
		Days:           days,
		TotalViews:     views,
		UniqueVisitors: visitors,
		Daily:          daily,
		TopPaths:       top,
	}, nil
}
