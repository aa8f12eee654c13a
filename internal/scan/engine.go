// Package scan runs instrument sweep sessions: segment-by-segment trace
// capture with pause/resume/stop control and persisted progress.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/APKaudio/OPEN-AIR-sub001/internal/instrument"
	"github.com/APKaudio/OPEN-AIR-sub001/internal/repository"
	"github.com/APKaudio/OPEN-AIR-sub001/internal/storage"
	"github.com/APKaudio/OPEN-AIR-sub001/internal/store"
	"github.com/APKaudio/OPEN-AIR-sub001/pkg/models"
)

// DefaultSegmentHz is the sweep segment width when the caller does not set one.
const DefaultSegmentHz = 10e6

// ErrBusy reports that a sweep is already driving the instrument.
var ErrBusy = errors.New("another scan is already running")

// Sweeper is the slice of the instrument driver the engine needs.
type Sweeper interface {
	SetFreqWindow(startHz, stopHz float64) (instrument.FreqWindow, error)
	SetRBW(rbwHz float64) error
	FetchTrace(trace int, startHz, stopHz float64) ([]models.TracePoint, error)
}

// Engine owns the running scan sessions. One session sweeps at a time per
// engine; the instrument has a single front end.
type Engine struct {
	repo      repository.SessionRepository
	store     *store.ScanStore
	archive   storage.ArchiveService // nil disables archiving
	sweeper   Sweeper
	segmentHz float64
	log       zerolog.Logger

	mu   sync.Mutex
	runs map[string]*run
}

type run struct {
	cancel context.CancelFunc

	mu     sync.Mutex
	paused bool
	resume chan struct{} // closed while the session may proceed
}

func newRun(cancel context.CancelFunc) *run {
	resume := make(chan struct{})
	close(resume)
	return &run{cancel: cancel, resume: resume}
}

func (r *run) pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.paused {
		r.paused = true
		r.resume = make(chan struct{})
	}
}

func (r *run) unpause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused {
		r.paused = false
		close(r.resume)
	}
}

// wait blocks while the session is paused, returning early on cancellation.
func (r *run) wait(ctx context.Context) error {
	r.mu.Lock()
	resume := r.resume
	r.mu.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-resume:
	}
	// A stop may release the gate and cancel at the same time.
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func NewEngine(repo repository.SessionRepository, st *store.ScanStore, archive storage.ArchiveService, sweeper Sweeper, segmentHz float64, logger zerolog.Logger) *Engine {
	if segmentHz <= 0 {
		segmentHz = DefaultSegmentHz
	}
	return &Engine{
		repo:      repo,
		store:     st,
		archive:   archive,
		sweeper:   sweeper,
		segmentHz: segmentHz,
		log:       logger,
		runs:      make(map[string]*run),
	}
}

// Start launches the session sweep in the background. The session must already
// be persisted. Only one session may sweep at a time; Start returns ErrBusy
// while another sweep holds the instrument.
func (e *Engine) Start(session *models.ScanSession) error {
	if session.StopFreqMHz <= session.StartFreqMHz {
		return fmt.Errorf("stop frequency %v MHz must exceed start %v MHz", session.StopFreqMHz, session.StartFreqMHz)
	}
	if session.RBWHz <= 0 {
		return fmt.Errorf("rbw must be positive, got %v", session.RBWHz)
	}

	e.mu.Lock()
	if _, exists := e.runs[session.ID]; exists {
		e.mu.Unlock()
		return fmt.Errorf("session %s already running", session.ID)
	}
	// The instrument has one front end. A second sweep would interleave its
	// window programming with the first one's trace fetches.
	if len(e.runs) > 0 {
		e.mu.Unlock()
		return ErrBusy
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := newRun(cancel)
	e.runs[session.ID] = r
	e.mu.Unlock()

	go e.sweep(ctx, r, session)
	return nil
}

// Pause holds the session before its next segment. Already-fetched segments
// stay on disk.
func (e *Engine) Pause(id string) error {
	r, err := e.find(id)
	if err != nil {
		return err
	}
	r.pause()
	if err := e.setStatus(id, models.SessionPaused); err != nil {
		return err
	}
	e.log.Info().Str("session_id", id).Msg("scan paused")
	return nil
}

// Resume releases a paused session.
func (e *Engine) Resume(id string) error {
	r, err := e.find(id)
	if err != nil {
		return err
	}
	r.unpause()
	if err := e.setStatus(id, models.SessionRunning); err != nil {
		return err
	}
	e.log.Info().Str("session_id", id).Msg("scan resumed")
	return nil
}

// Stop cancels the session. A paused session is released first so the sweep
// goroutine can observe the cancellation and finalize.
func (e *Engine) Stop(id string) error {
	r, err := e.find(id)
	if err != nil {
		return err
	}
	r.cancel()
	r.unpause()
	e.log.Info().Str("session_id", id).Msg("scan stop requested")
	return nil
}

// setStatus changes the lifecycle state while preserving recorded progress.
func (e *Engine) setStatus(id, status string) error {
	ctx := context.Background()
	session, err := e.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return e.repo.UpdateStatus(ctx, id, status, session.Progress)
}

func (e *Engine) find(id string) (*run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.runs[id]
	if !ok {
		return nil, fmt.Errorf("no running session %s", id)
	}
	return r, nil
}

func (e *Engine) remove(id string) {
	e.mu.Lock()
	delete(e.runs, id)
	e.mu.Unlock()
}

// sweep is the session body. It runs to completion, cancellation, or failure,
// then finalizes session state.
func (e *Engine) sweep(ctx context.Context, r *run, session *models.ScanSession) {
	defer e.remove(session.ID)

	log := e.log.With().Str("session_id", session.ID).Str("name", session.Name).Logger()
	tempName := fmt.Sprintf("%s_%s.partial.csv", sanitizePrefix(session.Name), session.ID[:8])

	fail := func(err error) {
		log.Error().Err(err).Msg("scan failed")
		_ = e.store.ClearInProgress()
		if dbErr := e.repo.UpdateError(context.Background(), session.ID, err.Error()); dbErr != nil {
			log.Error().Err(dbErr).Msg("failed to record scan error")
		}
	}

	startHz := session.StartFreqMHz * 1e6
	stopHz := session.StopFreqMHz * 1e6
	segments := segmentBounds(startHz, stopHz, e.segmentHz)

	if err := e.sweeper.SetRBW(session.RBWHz); err != nil {
		fail(fmt.Errorf("configure rbw: %w", err))
		return
	}
	if err := e.store.Write(tempName, nil); err != nil {
		fail(err)
		return
	}
	if err := e.store.SetInProgress(tempName); err != nil {
		fail(err)
		return
	}
	if err := e.repo.UpdateStatus(context.Background(), session.ID, models.SessionRunning, 0); err != nil {
		fail(err)
		return
	}
	log.Info().Float64("start_mhz", session.StartFreqMHz).Float64("stop_mhz", session.StopFreqMHz).
		Int("segments", len(segments)).Msg("scan started")

	for i, seg := range segments {
		if err := r.wait(ctx); err != nil {
			e.finalizeStopped(session, tempName, log)
			return
		}

		win, err := e.sweeper.SetFreqWindow(seg.startHz, seg.stopHz)
		if err != nil {
			fail(fmt.Errorf("segment %d window: %w", i, err))
			return
		}
		points, err := e.sweeper.FetchTrace(1, win.StartHz, win.StopHz)
		if err != nil {
			fail(fmt.Errorf("segment %d trace: %w", i, err))
			return
		}
		if err := e.store.Append(tempName, points); err != nil {
			fail(err)
			return
		}

		progress := (i + 1) * 100 / len(segments)
		if progress < 100 {
			if err := e.repo.UpdateStatus(context.Background(), session.ID, models.SessionRunning, progress); err != nil {
				log.Error().Err(err).Msg("failed to update scan progress")
			}
		}
	}

	finalName := SessionFilename(session, time.Now())
	if err := e.store.Rename(tempName, finalName); err != nil {
		fail(err)
		return
	}
	_ = e.store.ClearInProgress()

	var archiveKey *string
	if e.archive != nil {
		key := e.archive.KeyFor(finalName)
		path, _ := e.store.Path(finalName)
		if err := e.archive.UploadFile(context.Background(), key, path); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("scan archive upload failed")
		} else {
			archiveKey = &key
		}
	}

	if err := e.repo.SetResult(context.Background(), session.ID, finalName, archiveKey); err != nil {
		log.Error().Err(err).Msg("failed to record scan result")
	}
	if err := e.repo.UpdateStatus(context.Background(), session.ID, models.SessionCompleted, 100); err != nil {
		log.Error().Err(err).Msg("failed to mark scan completed")
	}
	log.Info().Str("file", finalName).Msg("scan completed")
}

// finalizeStopped keeps the partial capture on disk under its final name so an
// aborted sweep is still inspectable.
func (e *Engine) finalizeStopped(session *models.ScanSession, tempName string, log zerolog.Logger) {
	_ = e.store.ClearInProgress()
	finalName := SessionFilename(session, time.Now())
	if err := e.store.Rename(tempName, finalName); err == nil {
		if err := e.repo.SetResult(context.Background(), session.ID, finalName, nil); err != nil {
			log.Error().Err(err).Msg("failed to record stopped scan result")
		}
	}
	if err := e.repo.UpdateError(context.Background(), session.ID, "scan stopped"); err != nil {
		log.Error().Err(err).Msg("failed to mark scan stopped")
	}
	log.Info().Msg("scan stopped")
}

type segment struct {
	startHz float64
	stopHz  float64
}

func segmentBounds(startHz, stopHz, segmentHz float64) []segment {
	var segs []segment
	for lo := startHz; lo < stopHz; lo += segmentHz {
		hi := lo + segmentHz
		if hi > stopHz {
			hi = stopHz
		}
		segs = append(segs, segment{startHz: lo, stopHz: hi})
	}
	return segs
}

// SessionFilename renders the scan file naming convention:
// <prefix>_RBW<rbw>_HOLD<n>_Offset<hz>_<YYYYMMDD_HHMMSS>.csv, with the Offset
// part omitted when the offset is zero.
func SessionFilename(session *models.ScanSession, now time.Time) string {
	offset := ""
	if session.OffsetHz != 0 {
		offset = fmt.Sprintf("Offset%d", int64(session.OffsetHz))
	}
	return fmt.Sprintf("%s_RBW%s_HOLD%d_%s_%s.csv",
		sanitizePrefix(session.Name),
		formatRBW(session.RBWHz),
		session.HoldCount,
		offset,
		now.Format("20060102_150405"))
}

// formatRBW renders whole kilohertz values with a K suffix, e.g. 10000 -> 10K.
func formatRBW(rbwHz float64) string {
	hz := int64(rbwHz)
	if hz >= 1000 && hz%1000 == 0 {
		return strconv.FormatInt(hz/1000, 10) + "K"
	}
	return strconv.FormatInt(hz, 10)
}

// sanitizePrefix keeps filenames flat: path separators and spaces become
// underscores.
func sanitizePrefix(name string) string {
	if name == "" {
		return "scan"
	}
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
