// Package orchestrator drives a scene queue through the generation service
// one scene at a time: it resolves continuity seed frames, tracks per-scene
// state, honors cooperative cancellation at scene boundaries and aggregates
// the ordered outcomes of a run.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sceneflow/internal/domain"
	"sceneflow/internal/frames"
	"sceneflow/internal/infra"
	"sceneflow/internal/providers/video"
	"sceneflow/internal/queue"
	"sceneflow/internal/storage"
)

// session is one end-to-end execution attempt over the queue. It owns a
// snapshot of the scene order taken at start time; queue edits made after a
// run terminates never affect the recorded outcomes.
type session struct {
	id         string
	status     domain.RunStatus
	directives domain.Directives
	cursor     int
	scenes     []domain.Scene
	outcomes   []domain.SceneOutcome
	cancel     bool
	startedAt  time.Time
	finishedAt time.Time
}

// Snapshot is the externally visible state of the current (or most recent)
// run.
type Snapshot struct {
	SessionID  string                `json:"session_id,omitempty"`
	Status     domain.RunStatus      `json:"status"`
	Cursor     int                   `json:"cursor"`
	Directives domain.Directives     `json:"directives"`
	Outcomes   []domain.SceneOutcome `json:"outcomes"`
	StartedAt  time.Time             `json:"started_at,omitempty"`
	FinishedAt time.Time             `json:"finished_at,omitempty"`
}

// Orchestrator executes runs strictly sequentially: at most one session is
// active, and within a session at most one scene is in flight.
type Orchestrator struct {
	queue     *queue.SceneQueue
	generator video.Generator
	extractor frames.Extractor
	store     *storage.FileStore
	logger    infra.Logger

	mu      sync.Mutex
	current *session
}

func New(q *queue.SceneQueue, generator video.Generator, extractor frames.Extractor, store *storage.FileStore, logger infra.Logger) *Orchestrator {
	return &Orchestrator{
		queue:     q,
		generator: generator,
		extractor: extractor,
		store:     store,
		logger:    logger,
	}
}

// Start validates the queue, freezes it and launches the run loop. The
// given ctx should span the server lifetime, not a single request; the run
// outlives the call. If any scene fails validation no session is created.
func (o *Orchestrator) Start(ctx context.Context, directives domain.Directives) (Snapshot, error) {
	directives.Normalize()

	scenes := o.queue.Scenes()
	if len(scenes) == 0 {
		return Snapshot{}, fmt.Errorf("%w: scene queue is empty", domain.ErrValidation)
	}
	for i, scene := range scenes {
		if err := scene.Validate(); err != nil {
			return Snapshot{}, fmt.Errorf("scene %d: %w", i+1, err)
		}
	}

	o.mu.Lock()
	if o.current != nil && o.current.status == domain.RunStatusRunning {
		o.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: a run is already in progress", domain.ErrState)
	}
	if err := o.queue.Freeze(); err != nil {
		o.mu.Unlock()
		return Snapshot{}, err
	}

	s := &session{
		id:         uuid.NewString(),
		status:     domain.RunStatusRunning,
		directives: directives,
		scenes:     scenes,
		outcomes:   make([]domain.SceneOutcome, len(scenes)),
		startedAt:  time.Now().UTC(),
	}
	for i, scene := range scenes {
		s.outcomes[i] = domain.SceneOutcome{SceneID: scene.ID, Status: domain.SceneStatusPending}
	}
	o.current = s
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.logger.Info().
		Str("session_id", s.id).
		Int("scenes", len(scenes)).
		Str("model", string(directives.Model)).
		Msg("orchestrator: run started")

	go o.run(ctx, s)
	return snap, nil
}

// RequestCancel flags the active session for cancellation. The scene
// currently in flight is allowed to finish; the flag takes effect at the
// next scene boundary.
func (o *Orchestrator) RequestCancel() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil || o.current.status != domain.RunStatusRunning {
		return fmt.Errorf("%w: no run in progress", domain.ErrState)
	}
	if !o.current.cancel {
		o.current.cancel = true
		o.logger.Info().Str("session_id", o.current.id).Msg("orchestrator: cancellation requested")
	}
	return nil
}

// Snapshot returns the state of the current or most recent run. Before any
// run it reports idle with no outcomes.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	if o.current == nil {
		return Snapshot{Status: domain.RunStatusIdle}
	}
	s := o.current
	outcomes := make([]domain.SceneOutcome, len(s.outcomes))
	copy(outcomes, s.outcomes)
	return Snapshot{
		SessionID:  s.id,
		Status:     s.status,
		Cursor:     s.cursor,
		Directives: s.directives,
		Outcomes:   outcomes,
		StartedAt:  s.startedAt,
		FinishedAt: s.finishedAt,
	}
}

func (o *Orchestrator) run(ctx context.Context, s *session) {
	defer o.queue.Release()

	for i := range s.scenes {
		if o.cancelRequested(s) {
			o.skipFrom(s, i)
			o.finish(s, domain.RunStatusCancelled)
			return
		}

		scene := s.scenes[i]

		seed, err := o.resolveSeed(ctx, s, i)
		if err != nil {
			o.failScene(s, i, err)
			o.finish(s, domain.RunStatusFailed)
			return
		}

		o.setRunning(s, i)
		o.logger.Info().
			Str("session_id", s.id).
			Str("scene_id", scene.ID).
			Int("index", i).
			Bool("seeded", seed != nil).
			Msg("orchestrator: scene started")

		asset, err := o.generator.Generate(ctx, video.GenerateRequest{
			Prompt:     scene.EffectivePrompt(),
			IsJSON:     scene.IsJSONPrompt,
			SeedFrame:  seed,
			Directives: s.directives,
			RequestID:  fmt.Sprintf("%s-%02d", s.id, i+1),
		})
		if err != nil {
			o.failScene(s, i, err)
			o.finish(s, domain.RunStatusFailed)
			return
		}

		key := fmt.Sprintf("runs/%s/scene-%02d%s", s.id, i+1, extensionForMIME(asset.MIME))
		storedKey, err := o.store.Write(ctx, key, asset.Data)
		if err != nil {
			o.failScene(s, i, fmt.Errorf("%w: store result: %v", domain.ErrService, err))
			o.finish(s, domain.RunStatusFailed)
			return
		}

		o.succeedScene(s, i, &domain.SceneResult{
			StorageKey: storedKey,
			MIME:       asset.MIME,
			Model:      s.directives.Model,
			Prompt:     scene.EffectivePrompt(),
			CreatedAt:  time.Now().UTC(),
		})
		o.logger.Info().
			Str("session_id", s.id).
			Str("scene_id", scene.ID).
			Str("storage_key", storedKey).
			Msg("orchestrator: scene succeeded")
	}

	o.finish(s, domain.RunStatusCompleted)
}

// resolveSeed returns the seed frame for the scene at index i: the last
// frame of scene i-1's own result, extracted lazily, and only when the
// scene asks for continuity. The flag is inert on the first scene.
func (o *Orchestrator) resolveSeed(ctx context.Context, s *session, i int) (*video.SeedFrame, error) {
	scene := s.scenes[i]
	if !scene.UsePreviousScene || i == 0 {
		return nil, nil
	}

	o.mu.Lock()
	prev := s.outcomes[i-1]
	o.mu.Unlock()
	if prev.Status != domain.SceneStatusSucceeded || prev.Result == nil {
		// Unreachable in the sequential loop: a failed predecessor halts
		// the run before this scene starts.
		return nil, fmt.Errorf("%w: previous scene has no result to chain from", domain.ErrState)
	}

	videoPath, err := o.store.Path(prev.Result.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: locate previous result: %v", domain.ErrService, err)
	}
	frame, err := o.extractor.ExtractLastFrame(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: extract seed frame: %v", domain.ErrService, err)
	}
	return &video.SeedFrame{Data: frame.Data, MIME: frame.MIME}, nil
}

func (o *Orchestrator) cancelRequested(s *session) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return s.cancel
}

func (o *Orchestrator) setRunning(s *session, i int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s.cursor = i
	s.outcomes[i].Status = domain.SceneStatusRunning
}

func (o *Orchestrator) succeedScene(s *session, i int, result *domain.SceneResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s.outcomes[i].Status = domain.SceneStatusSucceeded
	s.outcomes[i].Result = result
}

// failScene records the error against scene i and skips every later scene.
func (o *Orchestrator) failScene(s *session, i int, err error) {
	o.mu.Lock()
	s.outcomes[i].Status = domain.SceneStatusFailed
	s.outcomes[i].Error = err.Error()
	for j := i + 1; j < len(s.outcomes); j++ {
		s.outcomes[j].Status = domain.SceneStatusSkipped
	}
	o.mu.Unlock()

	o.logger.Error().
		Err(err).
		Str("session_id", s.id).
		Str("scene_id", s.scenes[i].ID).
		Int("index", i).
		Msg("orchestrator: scene failed")
}

func (o *Orchestrator) skipFrom(s *session, i int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for j := i; j < len(s.outcomes); j++ {
		s.outcomes[j].Status = domain.SceneStatusSkipped
	}
}

func (o *Orchestrator) finish(s *session, status domain.RunStatus) {
	o.mu.Lock()
	s.status = status
	s.finishedAt = time.Now().UTC()
	o.mu.Unlock()

	o.logger.Info().
		Str("session_id", s.id).
		Str("status", string(status)).
		Msg("orchestrator: run finished")
}

func extensionForMIME(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ".bin"
	}
}
