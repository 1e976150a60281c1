package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sceneflow/internal/domain"
	"sceneflow/internal/frames"
	"sceneflow/internal/infra"
	"sceneflow/internal/providers/video"
	"sceneflow/internal/queue"
	"sceneflow/internal/storage"
)

// fakeGenerator scripts per-call behavior and records every request.
type fakeGenerator struct {
	mu       sync.Mutex
	requests []video.GenerateRequest
	respond  func(call int, req video.GenerateRequest) (*video.Asset, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, req video.GenerateRequest) (*video.Asset, error) {
	f.mu.Lock()
	call := len(f.requests)
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.respond != nil {
		return f.respond(call, req)
	}
	return &video.Asset{Data: []byte(fmt.Sprintf("video-%d", call)), MIME: "video/mp4"}, nil
}

func (f *fakeGenerator) recorded() []video.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]video.GenerateRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// fakeExtractor derives the frame bytes from the video path so tests can
// verify which result a seed came from.
type fakeExtractor struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (f *fakeExtractor) ExtractLastFrame(ctx context.Context, videoPath string) (*frames.Frame, error) {
	f.mu.Lock()
	f.paths = append(f.paths, videoPath)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &frames.Frame{Data: []byte("frame-of:" + videoPath), MIME: "image/jpeg"}, nil
}

func newTestOrchestrator(t *testing.T, gen video.Generator, ext frames.Extractor) (*Orchestrator, *queue.SceneQueue, *storage.FileStore) {
	t.Helper()
	q := queue.New()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	logger := infra.Logger(zerolog.New(io.Discard))
	return New(q, gen, ext, store, logger), q, store
}

func addScenes(t *testing.T, q *queue.SceneQueue, prompts ...string) []domain.Scene {
	t.Helper()
	scenes := make([]domain.Scene, 0, len(prompts))
	for _, p := range prompts {
		usePrev := strings.HasPrefix(p, "+")
		scene, err := q.Add(domain.NewScene(strings.TrimPrefix(p, "+"), usePrev))
		if err != nil {
			t.Fatalf("Add(%q): %v", p, err)
		}
		scenes = append(scenes, scene)
	}
	return scenes
}

func waitTerminal(t *testing.T, o *Orchestrator) Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := o.Snapshot()
		if snap.Status.Terminal() {
			return snap
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("run did not terminate; last status %s", o.Snapshot().Status)
	return Snapshot{}
}

func waitSceneStatus(t *testing.T, o *Orchestrator, index int, status domain.SceneStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := o.Snapshot()
		if index < len(snap.Outcomes) && snap.Outcomes[index].Status == status {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("scene %d never reached %s", index, status)
}

func TestRunAllScenesSucceed(t *testing.T) {
	gen := &fakeGenerator{}
	o, q, store := newTestOrchestrator(t, gen, &fakeExtractor{})
	scenes := addScenes(t, q, "first", "second", "third")

	if _, err := o.Start(context.Background(), domain.Directives{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := waitTerminal(t, o)

	if snap.Status != domain.RunStatusCompleted {
		t.Fatalf("status = %s, want completed", snap.Status)
	}
	if len(snap.Outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(snap.Outcomes))
	}
	for i, outcome := range snap.Outcomes {
		if outcome.SceneID != scenes[i].ID {
			t.Errorf("outcome %d scene id mismatch", i)
		}
		if outcome.Status != domain.SceneStatusSucceeded {
			t.Errorf("outcome %d status = %s", i, outcome.Status)
		}
		if outcome.Result == nil {
			t.Fatalf("outcome %d has no result", i)
		}
		data, _, err := store.Read(context.Background(), outcome.Result.StorageKey)
		if err != nil {
			t.Errorf("result %d not stored: %v", i, err)
		} else if string(data) != fmt.Sprintf("video-%d", i) {
			t.Errorf("result %d bytes = %q", i, data)
		}
	}

	// Queue mutations are allowed again once the run terminates.
	if err := q.Remove(scenes[0].ID); err != nil {
		t.Errorf("Remove after run: %v", err)
	}
}

func TestSceneFailureSkipsRemainder(t *testing.T) {
	gen := &fakeGenerator{respond: func(call int, req video.GenerateRequest) (*video.Asset, error) {
		if call == 1 {
			return nil, fmt.Errorf("%w: model rejected the prompt", domain.ErrService)
		}
		return &video.Asset{Data: []byte(fmt.Sprintf("video-%d", call)), MIME: "video/mp4"}, nil
	}}
	o, q, _ := newTestOrchestrator(t, gen, &fakeExtractor{})
	addScenes(t, q, "one", "two", "three", "four")

	if _, err := o.Start(context.Background(), domain.Directives{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := waitTerminal(t, o)

	if snap.Status != domain.RunStatusFailed {
		t.Fatalf("status = %s, want failed", snap.Status)
	}
	if snap.Outcomes[0].Status != domain.SceneStatusSucceeded || snap.Outcomes[0].Result == nil {
		t.Errorf("earlier success not preserved: %+v", snap.Outcomes[0])
	}
	if snap.Outcomes[1].Status != domain.SceneStatusFailed {
		t.Errorf("outcome 1 status = %s, want failed", snap.Outcomes[1].Status)
	}
	if !strings.Contains(snap.Outcomes[1].Error, "model rejected the prompt") {
		t.Errorf("failure message lost: %q", snap.Outcomes[1].Error)
	}
	for i := 2; i < 4; i++ {
		if snap.Outcomes[i].Status != domain.SceneStatusSkipped {
			t.Errorf("outcome %d status = %s, want skipped", i, snap.Outcomes[i].Status)
		}
	}
}

func TestCancelTakesEffectAtSceneBoundary(t *testing.T) {
	release := make(chan struct{})
	gen := &fakeGenerator{respond: func(call int, req video.GenerateRequest) (*video.Asset, error) {
		if call == 0 {
			<-release
		}
		return &video.Asset{Data: []byte("clip"), MIME: "video/mp4"}, nil
	}}
	o, q, _ := newTestOrchestrator(t, gen, &fakeExtractor{})
	addScenes(t, q, "one", "two", "three")

	if _, err := o.Start(context.Background(), domain.Directives{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitSceneStatus(t, o, 0, domain.SceneStatusRunning)

	if err := o.RequestCancel(); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	close(release)
	snap := waitTerminal(t, o)

	if snap.Status != domain.RunStatusCancelled {
		t.Fatalf("status = %s, want cancelled", snap.Status)
	}
	// The in-flight scene finished normally.
	if snap.Outcomes[0].Status != domain.SceneStatusSucceeded {
		t.Errorf("outcome 0 status = %s, want succeeded", snap.Outcomes[0].Status)
	}
	for i := 1; i < 3; i++ {
		if snap.Outcomes[i].Status != domain.SceneStatusSkipped {
			t.Errorf("outcome %d status = %s, want skipped", i, snap.Outcomes[i].Status)
		}
	}
	if len(gen.recorded()) != 1 {
		t.Errorf("generator called %d times, want 1", len(gen.recorded()))
	}
}

func TestCancelWithoutActiveRun(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, &fakeGenerator{}, &fakeExtractor{})
	if err := o.RequestCancel(); !errors.Is(err, domain.ErrState) {
		t.Fatalf("RequestCancel error = %v, want ErrState", err)
	}
}

func TestContinuitySeedsFromImmediatePredecessorOnly(t *testing.T) {
	ext := &fakeExtractor{}
	gen := &fakeGenerator{}
	o, q, store := newTestOrchestrator(t, gen, ext)
	// "+" marks usePreviousScene.
	addScenes(t, q, "opening", "+middle", "+closing")

	if _, err := o.Start(context.Background(), domain.Directives{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := waitTerminal(t, o)
	if snap.Status != domain.RunStatusCompleted {
		t.Fatalf("status = %s, want completed", snap.Status)
	}

	reqs := gen.recorded()
	if reqs[0].SeedFrame != nil {
		t.Error("first scene must not receive a seed frame")
	}
	for i := 1; i < 3; i++ {
		if reqs[i].SeedFrame == nil {
			t.Fatalf("scene %d missing seed frame", i)
		}
		prevPath, err := store.Path(snap.Outcomes[i-1].Result.StorageKey)
		if err != nil {
			t.Fatalf("Path: %v", err)
		}
		want := "frame-of:" + prevPath
		if string(reqs[i].SeedFrame.Data) != want {
			t.Errorf("scene %d seed = %q, want frame of scene %d", i, reqs[i].SeedFrame.Data, i-1)
		}
		if reqs[i].SeedFrame.MIME != "image/jpeg" {
			t.Errorf("scene %d seed mime = %q", i, reqs[i].SeedFrame.MIME)
		}
	}
}

func TestUsePreviousSceneIgnoredOnFirstScene(t *testing.T) {
	ext := &fakeExtractor{}
	gen := &fakeGenerator{}
	o, q, _ := newTestOrchestrator(t, gen, ext)
	addScenes(t, q, "+lonely scene")

	if _, err := o.Start(context.Background(), domain.Directives{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := waitTerminal(t, o)

	if snap.Status != domain.RunStatusCompleted {
		t.Fatalf("status = %s, want completed", snap.Status)
	}
	if gen.recorded()[0].SeedFrame != nil {
		t.Error("flag on first scene must be inert")
	}
	if len(ext.paths) != 0 {
		t.Errorf("extractor invoked %d times, want 0", len(ext.paths))
	}
}

func TestSeedExtractionFailureFailsScene(t *testing.T) {
	ext := &fakeExtractor{err: errors.New("no video track found")}
	o, q, _ := newTestOrchestrator(t, &fakeGenerator{}, ext)
	addScenes(t, q, "one", "+two", "three")

	if _, err := o.Start(context.Background(), domain.Directives{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := waitTerminal(t, o)

	if snap.Status != domain.RunStatusFailed {
		t.Fatalf("status = %s, want failed", snap.Status)
	}
	if snap.Outcomes[0].Status != domain.SceneStatusSucceeded {
		t.Errorf("outcome 0 = %s, want succeeded", snap.Outcomes[0].Status)
	}
	if snap.Outcomes[1].Status != domain.SceneStatusFailed || !strings.Contains(snap.Outcomes[1].Error, "no video track found") {
		t.Errorf("outcome 1 = %+v", snap.Outcomes[1])
	}
	if snap.Outcomes[2].Status != domain.SceneStatusSkipped {
		t.Errorf("outcome 2 = %s, want skipped", snap.Outcomes[2].Status)
	}
}

func TestStartRejectsEmptyQueue(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, &fakeGenerator{}, &fakeExtractor{})
	if _, err := o.Start(context.Background(), domain.Directives{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Start error = %v, want ErrValidation", err)
	}
	if o.Snapshot().Status != domain.RunStatusIdle {
		t.Error("failed start must not leave a session behind")
	}
}

func TestStartWhileRunningAndQueueGate(t *testing.T) {
	release := make(chan struct{})
	gen := &fakeGenerator{respond: func(call int, req video.GenerateRequest) (*video.Asset, error) {
		<-release
		return &video.Asset{Data: []byte("clip"), MIME: "video/mp4"}, nil
	}}
	o, q, _ := newTestOrchestrator(t, gen, &fakeExtractor{})
	scenes := addScenes(t, q, "only")

	if _, err := o.Start(context.Background(), domain.Directives{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitSceneStatus(t, o, 0, domain.SceneStatusRunning)

	if _, err := o.Start(context.Background(), domain.Directives{}); !errors.Is(err, domain.ErrState) {
		t.Errorf("second Start error = %v, want ErrState", err)
	}
	if err := q.Remove(scenes[0].ID); !errors.Is(err, domain.ErrState) {
		t.Errorf("Remove during run error = %v, want ErrState", err)
	}

	close(release)
	waitTerminal(t, o)
}

func TestRerunResetsEveryScene(t *testing.T) {
	failFirst := true
	gen := &fakeGenerator{respond: func(call int, req video.GenerateRequest) (*video.Asset, error) {
		if failFirst {
			failFirst = false
			return nil, fmt.Errorf("%w: transient refusal", domain.ErrService)
		}
		return &video.Asset{Data: []byte("clip"), MIME: "video/mp4"}, nil
	}}
	o, q, _ := newTestOrchestrator(t, gen, &fakeExtractor{})
	addScenes(t, q, "one", "two")

	if _, err := o.Start(context.Background(), domain.Directives{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := waitTerminal(t, o)
	if first.Status != domain.RunStatusFailed {
		t.Fatalf("first run status = %s, want failed", first.Status)
	}

	snap, err := o.Start(context.Background(), domain.Directives{})
	if err != nil {
		t.Fatalf("rerun Start: %v", err)
	}
	if snap.SessionID == first.SessionID {
		t.Error("rerun must create a fresh session")
	}
	for i, outcome := range snap.Outcomes {
		if outcome.Status != domain.SceneStatusPending && outcome.Status != domain.SceneStatusRunning && outcome.Status != domain.SceneStatusSucceeded {
			t.Errorf("outcome %d carried stale state %s into new run", i, outcome.Status)
		}
		if outcome.Error != "" {
			t.Errorf("outcome %d carried stale error %q", i, outcome.Error)
		}
	}

	second := waitTerminal(t, o)
	if second.Status != domain.RunStatusCompleted {
		t.Fatalf("second run status = %s, want completed", second.Status)
	}
	for i, outcome := range second.Outcomes {
		if outcome.Status != domain.SceneStatusSucceeded {
			t.Errorf("second run outcome %d = %s", i, outcome.Status)
		}
	}
}

func TestDirectivesFlowThroughToGenerator(t *testing.T) {
	gen := &fakeGenerator{}
	o, q, _ := newTestOrchestrator(t, gen, &fakeExtractor{})
	addScenes(t, q, "styled scene")

	directives := domain.Directives{
		Model:          domain.ModelVeo3Fast,
		AspectRatio:    domain.AspectPortrait,
		Resolution:     domain.Resolution1080p,
		CharacterVoice: domain.VoiceEnglish,
		VisualStyle:    domain.StyleCinematic,
		EnableSound:    true,
	}
	if _, err := o.Start(context.Background(), directives); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitTerminal(t, o)

	got := gen.recorded()[0].Directives
	if got != directives {
		t.Errorf("directives = %+v, want %+v", got, directives)
	}
}
