// Package queue holds the ordered, user-editable list of scenes. All
// structural mutation is rejected while a run session holds the queue
// frozen.
package queue

import (
	"encoding/json"
	"fmt"
	"sync"

	"sceneflow/internal/domain"
	"sceneflow/internal/domain/jsonscene"
)

// SceneQueue is safe for concurrent use; handlers mutate it while the run
// loop reads its snapshot.
type SceneQueue struct {
	mu     sync.Mutex
	scenes []domain.Scene
	frozen bool
}

func New() *SceneQueue {
	return &SceneQueue{}
}

// ScenePatch carries partial scene updates; nil fields are left unchanged.
type ScenePatch struct {
	Prompt           *string
	JSONPrompt       *json.RawMessage
	IsJSONPrompt     *bool
	UsePreviousScene *bool
}

// Add validates and appends a scene, returning the stored copy.
func (q *SceneQueue) Add(scene domain.Scene) (domain.Scene, error) {
	if err := scene.Validate(); err != nil {
		return domain.Scene{}, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.frozen {
		return domain.Scene{}, fmt.Errorf("%w: queue is locked by an active run", domain.ErrState)
	}
	if scene.ID == "" {
		scene.ID = domain.NewScene("", false).ID
	}
	q.scenes = append(q.scenes, scene)
	return scene, nil
}

// Remove deletes the scene with the given id.
func (q *SceneQueue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.frozen {
		return fmt.Errorf("%w: queue is locked by an active run", domain.ErrState)
	}
	idx := q.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: scene %s", domain.ErrNotFound, id)
	}
	q.scenes = append(q.scenes[:idx], q.scenes[idx+1:]...)
	return nil
}

// Update applies a patch to the scene with the given id.
func (q *SceneQueue) Update(id string, patch ScenePatch) (domain.Scene, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.frozen {
		return domain.Scene{}, fmt.Errorf("%w: queue is locked by an active run", domain.ErrState)
	}
	idx := q.indexLocked(id)
	if idx < 0 {
		return domain.Scene{}, fmt.Errorf("%w: scene %s", domain.ErrNotFound, id)
	}
	updated := q.scenes[idx]
	if patch.Prompt != nil {
		updated.Prompt = *patch.Prompt
	}
	if patch.JSONPrompt != nil {
		updated.JSONPrompt = append(json.RawMessage(nil), (*patch.JSONPrompt)...)
	}
	if patch.IsJSONPrompt != nil {
		updated.IsJSONPrompt = *patch.IsJSONPrompt
	}
	if patch.UsePreviousScene != nil {
		updated.UsePreviousScene = *patch.UsePreviousScene
	}
	if err := updated.Validate(); err != nil {
		return domain.Scene{}, err
	}
	q.scenes[idx] = updated
	return updated, nil
}

// Move shifts the scene with the given id by offset positions, clamped to
// the queue bounds.
func (q *SceneQueue) Move(id string, offset int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.frozen {
		return fmt.Errorf("%w: queue is locked by an active run", domain.ErrState)
	}
	idx := q.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: scene %s", domain.ErrNotFound, id)
	}
	target := idx + offset
	if target < 0 {
		target = 0
	}
	if target >= len(q.scenes) {
		target = len(q.scenes) - 1
	}
	scene := q.scenes[idx]
	q.scenes = append(q.scenes[:idx], q.scenes[idx+1:]...)
	q.scenes = append(q.scenes[:target], append([]domain.Scene{scene}, q.scenes[target:]...)...)
	return nil
}

// Import parses raw JSON text and appends the resulting scenes.
func (q *SceneQueue) Import(raw string, mode jsonscene.Mode) ([]domain.Scene, error) {
	specs, err := jsonscene.Parse(raw, mode)
	if err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.frozen {
		return nil, fmt.Errorf("%w: queue is locked by an active run", domain.ErrState)
	}
	added := make([]domain.Scene, 0, len(specs))
	for _, spec := range specs {
		scene := domain.NewScene(spec.Prompt, spec.UsePreviousScene)
		q.scenes = append(q.scenes, scene)
		added = append(added, scene)
	}
	return added, nil
}

// Scenes returns a snapshot copy of the queue in order.
func (q *SceneQueue) Scenes() []domain.Scene {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Scene, len(q.scenes))
	copy(out, q.scenes)
	return out
}

// Len reports the number of scenes.
func (q *SceneQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.scenes)
}

// Freeze blocks structural mutation for the duration of a run.
func (q *SceneQueue) Freeze() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.frozen {
		return fmt.Errorf("%w: queue is already locked by an active run", domain.ErrState)
	}
	q.frozen = true
	return nil
}

// Release lifts the mutation gate after a run terminates.
func (q *SceneQueue) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.frozen = false
}

func (q *SceneQueue) indexLocked(id string) int {
	for i, scene := range q.scenes {
		if scene.ID == id {
			return i
		}
	}
	return -1
}
