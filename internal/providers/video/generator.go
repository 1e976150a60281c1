// Package video exposes the generation service boundary consumed by the
// orchestrator: one blocking call per scene that resolves to a playable
// video or an error, however long the provider takes internally.
package video

import (
	"context"

	"sceneflow/internal/domain"
)

// SeedFrame is the still image used to chain a scene to its predecessor.
type SeedFrame struct {
	Data []byte
	MIME string
}

// GenerateRequest carries one scene's inputs to the provider.
type GenerateRequest struct {
	Prompt     string
	IsJSON     bool
	SeedFrame  *SeedFrame
	Directives domain.Directives
	RequestID  string
}

// Asset is the provider-neutral generated video.
type Asset struct {
	Data []byte
	MIME string
}

// Generator is implemented by video providers. Generate blocks until the
// underlying job reaches a terminal state; it must respect ctx but imposes
// no deadline of its own.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
}
