// Package image implements the single-shot edit/generate flow: one request
// in, one image out, no chaining. Two mutually exclusive modes are selected
// by the model choice.
package image

import (
	"context"
	"fmt"
	"strings"

	"sceneflow/internal/domain"
)

// Model identifies an image model variant and, with it, the operating mode.
type Model string

const (
	// ModelGeminiFlashImage edits one or more reference images.
	ModelGeminiFlashImage Model = "gemini-2.5-flash-image-preview"
	// ModelImagen generates an image from text only.
	ModelImagen Model = "imagen-4.0-generate-001"
)

// ReferenceImage is an uploaded conditioning image for edit mode.
type ReferenceImage struct {
	Data []byte
	MIME string
}

// EditRequest is a normalized single-shot request.
type EditRequest struct {
	Model       Model
	Prompt      string
	Images      []ReferenceImage
	AspectRatio domain.AspectRatio
	RequestID   string
}

// Result is the produced image plus optional descriptive text.
type Result struct {
	ImageData []byte
	MIME      string
	Text      string
}

// Editor is the contract implemented by image providers.
type Editor interface {
	Edit(ctx context.Context, req EditRequest) (*Result, error)
}

// Validate enforces the per-mode preconditions before any provider call.
func (r EditRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", domain.ErrValidation)
	}
	switch r.Model {
	case ModelGeminiFlashImage:
		if len(r.Images) == 0 {
			return fmt.Errorf("%w: at least one reference image is required for editing", domain.ErrValidation)
		}
	case ModelImagen:
		if len(r.Images) > 0 {
			return fmt.Errorf("%w: reference images are not accepted in generation mode", domain.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unsupported image model %q", domain.ErrValidation, r.Model)
	}
	return nil
}
