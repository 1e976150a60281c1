package image

import (
	"context"
	"fmt"

	"sceneflow/internal/domain"
	"sceneflow/internal/providers/genai"
)

// GeminiEditor routes edit requests to the matching Gemini endpoint.
type GeminiEditor struct {
	client *genai.Client
}

func NewGeminiEditor(client *genai.Client) *GeminiEditor {
	return &GeminiEditor{client: client}
}

func (e *GeminiEditor) Edit(ctx context.Context, req EditRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	switch req.Model {
	case ModelGeminiFlashImage:
		parts := make([]genai.ImagePart, len(req.Images))
		for i, img := range req.Images {
			parts[i] = genai.ImagePart{Data: img.Data, MIME: img.MIME}
		}
		result, err := e.client.EditImage(ctx, genai.EditRequest{
			Model:  string(req.Model),
			Prompt: req.Prompt,
			Images: parts,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrService, err)
		}
		return &Result{ImageData: result.ImageData, MIME: result.MIME, Text: result.Text}, nil
	case ModelImagen:
		result, err := e.client.GenerateImage(ctx, genai.ImagenRequest{
			Model:       string(req.Model),
			Prompt:      req.Prompt,
			AspectRatio: string(req.AspectRatio),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrService, err)
		}
		return &Result{ImageData: result.ImageData, MIME: result.MIME}, nil
	}
	return nil, fmt.Errorf("%w: unsupported image model %q", domain.ErrValidation, req.Model)
}

var _ Editor = (*GeminiEditor)(nil)
