package video

import (
	"context"
	"fmt"

	"sceneflow/internal/domain"
	"sceneflow/internal/providers/genai"
)

// GeminiGenerator drives Veo models through the genai client.
type GeminiGenerator struct {
	client *genai.Client
}

func NewGeminiGenerator(client *genai.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	prompt := req.Prompt
	if !req.IsJSON {
		prompt = BuildPrompt(req.Prompt, req.Directives)
	}
	videoReq := genai.VideoRequest{
		Model:       string(req.Directives.Model),
		Prompt:      prompt,
		AspectRatio: string(req.Directives.AspectRatio),
		RequestID:   req.RequestID,
	}
	if req.SeedFrame != nil {
		videoReq.SeedImage = &genai.SeedImage{Data: req.SeedFrame.Data, MIME: req.SeedFrame.MIME}
	}
	asset, err := g.client.GenerateVideo(ctx, videoReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrService, err)
	}
	return &Asset{Data: asset.Data, MIME: asset.MIME}, nil
}

var _ Generator = (*GeminiGenerator)(nil)
