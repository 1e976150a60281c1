package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Scene is one unit of video generation work. A scene carries either a
// free-form text prompt or a structured JSON prompt; IsJSONPrompt selects
// which representation is serialized to the provider.
type Scene struct {
	ID           string
	Prompt       string
	JSONPrompt   json.RawMessage
	IsJSONPrompt bool

	// UsePreviousScene requests that this scene be seeded with the last
	// frame of the immediately preceding scene's video. Inert on the
	// first scene of a queue.
	UsePreviousScene bool
}

// NewScene constructs a scene with a fresh identity.
func NewScene(prompt string, usePrevious bool) Scene {
	return Scene{
		ID:               uuid.NewString(),
		Prompt:           prompt,
		UsePreviousScene: usePrevious,
	}
}

// EffectivePrompt returns the prompt text that is sent to the generation
// service. JSON prompts are compacted and sent verbatim; text prompts are
// trimmed.
func (s Scene) EffectivePrompt() string {
	if s.IsJSONPrompt {
		var buf bytes.Buffer
		if err := json.Compact(&buf, s.JSONPrompt); err != nil {
			return strings.TrimSpace(string(s.JSONPrompt))
		}
		return buf.String()
	}
	return strings.TrimSpace(s.Prompt)
}

// Validate checks that the scene carries usable prompt content.
func (s Scene) Validate() error {
	effective := s.EffectivePrompt()
	if effective == "" {
		return fmt.Errorf("%w: scene prompt is empty", ErrValidation)
	}
	if s.IsJSONPrompt {
		switch effective {
		case "{}", "[]", "null", `""`:
			return fmt.Errorf("%w: structured prompt has no content", ErrValidation)
		}
	}
	return nil
}

// VeoModel identifies a video generation model variant.
type VeoModel string

const (
	ModelVeo3Preview VeoModel = "veo-3.0-generate-preview"
	ModelVeo3        VeoModel = "veo-3.0-generate-001"
	ModelVeo3Fast    VeoModel = "veo-3.0-fast-generate-001"
	ModelVeo2        VeoModel = "veo-2.0-generate-001"
)

// AspectRatio constrains the output frame shape.
type AspectRatio string

const (
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
	AspectSquare    AspectRatio = "1:1"
)

// Resolution selects the rendered output quality.
type Resolution string

const (
	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
)

// CharacterVoice selects the spoken dialogue language, if any.
type CharacterVoice string

const (
	VoiceNone       CharacterVoice = "none"
	VoiceEnglish    CharacterVoice = "english"
	VoiceIndonesian CharacterVoice = "bahasa-indonesia"
)

// VisualStyle steers the overall look of the generated footage.
type VisualStyle string

const (
	StyleRealistic VisualStyle = "Realistic"
	StyleCinematic VisualStyle = "Cinematic"
	StyleAnime     VisualStyle = "Anime"
	StylePixar3D   VisualStyle = "Pixar3D"
	StyleCyberpunk VisualStyle = "Cyberpunk"
	StyleRetro80s  VisualStyle = "Retro 80's"
)

// Directives bundle the render options applied to every scene of a run.
type Directives struct {
	Model          VeoModel       `json:"model"`
	AspectRatio    AspectRatio    `json:"aspect_ratio"`
	Resolution     Resolution     `json:"resolution"`
	CharacterVoice CharacterVoice `json:"character_voice"`
	VisualStyle    VisualStyle    `json:"visual_style"`
	EnableSound    bool           `json:"enable_sound"`
}

// Normalize fills unset directive fields with their defaults.
func (d *Directives) Normalize() {
	if d.Model == "" {
		d.Model = ModelVeo3Preview
	}
	if d.AspectRatio == "" {
		d.AspectRatio = AspectLandscape
	}
	if d.Resolution == "" {
		d.Resolution = Resolution720p
	}
	if d.CharacterVoice == "" {
		d.CharacterVoice = VoiceNone
	}
	if d.VisualStyle == "" {
		d.VisualStyle = StyleRealistic
	}
}
