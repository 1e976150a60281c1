package video

import (
	"fmt"
	"strings"

	"sceneflow/internal/domain"
)

// BuildPrompt appends the technical directives block to a free-form prompt.
// Structured JSON prompts are sent verbatim; the model reads the directives
// from the JSON itself in that case.
func BuildPrompt(userPrompt string, d domain.Directives) string {
	instructions := []string{
		fmt.Sprintf("- The video should be rendered in high quality, specifically %s.", d.Resolution),
	}
	if d.EnableSound {
		instructions = append(instructions, "- The video should include appropriate sound effects and ambient audio.")
	} else {
		instructions = append(instructions, "- The video should be silent.")
	}
	switch d.CharacterVoice {
	case domain.VoiceEnglish:
		instructions = append(instructions, "- If there is dialogue, the characters should speak in English.")
	case domain.VoiceIndonesian:
		instructions = append(instructions, "- If there is dialogue, the characters should speak in Bahasa Indonesia.")
	}
	if d.VisualStyle != domain.StyleRealistic {
		instructions = append(instructions, fmt.Sprintf("- The visual style should be %s.", d.VisualStyle))
	}
	return fmt.Sprintf("%s\n\n--- Technical Directives ---\n%s", userPrompt, strings.Join(instructions, "\n"))
}
