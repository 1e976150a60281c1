// Package jsonscene interprets raw JSON pasted by the user into scene
// specifications. Three shapes are recognized: an array of scene objects, a
// single scene object, and an arbitrary nested object without a "prompt"
// key, which is flattened into one synthetic prompt.
package jsonscene

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"sceneflow/internal/domain"
)

// Mode controls how many scenes an import may yield.
type Mode string

const (
	// ModeGlobal appends every imported scene to the queue.
	ModeGlobal Mode = "global"
	// ModeSingle requires the input to describe exactly one scene.
	ModeSingle Mode = "single"
)

// SceneSpec is one imported scene before it is given an identity.
type SceneSpec struct {
	Prompt           string
	UsePreviousScene bool
}

// Parse interprets raw JSON text as scene specs. Empty input, unparsable
// JSON, and shape violations fail with domain.ErrFormat; single mode
// receiving more than one scene fails with domain.ErrValidation.
func Parse(raw string, mode Mode) ([]SceneSpec, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: input is empty", domain.ErrFormat)
	}

	var specs []SceneSpec
	switch trimmed[0] {
	case '[':
		var elements []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &elements); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON: %v", domain.ErrFormat, err)
		}
		for i, element := range elements {
			spec, ok := decodeSimpleScene(element)
			if !ok {
				return nil, fmt.Errorf("%w: element at index %d is not a scene object with a prompt", domain.ErrFormat, i)
			}
			specs = append(specs, spec)
		}
	case '{':
		if !json.Valid([]byte(trimmed)) {
			return nil, fmt.Errorf("%w: invalid JSON", domain.ErrFormat)
		}
		if spec, ok := decodeSimpleScene(json.RawMessage(trimmed)); ok {
			specs = append(specs, spec)
			break
		}
		prompt, err := Flatten([]byte(trimmed))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid JSON: %v", domain.ErrFormat, err)
		}
		if prompt == "" {
			return nil, fmt.Errorf("%w: object contains no usable text", domain.ErrFormat)
		}
		specs = append(specs, SceneSpec{Prompt: prompt})
	default:
		return nil, fmt.Errorf("%w: expected a JSON object or array", domain.ErrFormat)
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no scenes found", domain.ErrFormat)
	}
	if mode == ModeSingle && len(specs) > 1 {
		return nil, fmt.Errorf("%w: expected exactly one scene, got %d", domain.ErrValidation, len(specs))
	}
	return specs, nil
}

// decodeSimpleScene extracts {prompt, usePreviousScene?} from a JSON object.
// It reports false when the value is not an object carrying a non-empty
// string prompt. A non-boolean usePreviousScene is tolerated and treated as
// false.
func decodeSimpleScene(raw json.RawMessage) (SceneSpec, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return SceneSpec{}, false
	}
	promptRaw, ok := fields["prompt"]
	if !ok {
		return SceneSpec{}, false
	}
	var prompt string
	if err := json.Unmarshal(promptRaw, &prompt); err != nil || strings.TrimSpace(prompt) == "" {
		return SceneSpec{}, false
	}
	spec := SceneSpec{Prompt: prompt}
	if prevRaw, ok := fields["usePreviousScene"]; ok {
		var prev bool
		if err := json.Unmarshal(prevRaw, &prev); err == nil {
			spec.UsePreviousScene = prev
		}
	}
	return spec, true
}

// Flatten collects every non-empty string leaf of a JSON object in
// depth-first key-declaration order and joins them with ", ". Arrays and
// non-string scalars contribute nothing. The token stream is walked
// directly because decoding into a map would lose key order.
func Flatten(raw []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var parts []string
	if err := collectValue(dec, &parts); err != nil {
		return "", err
	}
	return strings.Join(parts, ", "), nil
}

func collectValue(dec *json.Decoder, parts *[]string) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			for dec.More() {
				if _, err := dec.Token(); err != nil {
					return err
				}
				if err := collectValue(dec, parts); err != nil {
					return err
				}
			}
			_, err := dec.Token()
			return err
		case '[':
			return skipUntilClose(dec)
		}
	case string:
		if s := strings.TrimSpace(t); s != "" {
			*parts = append(*parts, s)
		}
	}
	return nil
}

func skipUntilClose(dec *json.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '[', '{':
				depth++
			case ']', '}':
				depth--
			}
		}
	}
	return nil
}
