package jsonscene

import (
	"errors"
	"strings"
	"testing"

	"sceneflow/internal/domain"
)

func TestParseSceneArray(t *testing.T) {
	specs, err := Parse(`[{"prompt":"a cat"},{"prompt":"a dog","usePreviousScene":true}]`, ModeGlobal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(specs))
	}
	if specs[0].Prompt != "a cat" || specs[0].UsePreviousScene {
		t.Errorf("first scene mismatch: %+v", specs[0])
	}
	if specs[1].Prompt != "a dog" || !specs[1].UsePreviousScene {
		t.Errorf("second scene mismatch: %+v", specs[1])
	}
}

func TestParseSingleObject(t *testing.T) {
	specs, err := Parse(`{"prompt":"sunrise over hills","usePreviousScene":true}`, ModeSingle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(specs) != 1 {
		t.Fatalf("expected 1 scene, got %d", len(specs))
	}
	if specs[0].Prompt != "sunrise over hills" || !specs[0].UsePreviousScene {
		t.Errorf("scene mismatch: %+v", specs[0])
	}
}

func TestParseDetailedObjectFlattens(t *testing.T) {
	specs, err := Parse(`{"title":"x","details":{"mood":"calm","setting":"beach"}}`, ModeGlobal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(specs) != 1 {
		t.Fatalf("expected 1 scene, got %d", len(specs))
	}
	if specs[0].Prompt != "x, calm, beach" {
		t.Errorf("flattened prompt = %q, want %q", specs[0].Prompt, "x, calm, beach")
	}
	if specs[0].UsePreviousScene {
		t.Error("flattened scene should not request continuity")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		mode Mode
		want error
	}{
		{name: "empty input", raw: "", mode: ModeGlobal, want: domain.ErrFormat},
		{name: "whitespace only", raw: "  \n ", mode: ModeGlobal, want: domain.ErrFormat},
		{name: "unparsable", raw: "{not json", mode: ModeGlobal, want: domain.ErrFormat},
		{name: "scalar top level", raw: `"hello"`, mode: ModeGlobal, want: domain.ErrFormat},
		{name: "empty object", raw: `{}`, mode: ModeGlobal, want: domain.ErrFormat},
		{name: "empty array", raw: `[]`, mode: ModeGlobal, want: domain.ErrFormat},
		{name: "element missing prompt", raw: `[{"prompt":"ok"},{"name":"no prompt"}]`, mode: ModeGlobal, want: domain.ErrFormat},
		{name: "element prompt not string", raw: `[{"prompt":42}]`, mode: ModeGlobal, want: domain.ErrFormat},
		{name: "single mode with two scenes", raw: `[{"prompt":"a"},{"prompt":"b"}]`, mode: ModeSingle, want: domain.ErrValidation},
		{name: "object with only numbers", raw: `{"count":3,"ratio":1.5}`, mode: ModeGlobal, want: domain.ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw, tt.mode)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseReportsOffendingIndex(t *testing.T) {
	_, err := Parse(`[{"prompt":"ok"},{"prompt":""}]`, ModeGlobal)
	if err == nil || !strings.Contains(err.Error(), "index 1") {
		t.Fatalf("expected error naming index 1, got %v", err)
	}
}

func TestFlattenOrderAndSkipping(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "declaration order preserved",
			raw:  `{"z":"first","a":"second","m":{"q":"third"}}`,
			want: "first, second, third",
		},
		{
			name: "arrays skipped entirely",
			raw:  `{"a":"keep","list":["drop",{"x":"drop too"}],"b":"keep too"}`,
			want: "keep, keep too",
		},
		{
			name: "blank strings dropped",
			raw:  `{"a":"  ","b":"kept"}`,
			want: "kept",
		},
		{
			name: "non-string scalars ignored",
			raw:  `{"n":1,"b":true,"nil":null,"s":"only"}`,
			want: "only",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Flatten([]byte(tt.raw))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Flatten() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseNonBooleanUsePreviousSceneTolerated(t *testing.T) {
	specs, err := Parse(`[{"prompt":"a","usePreviousScene":"yes"}]`, ModeGlobal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if specs[0].UsePreviousScene {
		t.Error("non-boolean usePreviousScene should default to false")
	}
}
