package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"sceneflow/internal/domain"
	"sceneflow/internal/providers/image"
)

type editImageRequest struct {
	Model       string              `json:"model"`
	Prompt      string              `json:"prompt"`
	AspectRatio domain.AspectRatio  `json:"aspect_ratio"`
	Images      []referenceImageDTO `json:"images"`
}

type referenceImageDTO struct {
	Data string `json:"data"` // base64
	MIME string `json:"mime"`
}

type editImageResponse struct {
	ImageData string `json:"image_data"` // base64
	MIME      string `json:"mime"`
	Text      string `json:"text,omitempty"`
}

// EditImage runs the single-shot image flow: edit with reference images or
// generate from text, depending on the chosen model.
func (a *App) EditImage(w http.ResponseWriter, r *http.Request) {
	var req editImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	images := make([]image.ReferenceImage, 0, len(req.Images))
	for i, ref := range req.Images {
		data, err := base64.StdEncoding.DecodeString(ref.Data)
		if err != nil {
			a.fail(w, fmt.Errorf("%w: image %d is not valid base64", domain.ErrValidation, i+1))
			return
		}
		images = append(images, image.ReferenceImage{Data: data, MIME: ref.MIME})
	}

	model := image.Model(req.Model)
	if req.Model == "" {
		model = image.ModelGeminiFlashImage
	}

	editReq := image.EditRequest{
		Model:       model,
		Prompt:      req.Prompt,
		Images:      images,
		AspectRatio: req.AspectRatio,
		RequestID:   uuid.NewString(),
	}
	if err := editReq.Validate(); err != nil {
		a.fail(w, err)
		return
	}

	result, err := a.Editor.Edit(r.Context(), editReq)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, editImageResponse{
		ImageData: base64.StdEncoding.EncodeToString(result.ImageData),
		MIME:      result.MIME,
		Text:      result.Text,
	})
}
