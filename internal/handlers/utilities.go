package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/adjuface/facegate/internal/account"
	"github.com/adjuface/facegate/internal/config"
	"github.com/adjuface/facegate/internal/infrastructure/inference"
	"github.com/adjuface/facegate/internal/services/swap"
	"github.com/google/uuid"
)

const maxImageBytes = 10 << 20

// outcome is the user-facing classification of an orchestration error.
type outcome struct {
	Status  int
	Code    string
	Message string
}

// classifySwapError maps the orchestrator's error taxonomy onto one
// user-facing outcome. Anything unknown is a generic failure.
func classifySwapError(err error) outcome {
	switch {
	case errors.Is(err, account.ErrQuotaExceeded):
		return outcome{http.StatusPaymentRequired, "quota_exceeded",
			"You are out of swaps. Upgrade to premium to continue."}
	case errors.Is(err, account.ErrRequestInProgress):
		return outcome{http.StatusTooManyRequests, "request_in_progress",
			"Your previous photo is still processing. Hold on."}
	case errors.Is(err, swap.ErrNoCategorySelected):
		return outcome{http.StatusBadRequest, "no_category_selected",
			"Pick a target category first."}
	case errors.Is(err, inference.ErrNoFaceDetected):
		return outcome{http.StatusUnprocessableEntity, "no_face_detected",
			"Could not find a face on that photo. You were not charged."}
	case errors.Is(err, inference.ErrTimeout):
		return outcome{http.StatusGatewayTimeout, "inference_timeout",
			"The swap took too long. Try again later, you were not charged."}
	case errors.Is(err, inference.ErrServiceUnavailable):
		return outcome{http.StatusServiceUnavailable, "inference_unavailable",
			"The swap service is unavailable. Try again later, you were not charged."}
	case errors.Is(err, swap.ErrResultDiscarded):
		return outcome{http.StatusConflict, "result_discarded",
			"The request was superseded before the result could be delivered."}
	default:
		return outcome{http.StatusInternalServerError, "internal_error",
			"Something went wrong. Try again later."}
	}
}

// readImage accepts either a multipart form with an "image" part or a raw
// image body.
func readImage(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, fmt.Errorf("missing image part: %w", err)
		}
		defer file.Close()
		return io.ReadAll(io.LimitReader(file, maxImageBytes))
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxImageBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty request body")
	}
	return data, nil
}

// saveTargetUpload persists a premium user's custom target image under the
// upload directory and returns its path.
func saveTargetUpload(userID string, data []byte) (string, error) {
	dir := config.GetTargetUploadDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("target_%s_%s.png", userID, uuid.New().String()[:8]))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write target upload: %w", err)
	}
	return path, nil
}
