package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/adjuface/facegate/internal/config"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoFaceDetected    = errors.New("inference: no face detected")
	ErrServiceUnavailable = errors.New("inference: service unavailable")
	ErrTimeout           = errors.New("inference: request timed out")
)

// SwapRequest carries one source image and the target face selection: either
// a catalog target (path plus its mode) or a user-uploaded custom target path.
// Target files live on storage the inference host shares.
type SwapRequest struct {
	Image      []byte
	TargetPath string
	Mode       string
}

type swapResponse struct {
	Images []string `json:"images"`
}

// FastAPI error body, as served by the swap service.
type errorResponse struct {
	Detail string `json:"detail"`
}

// Service is the client for the external face-swap service. It is stateless;
// every call carries a bounded timeout and transient connection failures are
// retried once before being surfaced.
type Service struct {
	client *http.Client
	url    string
	cfg    config.InferenceConfig
}

func NewService(cfg config.InferenceConfig) *Service {
	return &Service{
		client: &http.Client{},
		url:    cfg.URL,
		cfg:    cfg,
	}
}

// Swap submits a source image and returns the swapped result bytes, or one of
// ErrNoFaceDetected, ErrServiceUnavailable, ErrTimeout.
func (s *Service) Swap(ctx context.Context, req SwapRequest) ([]byte, error) {
	body, contentType, err := encodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("inference: encode request: %w", err)
	}

	result, err := s.do(ctx, body, contentType)
	if errors.Is(err, ErrServiceUnavailable) {
		log.Warn().Err(err).Dur("backoff", s.cfg.RetryBackoff).Msg("Swap service unreachable, retrying once")
		select {
		case <-time.After(s.cfg.RetryBackoff):
		case <-ctx.Done():
			return nil, ErrTimeout
		}
		result, err = s.do(ctx, body, contentType)
	}
	return result, err
}

func (s *Service) do(ctx context.Context, body []byte, contentType string) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("inference: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	return parseResponse(resp)
}

func encodeRequest(req SwapRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("image", "source.png")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Image); err != nil {
		return nil, "", err
	}

	if req.TargetPath != "" {
		if err := w.WriteField("target_path", req.TargetPath); err != nil {
			return nil, "", err
		}
	}
	if req.Mode != "" {
		if err := w.WriteField("mode", req.Mode); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
}

// parseResponse tolerates schema drift in the external service: anything that
// does not match the known success or error shapes is reported explicitly
// instead of being guessed at.
func parseResponse(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrServiceUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var parsed swapResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("inference: unexpected response shape: %v", err)
		}
		if len(parsed.Images) == 0 {
			return nil, fmt.Errorf("inference: response contains no images")
		}
		image, err := base64.StdEncoding.DecodeString(parsed.Images[0])
		if err != nil {
			return nil, fmt.Errorf("inference: decode result image: %v", err)
		}
		return image, nil

	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode)

	default:
		var parsed errorResponse
		if err := json.Unmarshal(data, &parsed); err != nil || parsed.Detail == "" {
			return nil, fmt.Errorf("inference: unexpected error response, status %d", resp.StatusCode)
		}
		if strings.Contains(parsed.Detail, "no_face") || strings.Contains(parsed.Detail, "no face") {
			return nil, ErrNoFaceDetected
		}
		return nil, fmt.Errorf("inference: service rejected request: %s", parsed.Detail)
	}
}
