// Package recognizer wraps the OpenALPR engine, either behind its HTTP wrapper or
// as a local CLI, and returns the engine's raw text output.
package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var ErrUnavailable = errors.New("recognizer unavailable")

type Recognizer interface {
	Recognize(ctx context.Context, image []byte, filename string) (string, error)
}

type recognizeResponse struct {
	Output string `json:"output"`
}

// HTTPRecognizer posts images as multipart field "file" and expects
// {"output": "..."} back.
type HTTPRecognizer struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

func NewHTTPRecognizer(url string, timeout time.Duration, log zerolog.Logger) *HTTPRecognizer {
	return &HTTPRecognizer{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

func (r *HTTPRecognizer) Recognize(ctx context.Context, image []byte, filename string) (string, error) {
	if filename == "" {
		filename = "frame.jpg"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, &body)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	r.log.Debug().Int("status", resp.StatusCode).Str("url", r.url).Msg("recognizer responded")
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: invalid response: %v", ErrUnavailable, err)
	}
	return out.Output, nil
}

// ExecRecognizer runs the alpr binary against a temporary copy of the image.
type ExecRecognizer struct {
	binary  string
	country string
	log     zerolog.Logger
}

func NewExecRecognizer(binary, country string, log zerolog.Logger) *ExecRecognizer {
	if binary == "" {
		binary = "alpr"
	}
	if country == "" {
		country = "eu"
	}
	return &ExecRecognizer{binary: binary, country: country, log: log}
}

func (r *ExecRecognizer) Recognize(ctx context.Context, image []byte, filename string) (string, error) {
	tmp, err := os.CreateTemp("", "anpr-*"+filepath.Ext(filename))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	_, err = io.Copy(tmp, bytes.NewReader(image))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary, "-c", r.country, path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		r.log.Error().
			Err(err).
			Str("binary", r.binary).
			Str("stderr", strings.TrimSpace(stderr.String())).
			Msg("alpr failed")
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
