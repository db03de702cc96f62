package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"misterwhisper/log"
)

const warmTimeout = 5 * time.Second

// Remote calls a whisper.cpp server. Decoding parameters are fixed.
type Remote struct {
	client   *tracedClient
	apiURL   string
	language string

	// OnMetrics, if set, receives the network timings of every request.
	OnMetrics func(*NetworkMetrics)
}

// NewRemote appends /inference when rawURL has no path.
func NewRemote(rawURL, language string) (*Remote, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote url %q", rawURL)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/inference"
	}
	return &Remote{
		client:   newTracedClient(),
		apiURL:   u.String(),
		language: language,
	}, nil
}

func (r *Remote) Name() string { return "remote" }

func (r *Remote) URL() string { return r.apiURL }

// Warm pre-connects to the server in the background and logs whether it
// answered.
func (r *Remote) Warm(ctx context.Context) {
	go func() {
		ctx, cancel := context.WithTimeout(ctx, warmTimeout)
		defer cancel()
		d, err := r.client.warm(ctx, r.apiURL)
		if err != nil {
			log.Warnf("remote engine %s not reachable: %v", r.apiURL, err)
			return
		}
		log.Infof("remote engine %s reachable in %s", r.apiURL, d.Round(time.Millisecond))
	}()
}

type remoteResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

func (r *Remote) Transcribe(ctx context.Context, wavPath string) (string, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("reading %s: %w", wavPath, err)
	}
	writer.WriteField("temperature", "0.0")
	writer.WriteField("temperature_inc", "0.01")
	writer.WriteField("response_format", "json")
	if r.language != "" {
		writer.WriteField("language", r.language)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.apiURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.do(req)
	if err != nil {
		return "", fmt.Errorf("remote transcription: %w", err)
	}
	if r.OnMetrics != nil {
		r.OnMetrics(resp.metrics)
	}
	if resp.status < 200 || resp.status > 299 {
		return "", fmt.Errorf("remote API error %d: %s", resp.status, strings.TrimSpace(string(resp.body)))
	}

	var rr remoteResponse
	if err := json.Unmarshal(resp.body, &rr); err != nil {
		return "", fmt.Errorf("remote response parse error: %w", err)
	}
	if rr.Error != "" {
		return "", fmt.Errorf("remote engine error: %s", rr.Error)
	}
	return rr.Text, nil
}
