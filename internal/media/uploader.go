package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Uploader posts base64-encoded images to the media service, which stores
// them and hands back a stable public URL.
type Uploader struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewUploader(endpoint, token string) *Uploader {
	return &Uploader{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (u *Uploader) Upload(ctx context.Context, dataURL string) (string, error) {
	if !strings.HasPrefix(dataURL, "data:image/") {
		return "", errors.New("not an image data URL")
	}

	body, err := json.Marshal(map[string]string{"image": dataURL})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint+"/upload", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("media service returned %s", resp.Status)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding media response: %w", err)
	}
	if out.URL == "" {
		return "", errors.New("media service returned no url")
	}
	return out.URL, nil
}
