// Package network talks to the simulation server: an HTTP client for the
// polling endpoints and blob downloads, and a websocket channel for the push
// transport.
package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/simview/internal/logger"
	"github.com/Faultbox/simview/internal/scene"
)

// ErrStatus is returned when the server answers with a non-200 status.
var ErrStatus = errors.New("unexpected HTTP status")

// HTTP endpoint paths.
const (
	PathSceneID    = "/scene_id"
	PathSceneData  = "/scene_data"
	PathSceneState = "/scene_state"
	PathData       = "/data/"
)

// Client fetches scene identity, description, state and blobs.
// It is safe for concurrent use.
type Client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

// NewClient creates a client for the server at baseURL. A zero timeout
// disables the per-request deadline.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
		log:  logger.Named("http"),
	}
}

// SceneID returns the current scene identity token.
func (c *Client) SceneID(ctx context.Context) (string, error) {
	body, err := c.get(ctx, PathSceneID)
	if err != nil {
		return "", err
	}
	defer body.Close()

	b, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("reading scene id: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// SceneData fetches and decodes the full scene description.
func (c *Client) SceneData(ctx context.Context) (*scene.Description, error) {
	body, err := c.get(ctx, PathSceneData)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return scene.DecodeDescription(body)
}

// SceneState fetches the latest transform snapshot.
func (c *Client) SceneState(ctx context.Context) (*scene.StateSnapshot, error) {
	body, err := c.get(ctx, PathSceneState)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return scene.DecodeState(body)
}

// FetchBlob downloads the binary blob with the given content hash.
func (c *Client) FetchBlob(ctx context.Context, hash string) ([]byte, error) {
	body, err := c.get(ctx, PathData+url.PathEscape(hash))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	b, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", hash, err)
	}
	c.log.Debug("blob fetched", zap.String("hash", hash), zap.Int("bytes", len(b)))
	return b, nil
}

func (c *Client) get(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", path, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: %s", ErrStatus, path, resp.Status)
	}
	return resp.Body, nil
}
