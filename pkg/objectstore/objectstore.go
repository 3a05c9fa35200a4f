// Package objectstore uploads staged episodes to a storage zone fronted by the CDN.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	mhttp "github.com/kasuboski/animez/pkg/http"
	mio "github.com/kasuboski/animez/pkg/io"
	"github.com/kasuboski/animez/pkg/logger"
	"go.uber.org/zap"
)

//go:generate mockgen -package mocks -destination mocks/objectstore.go github.com/kasuboski/animez/pkg/objectstore Uploader

// maxErrorBody caps how much of a failed response is kept in the returned error
const maxErrorBody = 4096

// Uploader writes a local file to remotePath in the object store
type Uploader interface {
	Upload(ctx context.Context, localPath, remotePath string) error
}

type Config struct {
	Endpoint  string
	Zone      string
	AccessKey string
}

// Client PUTs files to {endpoint}/{zone}/{remotePath}
type Client struct {
	config Config
	http   mhttp.HTTPClient
	fs     mio.FileIO
}

var _ Uploader = (*Client)(nil)

func New(cfg Config, httpClient mhttp.HTTPClient, fs mio.FileIO) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("object store endpoint required")
	}
	if cfg.Zone == "" {
		return nil, errors.New("object store zone required")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid object store endpoint: %w", err)
	}

	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	cfg.Zone = strings.Trim(cfg.Zone, "/")

	return &Client{
		config: cfg,
		http:   httpClient,
		fs:     fs,
	}, nil
}

// ObjectURL is the upload target for remotePath
func (c *Client) ObjectURL(remotePath string) string {
	return c.config.Endpoint + "/" + c.config.Zone + "/" + strings.TrimLeft(remotePath, "/")
}

// Upload streams localPath to the store. The body can be replayed when the store throttles.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string) error {
	log := logger.FromCtx(ctx)

	info, err := c.fs.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat upload: %w", err)
	}

	f, err := c.fs.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}

	target := c.ObjectURL(remotePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, f)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.ContentLength = info.Size()
	req.GetBody = func() (io.ReadCloser, error) {
		return c.fs.Open(localPath)
	}
	req.Header.Set("AccessKey", c.config.AccessKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	start := time.Now()
	log.Debugw("uploading episode", zap.String("remote_path", remotePath), zap.String("size", humanize.Bytes(uint64(info.Size()))))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", remotePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("upload %s: unexpected status %d: %s", remotePath, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	elapsed := time.Since(start)
	log.Infow("uploaded episode",
		zap.String("remote_path", remotePath),
		zap.String("size", humanize.Bytes(uint64(info.Size()))),
		zap.Duration("elapsed", elapsed),
		zap.String("rate", rate(info.Size(), elapsed)),
	)

	return nil
}

func rate(size int64, elapsed time.Duration) string {
	if elapsed <= 0 {
		return "n/a"
	}
	return humanize.Bytes(uint64(float64(size)/elapsed.Seconds())) + "/s"
}
