// Package fetch downloads episode media from a source page with an external tool.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/kasuboski/animez/pkg/logger"
	"go.uber.org/zap"
)

//go:generate mockgen -package mocks -destination mocks/fetch.go github.com/kasuboski/animez/pkg/fetch Fetcher,Executor

const (
	DefaultBinary  = "yt-dlp"
	DefaultRetries = 3
)

// Fetcher downloads the media behind sourceURL into outputPath
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL, outputPath string) error
}

// Executor abstracts command execution for testability.
// A non-zero exit is reported as a *ToolError.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithRetries sets the retry counts passed to the tool for whole requests and fragments
func WithRetries(retries int) Option {
	return func(c *Client) {
		c.retries = retries
	}
}

// WithTimeout bounds a single fetch. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// Client wraps yt-dlp compatible CLI invocations
type Client struct {
	binary  string
	retries int
	timeout time.Duration
	exec    Executor
}

var _ Fetcher = (*Client)(nil)

func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("fetch binary required")
	}

	c := &Client{
		binary:  binary,
		retries: DefaultRetries,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch runs the tool and requires outputPath to exist afterwards
func (c *Client) Fetch(ctx context.Context, sourceURL, outputPath string) error {
	if sourceURL == "" {
		return errors.New("source url required")
	}
	if outputPath == "" {
		return errors.New("output path required")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	log := logger.FromCtx(ctx)
	err := c.exec.Run(ctx, c.binary, c.args(sourceURL, outputPath), func(line string) {
		log.Debugw("fetch output", zap.String("line", line))
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("fetch %s: %w", sourceURL, multierror.Append(err, ctxErr))
		}
		return fmt.Errorf("fetch %s: %w", sourceURL, err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("fetch produced no output file: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("fetch produced an empty output file %s", outputPath)
	}

	return nil
}

func (c *Client) args(sourceURL, outputPath string) []string {
	retries := strconv.Itoa(c.retries)
	return []string{
		"-f", "bestvideo+bestaudio/best",
		"--merge-output-format", "mp4",
		"--retries", retries,
		"--fragment-retries", retries,
		"--no-part",
		"--no-playlist",
		"-o", outputPath,
		sourceURL,
	}
}
