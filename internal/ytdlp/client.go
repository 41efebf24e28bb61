package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"ytqueue/internal/config"
	"ytqueue/internal/formats"
	"ytqueue/internal/logging"
	"ytqueue/internal/services"
)

// Request describes one download handed to a worker process.
type Request struct {
	URL             string
	Options         formats.Options
	HomeDir         string
	TempDir         string
	OutputTemplate  string
	ChapterTemplate string
	PlaylistEnd     int
}

// Process is a running worker.
type Process interface {
	// Events yields worker events and is closed once the process has exited
	// and its output is drained.
	Events() <-chan Event
	// Wait blocks until the process exits and returns its failure, if any.
	Wait() error
	// Kill terminates the whole process group.
	Kill() error
	PID() int
}

// Option customizes a Client.
type Option func(*Client)

// WithExtraArgs overrides how pass-through arguments are resolved.
func WithExtraArgs(fn func() ([]string, error)) Option {
	return func(c *Client) {
		if fn != nil {
			c.extraArgs = fn
		}
	}
}

// Client runs the yt-dlp executable for metadata extraction and downloads.
type Client struct {
	binary        string
	socketTimeout int
	extraArgs     func() ([]string, error)
	logger        *slog.Logger
}

// New builds a client from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("ytdlp: config is required")
	}
	binary := strings.TrimSpace(cfg.YTDLPBinary())
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	client := &Client{
		binary:        binary,
		socketTimeout: cfg.YTDLP.SocketTimeout,
		extraArgs:     cfg.YTDLPArgs,
		logger:        logging.NewComponentLogger(logger, "ytdlp"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func (c *Client) baseArgs() ([]string, error) {
	args := []string{"--no-color", "--ignore-no-formats-error"}
	if c.socketTimeout > 0 {
		args = append(args, "--socket-timeout", strconv.Itoa(c.socketTimeout))
	}
	extra, err := c.extraArgs()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "ytdlp", "load options", "", err)
	}
	return append(args, extra...), nil
}

// Extract fetches the flat metadata tree for url without downloading.
func (c *Client) Extract(ctx context.Context, url string) (*Entry, error) {
	base, err := c.baseArgs()
	if err != nil {
		return nil, err
	}
	args := append(base, "-J", "--flat-playlist", "--no-playlist", "--", url)

	c.logger.Debug("extracting metadata", logging.String(logging.FieldURL, url))
	cmd := exec.CommandContext(ctx, c.binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := lastErrorLine(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, services.Wrap(services.ErrExtraction, "ytdlp", "extract", msg, nil)
	}
	if stdout.Len() == 0 {
		return nil, services.Wrap(services.ErrExtraction, "ytdlp", "extract", "yt-dlp returned empty output", nil)
	}
	return ParseEntry(stdout.Bytes())
}

// Version returns the yt-dlp version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, c.binary, "--version").Output() //nolint:gosec
	if err != nil {
		return "", fmt.Errorf("yt-dlp --version: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Launch starts a worker process downloading req.
func (c *Client) Launch(ctx context.Context, req Request) (Process, error) {
	args, err := c.downloadArgs(req)
	if err != nil {
		return nil, err
	}
	return startWorker(ctx, c.binary, args, c.logger.With(logging.String(logging.FieldURL, req.URL)))
}

func (c *Client) downloadArgs(req Request) ([]string, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, services.Wrap(services.ErrValidation, "ytdlp", "launch", "url is required", nil)
	}
	if strings.TrimSpace(req.HomeDir) == "" {
		return nil, services.Wrap(services.ErrValidation, "ytdlp", "launch", "download directory is required", nil)
	}
	args, err := c.baseArgs()
	if err != nil {
		return nil, err
	}
	args = append(args, "-P", "home:"+req.HomeDir)
	if req.TempDir != "" {
		args = append(args, "-P", "temp:"+req.TempDir)
	}
	if req.OutputTemplate != "" {
		args = append(args, "-o", "default:"+req.OutputTemplate)
	}
	if req.ChapterTemplate != "" {
		args = append(args, "-o", "chapter:"+req.ChapterTemplate)
	}
	if req.PlaylistEnd > 0 {
		args = append(args, "--playlist-end", strconv.Itoa(req.PlaylistEnd))
	}
	args = append(args, req.Options.Args()...)

	chapters, subtitles := false, req.Options.WriteSubtitles || req.Options.WriteAutomaticSubs
	for _, pp := range req.Options.Postprocessors {
		if pp.Kind == formats.SplitChapters {
			chapters = true
		}
	}
	args = append(args, reportingArgs(chapters, subtitles)...)
	return append(args, "--", req.URL), nil
}

func lastErrorLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if msg, ok := strings.CutPrefix(line, "ERROR:"); ok {
			return strings.TrimSpace(msg)
		}
	}
	if len(lines) > 0 {
		return strings.TrimSpace(lines[len(lines)-1])
	}
	return ""
}
