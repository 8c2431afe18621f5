package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// maxHelperOutput caps how much stdout is kept from the helper.
const maxHelperOutput = 4 << 20

// CommandExtractor runs an external helper with the target URL as its last
// argument and reads the page text from its stdout.
type CommandExtractor struct {
	command string
	args    []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewCommandExtractor creates an extractor for cfg.Command.
func NewCommandExtractor(cfg *config.ExtractorConfig, logger *slog.Logger) *CommandExtractor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &CommandExtractor{
		command: cfg.Command,
		args:    append([]string(nil), cfg.Args...),
		timeout: timeout,
		logger:  logger.With("component", "command_extractor"),
	}
}

// ExtractBody runs the helper. The process is killed when the timeout
// elapses or ctx is canceled. A non-zero exit or empty output yields a
// *types.HelperError wrapping types.ErrNoBody.
func (e *CommandExtractor) ExtractBody(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := append(append([]string(nil), e.args...), rawURL)
	cmd := exec.CommandContext(ctx, e.command, args...)
	cmd.WaitDelay = time.Second

	var stdout limitedBuffer
	stdout.limit = maxHelperOutput
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", &types.HelperError{
			URL:    rawURL,
			Helper: e.Type(),
			Err:    fmt.Errorf("%w: helper stopped after %s: %w", types.ErrNoBody, elapsed.Round(time.Millisecond), ctxErr),
		}
	}
	if err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		e.logger.Debug("helper failed", "url", rawURL, "exit", code, "stderr", strings.TrimSpace(stderr.String()))
		return "", &types.HelperError{
			URL:      rawURL,
			Helper:   e.Type(),
			ExitCode: code,
			Err:      fmt.Errorf("%w: %v", types.ErrNoBody, err),
		}
	}

	body := strings.TrimSpace(stdout.String())
	if body == "" {
		return "", &types.HelperError{URL: rawURL, Helper: e.Type(), Err: types.ErrNoBody}
	}

	e.logger.Debug("helper extracted body", "url", rawURL, "size", len(body), "duration", elapsed)
	return body, nil
}

// Close is a no-op; each extraction owns its process.
func (e *CommandExtractor) Close() error { return nil }

// Type returns the helper's base name.
func (e *CommandExtractor) Type() string {
	return filepath.Base(e.command)
}

// limitedBuffer keeps at most limit bytes and discards the rest so a noisy
// helper cannot exhaust memory.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
