package logs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	tailChunkSize    = 32 * 1024
	tailPollInterval = 250 * time.Millisecond
	maxLineBytes     = 1024 * 1024
)

// TailOptions selects what Tail reads. A negative Offset returns the last
// Limit lines; otherwise reading resumes at Offset.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
}

// TailResult carries complete lines and the offset to resume from. Reset is
// set when the file shrank below the requested offset and reading restarted at
// the beginning.
type TailResult struct {
	Lines  []string
	Offset int64
	Reset  bool
}

// Tail reads lines from the log file at path. With Follow and a positive Wait
// it polls until new lines arrive, the wait elapses or ctx ends.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}
	wait := max(opts.Wait, 0)

	var result TailResult
	if opts.Offset < 0 {
		lines, end, err := lastLines(path, opts.Limit)
		if err != nil {
			return TailResult{}, err
		}
		result = TailResult{Lines: lines, Offset: end}
	} else {
		result, err = readFrom(path, opts.Offset)
		if err != nil {
			return TailResult{Offset: opts.Offset}, err
		}
	}

	if opts.Follow && wait > 0 && len(result.Lines) == 0 {
		return poll(ctx, path, result, wait)
	}
	return result, nil
}

// lastLines reads backwards from the end of the file in fixed-size chunks
// until it has seen limit complete lines.
func lastLines(path string, limit int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	size := info.Size()
	if limit <= 0 || size == 0 {
		return nil, size, nil
	}

	// A trailing partial line belongs to the next read.
	end, err := lastNewline(file, size)
	if err != nil {
		return nil, 0, err
	}
	if end == 0 {
		return nil, 0, nil
	}

	var buf []byte
	pos := end
	for pos > 0 && bytes.Count(buf, []byte{'\n'}) <= limit {
		n := min(int64(tailChunkSize), pos)
		pos -= n
		chunk := make([]byte, n)
		if _, err := file.ReadAt(chunk, pos); err != nil && !errors.Is(err, io.EOF) {
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		buf = append(chunk, buf...)
	}

	lines := splitLines(buf)
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines, end, nil
}

// lastNewline returns the offset just past the final newline in the file, or 0
// when the file has none.
func lastNewline(file *os.File, size int64) (int64, error) {
	pos := size
	for pos > 0 {
		n := min(int64(tailChunkSize), pos)
		pos -= n
		chunk := make([]byte, n)
		if _, err := file.ReadAt(chunk, pos); err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("read log file: %w", err)
		}
		if idx := bytes.LastIndexByte(chunk, '\n'); idx >= 0 {
			return pos + int64(idx) + 1, nil
		}
	}
	return 0, nil
}

// readFrom returns every complete line after offset. An offset past the end
// of the file means it was truncated or replaced, so reading restarts at 0.
func readFrom(path string, offset int64) (TailResult, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return TailResult{}, fmt.Errorf("stat log file: %w", err)
	}
	result := TailResult{Offset: offset}
	if offset > info.Size() {
		offset = 0
		result.Reset = true
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return result, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	consumed := offset
	for {
		line, err := reader.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			// Partial lines are left for the next call.
			break
		}
		if err != nil {
			return result, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		if len(line) > maxLineBytes {
			line = line[:maxLineBytes]
		}
		result.Lines = append(result.Lines, string(bytes.TrimRight(line, "\r\n")))
	}
	result.Offset = consumed
	return result, nil
}

func poll(ctx context.Context, path string, last TailResult, wait time.Duration) (TailResult, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	ticker := time.NewTicker(tailPollInterval)
	defer ticker.Stop()

	offset := last.Offset
	for {
		select {
		case <-ctx.Done():
			return TailResult{Offset: offset}, ctx.Err()
		case <-timer.C:
			return TailResult{Offset: offset}, nil
		case <-ticker.C:
		}
		result, err := readFrom(path, offset)
		if err != nil {
			return TailResult{Offset: offset}, err
		}
		if len(result.Lines) > 0 || result.Reset {
			return result, nil
		}
		offset = result.Offset
	}
}

func splitLines(buf []byte) []string {
	buf = bytes.TrimSuffix(buf, []byte{'\n'})
	if len(buf) == 0 {
		return nil
	}
	parts := bytes.Split(buf, []byte{'\n'})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, string(bytes.TrimSuffix(part, []byte{'\r'})))
	}
	return out
}
