// Package generate wraps a streaming text-generation API (Ollama-compatible
// /api/generate) and folds its newline-delimited JSON stream into a single
// block of generated text.
package generate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ResponseField is the fragment field whose values are concatenated.
const ResponseField = "response"

const (
	// readChunkSize bounds a single raw read from the stream.
	readChunkSize = 32 * 1024

	// decodeBufferSize is the scratch space for one decoder pass.
	decodeBufferSize = 4 * 1024
)

// SplitMode controls how chunk boundaries interact with line boundaries.
type SplitMode int

const (
	// SplitBuffered carries an unterminated trailing line over to the next
	// chunk and only parses complete lines (plus the tail at end of stream).
	SplitBuffered SplitMode = iota

	// SplitPerChunk splits every chunk on its own. A line that spans two
	// chunks is parsed as two independent, usually malformed, lines.
	SplitPerChunk
)

func (m SplitMode) String() string {
	switch m {
	case SplitBuffered:
		return "buffered"
	case SplitPerChunk:
		return "per-chunk"
	default:
		return fmt.Sprintf("SplitMode(%d)", int(m))
	}
}

// Result is the outcome of consuming one generation stream.
type Result struct {
	// Text is the concatenation of every fragment's field value, trimmed.
	Text string `json:"text"`

	// Lines is the number of non-empty lines seen.
	Lines int `json:"lines"`

	// Skipped is the number of non-empty lines that were not valid JSON.
	Skipped int `json:"skipped"`
}

// Accumulator folds decoded stream chunks into a single string. Each call to
// Write is treated as one chunk. An Accumulator is owned by a single stream
// and is not safe for concurrent use.
type Accumulator struct {
	field  string
	mode   SplitMode
	logger *zap.Logger

	text    strings.Builder
	partial []byte
	lines   int
	skipped int
}

// NewAccumulator creates an Accumulator collecting the given field.
// A nil logger discards skipped-line diagnostics.
func NewAccumulator(field string, mode SplitMode, logger *zap.Logger) *Accumulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accumulator{
		field:  field,
		mode:   mode,
		logger: logger,
	}
}

// Write consumes one chunk of decoded text. It never fails.
func (a *Accumulator) Write(chunk []byte) (int, error) {
	if a.mode == SplitPerChunk {
		for _, line := range bytes.Split(chunk, []byte{'\n'}) {
			a.consumeLine(line)
		}
		return len(chunk), nil
	}

	a.partial = append(a.partial, chunk...)
	rest := a.partial
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		a.consumeLine(rest[:i])
		rest = rest[i+1:]
	}
	a.partial = append(a.partial[:0], rest...)

	return len(chunk), nil
}

// Result flushes any buffered tail and returns the accumulated result.
func (a *Accumulator) Result() Result {
	if len(a.partial) > 0 {
		a.consumeLine(a.partial)
		a.partial = a.partial[:0]
	}

	return Result{
		Text:    strings.TrimSpace(a.text.String()),
		Lines:   a.lines,
		Skipped: a.skipped,
	}
}

func (a *Accumulator) consumeLine(raw []byte) {
	line := bytes.TrimSpace(raw)
	if len(line) == 0 {
		return
	}
	a.lines++

	if !gjson.ValidBytes(line) {
		a.skipped++
		a.logger.Debug("skipping malformed stream line",
			zap.String("line", truncate(string(line), 80)),
			zap.Stringer("mode", a.mode),
		)
		return
	}

	value, ok := lastField(line, a.field)
	if !ok {
		return
	}
	a.text.WriteString(value.String())
}

// lastField returns the value of the last top-level key named field, so a
// repeated key behaves like a regular JSON decode.
func lastField(line []byte, field string) (gjson.Result, bool) {
	var (
		found gjson.Result
		ok    bool
	)
	root := gjson.ParseBytes(line)
	if !root.IsObject() {
		return found, false
	}
	root.ForEach(func(key, value gjson.Result) bool {
		if key.String() == field {
			found, ok = value, true
		}
		return true
	})
	return found, ok
}

// Accumulate decodes r as UTF-8 and folds it into a Result collecting
// ResponseField. Every Read from r is handed to the accumulator as one chunk;
// a multi-byte sequence split across reads is held back until complete. A nil
// reader yields an empty Result.
func Accumulate(ctx context.Context, r io.Reader, mode SplitMode, logger *zap.Logger) (Result, error) {
	acc := NewAccumulator(ResponseField, mode, logger)
	if r == nil {
		return acc.Result(), nil
	}

	dec := newChunkDecoder()
	buf := make([]byte, readChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		n, err := r.Read(buf)
		atEOF := errors.Is(err, io.EOF)
		if err != nil && !atEOF {
			return Result{}, fmt.Errorf("reading stream: %w", err)
		}

		if n > 0 || atEOF {
			text, err := dec.decode(buf[:n], atEOF)
			if err != nil {
				return Result{}, fmt.Errorf("decoding stream: %w", err)
			}
			if len(text) > 0 {
				acc.Write(text)
			}
		}
		if atEOF {
			break
		}
	}

	return acc.Result(), nil
}

// chunkDecoder runs raw reads through one stateful UTF-8 decoder, carrying an
// incomplete trailing sequence over to the next read.
type chunkDecoder struct {
	t       transform.Transformer
	pending []byte
	scratch []byte
	out     []byte
}

func newChunkDecoder() *chunkDecoder {
	return &chunkDecoder{
		t:       unicode.UTF8.NewDecoder(),
		scratch: make([]byte, decodeBufferSize),
	}
}

// decode returns the text decoded from src. The returned slice is reused by
// the next call.
func (d *chunkDecoder) decode(src []byte, atEOF bool) ([]byte, error) {
	if len(d.pending) > 0 {
		src = append(d.pending, src...)
		d.pending = nil
	}

	d.out = d.out[:0]
	for {
		nDst, nSrc, err := d.t.Transform(d.scratch, src, atEOF)
		d.out = append(d.out, d.scratch[:nDst]...)
		src = src[nSrc:]

		switch {
		case errors.Is(err, transform.ErrShortDst):
			continue
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = bytes.Clone(src)
			return d.out, nil
		case err != nil:
			return nil, err
		default:
			return d.out, nil
		}
	}
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
