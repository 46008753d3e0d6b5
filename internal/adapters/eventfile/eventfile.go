// Package eventfile reads and writes match ledgers as JSON lines and match
// rosters as YAML, the formats used by the command line tools.
//
// An event file starts with one header line holding the match and its
// rules, followed by one event per line in ledger order:
//
//	{"format":"libero/v1","match":{...},"rules":{...}}
//	{"seq":1,"type":"set-start",...}
//	{"seq":2,"type":"point",...}
package eventfile

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/okian/libero/internal/domain/model"
	"github.com/okian/libero/internal/domain/recorder"
	"github.com/okian/libero/internal/domain/scoring"
)

// Format tags the header line.
const Format = "libero/v1"

// Errors returned by the readers.
var (
	ErrMissingHeader = errors.New("missing match header")
	ErrFormat        = errors.New("unsupported event file format")
	ErrMalformed     = errors.New("malformed event line")
)

type header struct {
	Format string        `json:"format"`
	Match  *model.Match  `json:"match"`
	Rules  scoring.Rules `json:"rules"`
}

// File is a decoded event file. The events have not been validated against
// the match; use Ledger for that.
type File struct {
	Match  *model.Match
	Rules  scoring.Rules
	Events []model.Event
}

// Ledger replays the file through the recorder.
func (f *File) Ledger(opts ...recorder.Option) (*recorder.Ledger, error) {
	return recorder.Load(f.Match, f.Rules, f.Events, opts...)
}

// Write encodes the match header and events to w.
func Write(w io.Writer, m *model.Match, rules scoring.Rules, events []model.Event) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	if err := enc.Encode(header{Format: Format, Match: m, Rules: rules}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encode event %d: %w", e.Seq, err)
		}
	}
	return bw.Flush()
}

// WriteLedger writes every event of l.
func WriteLedger(w io.Writer, l *recorder.Ledger) error {
	return Write(w, l.Match(), l.Rules(), l.Events())
}

// Read decodes an event file from r. Blank lines are not allowed between
// records; a trailing newline is.
func Read(r io.Reader) (*File, error) {
	dec := json.NewDecoder(bufio.NewReader(r))

	var h header
	if err := dec.Decode(&h); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingHeader
		}
		return nil, fmt.Errorf("%w: header: %w", ErrMalformed, err)
	}
	if h.Format != Format {
		return nil, fmt.Errorf("%w: %q", ErrFormat, h.Format)
	}
	if h.Match == nil {
		return nil, ErrMissingHeader
	}
	if err := h.Rules.Validate(); err != nil {
		return nil, err
	}

	f := &File{Match: h.Match, Rules: h.Rules}
	dec.DisallowUnknownFields()
	for line := 2; ; line++ {
		var e model.Event
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformed, line, err)
		}
		f.Events = append(f.Events, e)
	}
	return f, nil
}

// ReadFile opens path and reads it with Read.
func ReadFile(path string) (*File, error) {
	fh, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return Read(fh)
}

// WriteFile writes the ledger to path, replacing any existing file.
func WriteFile(path string, l *recorder.Ledger) (err error) {
	fh, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fh.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteLedger(fh, l)
}
