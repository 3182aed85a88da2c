// Package logfile writes the tab-separated experiment data log.
//
// The file is truncated on open and starts with a header line. Sample lines
// follow the header columns; message lines start with MSG. Every write is
// synced to disk before the call returns.
package logfile

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/okian/gazetrack/internal/domain/model"
)

// Header lists the sample columns in order.
var Header = []string{
	"timestamp", "time", "fix", "state",
	"rawx", "rawy", "avgx", "avgy", "psize",
	"Lrawx", "Lrawy", "Lavgx", "Lavgy", "Lpsize", "Lpupilx", "Lpupily",
	"Rrawx", "Rrawy", "Ravgx", "Ravgy", "Rpsize", "Rpupilx", "Rpupily",
}

const msgPrefix = "MSG"

// File is an open data log. It is safe for concurrent use; its lock is
// separate from any sample state.
type File struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	w      *csv.Writer
	closed bool
}

// Open creates or truncates path and writes the header.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	w.Comma = '\t'

	lf := &File{path: path, f: f, w: w}
	if err := lf.write(Header); err != nil {
		_ = f.Close()
		return nil, err
	}
	return lf, nil
}

// Path returns the file path.
func (l *File) Path() string { return l.path }

// WriteSample appends one sample line.
func (l *File) WriteSample(s model.Sample) error {
	row := make([]string, 0, len(Header))
	row = append(row, s.Timestamp, strconv.FormatInt(s.Time, 10), strconv.FormatBool(s.Fix), strconv.Itoa(s.State))
	row = appendPos(row, s.Raw, s.Avg)
	row = append(row, num(s.PupilSize))
	row = appendEye(row, s.Left)
	row = appendEye(row, s.Right)
	return l.write(row)
}

// WriteMessage appends a MSG line stamped with the device timestamp and the
// experiment time.
func (l *File) WriteMessage(timestamp string, t int64, msg string) error {
	return l.write([]string{msgPrefix, timestamp, strconv.FormatInt(t, 10), msg})
}

// WriteVar logs a named value as the message "var name value".
func (l *File) WriteVar(timestamp string, t int64, name string, value any) error {
	return l.WriteMessage(timestamp, t, fmt.Sprintf("var %s %v", name, value))
}

// Close flushes and closes the file. Further writes return ErrClosed.
func (l *File) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		_ = l.f.Close()
		return fmt.Errorf("flush log: %w", err)
	}
	return l.f.Close()
}

func (l *File) write(row []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if err := l.w.Write(row); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync log: %w", err)
	}
	return nil
}

func appendEye(row []string, e model.Eye) []string {
	row = appendPos(row, e.Raw, e.Avg)
	row = append(row, num(e.PupilSize))
	return appendPos(row, e.PupilCenter)
}

func appendPos(row []string, ps ...model.Position) []string {
	for _, p := range ps {
		row = append(row, num(p.X), num(p.Y))
	}
	return row
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
