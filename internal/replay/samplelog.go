package replay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"imufusion/internal/fusion"
)

// Log format: line-oriented text.
//
// - Blank lines and lines starting with '#' are ignored.
// - Line "START" resets the origin (next record time is relative to 0 again).
// - Data lines are: <t_ns>,<ax>,<ay>,<az>,<gx>,<gy>,<gz>
//   where t_ns is nanoseconds since START and the six values are the raw
//   sample as fed to the filters (accel in g, gyro in deg/s).
//
// Floats are written with the shortest exact representation so a recorded
// session replays bit-for-bit.

const fieldsPerLine = 7

type Record struct {
	At time.Duration
	// Start marks a START line; Sample is unset.
	Start  bool
	Sample fusion.Sample
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	recs := make([]Record, 0, 1024)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{Start: true})
			continue
		}
		rec, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("replay: line %d: %w", lineNo, err)
		}
		recs = append(recs, rec)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func parseLine(line string) (Record, error) {
	parts := strings.Split(line, ",")
	if len(parts) != fieldsPerLine {
		return Record{}, fmt.Errorf("want %d fields, got %d: %q", fieldsPerLine, len(parts), line)
	}
	tsNs, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid timestamp %q: %w", parts[0], err)
	}
	if tsNs < 0 {
		return Record{}, fmt.Errorf("invalid timestamp (negative): %d", tsNs)
	}
	var v [fieldsPerLine - 1]float64
	for i := range v {
		v[i], err = strconv.ParseFloat(strings.TrimSpace(parts[i+1]), 64)
		if err != nil {
			return Record{}, fmt.Errorf("invalid value %q: %w", parts[i+1], err)
		}
	}
	return Record{
		At:     time.Duration(tsNs),
		Sample: fusion.Sample{Ax: v[0], Ay: v[1], Az: v[2], Gx: v[3], Gy: v[4], Gz: v[5]},
	}, nil
}

// Load reads a whole sample log from path.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewReader(f).ReadAll()
}

type Writer struct {
	f      *os.File
	w      *bufio.Writer
	start  time.Time
	buf    []byte
	closed bool
}

func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := bw.WriteString("START\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, start: time.Now(), buf: make([]byte, 0, 160)}, nil
}

func (ww *Writer) WriteSample(now time.Time, s fusion.Sample) error {
	if ww.closed {
		return errors.New("replay writer is closed")
	}
	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	b := strconv.AppendInt(ww.buf[:0], d.Nanoseconds(), 10)
	for _, v := range [...]float64{s.Ax, s.Ay, s.Az, s.Gx, s.Gy, s.Gz} {
		b = append(b, ',')
		b = strconv.AppendFloat(b, v, 'g', -1, 64)
	}
	b = append(b, '\n')
	ww.buf = b
	_, err := ww.w.Write(b)
	return err
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}
