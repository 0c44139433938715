package archive

import (
	"bufio"
	"io"
	"strings"

	"github.com/teranos/kcore-analytics/errors"
)

// reverseBufSize is the chunk size the reverse reader pulls per read,
// matching the original enildaer() generator's 8 MiB default. A var, not a
// const, so tests can shrink it to exercise multi-chunk boundaries.
var reverseBufSize = 8 * 1024 * 1024

// ReverseLineReader yields the lines of a file in reverse order, reading in
// fixed-size chunks from the end. It fixes the original's "finalize" bug
// (Open Question 1): that code path iterated over characters of a line
// rather than the lines themselves when recomputing bounds after a roll;
// this reader always operates line-at-a-time, so any caller that walks it
// (forward or reverse) cannot reproduce that mistake.
type ReverseLineReader struct {
	r       io.ReaderAt
	size    int64
	offset  int64 // distance already consumed from the end
	segment string
	started bool
	pending []string
}

// NewReverseLineReader prepares a reverse reader over r, whose total size is
// size. The caller is responsible for the underlying file's lifetime.
func NewReverseLineReader(r io.ReaderAt, size int64) *ReverseLineReader {
	return &ReverseLineReader{r: r, size: size}
}

// Next returns the next line (most-recent-first), or io.EOF once exhausted.
// A trailing newline at end-of-file never produces a spurious empty final
// line; a file shorter than the chunk size is still read in full.
func (rr *ReverseLineReader) Next() (string, error) {
	for len(rr.pending) == 0 {
		if rr.offset >= rr.size {
			if rr.started && rr.segment != "" {
				line := rr.segment
				rr.segment = ""
				return line, nil
			}
			return "", io.EOF
		}
		if err := rr.fillChunk(); err != nil {
			return "", err
		}
	}
	line := rr.pending[len(rr.pending)-1]
	rr.pending = rr.pending[:len(rr.pending)-1]
	return line, nil
}

func (rr *ReverseLineReader) fillChunk() error {
	remaining := rr.size - rr.offset
	readLen := int64(reverseBufSize)
	if readLen > remaining {
		readLen = remaining
	}
	start := rr.size - rr.offset - readLen

	buf := make([]byte, readLen)
	if _, err := rr.r.ReadAt(buf, start); err != nil && err != io.EOF {
		return errors.Wrap(err, "reverse reader: chunk read failed")
	}
	rr.offset += readLen

	endedOnNewline := len(buf) > 0 && buf[len(buf)-1] == '\n'
	text := string(buf)
	// Drop a single trailing newline so split doesn't manufacture an
	// empty final element for a file that ends cleanly on "\n".
	if endedOnNewline {
		text = text[:len(text)-1]
	}
	lines := strings.Split(text, "\n")

	if !rr.started {
		rr.started = true
	} else if rr.segment != "" {
		if !endedOnNewline {
			// The previous chunk's first line continues this chunk's
			// last line; glue them together.
			lines[len(lines)-1] += rr.segment
		} else {
			rr.pending = append(rr.pending, rr.segment)
		}
	}
	rr.segment = ""
	if len(lines) > 0 {
		rr.segment = lines[0]
		lines = lines[1:]
	}

	for i := 0; i < len(lines); i++ {
		if lines[i] != "" {
			rr.pending = append(rr.pending, lines[i])
		}
	}
	return nil
}

// ReadAllReverse drains rr into a slice, most-recent-first. Intended for
// tests and small files; production callers should use Next directly to
// avoid buffering the whole segment.
func ReadAllReverse(rr *ReverseLineReader) ([]string, error) {
	var out []string
	for {
		line, err := rr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, line)
	}
}

// bufioLines reads a file forward, returning its lines in order. Used by
// the boundary-segment re-parse path in BuildGraph and by VerifyIndex's
// forward scan.
func bufioLines(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			out = append(out, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "forward scan failed")
	}
	return out, nil
}
