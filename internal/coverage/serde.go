package coverage

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// ErrTruncated reports a coverage file that ended before its declared
// counts were satisfied (spec.md §8 scenario 6: "corrupting the
// coverage DB to truncate mid-trace must be detected").
var ErrTruncated = fmt.Errorf("coverage: truncated file")

// ErrTrailingData reports extra bytes after the declared stream (spec.md
// §6: "a valid file ends exactly at EOF after reading the declared
// count").
var ErrTrailingData = fmt.Errorf("coverage: trailing data after declared stream")

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return 0, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// countingWriter tracks the total bytes written through it, so WriteTo can
// honor the io.WriterTo contract (an accurate count, not a placeholder)
// even though the word-by-word writes below go through a buffered writer.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteTo serializes db in the big-endian word stream of spec.md §6.
func (db *DB) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)
	if err := writeU64(bw, uint64(len(db.levels))); err != nil {
		return cw.n, err
	}
	for _, level := range db.levels {
		if err := writeU64(bw, uint64(len(level))); err != nil {
			return cw.n, err
		}
		for hash, traces := range level {
			if err := writeU64(bw, hash); err != nil {
				return cw.n, err
			}
			if err := writeU64(bw, uint64(len(traces))); err != nil {
				return cw.n, err
			}
			for _, trace := range traces {
				for _, word := range trace {
					if err := writeU64(bw, word); err != nil {
						return cw.n, err
					}
				}
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// ReadDB parses a coverage database from the big-endian word stream of
// spec.md §6, failing on truncation or trailing data rather than
// silently accepting a corrupted file.
func ReadDB(r io.Reader) (*DB, error) {
	numLevels, err := readU64(r)
	if err != nil {
		return nil, err
	}
	db := &DB{levels: make([]map[uint64][]Trace, numLevels)}
	for i := uint64(0); i < numLevels; i++ {
		depth := int(i) + 1
		numHashes, err := readU64(r)
		if err != nil {
			return nil, err
		}
		level := make(map[uint64][]Trace, numHashes)
		for h := uint64(0); h < numHashes; h++ {
			hash, err := readU64(r)
			if err != nil {
				return nil, err
			}
			numTraces, err := readU64(r)
			if err != nil {
				return nil, err
			}
			traces := make([]Trace, 0, numTraces)
			for t := uint64(0); t < numTraces; t++ {
				trace := make(Trace, depth)
				for k := 0; k < depth; k++ {
					word, err := readU64(r)
					if err != nil {
						return nil, err
					}
					trace[k] = word
				}
				traces = append(traces, trace)
			}
			level[hash] = traces
		}
		db.levels[i] = level
	}
	var probe [1]byte
	if n, err := r.Read(probe[:]); n != 0 || err != io.EOF {
		return nil, ErrTrailingData
	}
	return db, nil
}
