package services

import (
	"bytes"
	"strings"
)

// FrameDecoder splits a byte stream into newline-delimited records. A record
// may arrive split across any number of Feed calls, and one chunk may carry
// many records. Blank records are dropped. Not safe for concurrent use.
//
// With a limit set, a line longer than limit bytes is discarded whole and
// counted in Dropped, whether it arrived in one chunk or many. The zero value
// has no limit.
type FrameDecoder struct {
	pending    []byte
	limit      int
	discarding bool
	dropped    int
}

// NewFrameDecoder returns a decoder that never buffers more than limit bytes
// of an unterminated line
func NewFrameDecoder(limit int) *FrameDecoder {
	return &FrameDecoder{limit: limit}
}

// Feed appends chunk and returns every record it completed
func (d *FrameDecoder) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	d.pending = append(d.pending, chunk...)

	var records []string
	for {
		idx := bytes.IndexByte(d.pending, '\n')
		if idx < 0 {
			break
		}
		line := d.pending[:idx]
		d.pending = d.pending[idx+1:]

		if d.discarding {
			// Tail of a line already counted as dropped
			d.discarding = false
			continue
		}
		if d.limit > 0 && len(line) > d.limit {
			d.dropped++
			continue
		}
		if record := strings.TrimSpace(string(line)); record != "" {
			records = append(records, record)
		}
	}

	if d.limit > 0 && len(d.pending) > d.limit {
		if !d.discarding {
			d.dropped++
		}
		d.discarding = true
		d.pending = nil
	}

	// Reclaim the consumed prefix so a long stream doesn't pin its history.
	if len(d.pending) == 0 {
		d.pending = nil
	} else if cap(d.pending) > 4*len(d.pending) && cap(d.pending) > 64*1024 {
		d.pending = append([]byte(nil), d.pending...)
	}
	return records
}

// Flush returns the trailing unterminated fragment, if any, exactly once
func (d *FrameDecoder) Flush() (string, bool) {
	rest := strings.TrimSpace(string(d.pending))
	d.pending = nil
	if d.discarding {
		d.discarding = false
		return "", false
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}

// Buffered reports how many bytes are waiting for a newline
func (d *FrameDecoder) Buffered() int {
	return len(d.pending)
}

// Dropped reports how many over-long lines were discarded
func (d *FrameDecoder) Dropped() int {
	return d.dropped
}
