package source

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"musicdw/pkg/records"
)

// maxLineBytes bounds a single NDJSON line. Event lines in the wild run a few
// hundred bytes; 1 MiB leaves generous headroom without letting a corrupt
// file exhaust memory.
const maxLineBytes = 1 << 20

// DecodeObject decodes a single JSON object from r into a Record. Trailing
// content after the first object is ignored, which tolerates catalog files
// that end with a newline or carry NDJSON with a single row.
func DecodeObject(r io.Reader) (records.Record, error) {
	dec := json.NewDecoder(r)
	var rec records.Record
	if err := dec.Decode(&rec); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty input")
		}
		return nil, err
	}
	return rec, nil
}

// DecodeLines decodes newline-delimited JSON objects from r, invoking emit
// for each. Blank lines are skipped. A line that fails to decode is passed to
// onErr (1-based line number) and skipped; the scan continues. A non-nil
// error from emit or the underlying scanner aborts and is returned.
func DecodeLines(r io.Reader, emit func(records.Record) error, onErr func(line int, err error)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec records.Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			if onErr != nil {
				onErr(line, err)
			}
			continue
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
	return scanner.Err()
}
