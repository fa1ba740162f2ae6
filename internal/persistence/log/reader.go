package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"tenacitos.ai/internal/sim/office"
)

// ListFiles returns <prefix>-*.jsonl.zst files in dir, oldest hour first.
func ListFiles(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// ReadJSONL calls fn for every line of a compressed JSONL file. Returning an
// error from fn stops the scan.
func ReadJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		if err := fn(sc.Bytes()); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), n, err)
		}
	}
	return sc.Err()
}

// ReadFrames decodes every frame file under officeDir/frames in order. fn
// sees the segment header in effect for each frame; it is zero for files
// written without one. It returns the number of files read.
func ReadFrames(officeDir string, fn func(seg Segment, e office.FrameLogEntry) error) (int, error) {
	return readEntries(filepath.Join(officeDir, "frames"), "frames", fn)
}

// ReadEvents is ReadFrames for officeDir/events.
func ReadEvents(officeDir string, fn func(seg Segment, e office.EventLogEntry) error) (int, error) {
	return readEntries(filepath.Join(officeDir, "events"), "events", fn)
}

func readEntries[T any](dir, prefix string, fn func(Segment, T) error) (int, error) {
	files, err := ListFiles(dir, prefix)
	if err != nil {
		return 0, err
	}
	for _, path := range files {
		var seg Segment
		err := ReadJSONL(path, func(line []byte) error {
			var head struct {
				Kind string `json:"kind"`
			}
			if err := json.Unmarshal(line, &head); err != nil {
				return err
			}
			if head.Kind == segmentKind {
				seg = Segment{}
				return json.Unmarshal(line, &seg)
			}
			var e T
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			return fn(seg, e)
		})
		if err != nil {
			return 0, err
		}
	}
	return len(files), nil
}
