package poller

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/approachability-meter/internal/detector"
)

var frameTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// DirFrameSource serves the images in a directory in name order, wrapping
// around at the end. The directory is re-read on every capture so frames
// dropped in while running are picked up. An empty directory yields no frame.
type DirFrameSource struct {
	dir string

	mu   sync.Mutex
	next int
}

func NewDirFrameSource(dir string) *DirFrameSource {
	return &DirFrameSource{dir: dir}
}

func (s *DirFrameSource) Capture(ctx context.Context) (detector.Frame, bool, error) {
	if err := ctx.Err(); err != nil {
		return detector.Frame{}, false, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return detector.Frame{}, false, fmt.Errorf("reading frame directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := frameTypes[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return detector.Frame{}, false, nil
	}

	s.mu.Lock()
	name := names[s.next%len(names)]
	s.next++
	s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return detector.Frame{}, false, fmt.Errorf("reading frame %s: %w", name, err)
	}

	return detector.Frame{
		Data:     data,
		MIMEType: frameTypes[strings.ToLower(filepath.Ext(name))],
		Name:     name,
	}, true, nil
}
