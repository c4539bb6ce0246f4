package filtering

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/zgt/job-scout/internal/jobs"
)

type excludeFileFilter struct {
	path string
}

// NewExcludeFile creates a filter that removes jobs whose link is listed in the file.
// The file holds one link per line; blank lines and lines starting with # are ignored.
func NewExcludeFile(path string) Filter {
	return &excludeFileFilter{path: strings.TrimSpace(path)}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) IsEnabled() bool { return f.path != "" }

func (f *excludeFileFilter) Apply(_ context.Context, items []jobs.RawJob) ([]jobs.RawJob, error) {
	links, err := readLinks(f.path)
	if err != nil {
		return nil, fmt.Errorf("getting excluded links from file: %w", err)
	}

	return keep(items, func(job jobs.RawJob) bool {
		_, excluded := links[job.ApplyURL]
		return excluded && job.ApplyURL != ""
	}), nil
}

func readLinks(path string) (map[string]struct{}, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	links := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		links[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return links, nil
}
