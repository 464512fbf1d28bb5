// Package report parses the timing samples engines write to stdout. Each
// sample is one line: "<label>_<engine-tag> <milliseconds>".
package report

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Sample is a single reported timing.
type Sample struct {
	Label  string
	Engine string
	Ms     float64
}

// Metric returns the label and engine tag joined as they appear on the wire.
func (s Sample) Metric() string {
	return s.Label + "_" + s.Engine
}

func (s Sample) String() string {
	return s.Metric() + " " + strconv.FormatFloat(s.Ms, 'f', -1, 64)
}

// Parse splits line into a Sample. tags lists the engine tags that may
// appear; the longest matching suffix wins.
func Parse(line string, tags []string) (Sample, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Sample{}, fmt.Errorf("malformed sample %q", line)
	}

	ms, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Sample{}, fmt.Errorf("sample %q: parse time: %w", line, err)
	}

	if ms < 0 {
		return Sample{}, fmt.Errorf("sample %q: negative time", line)
	}

	engine := matchTag(fields[0], tags)
	if engine == "" {
		return Sample{}, fmt.Errorf("sample %q: unknown engine tag", line)
	}

	return Sample{
		Label:  strings.TrimSuffix(fields[0], "_"+engine),
		Engine: engine,
		Ms:     ms,
	}, nil
}

func matchTag(metric string, tags []string) string {
	best := ""
	for _, tag := range tags {
		if len(tag) > len(best) &&
			len(metric) > len(tag)+1 &&
			strings.HasSuffix(metric, "_"+tag) {
			best = tag
		}
	}

	return best
}

// Scan reads every sample from r, skipping blank lines.
func Scan(r io.Reader, tags []string) ([]Sample, error) {
	var samples []Sample

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		s, err := Parse(line, tags)
		if err != nil {
			return nil, err
		}

		samples = append(samples, s)
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}

	return samples, nil
}

// Count returns the number of samples per metric.
func Count(samples []Sample) map[string]int {
	counts := make(map[string]int)
	for _, s := range samples {
		counts[s.Metric()]++
	}

	return counts
}

// Metrics returns the distinct metrics in samples, sorted.
func Metrics(samples []Sample) []string {
	counts := Count(samples)

	metrics := make([]string, 0, len(counts))
	for m := range counts {
		metrics = append(metrics, m)
	}

	sort.Strings(metrics)

	return metrics
}
