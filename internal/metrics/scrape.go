package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// ProcessState is what a running instance reports about one process.
type ProcessState struct {
	Name     string
	Running  bool
	Spawns   float64
	Restarts float64
	Backoff  time.Duration
}

// Scrape fetches and parses the /metrics endpoint at url.
func Scrape(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if !strings.Contains(url, "://") {
		url = "http://" + url
	}
	if !strings.HasSuffix(url, "/metrics") {
		url = strings.TrimSuffix(url, "/") + "/metrics"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}
	return ParseText(resp.Body)
}

// ParseText decodes the Prometheus text format into families keyed by name.
func ParseText(r io.Reader) (map[string]*dto.MetricFamily, error) {
	decoder := expfmt.NewDecoder(r, expfmt.NewFormat(expfmt.TypeTextPlain))
	parsed := make(map[string]*dto.MetricFamily)
	for {
		var mf dto.MetricFamily
		if err := decoder.Decode(&mf); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode error: %w", err)
		}
		parsed[mf.GetName()] = &mf
	}
	return parsed, nil
}

// ProcessStates extracts per-process state from scraped families, sorted by
// name.
func ProcessStates(families map[string]*dto.MetricFamily) []ProcessState {
	states := make(map[string]*ProcessState)
	get := func(name string) *ProcessState {
		s, ok := states[name]
		if !ok {
			s = &ProcessState{Name: name}
			states[name] = s
		}
		return s
	}

	each := func(family string, fn func(process string, m *dto.Metric)) {
		mf, ok := families[namespace+"_"+family]
		if !ok {
			return
		}
		for _, m := range mf.GetMetric() {
			if p := label(m, "process"); p != "" {
				fn(p, m)
			}
		}
	}

	each("process_running", func(p string, m *dto.Metric) {
		get(p).Running = m.GetGauge().GetValue() == 1
	})
	each("process_backoff_seconds", func(p string, m *dto.Metric) {
		get(p).Backoff = time.Duration(m.GetGauge().GetValue() * float64(time.Second))
	})
	each("process_spawns_total", func(p string, m *dto.Metric) {
		get(p).Spawns += m.GetCounter().GetValue()
	})
	each("process_restarts_total", func(p string, m *dto.Metric) {
		get(p).Restarts += m.GetCounter().GetValue()
	})

	out := make([]ProcessState, 0, len(states))
	for _, s := range states {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
