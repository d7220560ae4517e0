package monitoring

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/retrohost/retrohost/pkg/config"
	"github.com/retrohost/retrohost/pkg/logger"
)

func TestMetricsHandler(t *testing.T) {
	m := New(config.Monitoring{MetricEnabled: true, URLPrefix: "/rh"}, logger.Nop())
	m.Metrics().Frame(4*time.Millisecond, 12*time.Millisecond)
	m.Metrics().Env("GET_VARIABLE", true)
	m.Metrics().Save("save", nil)
	m.Metrics().Save("load", errors.New("no"))
	m.Metrics().AudioDropped.Add(3)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	body := get(t, srv.URL+"/rh/metrics", http.StatusOK)
	for _, want := range []string{
		"retrohost_frames_total 1",
		"retrohost_frame_seconds_count 1",
		`retrohost_env_calls_total{cmd="GET_VARIABLE",handled="true"} 1`,
		`retrohost_saves_total{op="load",result="error"} 1`,
		"retrohost_audio_dropped_samples_total 3",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("no %q in the metrics", want)
		}
	}
	get(t, srv.URL+"/rh/debug/pprof/", http.StatusNotFound)
}

func TestProfiling(t *testing.T) {
	m := New(config.Monitoring{ProfilingEnabled: true}, logger.Nop())
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	get(t, srv.URL+"/debug/pprof/heap", http.StatusOK)
	get(t, srv.URL+"/metrics", http.StatusNotFound)
}

func TestRunShutdown(t *testing.T) {
	m := New(config.Monitoring{Port: 0, MetricEnabled: true}, logger.Nop())
	m.Run()
	if m.Addr() == "" {
		t.Fatalf("should listen")
	}
	get(t, "http://"+m.Addr()+"/metrics", http.StatusOK)
	if err := m.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestDisabled(t *testing.T) {
	m := New(config.Monitoring{}, logger.Nop())
	m.Run()
	if m.Addr() != "" {
		t.Errorf("disabled server shouldn't listen")
	}
	if err := m.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Frame(time.Millisecond, 0)
	m.Env("x", false)
	m.Save("save", nil)
}

func get(t *testing.T, url string, code int) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %v: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != code {
		t.Errorf("%v: status %v, want %v", url, resp.StatusCode, code)
	}
	return string(b)
}
