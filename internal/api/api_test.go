package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/penplot/pkg/config"
	"github.com/matzehuels/penplot/pkg/firmware"
	"github.com/matzehuels/penplot/pkg/job"
	"github.com/matzehuels/penplot/pkg/method/builtin"
)

// testServer wires a controller to an in-process simulator and serves the
// API over httptest.
func testServer(t *testing.T, sim *firmware.Simulator) (*httptest.Server, *job.Controller) {
	t.Helper()
	if sim.Logger == nil {
		sim.Logger = log.New(io.Discard)
	}
	dialer := func(ctx context.Context) (net.Conn, error) {
		client, server := net.Pipe()
		go sim.ServeConn(server)
		return client, nil
	}
	logger := log.New(io.Discard)
	ctrl := job.NewController(job.Options{
		Registry: builtin.Registry(),
		Dialer:   dialer,
		Firmware: firmware.Options{
			AckTimeout:        time.Second,
			ReconnectAttempts: 1,
			ReconnectDelay:    time.Millisecond,
			Logger:            logger,
		},
		Logger: logger,
	})
	srv := httptest.NewServer(New(ctrl, config.Default(), logger).Router())
	t.Cleanup(srv.Close)
	return srv, ctrl
}

// startBody is a small serpentine drawing, quick to stream.
func startBody() []byte {
	return []byte(`{"method": "lines", "params": {"width": 40, "height": 40, "margin": 5, "spacing": 20}}`)
}

func postJSON(t *testing.T, url string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeJob(t *testing.T, resp *http.Response) jobResponse {
	t.Helper()
	defer resp.Body.Close()
	var j jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&j); err != nil {
		t.Fatalf("decoding job response: %v", err)
	}
	return j
}

func waitTerminal(t *testing.T, ctrl *job.Controller, id string) {
	t.Helper()
	j, ok := ctrl.Get(id)
	if !ok {
		t.Fatalf("job %s not found", id)
	}
	select {
	case <-j.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("job %s did not finish", id)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t, &firmware.Simulator{})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestListMethods(t *testing.T) {
	srv, _ := testServer(t, &firmware.Simulator{})

	resp, err := http.Get(srv.URL + "/methods")
	if err != nil {
		t.Fatalf("GET /methods: %v", err)
	}
	defer resp.Body.Close()

	var methods []methodResponse
	if err := json.NewDecoder(resp.Body).Decode(&methods); err != nil {
		t.Fatalf("decoding methods: %v", err)
	}
	names := map[string]bool{}
	for _, m := range methods {
		names[m.Name] = true
	}
	for _, want := range []string{"lines", "hatch", "stipple", "vector"} {
		if !names[want] {
			t.Errorf("methods list is missing %q", want)
		}
	}
}

func TestStartAndGetJob(t *testing.T) {
	srv, ctrl := testServer(t, &firmware.Simulator{})

	resp := postJSON(t, srv.URL+"/jobs", startBody())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	created := decodeJob(t, resp)
	if created.ID == "" {
		t.Fatal("created job has no id")
	}

	waitTerminal(t, ctrl, created.ID)

	getResp, err := http.Get(srv.URL + "/jobs/" + created.ID)
	if err != nil {
		t.Fatalf("GET job: %v", err)
	}
	got := decodeJob(t, getResp)
	if got.Status != job.StatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.Progress.Acked != got.Progress.Total {
		t.Errorf("acked %d != total %d", got.Progress.Acked, got.Progress.Total)
	}
	if got.Pen.Down {
		t.Error("pen should be up after completion")
	}
}

func TestStartRejectsBadRequests(t *testing.T) {
	srv, _ := testServer(t, &firmware.Simulator{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"method": `, http.StatusBadRequest},
		{"missing method", `{}`, http.StatusBadRequest},
		{"unknown method", `{"method": "etching"}`, http.StatusBadRequest},
		{"out of bounds", `{"method": "lines", "params": {"width": 4000, "height": 4000}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/jobs", []byte(tt.body))
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestSecondJobConflicts(t *testing.T) {
	srv, ctrl := testServer(t, &firmware.Simulator{Window: 1, Delay: 50 * time.Millisecond})

	resp := postJSON(t, srv.URL+"/jobs", startBody())
	created := decodeJob(t, resp)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	second := postJSON(t, srv.URL+"/jobs", startBody())
	defer second.Body.Close()
	if second.StatusCode != http.StatusConflict {
		t.Errorf("second job status = %d, want 409", second.StatusCode)
	}

	cancel := postJSON(t, srv.URL+"/jobs/"+created.ID+"/cancel", nil)
	cancel.Body.Close()
	waitTerminal(t, ctrl, created.ID)
}

func TestPauseResumeCancel(t *testing.T) {
	srv, ctrl := testServer(t, &firmware.Simulator{Window: 1, Delay: 50 * time.Millisecond})

	created := decodeJob(t, postJSON(t, srv.URL+"/jobs", startBody()))

	paused := decodeJob(t, postJSON(t, srv.URL+"/jobs/"+created.ID+"/pause", nil))
	if paused.Status != job.StatusPaused {
		t.Errorf("status after pause = %q, want paused", paused.Status)
	}

	resumed := decodeJob(t, postJSON(t, srv.URL+"/jobs/"+created.ID+"/resume", nil))
	if resumed.Status != job.StatusStreaming {
		t.Errorf("status after resume = %q, want streaming", resumed.Status)
	}

	cancel := postJSON(t, srv.URL+"/jobs/"+created.ID+"/cancel", nil)
	cancel.Body.Close()
	waitTerminal(t, ctrl, created.ID)

	j, _ := ctrl.Get(created.ID)
	if j.Status() != job.StatusCancelled {
		t.Errorf("final status = %q, want cancelled", j.Status())
	}
}

func TestPreviewSVG(t *testing.T) {
	srv, ctrl := testServer(t, &firmware.Simulator{})

	created := decodeJob(t, postJSON(t, srv.URL+"/jobs", startBody()))
	waitTerminal(t, ctrl, created.ID)

	resp, err := http.Get(srv.URL + "/jobs/" + created.ID + "/preview.svg")
	if err != nil {
		t.Fatalf("GET preview: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("content type = %q, want image/svg+xml", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "<svg") {
		t.Error("preview body is not SVG")
	}
}

func TestUnknownJobIs404(t *testing.T) {
	srv, _ := testServer(t, &firmware.Simulator{})

	for _, url := range []string{
		srv.URL + "/jobs/nope",
		srv.URL + "/jobs/nope/preview.svg",
	} {
		resp, err := http.Get(url)
		if err != nil {
			t.Fatalf("GET %s: %v", url, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", url, resp.StatusCode)
		}
	}

	resp := postJSON(t, srv.URL+"/jobs/nope/pause", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("pause status = %d, want 404", resp.StatusCode)
	}
}
