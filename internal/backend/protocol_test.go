package backend

import (
	"encoding/json"
	"testing"
)

func TestStatusPhaseNormalization(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Phase
	}{
		{"explicit completed", `{"status":"completed","segments":[]}`, PhaseCompleted},
		{"explicit running", `{"status":"running","progress":40}`, PhaseRunning},
		{"explicit failed", `{"status":"FAILED"}`, PhaseFailed},
		{"upload stage is queued", `{"stage":"Uploading file...","progress":0}`, PhaseQueued},
		{"missing progress is queued", `{"stage":"Uploading file..."}`, PhaseQueued},
		{"progress is running", `{"stage":"Extracting text from PDF...","progress":20}`, PhaseRunning},
		{"error stage is failed", `{"stage":"Error: bad xref","progress":0,"message":"bad xref"}`, PhaseFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp StatusResponse
			if err := json.Unmarshal([]byte(tt.body), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := resp.Phase(); got != tt.want {
				t.Errorf("Phase() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProgressValueClamps(t *testing.T) {
	if got := (StatusResponse{Progress: IntPtr(140)}).ProgressValue(); got != 100 {
		t.Errorf("ProgressValue = %d, want 100", got)
	}
	if got := (StatusResponse{Progress: IntPtr(-3)}).ProgressValue(); got != 0 {
		t.Errorf("ProgressValue = %d, want 0", got)
	}
}

func TestPhaseIsTerminal(t *testing.T) {
	for _, p := range []Phase{PhaseCompleted, PhaseFailed} {
		if !p.IsTerminal() {
			t.Errorf("%s should be terminal", p)
		}
	}
	for _, p := range []Phase{PhaseQueued, PhaseRunning} {
		if p.IsTerminal() {
			t.Errorf("%s should not be terminal", p)
		}
	}
}

func TestStatusOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(StatusResponse{Stage: "Finalizing..."})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	for _, key := range []string{"status", "segments", "progress", "message"} {
		if _, ok := raw[key]; ok {
			t.Errorf("status should omit %s", key)
		}
	}
}
