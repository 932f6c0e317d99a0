package service

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"PENDING", StatusPending, false},
		{"pending", StatusPending, false},
		{" in-progress ", StatusInProgress, false},
		{"in progress", StatusInProgress, false},
		{"Completed", StatusCompleted, false},
		{"done", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", `"2024-05-01T10:30:00Z"`, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)},
		{"local date-time", `"2024-05-01T10:30:00"`, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)},
		{"fractional", `"2024-05-01T10:30:00.123456"`, time.Date(2024, 5, 1, 10, 30, 0, 123456000, time.UTC)},
		{"date only", `"2024-05-01"`, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"offset without colon", `"2025-01-02T10:00:00+0100"`, time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)},
		{"jackson array", `[2025,1,2,10,0,0]`, time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)},
		{"jackson array with nanos", `[2025,1,2,10,0,0,5000]`, time.Date(2025, 1, 2, 10, 0, 0, 5000, time.UTC)},
		{"jackson date", `[2025,1,2]`, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"epoch millis", `1735812000000`, time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)},
		{"null", `null`, time.Time{}},
		{"empty", `""`, time.Time{}},
		{"unknown format", `"yesterday"`, time.Time{}},
		{"short array", `[2025]`, time.Time{}},
		{"object", `{"seconds":1}`, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			if err := json.Unmarshal([]byte(tt.in), &ts); err != nil {
				t.Fatalf("unmarshal %s: %v", tt.in, err)
			}
			if !ts.Equal(tt.want) {
				t.Errorf("got %v, want %v", ts.Time, tt.want)
			}
		})
	}
}

// TestTimestamp_UnknownFormatKeepsTask checks an odd createdAt does not fail
// the whole task.
func TestTimestamp_UnknownFormatKeepsTask(t *testing.T) {
	var task Task
	if err := json.Unmarshal([]byte(`{"id":7,"title":"X","createdAt":"last week"}`), &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if task.ID != 7 || task.Title != "X" || !task.CreatedAt.IsZero() {
		t.Errorf("unexpected task: %+v", task)
	}
}

func TestTask_DecodesBackendPayload(t *testing.T) {
	body := `{"id":7,"title":"X","description":"d","status":"PENDING","createdAt":"2024-05-01T10:30:00","assignedUserId":2,"assignedUserName":"Ann"}`

	var task Task
	if err := json.Unmarshal([]byte(body), &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if task.ID != 7 || task.Title != "X" || task.Status != StatusPending {
		t.Errorf("unexpected task: %+v", task)
	}
	if task.AssignedUserID != 2 || task.AssignedUserName != "Ann" {
		t.Errorf("unexpected assignee: %+v", task)
	}

	in := task.Input()
	if in.Title != "X" || in.Description != "d" || in.AssignedUserID != 2 || in.Status != StatusPending {
		t.Errorf("unexpected input: %+v", in)
	}
}
