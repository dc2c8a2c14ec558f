package job

import "testing"

func TestNextNumber(t *testing.T) {
	tests := []struct {
		name    string
		year    int
		latest  string
		want    string
		wantErr bool
	}{
		{"first of year", 2026, "", "WO-2026-0001", false},
		{"increments", 2026, "WO-2026-0009", "WO-2026-0010", false},
		{"crosses padding width", 2026, "WO-2026-9999", "WO-2026-10000", false},
		{"malformed", 2026, "JOB-42", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextNumber(tt.year, tt.latest)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NextNumber error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NextNumber = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJob_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from   JobStatus
		to     JobStatus
		wantOK bool
	}{
		{StatusScheduled, StatusInProgress, true},
		{StatusScheduled, StatusCanceled, true},
		{StatusScheduled, StatusCompleted, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCanceled, true},
		{StatusInProgress, StatusInProgress, false},
		{StatusCompleted, StatusCanceled, false},
		{StatusCanceled, StatusInProgress, false},
	}

	for _, tt := range tests {
		j := &Job{Status: tt.from}
		if got := j.CanTransitionTo(tt.to); got != tt.wantOK {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.wantOK)
		}
	}
}
