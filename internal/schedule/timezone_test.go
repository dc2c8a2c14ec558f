package schedule

import "testing"

func TestResolveTimezone(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
	}{
		{
			name:    "camelCase timezone key",
			address: `{"street":"100 Main St","timezone":"America/Chicago"}`,
			want:    "America/Chicago",
		},
		{
			name:    "timeZone variant",
			address: `{"timeZone":"America/New_York"}`,
			want:    "America/New_York",
		},
		{
			name:    "tz shorthand",
			address: `{"tz":"Europe/Berlin"}`,
			want:    "Europe/Berlin",
		},
		{
			name:    "snake_case variant",
			address: `{"time_zone":"Asia/Tokyo"}`,
			want:    "Asia/Tokyo",
		},
		{
			name:    "first valid candidate wins",
			address: `{"timezone":"Not/AZone","tz":"America/Denver"}`,
			want:    "America/Denver",
		},
		{
			name:    "whitespace trimmed",
			address: `{"timezone":"  America/Chicago  "}`,
			want:    "America/Chicago",
		},
		{
			name:    "unknown zone rejected",
			address: `{"timezone":"Plutonian/Standard"}`,
			want:    "",
		},
		{
			name:    "non-string candidate skipped",
			address: `{"timezone":42}`,
			want:    "",
		},
		{
			name:    "no timezone field",
			address: `{"street":"100 Main St","city":"Chicago"}`,
			want:    "",
		},
		{
			name:    "empty payload",
			address: ``,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveTimezone([]byte(tt.address))
			if got != tt.want {
				t.Errorf("ResolveTimezone = %q, want %q", got, tt.want)
			}
		})
	}
}
