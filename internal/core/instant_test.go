package core

import (
	"errors"
	"testing"
)

func TestParseInstant(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      string
		wantEpoch int64
		wantErr   bool
	}{
		{
			name:      "full format",
			input:     "2023-10-12 20:15:30",
			want:      "2023-10-12 20:15:30",
			wantEpoch: 1697141730,
		},
		{
			name:      "minute format defaults seconds",
			input:     "2023-10-12 20:15",
			want:      "2023-10-12 20:15:00",
			wantEpoch: 1697141700,
		},
		{
			name:  "surrounding whitespace is trimmed",
			input: "  2023-01-01 00:00:00  ",
			want:  "2023-01-01 00:00:00",
		},
		{name: "empty", input: "", wantErr: true},
		{name: "blank", input: "   ", wantErr: true},
		{name: "date only", input: "2023-10-12", wantErr: true},
		{name: "iso separator", input: "2023-10-12T20:15:30", wantErr: true},
		{name: "month 13", input: "2023-13-01 10:00:00", wantErr: true},
		{name: "day 32", input: "2023-01-32 10:00:00", wantErr: true},
		{name: "november 31", input: "2023-11-31 23:59:59", wantErr: true},
		{name: "non-numeric fields", input: "2023-1x-01 10:00:00", wantErr: true},
		{name: "hour 24", input: "2023-01-01 24:00:00", wantErr: true},
		{name: "trailing garbage", input: "2023-10-12 20:15:30x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInstant(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseInstant(%q) expected error, got %q", tt.input, got)
				}
				if !errors.Is(err, ErrMalformedTimestamp) {
					t.Errorf("ParseInstant(%q) error = %v, want ErrMalformedTimestamp", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseInstant(%q) unexpected error: %v", tt.input, err)
			}
			if tt.want != "" && got.String() != tt.want {
				t.Errorf("ParseInstant(%q).String() = %q, want %q", tt.input, got.String(), tt.want)
			}
			if tt.wantEpoch != 0 && got.Epoch() != tt.wantEpoch {
				t.Errorf("ParseInstant(%q).Epoch() = %d, want %d", tt.input, got.Epoch(), tt.wantEpoch)
			}
		})
	}
}

func TestParseInstantBothFormsNormalizeToOneInstant(t *testing.T) {
	long, err := ParseInstant("2024-02-29 08:30:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	short, err := ParseInstant("2024-02-29 08:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if long.Epoch() != short.Epoch() || long.String() != short.String() {
		t.Errorf("formats diverge: %q(%d) vs %q(%d)", long, long.Epoch(), short, short.Epoch())
	}
}
