package engine

import (
	"errors"
	"testing"
	"time"
)

func Test_Validator_Validate(t *testing.T) {
	type args struct {
		prev    int64
		next    int64
		elapsed time.Duration
	}
	tests := []struct {
		name       string
		args       args
		wantAmount int64
		wantErr    error
	}{
		{
			name:       "Normal walking cadence",
			args:       args{prev: 1000, next: 1040, elapsed: 5 * time.Second},
			wantAmount: 40,
		},
		{
			name:       "Exactly at the cap",
			args:       args{prev: 1000, next: 1100, elapsed: 5 * time.Second},
			wantAmount: 100,
		},
		{
			name:    "One over the cap",
			args:    args{prev: 1000, next: 1101, elapsed: 5 * time.Second},
			wantErr: ErrImplausibleSpike,
		},
		{
			name:    "Massive spike",
			args:    args{prev: 1000, next: 5000, elapsed: 5 * time.Second},
			wantErr: ErrImplausibleSpike,
		},
		{
			name:       "Cap scales with elapsed time",
			args:       args{prev: 1000, next: 2100, elapsed: 60 * time.Second},
			wantAmount: 1100,
		},
		{
			name:    "Counter went backwards",
			args:    args{prev: 1000, next: 900, elapsed: 5 * time.Second},
			wantErr: ErrNegativeDelta,
		},
		{
			name:    "Negative cumulative reading",
			args:    args{prev: 0, next: -5, elapsed: 5 * time.Second},
			wantErr: ErrNegativeDelta,
		},
		{
			name:       "First sample skips the cadence cap",
			args:       args{prev: 0, next: 8547, elapsed: 0},
			wantAmount: 8547,
		},
		{
			name:       "Zero delta is valid",
			args:       args{prev: 1000, next: 1000, elapsed: 5 * time.Second},
			wantAmount: 0,
		},
	}

	v := NewValidator(NewDefaultConfig())
	observedAt := time.Date(2025, 6, 14, 9, 30, 0, 0, time.UTC)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, err := v.Validate("user-1", tt.args.prev, tt.args.next, tt.args.elapsed, observedAt)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
			if delta.Amount != tt.wantAmount {
				t.Errorf("Validate() amount = %d, want %d", delta.Amount, tt.wantAmount)
			}
			if delta.SourceSampleID == "" {
				t.Error("Validate() produced empty sample id")
			}
			if delta.UserID != "user-1" {
				t.Errorf("Validate() user = %q, want user-1", delta.UserID)
			}
		})
	}
}

func Test_SampleID_Deterministic(t *testing.T) {
	at := time.Date(2025, 6, 14, 9, 30, 0, 0, time.UTC)

	a := SampleID("user-1", 1040, at)
	b := SampleID("user-1", 1040, at)
	if a != b {
		t.Errorf("SampleID() not stable: %q != %q", a, b)
	}

	if SampleID("user-2", 1040, at) == a {
		t.Error("SampleID() collides across users")
	}
	if SampleID("user-1", 1041, at) == a {
		t.Error("SampleID() collides across counts")
	}
	if SampleID("user-1", 1040, at.Add(time.Nanosecond)) == a {
		t.Error("SampleID() collides across timestamps")
	}
}
