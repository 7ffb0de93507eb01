package interval

import (
	"testing"
	"time"
)

func ts(min int) time.Time {
	return time.Date(2025, 6, 1, 12, min, 0, 0, time.UTC)
}

func closedRecord(start, end time.Time) Record {
	return Record{State: "x", Start: start, End: &end}
}

func TestDurationWithin(t *testing.T) {
	tests := []struct {
		name   string
		rec    Record
		t0, t1 time.Time
		want   time.Duration
	}{
		{
			name: "fully inside window",
			rec:  closedRecord(ts(10), ts(20)),
			t0:   ts(0), t1: ts(30),
			want: 10 * time.Minute,
		},
		{
			name: "clipped at both ends",
			rec:  closedRecord(ts(0), ts(30)),
			t0:   ts(10), t1: ts(20),
			want: 10 * time.Minute,
		},
		{
			name: "entirely before window",
			rec:  closedRecord(ts(0), ts(5)),
			t0:   ts(10), t1: ts(20),
			want: 0,
		},
		{
			name: "entirely after window",
			rec:  closedRecord(ts(25), ts(30)),
			t0:   ts(10), t1: ts(20),
			want: 0,
		},
		{
			name: "open record uses window end",
			rec:  Record{State: "x", Start: ts(10)},
			t0:   ts(0), t1: ts(25),
			want: 15 * time.Minute,
		},
		{
			name: "open record starting after window",
			rec:  Record{State: "x", Start: ts(30)},
			t0:   ts(0), t1: ts(20),
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.DurationWithin(tt.t0, tt.t1); got != tt.want {
				t.Errorf("DurationWithin(%v, %v) = %v, want %v", tt.t0, tt.t1, got, tt.want)
			}
		})
	}
}

func TestContains(t *testing.T) {
	rec := closedRecord(ts(10), ts(20))

	if rec.Contains(ts(10).Add(-time.Nanosecond)) {
		t.Error("instant before start must not be contained")
	}
	if !rec.Contains(ts(10)) {
		t.Error("start is inclusive")
	}
	if rec.Contains(ts(20)) {
		t.Error("end is exclusive")
	}

	open := Record{State: "x", Start: ts(10)}
	if !open.Contains(ts(500)) {
		t.Error("open record contains every instant from start onward")
	}
}

func TestDomainHelpers(t *testing.T) {
	if got := ActivityDomain("playing"); got != Domain("activity:playing") {
		t.Errorf("ActivityDomain = %q", got)
	}
	if got := FlagDomain("self_mute"); got != Domain("flag:self_mute") {
		t.Errorf("FlagDomain = %q", got)
	}
	if !IsFlagDomain(FlagDomain("deaf")) {
		t.Error("IsFlagDomain must recognize flag domains")
	}
	if IsFlagDomain(DomainPresence) {
		t.Error("presence is not a flag domain")
	}
}
