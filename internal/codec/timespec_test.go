package codec

import (
	"testing"
	"time"
)

func TestTimeSpecRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 123456789)
	ts := FromTime(now)
	if ts.Secs != 1700000000 || ts.Nanos != 123456789 {
		t.Fatalf("FromTime got %+v", ts)
	}
	back := ts.Time()
	if !back.Equal(now) {
		t.Fatalf("round trip: got %v, want %v", back, now)
	}
}

func TestNowResolvesNilToCurrentTime(t *testing.T) {
	before := time.Now()
	ts := Now(nil)
	after := time.Now()

	got := ts.Time()
	if got.Before(before.Add(-time.Second)) || got.After(after.Add(time.Second)) {
		t.Fatalf("Now(nil) = %v, want between %v and %v", got, before, after)
	}
}

func TestNowResolvesSpecificInstant(t *testing.T) {
	specific := time.Unix(42, 7)
	ts := Now(&specific)
	if !ts.Time().Equal(specific) {
		t.Fatalf("Now(&specific) = %v, want %v", ts.Time(), specific)
	}
}
