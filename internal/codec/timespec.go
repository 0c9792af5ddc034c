package codec

import "time"

// TimeSpec is a wall-clock instant anchored at the Unix epoch, stored as a
// (seconds, nanoseconds) pair — the row encoding used by every time column
// on the inode table (atime, mtime, ctime, crtime).
type TimeSpec struct {
	Secs  int64
	Nanos int32
}

// NewTimeSpec builds a TimeSpec from raw row columns.
func NewTimeSpec(secs int64, nanos int32) TimeSpec {
	return TimeSpec{Secs: secs, Nanos: nanos}
}

// FromTime converts a wall-clock instant to its row encoding.
func FromTime(t time.Time) TimeSpec {
	return TimeSpec{Secs: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// Time converts the row encoding back to a wall-clock instant.
func (ts TimeSpec) Time() time.Time {
	return time.Unix(ts.Secs, int64(ts.Nanos))
}

// Now resolves a "now-or-specific" input at the API boundary: a nil instant
// means "use the current time", anything else is used verbatim. This
// matches fuser::TimeOrNow's resolution point in the original driver.
func Now(specific *time.Time) TimeSpec {
	if specific == nil {
		return FromTime(time.Now())
	}
	return FromTime(*specific)
}
