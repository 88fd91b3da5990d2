package trace

import "time"

// SessionWallClock returns the elapsed wall-clock time a set of records
// spans: the distance from the earliest start to the latest end
// (timestamp + duration). Concurrent spans overlap, so this is usually
// shorter than SumDurations. Use it for "how long did the session take".
func SessionWallClock(records []DataRecord) time.Duration {
	if len(records) == 0 {
		return 0
	}

	first := records[0].TimestampUs
	last := records[0].TimestampUs + records[0].DurationUs
	for _, r := range records[1:] {
		if r.TimestampUs < first {
			first = r.TimestampUs
		}
		if end := r.TimestampUs + r.DurationUs; end > last {
			last = end
		}
	}

	if last < first {
		return 0
	}
	return time.Duration(last-first) * time.Microsecond
}

// SumDurations returns the sum of the individual span durations. With
// concurrent spans this exceeds SessionWallClock; use it for "how much
// total work was done", never for elapsed time. The two measures are
// intentionally different.
func SumDurations(records []DataRecord) time.Duration {
	var total int64
	for _, r := range records {
		total += r.DurationUs
	}
	return time.Duration(total) * time.Microsecond
}
