package trace

import (
	"encoding/json"
	"fmt"

	"github.com/agentreplay/agentreplay-sub002/errors"
)

// Record type discriminator values carried in the "type" field of each
// stream payload.
const (
	RecordTypeSpan = "span"
	RecordTypeLag  = "lag"
)

// DataRecord is a single trace span pushed by the backend. Timestamps
// and durations are in microseconds.
type DataRecord struct {
	ID          string `json:"id"`
	TraceID     string `json:"trace_id"`
	ParentID    string `json:"parent_id,omitempty"`
	TimestampUs int64  `json:"timestamp_us"`
	DurationUs  int64  `json:"duration_us"`
	TokenCount  int64  `json:"token_count"`
	SpanType    string `json:"span_type"`
	ProjectID   int64  `json:"project_id"`
	SessionID   int64  `json:"session_id"`
	AgentID     int64  `json:"agent_id"`
}

// LagNotice signals that the consumer missed Skipped events because the
// upstream buffer overflowed. The stream is best-effort, not a durable
// log; a lag notice is the explicit acknowledgment of that.
type LagNotice struct {
	Skipped int64 `json:"skipped"`
}

// Record is the tagged union carried on the stream: exactly one of
// Data or Lag is set, according to Type.
type Record struct {
	Type string
	Data *DataRecord
	Lag  *LagNotice
}

// IsLag reports whether the record is a lag notice.
func (r Record) IsLag() bool {
	return r.Type == RecordTypeLag
}

// probe extracts only the discriminator so the full payload can be
// decoded into the right shape afterwards.
type probe struct {
	Type string `json:"type"`
}

// ParseRecord decodes one stream payload into a Record. Payloads that
// are not valid JSON, lack the "type" discriminator, or carry an
// unknown type yield an invalid-classified error; callers log and drop
// them without disturbing the stream.
func ParseRecord(data []byte) (Record, error) {
	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return Record{}, errors.WrapInvalid(err, "trace", "ParseRecord", "decode payload")
	}
	if p.Type == "" {
		return Record{}, errors.WrapInvalid(errors.ErrMissingType, "trace", "ParseRecord", "validate payload")
	}

	switch p.Type {
	case RecordTypeLag:
		var lag LagNotice
		if err := json.Unmarshal(data, &lag); err != nil {
			return Record{}, errors.WrapInvalid(err, "trace", "ParseRecord", "decode lag notice")
		}
		return Record{Type: RecordTypeLag, Lag: &lag}, nil

	case RecordTypeSpan:
		var rec DataRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return Record{}, errors.WrapInvalid(err, "trace", "ParseRecord", "decode data record")
		}
		if rec.ID == "" {
			return Record{}, errors.WrapInvalid(
				fmt.Errorf("data record missing id"),
				"trace", "ParseRecord", "validate data record")
		}
		return Record{Type: RecordTypeSpan, Data: &rec}, nil

	default:
		return Record{}, errors.WrapInvalid(
			fmt.Errorf("unknown record type %q", p.Type),
			"trace", "ParseRecord", "validate payload")
	}
}
