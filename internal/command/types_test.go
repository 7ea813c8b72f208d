package command

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestPayloadUUID(t *testing.T) {
	t.Parallel()

	if got := (Payload{"CommandUUID": "abc"}).UUID(); got != "abc" {
		t.Errorf("UUID() = %q, want abc", got)
	}
	if got := (Payload{"MessageType": "DeviceLock"}).UUID(); got != "" {
		t.Errorf("UUID() = %q, want empty for missing key", got)
	}
	if got := (Payload{"CommandUUID": 42}).UUID(); got != "" {
		t.Errorf("UUID() = %q, want empty for non-string value", got)
	}
	if got := (Payload(nil)).UUID(); got != "" {
		t.Errorf("UUID() = %q, want empty for nil payload", got)
	}
}

func TestNewResult(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC()
	r := NewResult("uuid-1", StatusRejected, "InvalidToken")
	after := time.Now().UTC()

	if r.CommandUUID != "uuid-1" || r.Status != StatusRejected || r.RejectionReason != "InvalidToken" {
		t.Errorf("unexpected result: %+v", r)
	}
	if r.Timestamp.Before(before) || r.Timestamp.After(after) {
		t.Errorf("timestamp %v outside [%v, %v]", r.Timestamp, before, after)
	}
}

func TestResultJSON(t *testing.T) {
	t.Parallel()

	accepted, err := json.Marshal(NewResult("uuid-1", StatusAccepted, ""))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if strings.Contains(string(accepted), "rejectionReason") {
		t.Errorf("empty rejection reason must be omitted: %s", accepted)
	}
	if !strings.Contains(string(accepted), `"status":"ACCEPTED"`) {
		t.Errorf("status not serialized as its wire name: %s", accepted)
	}

	rejected, err := json.Marshal(NewResult("uuid-2", StatusRejected, "BadDeviceToken"))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(rejected), `"rejectionReason":"BadDeviceToken"`) {
		t.Errorf("rejection reason missing: %s", rejected)
	}
}
