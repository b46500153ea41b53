package archive

import (
	"testing"
	"time"
)

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, 3, 7, 23, 30, 0, 0, time.FixedZone("X", -2*3600))
	if got, want := ObjectKey("evt_1", at), "webhooks/2026/03/08/evt_1.json"; got != want {
		t.Fatalf("ObjectKey = %q, want %q", got, want)
	}
}
