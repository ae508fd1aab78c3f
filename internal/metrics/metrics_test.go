package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveWrite(t *testing.T) {
	ok := KVWrites.WithLabelValues("test", "ok")
	failed := KVWrites.WithLabelValues("test", "error")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	ObserveWrite("test", nil)
	ObserveWrite("test", nil)
	ObserveWrite("test", errors.New("boom"))

	if got := testutil.ToFloat64(ok) - okBefore; got != 2 {
		t.Errorf("ok writes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(failed) - failedBefore; got != 1 {
		t.Errorf("failed writes = %v, want 1", got)
	}
}

func TestRelayConnectionsGauge(t *testing.T) {
	RelayConnections.Set(3)
	if got := testutil.ToFloat64(RelayConnections); got != 3 {
		t.Errorf("RelayConnections = %v, want 3", got)
	}
	RelayConnections.Set(0)
}
