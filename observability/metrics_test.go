package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRPCObserveCallLabelsByCodeName(t *testing.T) {
	m := RPC()
	okBefore := testutil.ToFloat64(m.calls.WithLabelValues("lockdrop_claim", CodeOK))
	phaseBefore := testutil.ToFloat64(m.calls.WithLabelValues("lockdrop_claim", "phase_violation"))

	m.ObserveCall("lockdrop_claim", "", time.Millisecond)
	m.ObserveCall("lockdrop_claim", "phase_violation", time.Millisecond)
	m.ObserveCall("lockdrop_claim", "phase_violation", time.Millisecond)

	require.Equal(t, okBefore+1, testutil.ToFloat64(m.calls.WithLabelValues("lockdrop_claim", CodeOK)))
	require.Equal(t, phaseBefore+2, testutil.ToFloat64(m.calls.WithLabelValues("lockdrop_claim", "phase_violation")))
}

func TestRPCRecordRejection(t *testing.T) {
	m := RPC()
	before := testutil.ToFloat64(m.rejections.WithLabelValues("rate_limit"))
	m.RecordRejection("rate_limit")
	require.Equal(t, before+1, testutil.ToFloat64(m.rejections.WithLabelValues("rate_limit")))

	var nilMetrics *RPCMetrics
	nilMetrics.RecordRejection("rate_limit")
	nilMetrics.ObserveCall("lockdrop_state", CodeOK, time.Second)
}
