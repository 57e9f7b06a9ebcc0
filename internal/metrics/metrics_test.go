package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("test_endpoint")
		ObserveSweep(time.Second)
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(notifications.WithLabelValues("reminder", "sent"))
	IncNotification("reminder", "sent")
	assert.Equal(t, before+1, testutil.ToFloat64(notifications.WithLabelValues("reminder", "sent")))

	before = testutil.ToFloat64(crmCalls.WithLabelValues("add_note", "transient"))
	ObserveCRMCall("add_note", "transient", 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(crmCalls.WithLabelValues("add_note", "transient")))

	before = testutil.ToFloat64(outboxResults.WithLabelValues("add_note", "failed"))
	IncOutbox("add_note", "failed")
	assert.Equal(t, before+1, testutil.ToFloat64(outboxResults.WithLabelValues("add_note", "failed")))
}
