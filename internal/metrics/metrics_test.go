package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Connections.WithLabelValues("device").Inc()
	m.Connections.WithLabelValues("device").Inc()
	m.Connections.WithLabelValues("device").Dec()
	m.Sessions.WithLabelValues("asr").Inc()
	m.AudioBytesFrom.Add(3200)

	if got := testutil.ToFloat64(m.Connections.WithLabelValues("device")); got != 1 {
		t.Errorf("connections{device} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Sessions.WithLabelValues("asr")); got != 1 {
		t.Errorf("sessions{asr} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.AudioBytesFrom); got != 3200 {
		t.Errorf("audio bytes = %v, want 3200", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SkillReplies.WithLabelValues("clock").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `cognitive_hub_skills_replies_total{skill="clock"} 1`) {
		t.Errorf("metrics output missing skill reply counter:\n%s", body)
	}
}
