package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

var _ MetricsCollector = (*Collector)(nil)

// findMetric は指定名とラベルに一致するメトリクスを返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != want {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}

func TestNewCollector_ReturnsNonNil(t *testing.T) {
	if c := NewCollector(prometheus.NewRegistry()); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestRecordAuthVerdict_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthVerdict("authorized")
	c.RecordAuthVerdict("authorized")
	c.RecordAuthVerdict("UNAUTHORIZED")

	if v := findMetric(t, reg, "embedgate_auth_verdicts_total", map[string]string{"outcome": "authorized"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("authorized = %v, want 2", v)
	}
	if v := findMetric(t, reg, "embedgate_auth_verdicts_total", map[string]string{"outcome": "UNAUTHORIZED"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("UNAUTHORIZED = %v, want 1", v)
	}
}

func TestRecordAdminDecision_LabelsSourceAndResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAdminDecision("remote", false)

	m := findMetric(t, reg, "embedgate_admin_decisions_total", map[string]string{"source": "remote", "result": "false"})
	if v := m.GetCounter().GetValue(); v != 1 {
		t.Errorf("admin decisions = %v, want 1", v)
	}
}

func TestRecordRemoteCall_CountsAndObservesLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRemoteCall("user.admin", "success", 150*time.Millisecond)
	c.RecordRemoteCall("user.admin", "success", 250*time.Millisecond)

	calls := findMetric(t, reg, "embedgate_platform_calls_total", map[string]string{"method": "user.admin", "outcome": "success"})
	if v := calls.GetCounter().GetValue(); v != 2 {
		t.Errorf("calls = %v, want 2", v)
	}

	latency := findMetric(t, reg, "embedgate_platform_call_latency_seconds", map[string]string{"method": "user.admin"})
	h := latency.GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample count = %d, want 2", h.GetSampleCount())
	}
	if sum := h.GetSampleSum(); sum < 0.39 || sum > 0.41 {
		t.Errorf("sample sum = %v, want ~0.4", sum)
	}
}

func TestRecordNativeSignalAndHTTPStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordNativeSignal("non_native")
	c.RecordHTTPStatus(401)

	if v := findMetric(t, reg, "embedgate_native_signal_total", map[string]string{"result": "non_native"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("native signal = %v, want 1", v)
	}
	if v := findMetric(t, reg, "embedgate_http_status_total", map[string]string{"status_code": "401"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("http status = %v, want 1", v)
	}
}

func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}
