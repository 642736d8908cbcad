package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	m := &dto.Metric{}
	if err := cv.WithLabelValues(labels...).Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func getGaugeVecValue(gv *prometheus.GaugeVec, labels ...string) float64 {
	m := &dto.Metric{}
	if err := gv.WithLabelValues(labels...).Write(m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func getHistogramCount(hv *prometheus.HistogramVec, labels ...string) uint64 {
	m := &dto.Metric{}
	observer := hv.WithLabelValues(labels...)
	if c, ok := observer.(prometheus.Metric); ok {
		if err := c.Write(m); err != nil {
			return 0
		}
		return m.GetHistogram().GetSampleCount()
	}
	return 0
}

func TestRecordAuthorization(t *testing.T) {
	RecordAuthorization("AUTO")
	val := getCounterValue(AuthorizationsTotal, "AUTO")
	if val < 1 {
		t.Errorf("AuthorizationsTotal = %f, want >= 1", val)
	}
}

func TestRecordApprovalTransition(t *testing.T) {
	RecordApprovalTransition("command", "APPROVED")
	RecordApprovalTransition("command", "APPROVED")
	val := getCounterValue(ApprovalTransitionsTotal, "command", "APPROVED")
	if val < 2 {
		t.Errorf("ApprovalTransitionsTotal = %f, want >= 2", val)
	}
}

func TestRecordDeniedCommand(t *testing.T) {
	RecordDeniedCommand("CRITICAL")
	val := getCounterValue(DeniedCommandsTotal, "CRITICAL")
	if val < 1 {
		t.Errorf("DeniedCommandsTotal = %f, want >= 1", val)
	}
}

func TestRecordSSHDial(t *testing.T) {
	RecordSSHDial("reader", 120*time.Millisecond)
	count := getHistogramCount(SSHDialSeconds, "reader")
	if count < 1 {
		t.Errorf("SSHDialSeconds sample count = %d, want >= 1", count)
	}
}

func TestSetPendingApprovals(t *testing.T) {
	SetPendingApprovals("remediation", 4)
	val := getGaugeVecValue(PendingApprovals, "remediation")
	if val != 4 {
		t.Errorf("PendingApprovals = %f, want 4", val)
	}
	SetPendingApprovals("remediation", 1)
	val = getGaugeVecValue(PendingApprovals, "remediation")
	if val != 1 {
		t.Errorf("PendingApprovals after update = %f, want 1", val)
	}
}

func TestLabelIsolationAcrossKinds(t *testing.T) {
	RecordApprovalTransition("remediation", "FAILED")
	cmdApproved := getCounterValue(ApprovalTransitionsTotal, "command", "APPROVED")
	remFailed := getCounterValue(ApprovalTransitionsTotal, "remediation", "FAILED")
	remApproved := getCounterValue(ApprovalTransitionsTotal, "remediation", "APPROVED")
	if cmdApproved < 2 {
		t.Error("command/APPROVED should retain its earlier count")
	}
	if remFailed < 1 {
		t.Error("remediation/FAILED should be >= 1")
	}
	if remApproved != 0 {
		t.Errorf("remediation/APPROVED = %f, want 0", remApproved)
	}
}
