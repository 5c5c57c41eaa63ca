package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef maps a session counter to its exported name.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef maps a session histogram to its exported name.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Accepted logins."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Rejected or failed logins."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Sessions ended by logout, local or external."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Refreshes that stored a new token."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Failed refreshes."},
	{ID: goSession.MetricRefreshShared, Name: "gosession_refresh_shared_total", Help: "Callers that joined an in-flight refresh."},
	{ID: goSession.MetricRefreshEscalated, Name: "gosession_refresh_escalated_total", Help: "Refresh failures that reached the retry ceiling."},
	{ID: goSession.MetricSessionExpired, Name: "gosession_session_expired_total", Help: "Forced logouts."},
	{ID: goSession.MetricMonitorTick, Name: "gosession_monitor_tick_total", Help: "Monitor ticks that inspected a token."},
	{ID: goSession.MetricBootstrapRestored, Name: "gosession_bootstrap_restored_total", Help: "Bootstraps that restored a stored session."},
	{ID: goSession.MetricBootstrapFailClosed, Name: "gosession_bootstrap_fail_closed_total", Help: "Bootstraps that discarded a stored token."},
}

var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricRefreshLatency, Name: "gosession_refresh_latency_seconds", Help: "Backend refresh latency."},
}

// HistogramUpperBounds are the bucket limits in seconds, excluding +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

const (
	AuditDroppedName = "gosession_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped due to dispatcher backpressure."
)

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
