package internaldefs

import (
	goIdentity "github.com/MrEthical07/goIdentity"
)

// CounterDef defines a public type used by goIdentity APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by goIdentity APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the identity engine.
var CounterDefs = []CounterDef{
	{ID: goIdentity.MetricLoginSuccess, Name: "goidentity_login_success_total", Help: "Successful login attempts."},
	{ID: goIdentity.MetricLoginFailure, Name: "goidentity_login_failure_total", Help: "Failed login attempts."},
	{ID: goIdentity.MetricLoginMFARequired, Name: "goidentity_login_mfa_required_total", Help: "Login flows requiring MFA step-up."},
	{ID: goIdentity.MetricAccountLocked, Name: "goidentity_account_locked_total", Help: "Account lockouts after repeated login failures."},
	{ID: goIdentity.MetricUserCreated, Name: "goidentity_user_created_total", Help: "Created user accounts."},
	{ID: goIdentity.MetricUserDeactivated, Name: "goidentity_user_deactivated_total", Help: "Deactivated user accounts."},
	{ID: goIdentity.MetricPasswordChangeSuccess, Name: "goidentity_password_change_success_total", Help: "Successful password changes."},
	{ID: goIdentity.MetricPasswordChangeFailure, Name: "goidentity_password_change_failure_total", Help: "Failed password changes."},
	{ID: goIdentity.MetricMFAEnabled, Name: "goidentity_mfa_enabled_total", Help: "MFA enrollment operations."},
	{ID: goIdentity.MetricMFADisabled, Name: "goidentity_mfa_disabled_total", Help: "MFA disable operations."},
	{ID: goIdentity.MetricMFAVerifySuccess, Name: "goidentity_mfa_verify_success_total", Help: "Successful MFA verifications."},
	{ID: goIdentity.MetricMFAVerifyFailure, Name: "goidentity_mfa_verify_failure_total", Help: "Failed MFA verifications."},
	{ID: goIdentity.MetricTokenCreated, Name: "goidentity_token_created_total", Help: "Issued tokens."},
	{ID: goIdentity.MetricValidateSuccess, Name: "goidentity_validate_success_total", Help: "Successful token validations."},
	{ID: goIdentity.MetricValidateFailure, Name: "goidentity_validate_failure_total", Help: "Failed token validations."},
	{ID: goIdentity.MetricRefreshSuccess, Name: "goidentity_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: goIdentity.MetricRefreshFailure, Name: "goidentity_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: goIdentity.MetricTokenRevoked, Name: "goidentity_token_revoked_total", Help: "Revoked tokens."},
	{ID: goIdentity.MetricTokenSuspended, Name: "goidentity_token_suspended_total", Help: "Suspended tokens."},
	{ID: goIdentity.MetricTokenExpired, Name: "goidentity_token_expired_total", Help: "Tokens retired as expired."},
	{ID: goIdentity.MetricSessionCreated, Name: "goidentity_session_created_total", Help: "Created sessions."},
	{ID: goIdentity.MetricSessionRevoked, Name: "goidentity_session_revoked_total", Help: "Revoked sessions."},
	{ID: goIdentity.MetricSessionExpired, Name: "goidentity_session_expired_total", Help: "Sessions retired as expired."},
	{ID: goIdentity.MetricLogout, Name: "goidentity_logout_total", Help: "Logout operations."},
	{ID: goIdentity.MetricAnomalyDetected, Name: "goidentity_anomaly_detected_total", Help: "Detected token usage anomalies."},
	{ID: goIdentity.MetricReaperSweep, Name: "goidentity_reaper_sweep_total", Help: "Completed reaper sweeps."},
	{ID: goIdentity.MetricReaperReclaimed, Name: "goidentity_reaper_reclaimed_total", Help: "Records reclaimed by the reaper."},
}

// HistogramDefs is an exported constant or variable used by the identity engine.
var HistogramDefs = []HistogramDef{
	{ID: goIdentity.MetricValidateLatency, Name: "goidentity_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the identity engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the identity engine.
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

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
