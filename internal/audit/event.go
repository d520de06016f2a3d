// Package audit implements the Security Audit subsystem: asynchronous
// emission of structured security events without impacting request
// latency (spec §4.6).
package audit

import "time"

// Level is the severity of an audit event.
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarn     Level = "WARN"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// EventType enumerates the security-relevant event kinds (spec §4.6).
type EventType string

const (
	EventAuthenticationSuccess EventType = "AUTHENTICATION_SUCCESS"
	EventAuthenticationFailure EventType = "AUTHENTICATION_FAILURE"
	EventAuthorizationFailure  EventType = "AUTHORIZATION_FAILURE"
	EventIPBlocked             EventType = "IP_BLOCKED"
	EventRateLimited           EventType = "RATE_LIMITED"
	EventSuspiciousActivity    EventType = "SUSPICIOUS_ACTIVITY"
	EventMaliciousRequest      EventType = "MALICIOUS_REQUEST"
	EventSystemError           EventType = "SYSTEM_ERROR"
)

// Event is one structured audit record.
type Event struct {
	Timestamp     time.Time
	Level         Level
	EventType     EventType
	ClientIP      string
	Username      string
	UserAgent     string
	RequestPath   string
	RequestMethod string
	Details       string
}
