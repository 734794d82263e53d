// Package observability delivers operator-facing alerts: stale approvals,
// crash-looping watchers, and execution failures go out through a Notifier
// (Slack webhook or no-op).
package observability
