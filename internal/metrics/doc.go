// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connected sockets by connection type
//   - Inbound commands, messages and audio volume
//   - Cognitive sessions started and provider failures by kind
//   - Skill replies by skill id
//   - Live subscriptions
package metrics
