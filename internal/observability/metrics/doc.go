// Package metrics provides application-wide Prometheus metrics.
//
// It covers reminder production (reminders created, milestones fired,
// stuck notifications) and database usage. Channel delivery metrics live in
// the notify package, tick metrics in the worker package.
//
// All metrics are registered with the Prometheus default registry and exposed
// via the worker's /metrics endpoint.
package metrics
