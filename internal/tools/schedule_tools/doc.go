// Package schedule_tools exposes the aggregation engine over MCP: merged
// schedules, event lookup and CRUD, and free-slot search. Every handler is
// wrapped with invocation metrics and an anonymized audit log line.
package schedule_tools
