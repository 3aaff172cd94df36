// Package containers simulates per-project container orchestration.
//
// No real workloads are scheduled. The Manager keeps a persisted record of
// what a cluster would report for each project (deployment, service, volume
// claim, pods) and walks it through create, start, stop, restart, and
// delete. Transitions on one project are serialized; different projects
// proceed in parallel. Each transition is appended to the project's event
// history and to the audit log.
package containers
