// Package projects serves the /api/projects endpoints.
//
// A project belongs to the user who created it and is shared with its
// members. Every lookup is scoped to the caller: a project the caller
// cannot access is reported exactly like one that does not exist.
package projects
