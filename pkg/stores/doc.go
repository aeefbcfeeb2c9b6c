// Package stores keeps the history of search runs.
//
// SQLiteStore persists runner reports and the policy verdicts attached to
// them in a SQLite database opened through the pure-Go modernc driver in
// WAL mode. The schema lives in embedded migrations applied with
// golang-migrate; deleting a report cascades to its verdicts.
package stores
