// Package repository turns candidate filesystem paths into repository metadata.
//
// Prober validates a single candidate and returns a ProbeResult that is either
// present (carrying a RepositoryHandle) or absent (carrying an AbsenceReason).
// Index probes an ordered list of candidates once, keeps the present results in
// input order, and serves LibraryRecord snapshots for the lifetime of the process.
package repository
