// Package backend provides the HTTP client for the annotation job backend.
//
// The backend lists datasets, the jobs and videos scoped to a dataset, and
// serves per-frame feature payloads for a (dataset, job, video) range. The
// client is read-only; responses are strongly typed so the annotation cache
// and the CLI can consume them directly. Options allow tests to supply a
// custom HTTP client.
package backend
