// Package integration provides integration tests for the studio roster API server.
// These tests run the assembled server against a fake studio API and validate
// the startup refresh, manual refreshes and failure handling end to end.
package integration
