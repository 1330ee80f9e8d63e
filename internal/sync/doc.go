// Package sync builds the attendance roster from the studio API.
//
// # Core Interfaces
//
//   - Pipeline: one complete authenticate, list, fetch and aggregate run
//
// # Pipeline Stages
//
// A run executes four stages in order, each in its own trace span under a
// "pipeline.run" span tagged with the run ID:
//
//  1. authenticate: obtain an attendance token, valid for this run only
//  2. list_participants: list the participants scheduled today, flattened
//     across categories in category name order
//  3. class_details: fetch the check-in events of every participant, with
//     bounded concurrency; the first failure cancels the remaining calls
//  4. aggregate: turn check-in events into roster entries sorted by start time
//
// # Aggregation
//
// Only events whose status is exactly AttendedStatus count. The earliest such
// event is the start of the attendance window and every qualifying event adds
// one hour to it. Times are displayed in the studio timezone using
// DisplayTimeLayout. Participants without a qualifying event are left out.
//
// # Result Types
//
//   - Result: the sorted roster, the participant count and the run ID
//   - Error: the failure kind (transport, decode or time parse), the stage
//     that failed and the run ID
//
// A run never yields a partial roster: any failure aborts the run.
//
// # Coordinator Package
//
// The sync/coordinator subpackage schedules pipeline runs and publishes their
// results. See its documentation for the refresh loop.
package sync
