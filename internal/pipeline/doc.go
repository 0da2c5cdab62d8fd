// Package pipeline runs discovery: it walks the broker list in order,
// dispatches each broker to its matcher, isolates per-broker failures and
// reports progress.
//
// An Orchestrator performs one sequential run for one profile. The
// BatchProcessor runs several independent runs concurrently, one per
// profile, with errgroup limiting how many are in flight.
package pipeline
