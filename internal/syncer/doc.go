// Package syncer drives catalog synchronization: full season syncs that
// page through the upstream catalog, and daily updates that refresh ongoing
// entities and promote finished ones. Every run writes a SyncRun record.
package syncer
