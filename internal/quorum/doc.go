// Package quorum provides fan-out logic for polling replicas and writing to
// them. It handles parallel dispatch, per-replica timeouts and R/W
// threshold validation; what is done with the collected answers is up to
// the caller.
package quorum
