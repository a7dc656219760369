// Package config holds node configuration: identity, peers, quorum sizes
// and the resolution thresholds.
package config
