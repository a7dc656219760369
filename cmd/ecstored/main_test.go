package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecstore/internal/config"
	"ecstore/internal/resolve"
)

func TestParseFlags(t *testing.T) {
	cfg, err := parseFlags([]string{
		"--node-id", "n2",
		"--listen", ":60052",
		"--peers", "n1=127.0.0.1:60051,n2=127.0.0.1:60052",
		"--rf", "3", "--r", "2", "--w", "2",
		"--k1", "2", "--k2", "3",
		"--digest-policy", "always",
		"--write-back=false",
	})
	require.NoError(t, err)

	assert.Equal(t, "n2", cfg.NodeID)
	assert.Equal(t, ":60052", cfg.ListenAddr)
	assert.Equal(t, []config.Peer{{ID: "n1", Addr: "127.0.0.1:60051"}, {ID: "n2", Addr: "127.0.0.1:60052"}}, cfg.Peers)
	assert.Equal(t, resolve.Thresholds{IntersectionQuorum: 2, RecoveryThreshold: 3}, cfg.Thresholds())
	assert.Equal(t, resolve.AlwaysResolve, cfg.DigestPolicy)
	assert.False(t, cfg.WriteBack)
}

func TestParseFlags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad peers", []string{"--peers", "n1"}},
		{"bad policy", []string{"--digest-policy", "sometimes"}},
		{"zero threshold", []string{"--k1", "0"}},
		{"read quorum above rf", []string{"--rf", "1", "--r", "2"}},
		{"unknown flag", []string{"--nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestOpenStore(t *testing.T) {
	cfg := config.Default()
	s, err := openStore(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	cfg.DataDir = t.TempDir()
	s, err = openStore(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
