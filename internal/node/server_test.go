package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"ecstore/internal/storage"
	"ecstore/internal/tag"
)

func TestReplicaServer_FragmentRoundTrip(t *testing.T) {
	c := newTestCluster(t, 1, nil)
	ctx := context.Background()
	clients := c.nodes[0].Clients()
	addr := c.addrs[0]

	require.NoError(t, clients.PutFragment(ctx, addr, "k", 1, tag.New(2, 5), []byte("frag")))

	row, err := clients.Read(ctx, addr, "k")
	require.NoError(t, err)
	assert.Equal(t, "k", row.Key)

	slots, err := row.Slots()
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, 0, slots[0].Index)
	assert.Equal(t, tag.New(2, 5), slots[0].Tag)
	assert.False(t, slots[0].HasFragment)
	assert.Equal(t, 1, slots[1].Index)
	assert.Equal(t, []byte("frag"), slots[1].Payload)
	assert.True(t, slots[1].HasFragment)

	require.NoError(t, clients.AdvanceTag(ctx, addr, "k", tag.New(1, 9)))
	stored, err := c.stores[0].Get("k")
	require.NoError(t, err)
	meta, ok, err := stored.SlotTag(0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, tag.New(1, 9), meta)
}

func TestReplicaServer_UnknownKeyIsEmptyRow(t *testing.T) {
	c := newTestCluster(t, 1, nil)

	row, err := c.nodes[0].Clients().Read(context.Background(), c.addrs[0], "missing")
	require.NoError(t, err)
	assert.Equal(t, "missing", row.Key)
	assert.Empty(t, row.Columns)
}

func TestReplicaServer_InvalidArguments(t *testing.T) {
	c := newTestCluster(t, 1, nil)
	ctx := context.Background()
	clients := c.nodes[0].Clients()
	addr := c.addrs[0]

	_, err := clients.Read(ctx, addr, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	err = clients.PutFragment(ctx, addr, "k", 0, tag.New(1, 1), []byte("x"))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	err = clients.AdvanceTag(ctx, addr, "k", tag.Sentinel)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	err = clients.PutValue(ctx, addr, "", tag.New(1, 1), []byte("v"))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestReplicaServer_PutValue(t *testing.T) {
	c := newTestCluster(t, 1, nil)
	ctx := context.Background()
	clients := c.nodes[0].Clients()
	addr := c.addrs[0]

	require.NoError(t, clients.PutValue(ctx, addr, "k", tag.New(1, 2), []byte("new")))
	require.NoError(t, clients.PutValue(ctx, addr, "k", tag.New(9, 1), []byte("old")))

	row, err := clients.Read(ctx, addr, "k")
	require.NoError(t, err)
	v, value, err := row.Value()
	require.NoError(t, err)
	assert.Equal(t, tag.New(1, 2), v)
	assert.Equal(t, []byte("new"), value)
}

func TestReplicaServer_CorruptStoredRowIsInternal(t *testing.T) {
	srv := NewReplicaServer(failingStore{}, nil)

	_, err := srv.PutFragment(context.Background(), wrapperspb.Bytes(marshalMutation(mutation{Key: "k", Index: 1, Tag: tag.New(1, 1)})))
	assert.Equal(t, codes.Internal, status.Code(err))
}

type failingStore struct{ storage.Store }

func (failingStore) PutFragment(string, int, tag.Tag, []byte) error {
	return storage.ErrCorruptRow
}
