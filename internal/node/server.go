package node

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"ecstore/internal/storage"
)

// ReplicaServer implements ReplicaService on top of a local store.
type ReplicaServer struct {
	store  storage.Store
	logger *zap.Logger
}

// NewReplicaServer creates a replica server for store.
func NewReplicaServer(store storage.Store, logger *zap.Logger) *ReplicaServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplicaServer{store: store, logger: logger}
}

// Read returns the encoded row for the key. Unknown keys answer with an
// empty row.
func (s *ReplicaServer) Read(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	key := req.GetValue()
	if key == "" {
		return nil, status.Error(codes.InvalidArgument, "key cannot be empty")
	}

	row, err := s.store.Get(key)
	if err != nil {
		s.logger.Error("read failed", zap.String("key", key), zap.Error(err))
		return nil, status.Errorf(codes.Internal, "read %s: %v", key, err)
	}
	if row == nil {
		row = storage.NewRow(key)
	}

	s.logger.Debug("read", zap.String("key", key), zap.Int("columns", len(row.Columns)))
	return wrapperspb.Bytes(storage.MarshalRow(row)), nil
}

// PutFragment stores one fragment.
func (s *ReplicaServer) PutFragment(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	m, err := unmarshalMutation(req.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	s.logger.Debug("put fragment",
		zap.String("key", m.Key), zap.Int("slot", m.Index), zap.Stringer("tag", m.Tag))
	return s.apply(m, s.store.PutFragment(m.Key, m.Index, m.Tag, m.Payload))
}

// AdvanceTag raises the metadata tag of a key.
func (s *ReplicaServer) AdvanceTag(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	m, err := unmarshalMutation(req.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	s.logger.Debug("advance tag", zap.String("key", m.Key), zap.Stringer("tag", m.Tag))
	return s.apply(m, s.store.AdvanceTag(m.Key, m.Tag))
}

// PutValue stores a full value.
func (s *ReplicaServer) PutValue(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	m, err := unmarshalMutation(req.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	s.logger.Debug("put value", zap.String("key", m.Key), zap.Stringer("tag", m.Tag))
	return s.apply(m, s.store.PutValue(m.Key, m.Tag, m.Payload))
}

// apply maps a store error to a gRPC status.
func (s *ReplicaServer) apply(m mutation, err error) (*emptypb.Empty, error) {
	switch {
	case err == nil:
		return &emptypb.Empty{}, nil
	case errors.Is(err, storage.ErrInvalidSlot):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	default:
		s.logger.Error("write failed", zap.String("key", m.Key), zap.Error(err))
		return nil, status.Errorf(codes.Internal, "write %s: %v", m.Key, err)
	}
}
