package node

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const replicaServiceName = "ecstore.v1.Replica"

// Full method names of the replica service.
const (
	methodRead        = "/" + replicaServiceName + "/Read"
	methodPutFragment = "/" + replicaServiceName + "/PutFragment"
	methodAdvanceTag  = "/" + replicaServiceName + "/AdvanceTag"
	methodPutValue    = "/" + replicaServiceName + "/PutValue"
)

// ReplicaService is the server API of a replica. Read takes the partition
// key and answers with the encoded row; the write methods take an encoded
// mutation.
type ReplicaService interface {
	Read(ctx context.Context, key *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	PutFragment(ctx context.Context, mutation *wrapperspb.BytesValue) (*emptypb.Empty, error)
	AdvanceTag(ctx context.Context, mutation *wrapperspb.BytesValue) (*emptypb.Empty, error)
	PutValue(ctx context.Context, mutation *wrapperspb.BytesValue) (*emptypb.Empty, error)
}

// unaryMethod builds the descriptor of one unary method of ReplicaService.
func unaryMethod[Req, Resp any](name string, call func(ReplicaService, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + replicaServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ReplicaService), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ReplicaService), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ReplicaServiceDesc describes the replica service for grpc.Server.
var ReplicaServiceDesc = grpc.ServiceDesc{
	ServiceName: replicaServiceName,
	HandlerType: (*ReplicaService)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Read", ReplicaService.Read),
		unaryMethod("PutFragment", ReplicaService.PutFragment),
		unaryMethod("AdvanceTag", ReplicaService.AdvanceTag),
		unaryMethod("PutValue", ReplicaService.PutValue),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ecstore/v1/replica",
}

// RegisterReplicaServer registers srv on s.
func RegisterReplicaServer(s grpc.ServiceRegistrar, srv ReplicaService) {
	s.RegisterService(&ReplicaServiceDesc, srv)
}
