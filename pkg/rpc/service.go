package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName is the fully qualified gRPC service name, mirroring the
// "<package>.<Service>" convention protoc-gen-go-grpc would produce for
// a worker.proto declaring `service WorkerService`.
const serviceName = "workerpb.WorkerService"

// WorkerServiceServer is implemented by the worker process.
type WorkerServiceServer interface {
	LaunchJob(context.Context, *LaunchJobRequest) (*LaunchJobResponse, error)
	KillJob(context.Context, *KillJobRequest) (*KillJobResponse, error)
	JobStatus(context.Context, *JobStatusRequest) (*JobStatusResponse, error)
}

// RegisterWorkerServiceServer wires an implementation into a gRPC
// server, matching the shape of a protoc-gen-go-grpc Register function.
func RegisterWorkerServiceServer(s *grpc.Server, srv WorkerServiceServer) {
	s.RegisterService(&workerServiceDesc, srv)
}

func workerServiceLaunchJobHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(LaunchJobRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkerServiceServer).LaunchJob(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/LaunchJob"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(WorkerServiceServer).LaunchJob(ctx, req.(*LaunchJobRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func workerServiceKillJobHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(KillJobRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkerServiceServer).KillJob(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/KillJob"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(WorkerServiceServer).KillJob(ctx, req.(*KillJobRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func workerServiceJobStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(JobStatusRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkerServiceServer).JobStatus(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/JobStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(WorkerServiceServer).JobStatus(ctx, req.(*JobStatusRequest))
	}
	return interceptor(ctx, req, info, handler)
}

var workerServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*WorkerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "LaunchJob", Handler: workerServiceLaunchJobHandler},
		{MethodName: "KillJob", Handler: workerServiceKillJobHandler},
		{MethodName: "JobStatus", Handler: workerServiceJobStatusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "worker.proto",
}

// WorkerServiceClient is the scheduler-side stub for the worker RPC
// service.
type WorkerServiceClient interface {
	LaunchJob(ctx context.Context, in *LaunchJobRequest, opts ...grpc.CallOption) (*LaunchJobResponse, error)
	KillJob(ctx context.Context, in *KillJobRequest, opts ...grpc.CallOption) (*KillJobResponse, error)
	JobStatus(ctx context.Context, in *JobStatusRequest, opts ...grpc.CallOption) (*JobStatusResponse, error)
}

type workerServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewWorkerServiceClient wraps a dialed connection in the typed stub.
func NewWorkerServiceClient(cc grpc.ClientConnInterface) WorkerServiceClient {
	return &workerServiceClient{cc: cc}
}

func (c *workerServiceClient) LaunchJob(ctx context.Context, in *LaunchJobRequest, opts ...grpc.CallOption) (*LaunchJobResponse, error) {
	out := new(LaunchJobResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/LaunchJob", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerServiceClient) KillJob(ctx context.Context, in *KillJobRequest, opts ...grpc.CallOption) (*KillJobResponse, error) {
	out := new(KillJobResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/KillJob", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerServiceClient) JobStatus(ctx context.Context, in *JobStatusRequest, opts ...grpc.CallOption) (*JobStatusResponse, error) {
	out := new(JobStatusResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/JobStatus", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// DialOptions returns the grpc.DialOption(s) a client must pass so
// calls are encoded with the gob codec instead of gRPC's built-in
// protobuf codec.
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}
}

// ServerOptions returns the grpc.ServerOption(s) a server must pass so
// incoming calls are decoded with the gob codec.
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ForceServerCodec(gobCodec{}),
	}
}
