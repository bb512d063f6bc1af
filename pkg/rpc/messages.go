// Package rpc defines the wire contract between the scheduler's host
// client and the worker process: three methods (launch, kill, status)
// carried over gRPC.
//
// The worker RPC service only ever exchanges primitives and lists of
// primitive tuples (absolute paths as strings, integers, bools), so the
// request/response types below are plain Go structs rather than
// protoc-generated protobuf messages: generating real *.pb.go bindings
// requires invoking protoc, which is unavailable in this build
// environment, and hand-authoring the reflection-backed output protoc
// normally produces (raw FileDescriptorProto bytes, ProtoReflect) is not
// something that can be done reliably without a compiler to check it
// against. Instead the messages below are carried by a small gRPC codec
// (see codec.go) built on encoding/gob, keeping the real gRPC transport,
// deadlines, and service topology while sidestepping hand-rolled
// protobuf reflection. See DESIGN.md for the full rationale.
package rpc

// DumpEntry is a single (content, absolute path) pair the worker must
// write to disk before starting the job's command.
type DumpEntry struct {
	Content string
	Path    string
}

// LaunchJobRequest carries everything the worker needs to start a job.
type LaunchJobRequest struct {
	Cwd      string
	Command  string
	Outdir   string
	AuxPaths []string
	Dump     []DumpEntry
}

// LaunchJobResponse carries the pid of the launched process, or -1 if
// the worker failed to start it.
type LaunchJobResponse struct {
	PID int32
}

// KillJobRequest asks the worker to signal the process group rooted at
// PID with Signum.
type KillJobRequest struct {
	PID    int32
	Signum int32
}

// KillJobResponse reports whether the OS accepted the signal.
type KillJobResponse struct {
	Ok bool
}

// JobStatusRequest asks the worker for the liveness of a previously
// launched pid.
type JobStatusRequest struct {
	PID int32
}

// JobStatusResponse carries "RUNNING" or "EXITED".
type JobStatusResponse struct {
	Status string
}
