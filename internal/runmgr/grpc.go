package runmgr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/casa-core/internal/runcase"
	"github.com/GoSim-25-26J-441/casa-core/pkg/logger"
	"github.com/GoSim-25-26J-441/casa-core/pkg/utils"
)

const (
	// ServiceName is the gRPC service of a remote run manager.
	ServiceName = "casa.runmanager.v1.RunManager"
	// RunCaseMethod is the full name of the unary run call.
	RunCaseMethod = "/" + ServiceName + "/RunCase"
)

// GRPCRunner submits cases to a remote run manager. Request and response are
// google.protobuf.Struct messages:
//
//	request:  {scenario_id, project_path, parameters: {name: [values]}}
//	response: {state: "Completed" | "Failed", message}
type GRPCRunner struct {
	conn       grpc.ClientConnInterface
	closer     func() error
	backoff    utils.BackoffStrategy
	maxRetries int
	log        *slog.Logger
}

// GRPCOption customizes a GRPCRunner.
type GRPCOption func(*GRPCRunner)

// WithBackoff sets the delay between retries of transient failures.
func WithBackoff(b utils.BackoffStrategy) GRPCOption { return func(r *GRPCRunner) { r.backoff = b } }

// WithMaxRetries sets how often a transient failure is retried.
func WithMaxRetries(n int) GRPCOption { return func(r *GRPCRunner) { r.maxRetries = n } }

// WithRunnerLogger sets the runner logger.
func WithRunnerLogger(l *slog.Logger) GRPCOption { return func(r *GRPCRunner) { r.log = l } }

// NewGRPCRunner wraps an existing connection.
func NewGRPCRunner(conn grpc.ClientConnInterface, opts ...GRPCOption) *GRPCRunner {
	r := &GRPCRunner{
		conn:       conn,
		backoff:    utils.BackoffFromConfig("exponential", 200, 5000),
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.OrComponent(r.log, "runmgr")
	return r
}

// DialGRPC connects to a run manager at addr without transport security.
func DialGRPC(addr string, opts ...GRPCOption) (*GRPCRunner, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial run manager %s: %w", addr, err)
	}
	r := NewGRPCRunner(conn, opts...)
	r.closer = conn.Close
	return r, nil
}

// Close releases a connection opened by DialGRPC.
func (r *GRPCRunner) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

func retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted:
		return true
	}
	return false
}

func caseRequest(c *runcase.Case, scenarioID string) (*structpb.Struct, error) {
	params := make(map[string]any, c.ParametersNumber())
	for _, v := range c.Parameters() {
		vals := v.Floats()
		list := make([]any, len(vals))
		for i, x := range vals {
			list[i] = x
		}
		params[v.Parameter().Name()] = list
	}
	return structpb.NewStruct(map[string]any{
		"scenario_id":  scenarioID,
		"project_path": c.ProjectPath(),
		"parameters":   params,
	})
}

func (r *GRPCRunner) Run(ctx context.Context, c *runcase.Case, scenarioID string) error {
	req, err := caseRequest(c, scenarioID)
	if err != nil {
		return fmt.Errorf("encode run request: %w", err)
	}

	for attempt := 0; ; attempt++ {
		resp := &structpb.Struct{}
		err = r.conn.Invoke(ctx, RunCaseMethod, req, resp)
		if err == nil {
			return runResult(resp)
		}
		if !retryable(err) || attempt >= r.maxRetries {
			return fmt.Errorf("run manager call: %w", err)
		}
		delay := r.backoff.NextDelay(attempt)
		r.log.Warn("run manager unavailable, retrying", "attempt", attempt+1, "delay", delay, "error", err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func runResult(resp *structpb.Struct) error {
	fields := resp.GetFields()
	state := fields["state"].GetStringValue()
	msg := fields["message"].GetStringValue()
	switch state {
	case runcase.Completed.String():
		return nil
	case runcase.Failed.String():
		if msg == "" {
			msg = "simulator reported failure"
		}
		return fmt.Errorf("%s", msg)
	default:
		return fmt.Errorf("run manager returned unknown state %q", state)
	}
}

// Server serves RunCase by handing each request to a local Runner.
type Server struct {
	runner Runner
	log    *slog.Logger
}

// RunManagerServer is the handler type registered with grpc.
type RunManagerServer interface {
	RunCase(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// NewServer returns a server executing cases with runner.
func NewServer(runner Runner, log *slog.Logger) *Server {
	return &Server{runner: runner, log: logger.OrComponent(log, "runmgr")}
}

func (s *Server) RunCase(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	fields := req.GetFields()
	path := fields["project_path"].GetStringValue()
	if path == "" {
		return nil, status.Error(codes.InvalidArgument, "project_path is required")
	}
	scenarioID := fields["scenario_id"].GetStringValue()

	c := runcase.New()
	c.SetProjectPath(path)
	s.log.Info("run requested", "scenario", scenarioID, "project", path)
	state, msg := runcase.Completed.String(), ""
	if err := s.runner.Run(ctx, c, scenarioID); err != nil {
		state, msg = runcase.Failed.String(), err.Error()
		s.log.Warn("run failed", "scenario", scenarioID, "project", path, "error", err)
	}
	return structpb.NewStruct(map[string]any{"state": state, "message": msg})
}

func runCaseHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := &structpb.Struct{}
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RunManagerServer).RunCase(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RunCaseMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RunManagerServer).RunCase(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RunManagerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RunCase", Handler: runCaseHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "casa/runmanager/v1/runmanager.proto",
}

// Register adds srv to a grpc server.
func Register(s grpc.ServiceRegistrar, srv RunManagerServer) {
	s.RegisterService(&serviceDesc, srv)
}
