package enrich

import (
	"context"
	"encoding/json"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/sealsweep/model"
)

// GRPCClient implements Lookuper over the Lookup gRPC service.
type GRPCClient struct {
	cc     *grpc.ClientConn
	client LookupClient

	// Timeout applies per RPC; DefaultTimeout when zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*GRPCClient, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return NewGRPCClient(cc, 0), nil
}

// NewGRPCClient wraps an existing connection.
func NewGRPCClient(cc *grpc.ClientConn, timeout time.Duration) *GRPCClient {
	return &GRPCClient{cc: cc, client: NewLookupClient(cc), Timeout: timeout}
}

func (c *GRPCClient) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *GRPCClient) Lookup(ctx context.Context, v model.Plaintext) (model.Profile, error) {
	if c == nil || c.client == nil {
		return model.Profile{}, model.NewError(model.KindEnrichmentFailure, model.ReasonNetworkError, "no connection")
	}
	ctx, cancel := withTimeout(ctx, c.Timeout)
	defer cancel()

	reply, err := c.client.Profile(ctx, wrapperspb.String(string(v)))
	if err != nil {
		return model.Profile{}, mapRPC(ctx, err)
	}
	return decodeProfile(reply.GetValue())
}

func mapRPC(ctx context.Context, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return classify(ctx, err)
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return model.WrapError(model.KindEnrichmentFailure, model.ReasonUnauthorized, st.Message(), err)
	case codes.ResourceExhausted:
		return model.WrapError(model.KindEnrichmentFailure, model.ReasonRateLimited, st.Message(), err)
	case codes.DeadlineExceeded:
		return model.WrapError(model.KindEnrichmentFailure, model.ReasonTimeout, st.Message(), err)
	default:
		return model.WrapError(model.KindEnrichmentFailure, model.ReasonNetworkError, st.Message(), err)
	}
}

// Server exposes any Lookuper over the Lookup gRPC service.
type Server struct {
	UnimplementedLookupServer
	Lookup Lookuper
}

func (s *Server) Profile(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Lookup == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing lookup backend")
	}
	p, err := s.Lookup.Lookup(ctx, model.Plaintext(in.GetValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	b, err := json.Marshal(lookupResponse{
		Subject:      p.Subject,
		DisplayName:  p.DisplayName,
		Flags:        p.Flags,
		Entitlements: p.Entitlements,
		Attributes:   p.Attributes,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "encode profile")
	}
	return wrapperspb.Bytes(b), nil
}

func toStatus(err error) error {
	switch model.ReasonOf(err) {
	case model.ReasonUnauthorized:
		return status.Error(codes.Unauthenticated, err.Error())
	case model.ReasonRateLimited:
		return status.Error(codes.ResourceExhausted, err.Error())
	case model.ReasonTimeout:
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}
