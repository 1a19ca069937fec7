package transportgrpc

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/NT912/Finwise---final-sub002/internal/core/domain"
	"github.com/NT912/Finwise---final-sub002/internal/core/port"
	"github.com/NT912/Finwise---final-sub002/internal/transport/grpc/interceptors"
)

// Identity service method names.
const (
	IdentityServiceName   = "finwise.identity.v1.Identity"
	IntrospectTokenMethod = "/" + IdentityServiceName + "/IntrospectToken"
	WhoAmIMethod          = "/" + IdentityServiceName + "/WhoAmI"
)

// IdentityService is the contract of finwise.identity.v1.Identity. Messages
// are protobuf well-known types.
type IdentityService interface {
	// IntrospectToken reports whether a token is active and whom it names.
	IntrospectToken(ctx context.Context, token *wrapperspb.StringValue) (*structpb.Struct, error)
	// WhoAmI returns the subject of the caller's bearer token.
	WhoAmI(ctx context.Context, in *emptypb.Empty) (*wrapperspb.StringValue, error)
}

// IdentityServiceDesc describes finwise.identity.v1.Identity for grpc.Server.RegisterService.
var IdentityServiceDesc = grpc.ServiceDesc{
	ServiceName: IdentityServiceName,
	HandlerType: (*IdentityService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "IntrospectToken", Handler: introspectTokenHandler},
		{MethodName: "WhoAmI", Handler: whoAmIHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "finwise/identity/v1/identity.proto",
}

func introspectTokenHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityService).IntrospectToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: IntrospectTokenMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IdentityService).IntrospectToken(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func whoAmIHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityService).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: WhoAmIMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IdentityService).WhoAmI(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// IdentityServer implements IdentityService on top of the token codec.
type IdentityServer struct {
	verifier port.TokenVerifier
	logger   *zap.Logger
}

// NewIdentityServer constructs an IdentityServer.
func NewIdentityServer(verifier port.TokenVerifier, logger *zap.Logger) *IdentityServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityServer{verifier: verifier, logger: logger}
}

// IntrospectToken never fails for a bad token; it answers active=false with
// the rejection kind instead.
func (s *IdentityServer) IntrospectToken(_ context.Context, token *wrapperspb.StringValue) (*structpb.Struct, error) {
	fields := map[string]interface{}{"active": false}

	switch value := token.GetValue(); {
	case value == "":
		fields["code"] = domain.KindMissingToken.String()
	default:
		subject, err := s.verifier.Verify(value)
		if err != nil {
			fields["code"] = domain.KindOf(err).String()
			break
		}
		fields["active"] = true
		fields["subject"] = subject
	}

	out, err := structpb.NewStruct(fields)
	if err != nil {
		s.logger.Error("build introspection response", zap.Error(err))
		return nil, interceptors.StatusFromError(err)
	}
	return out, nil
}

// WhoAmI requires the auth interceptor to have placed a subject on ctx.
func (s *IdentityServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	subject, ok := interceptors.SubjectFromContext(ctx)
	if !ok {
		return nil, interceptors.StatusFromError(domain.ErrMissingToken)
	}
	return wrapperspb.String(subject), nil
}

var _ IdentityService = (*IdentityServer)(nil)
