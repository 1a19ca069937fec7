package interceptors

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/NT912/Finwise---final-sub002/internal/core/domain"
	"github.com/NT912/Finwise---final-sub002/internal/core/port"
)

const authorizationKey = "authorization"

// AuthOptions fine-tunes interceptor behaviour.
type AuthOptions struct {
	// AllowMethods lists full method names served without a token.
	AllowMethods []string
	Logger       *zap.Logger
}

// AuthInterceptor validates incoming requests using bearer tokens.
type AuthInterceptor struct {
	verifier port.TokenVerifier
	logger   *zap.Logger
	allow    map[string]struct{}
}

// NewAuthInterceptor constructs a new AuthInterceptor instance.
func NewAuthInterceptor(verifier port.TokenVerifier, opts AuthOptions) *AuthInterceptor {
	allow := make(map[string]struct{}, len(opts.AllowMethods))
	for _, method := range opts.AllowMethods {
		if method = strings.TrimSpace(method); method != "" {
			allow[method] = struct{}{}
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthInterceptor{verifier: verifier, logger: logger, allow: allow}
}

// UnaryServerInterceptor returns a gRPC unary interceptor that enforces bearer authentication.
// A missing token yields Unauthenticated; a rejected one PermissionDenied.
func (ai *AuthInterceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if _, ok := ai.allow[info.FullMethod]; ok {
			return handler(ctx, req)
		}

		token, ok := tokenFromMetadata(ctx)
		if !ok {
			ai.logger.Debug("gRPC request without token", zap.String("method", info.FullMethod))
			return nil, StatusFromError(domain.ErrMissingToken)
		}

		subjectID, err := ai.verifier.Verify(token)
		if err != nil {
			ai.logger.Warn("gRPC token validation failed",
				zap.String("method", info.FullMethod),
				zap.String("code", domain.KindOf(err).String()),
			)
			return nil, StatusFromError(err)
		}

		return handler(WithSubject(ctx, subjectID), req)
	}
}

type subjectContextKey struct{}

// WithSubject returns a derived context carrying the authenticated subject id.
func WithSubject(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, subjectID)
}

// SubjectFromContext extracts the authenticated subject id when available.
func SubjectFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(subjectContextKey{}).(string)
	return id, ok && id != ""
}

func tokenFromMetadata(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}

	values := md.Get(authorizationKey)
	if len(values) == 0 {
		return "", false
	}

	scheme, value, found := strings.Cut(strings.TrimSpace(values[0]), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(value)
	return token, token != ""
}
