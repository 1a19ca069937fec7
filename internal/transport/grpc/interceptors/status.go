package interceptors

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/NT912/Finwise---final-sub002/internal/core/domain"
)

// Code maps a domain kind to its gRPC status code.
func Code(kind domain.Kind) codes.Code {
	switch kind {
	case domain.KindMissingToken:
		return codes.Unauthenticated
	case domain.KindInvalidToken, domain.KindExpiredToken:
		return codes.PermissionDenied
	case domain.KindWeakPassword, domain.KindInvalidRequest:
		return codes.InvalidArgument
	case domain.KindInvalidCredential,
		domain.KindNoCodeRequested,
		domain.KindCodeExpired,
		domain.KindInvalidCode:
		return codes.FailedPrecondition
	case domain.KindRateLimited:
		return codes.ResourceExhausted
	case domain.KindCodeDeliveryFailed, domain.KindServiceUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// StatusFromError converts err to a gRPC status carrying the kind name as
// its message. Untagged causes never reach the client.
func StatusFromError(err error) error {
	if err == nil {
		return nil
	}
	kind := domain.KindOf(err)
	return status.Error(Code(kind), kind.String())
}
