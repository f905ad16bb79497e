package grpc

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	serviceTokenHeader = "x-service-token"

	// ServiceName is the health entry that tracks the portal API.
	ServiceName = "schoolportal.Portal"
)

// NewServer registers the standard health service. When token is set every call,
// including the Watch stream, must carry it.
func NewServer(token string) (*grpc.Server, *health.Server, error) {
	var opts []grpc.ServerOption
	if token != "" {
		unary, err := NewServiceAuthUnaryInterceptor(token)
		if err != nil {
			return nil, nil, err
		}
		stream, err := NewServiceAuthStreamInterceptor(token)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, grpc.UnaryInterceptor(unary), grpc.StreamInterceptor(stream))
	}
	server := grpc.NewServer(opts...)
	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	return server, healthServer, nil
}

type serviceToken []byte

func newServiceToken(expected string) (serviceToken, error) {
	if expected == "" {
		return nil, errors.New("service auth token required")
	}
	return serviceToken(expected), nil
}

// verify compares the x-service-token metadata of an incoming call against the configured token.
func (t serviceToken) verify(ctx context.Context) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing_service_token")
	}
	values := md.Get(serviceTokenHeader)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return status.Error(codes.Unauthenticated, "missing_service_token")
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(values[0])), t) != 1 {
		return status.Error(codes.PermissionDenied, "invalid_service_token")
	}
	return nil
}

func NewServiceAuthUnaryInterceptor(expectedToken string) (grpc.UnaryServerInterceptor, error) {
	token, err := newServiceToken(expectedToken)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if err := token.verify(ctx); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}, nil
}

// NewServiceAuthStreamInterceptor guards streaming calls such as Health/Watch.
func NewServiceAuthStreamInterceptor(expectedToken string) (grpc.StreamServerInterceptor, error) {
	token, err := newServiceToken(expectedToken)
	if err != nil {
		return nil, err
	}
	return func(srv interface{}, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := token.verify(ss.Context()); err != nil {
			return err
		}
		return handler(srv, ss)
	}, nil
}
