// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package rpc

import (
	"context"
	"fmt"
	"net"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rapidaai/rialto/pkg/commons"
)

// ServiceName is the fully qualified gRPC service the gateway registers as.
const ServiceName = "rialto.v1.PlayerGateway"

// serviceDesc registers the gateway by hand: the command envelope is a
// protobuf Struct, so there is no generated stub to lean on.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*gatewayServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Execute",
			Handler:    executeHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Events",
			Handler:       eventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "rialto/v1/player_gateway.proto",
}

// gatewayServer is the server contract serviceDesc binds to.
type gatewayServer interface {
	Execute(ctx context.Context, cmd *structpb.Struct) (*structpb.Struct, error)
	Events(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error
}

func executeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(gatewayServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/Execute",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(gatewayServer).Execute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func eventsHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(gatewayServer).Events(m, &eventsStream{ServerStream: stream})
}

type eventsStream struct {
	grpc.ServerStream
}

func (s *eventsStream) Send(m *structpb.Struct) error {
	return s.ServerStream.SendMsg(m)
}

// Server owns the gRPC listener serving the gateway.
type Server struct {
	logger commons.Logger
	grpc   *grpc.Server
}

// NewServer builds the gRPC server with the recovery and logging
// interceptors and registers the gateway service on it.
func NewServer(logger commons.Logger, gateway *Gateway) *Server {
	if logger == nil {
		logger = commons.NewNoopLogger()
	}

	logAdapter := logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		switch lvl {
		case logging.LevelDebug:
			logger.Debugw(msg, fields...)
		case logging.LevelWarn:
			logger.Warnw(msg, fields...)
		case logging.LevelError:
			logger.Errorw(msg, fields...)
		default:
			logger.Infow(msg, fields...)
		}
	})
	recoveryHandler := recovery.WithRecoveryHandler(func(p any) error {
		logger.Errorw("rpc handler panicked", "recover", fmt.Sprintf("%v", p))
		return status.Errorf(codes.Internal, "internal error")
	})

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logging.UnaryServerInterceptor(logAdapter),
			recovery.UnaryServerInterceptor(recoveryHandler),
		),
		grpc.ChainStreamInterceptor(
			logging.StreamServerInterceptor(logAdapter),
			recovery.StreamServerInterceptor(recoveryHandler),
		),
	)
	s.RegisterService(&serviceDesc, gateway)

	return &Server{logger: logger, grpc: s}
}

// Serve listens on addr until Stop or a listener failure.
func (s *Server) Serve(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", addr, err)
	}
	s.logger.Infow("rpc server listening", "addr", addr)
	return s.grpc.Serve(listener)
}

// Stop drains in-flight RPCs and shuts the server down.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}

var _ gatewayServer = (*Gateway)(nil)
