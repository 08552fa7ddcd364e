package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "userstore.v1.UserService"

// Full method names, as seen by interceptors.
const (
	MethodCreateUser     = "/" + ServiceName + "/CreateUser"
	MethodGetUser        = "/" + ServiceName + "/GetUser"
	MethodFindUserByName = "/" + ServiceName + "/FindUserByName"
	MethodListUsers      = "/" + ServiceName + "/ListUsers"
	MethodUpdateUser     = "/" + ServiceName + "/UpdateUser"
	MethodDeleteUser     = "/" + ServiceName + "/DeleteUser"
)

// UserServiceServer is the server API for the user service.
// Messages are protobuf well-known types; a user travels as a Struct with the
// fields id, first_name, last_name and age.
type UserServiceServer interface {
	CreateUser(context.Context, *structpb.Struct) (*wrapperspb.Int64Value, error)
	GetUser(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	FindUserByName(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListUsers(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	UpdateUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteUser(context.Context, *wrapperspb.Int64Value) (*wrapperspb.Int64Value, error)
}

// RegisterUserServiceServer registers srv on s.
func RegisterUserServiceServer(s grpc.ServiceRegistrar, srv UserServiceServer) {
	s.RegisterService(&UserServiceDesc, srv)
}

// UserServiceDesc describes the user service for grpc.Server.RegisterService.
var UserServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*UserServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateUser",
			Handler: unaryHandler(MethodCreateUser, newStruct, func(s UserServiceServer, ctx context.Context, in *structpb.Struct) (*wrapperspb.Int64Value, error) {
				return s.CreateUser(ctx, in)
			}),
		},
		{
			MethodName: "GetUser",
			Handler: unaryHandler(MethodGetUser, newInt64, func(s UserServiceServer, ctx context.Context, in *wrapperspb.Int64Value) (*structpb.Struct, error) {
				return s.GetUser(ctx, in)
			}),
		},
		{
			MethodName: "FindUserByName",
			Handler: unaryHandler(MethodFindUserByName, newString, func(s UserServiceServer, ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
				return s.FindUserByName(ctx, in)
			}),
		},
		{
			MethodName: "ListUsers",
			Handler: unaryHandler(MethodListUsers, newEmpty, func(s UserServiceServer, ctx context.Context, in *emptypb.Empty) (*structpb.ListValue, error) {
				return s.ListUsers(ctx, in)
			}),
		},
		{
			MethodName: "UpdateUser",
			Handler: unaryHandler(MethodUpdateUser, newStruct, func(s UserServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.UpdateUser(ctx, in)
			}),
		},
		{
			MethodName: "DeleteUser",
			Handler: unaryHandler(MethodDeleteUser, newInt64, func(s UserServiceServer, ctx context.Context, in *wrapperspb.Int64Value) (*wrapperspb.Int64Value, error) {
				return s.DeleteUser(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "userstore/v1/user_service",
}

func newStruct() *structpb.Struct {
	return new(structpb.Struct)
}

func newInt64() *wrapperspb.Int64Value {
	return new(wrapperspb.Int64Value)
}

func newString() *wrapperspb.StringValue {
	return new(wrapperspb.StringValue)
}

func newEmpty() *emptypb.Empty {
	return new(emptypb.Empty)
}

// methodHandler has the signature grpc.MethodDesc.Handler expects.
type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

// unaryHandler builds the decode/intercept/dispatch boilerplate protoc-gen-go-grpc would emit.
func unaryHandler[Req, Resp any](fullMethod string, newReq func() Req, call func(UserServiceServer, context.Context, Req) (Resp, error)) methodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(UserServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(UserServiceServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
