package grpcserver

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"userStore/internal/config"
	"userStore/internal/testutil"
	"userStore/repository"
)

const testSecret = "grpc-test-secret"

// startBufServer serves the user service over an in-memory listener and returns a client connection.
func startBufServer(t *testing.T, dbName string, logger zerolog.Logger) *grpc.ClientConn {
	t.Helper()
	conn := testutil.OpenInMemoryDB(t, dbName)
	users := repository.NewUserRepository(conn, zerolog.Nop())

	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: testSecret}}
	srv := NewServer(cfg, users, logger)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })
	return cc
}

func asRole(t *testing.T, subject, role string) context.Context {
	t.Helper()
	return testutil.OutgoingBearer(context.Background(), testutil.GenerateJWTHS256(t, testSecret, subject, role))
}

func userStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	st, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return st
}

func TestUserService_CRUD(t *testing.T) {
	cc := startBufServer(t, "grpc_crud", zerolog.Nop())
	writer := asRole(t, "w", "writer")
	reader := asRole(t, "r", "reader")

	id := new(wrapperspb.Int64Value)
	err := cc.Invoke(writer, MethodCreateUser, userStruct(t, map[string]any{
		"first_name": "Ada", "last_name": "Lovelace", "age": 30,
	}), id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id.GetValue())

	got := new(structpb.Struct)
	require.NoError(t, cc.Invoke(reader, MethodGetUser, wrapperspb.Int64(1), got))
	assert.Equal(t, map[string]any{
		"id": float64(1), "first_name": "Ada", "last_name": "Lovelace", "age": float64(30),
	}, got.AsMap())

	byName := new(structpb.Struct)
	require.NoError(t, cc.Invoke(reader, MethodFindUserByName, wrapperspb.String("Ada"), byName))
	assert.Equal(t, "Lovelace", byName.GetFields()["last_name"].GetStringValue())

	updated := new(structpb.Struct)
	require.NoError(t, cc.Invoke(writer, MethodUpdateUser, userStruct(t, map[string]any{
		"id": 1, "first_name": "Ada", "last_name": "King", "age": 36,
	}), updated))
	assert.Equal(t, "King", updated.GetFields()["last_name"].GetStringValue())

	list := new(structpb.ListValue)
	require.NoError(t, cc.Invoke(reader, MethodListUsers, &emptypb.Empty{}, list))
	require.Len(t, list.GetValues(), 1)
	assert.Equal(t, float64(36), list.GetValues()[0].GetStructValue().GetFields()["age"].GetNumberValue())

	deleted := new(wrapperspb.Int64Value)
	require.NoError(t, cc.Invoke(writer, MethodDeleteUser, wrapperspb.Int64(1), deleted))
	assert.Equal(t, int64(1), deleted.GetValue())

	require.NoError(t, cc.Invoke(writer, MethodDeleteUser, wrapperspb.Int64(1), deleted))
	assert.Zero(t, deleted.GetValue())

	err = cc.Invoke(reader, MethodGetUser, wrapperspb.Int64(1), got)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestUserService_Auth(t *testing.T) {
	cc := startBufServer(t, "grpc_auth", zerolog.Nop())
	in := userStruct(t, map[string]any{"first_name": "Ada", "last_name": "Lovelace", "age": 30})

	err := cc.Invoke(context.Background(), MethodCreateUser, in, new(wrapperspb.Int64Value))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	bad := testutil.OutgoingBearer(context.Background(), testutil.GenerateJWTHS256(t, "other", "w", "writer"))
	err = cc.Invoke(bad, MethodCreateUser, in, new(wrapperspb.Int64Value))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	err = cc.Invoke(asRole(t, "r", "reader"), MethodCreateUser, in, new(wrapperspb.Int64Value))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	err = cc.Invoke(asRole(t, "r", "reader"), MethodDeleteUser, wrapperspb.Int64(1), new(wrapperspb.Int64Value))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	// Health check needs no token.
	resp, err := healthpb.NewHealthClient(cc).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestUserService_InvalidArguments(t *testing.T) {
	cc := startBufServer(t, "grpc_invalid", zerolog.Nop())
	writer := asRole(t, "w", "writer")

	tests := []struct {
		name   string
		method string
		in     any
		out    any
		want   codes.Code
	}{
		{"missing first name", MethodCreateUser, userStruct(t, map[string]any{"last_name": "X", "age": 1}), new(wrapperspb.Int64Value), codes.InvalidArgument},
		{"missing age", MethodCreateUser, userStruct(t, map[string]any{"first_name": "A", "last_name": "X"}), new(wrapperspb.Int64Value), codes.InvalidArgument},
		{"fractional age", MethodCreateUser, userStruct(t, map[string]any{"first_name": "A", "last_name": "X", "age": 1.5}), new(wrapperspb.Int64Value), codes.InvalidArgument},
		{"negative age hits check constraint", MethodCreateUser, userStruct(t, map[string]any{"first_name": "A", "last_name": "X", "age": -1}), new(wrapperspb.Int64Value), codes.InvalidArgument},
		{"update without id", MethodUpdateUser, userStruct(t, map[string]any{"first_name": "A", "last_name": "X", "age": 1}), new(structpb.Struct), codes.InvalidArgument},
		{"update unknown id", MethodUpdateUser, userStruct(t, map[string]any{"id": 99, "first_name": "A", "last_name": "X", "age": 1}), new(structpb.Struct), codes.NotFound},
		{"get zero id", MethodGetUser, wrapperspb.Int64(0), new(structpb.Struct), codes.InvalidArgument},
		{"find empty name", MethodFindUserByName, wrapperspb.String(""), new(structpb.Struct), codes.InvalidArgument},
		{"find unknown name", MethodFindUserByName, wrapperspb.String("Nobody"), new(structpb.Struct), codes.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cc.Invoke(writer, tt.method, tt.in, tt.out)
			assert.Equal(t, tt.want, status.Code(err), "err: %v", err)
		})
	}
}

func TestUnaryLoggingInterceptor_RequestID(t *testing.T) {
	var buf bytes.Buffer
	icpt := NewUnaryLoggingInterceptor(zerolog.New(&buf).Level(zerolog.DebugLevel))
	info := &grpc.UnaryServerInfo{FullMethod: MethodGetUser}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDHeader, "req-123"))
	_, err := icpt(ctx, nil, info, func(ctx context.Context, _ any) (any, error) {
		zerolog.Ctx(ctx).Info().Msg("inside handler")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(buf.String(), `"request_id":"req-123"`))

	buf.Reset()
	_, err = icpt(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.NotFound, "nope")
	})
	assert.Equal(t, codes.NotFound, status.Code(err))
	assert.Contains(t, buf.String(), `"code":"NotFound"`)
	assert.Contains(t, buf.String(), `"request_id":"`)
}

// stubUsers answers every method with a fixed value so the descriptor can be driven directly.
type stubUsers struct{ UserServiceServer }

func (stubUsers) DeleteUser(context.Context, *wrapperspb.Int64Value) (*wrapperspb.Int64Value, error) {
	return wrapperspb.Int64(7), nil
}

func TestUserServiceDesc_Handlers(t *testing.T) {
	require.Len(t, UserServiceDesc.Methods, 6)
	names := make([]string, 0, len(UserServiceDesc.Methods))
	for _, m := range UserServiceDesc.Methods {
		names = append(names, m.MethodName)
	}
	assert.ElementsMatch(t, []string{"CreateUser", "GetUser", "FindUserByName", "ListUsers", "UpdateUser", "DeleteUser"}, names)

	var del grpc.MethodDesc
	for _, m := range UserServiceDesc.Methods {
		if m.MethodName == "DeleteUser" {
			del = m
		}
	}
	dec := func(v any) error {
		v.(*wrapperspb.Int64Value).Value = 3
		return nil
	}

	// Without an interceptor the call goes straight to the server.
	out, err := del.Handler(stubUsers{}, context.Background(), dec, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), out.(*wrapperspb.Int64Value).GetValue())

	// With one, the interceptor sees the decoded request and the full method name.
	var seen string
	icpt := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		seen = info.FullMethod
		assert.Equal(t, int64(3), req.(*wrapperspb.Int64Value).GetValue())
		return handler(ctx, req)
	}
	out, err = del.Handler(stubUsers{}, context.Background(), dec, icpt)
	require.NoError(t, err)
	assert.Equal(t, MethodDeleteUser, seen)
	assert.Equal(t, int64(7), out.(*wrapperspb.Int64Value).GetValue())
}
