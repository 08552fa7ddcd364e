package grpcserver

import (
	"context"
	"errors"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"userStore/internal/auth"
	"userStore/internal/sqlerr"
	"userStore/models"
	"userStore/repository"
)

// Struct field names of a user message.
const (
	fieldID        = "id"
	fieldFirstName = "first_name"
	fieldLastName  = "last_name"
	fieldAge       = "age"
)

var validate = validator.New()

// userInput is the validated payload of CreateUser and UpdateUser.
type userInput struct {
	ID        int64  `validate:"gte=0"`
	FirstName string `validate:"required"`
	LastName  string `validate:"required"`
	Age       int
}

// UserServer implements UserServiceServer on top of a user repository.
type UserServer struct {
	Users repository.UserRepositoryI
}

var _ UserServiceServer = (*UserServer)(nil)

// CreateUser inserts the user and returns its generated id. Requires the writer role.
func (s *UserServer) CreateUser(ctx context.Context, req *structpb.Struct) (*wrapperspb.Int64Value, error) {
	if _, err := auth.RequireWriter(ctx); err != nil {
		return nil, err
	}
	in, err := userFromStruct(req, false)
	if err != nil {
		return nil, err
	}
	id, err := s.Users.CreateUser(ctx, in.FirstName, in.LastName, in.Age)
	if err != nil {
		return nil, toStatus(err, "create user")
	}
	zerolog.Ctx(ctx).Info().Int64("user_id", id).Msg("user created")
	return wrapperspb.Int64(id), nil
}

// GetUser returns the user with the given id. Any authenticated caller may read.
func (s *UserServer) GetUser(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	if _, err := auth.RequirePrincipal(ctx); err != nil {
		return nil, err
	}
	if req.GetValue() <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id must be positive")
	}
	u, err := s.Users.FindUserByID(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err, "get user")
	}
	return userToStruct(u)
}

// FindUserByName returns the first user whose first name matches.
func (s *UserServer) FindUserByName(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if _, err := auth.RequirePrincipal(ctx); err != nil {
		return nil, err
	}
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "first name is required")
	}
	u, err := s.Users.FindUserByName(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err, "find user")
	}
	return userToStruct(u)
}

// ListUsers returns every user as a list of structs.
func (s *UserServer) ListUsers(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	if _, err := auth.RequirePrincipal(ctx); err != nil {
		return nil, err
	}
	users, err := s.Users.FindAllUsers(ctx)
	if err != nil {
		return nil, toStatus(err, "list users")
	}
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(users))}
	for i := range users {
		st, err := userToStruct(&users[i])
		if err != nil {
			return nil, err
		}
		out.Values = append(out.Values, structpb.NewStructValue(st))
	}
	return out, nil
}

// UpdateUser overwrites the user named by id. An id that matches no row is NotFound.
func (s *UserServer) UpdateUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := auth.RequireWriter(ctx); err != nil {
		return nil, err
	}
	in, err := userFromStruct(req, true)
	if err != nil {
		return nil, err
	}
	u, n, err := s.Users.UpdateUser(ctx, &models.User{ID: in.ID, FirstName: in.FirstName, LastName: in.LastName, Age: in.Age})
	if err != nil {
		return nil, toStatus(err, "update user")
	}
	if n == 0 {
		return nil, status.Errorf(codes.NotFound, "user %d not found", in.ID)
	}
	zerolog.Ctx(ctx).Info().Int64("user_id", u.ID).Msg("user updated")
	return userToStruct(u)
}

// DeleteUser removes the user and returns the number of rows deleted (0 or 1).
func (s *UserServer) DeleteUser(ctx context.Context, req *wrapperspb.Int64Value) (*wrapperspb.Int64Value, error) {
	if _, err := auth.RequireWriter(ctx); err != nil {
		return nil, err
	}
	n, err := s.Users.DeleteUser(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err, "delete user")
	}
	zerolog.Ctx(ctx).Info().Int64("user_id", req.GetValue()).Int64("deleted", n).Msg("user deleted")
	return wrapperspb.Int64(n), nil
}

// toStatus maps repository and driver errors onto gRPC codes.
func toStatus(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return status.Errorf(codes.NotFound, "%s: not found", op)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s: %v", op, err)
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s: %v", op, err)
	case errors.Is(err, repository.ErrNoConnection):
		return status.Errorf(codes.Unavailable, "%s: %v", op, err)
	}
	switch sqlerr.Classify(err) {
	case sqlerr.UniqueViolation:
		return status.Errorf(codes.AlreadyExists, "%s: %v", op, err)
	case sqlerr.CheckViolation, sqlerr.NotNullViolation, sqlerr.ForeignKeyViolation:
		return status.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	}
	return status.Errorf(codes.Internal, "%s: %v", op, err)
}

func userToStruct(u *models.User) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(map[string]any{
		fieldID:        u.ID,
		fieldFirstName: u.FirstName,
		fieldLastName:  u.LastName,
		fieldAge:       u.Age,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode user: %v", err)
	}
	return st, nil
}

// userFromStruct reads a user message. withID requires a positive id field.
func userFromStruct(st *structpb.Struct, withID bool) (*userInput, error) {
	f := st.GetFields()
	in := &userInput{
		FirstName: f[fieldFirstName].GetStringValue(),
		LastName:  f[fieldLastName].GetStringValue(),
	}
	age, err := integerField(f, fieldAge)
	if err != nil {
		return nil, err
	}
	in.Age = int(age)
	if withID {
		if in.ID, err = integerField(f, fieldID); err != nil {
			return nil, err
		}
		if in.ID <= 0 {
			return nil, status.Error(codes.InvalidArgument, "id must be positive")
		}
	}
	if err := validate.Struct(in); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid user: %v", err)
	}
	return in, nil
}

func integerField(f map[string]*structpb.Value, name string) (int64, error) {
	v, ok := f[name]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a number", name)
	}
	if n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > 1<<53 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
	}
	return int64(n.NumberValue), nil
}
