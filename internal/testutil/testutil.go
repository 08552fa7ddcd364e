package testutil

import (
	"context"
	"testing"

	jwt "github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/metadata"

	"userStore/internal/db"
)

// OpenInMemoryDB opens a named in-memory SQLite database with the myusers table.
// The connection is closed via t.Cleanup.
func OpenInMemoryDB(t *testing.T, name string) *db.Conn {
	t.Helper()
	// Shared cache keeps the database alive for every connection using the same name.
	c, err := db.Open(context.Background(), "sqlite3", "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	if err := db.EnsureSchema(context.Background(), c); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return c
}

// GenerateJWTHS256 returns a signed JWT string with the subject and role claims used by the app.
func GenerateJWTHS256(t *testing.T, secret, subject, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// CtxWithBearer returns a context containing gRPC metadata Authorization header with the given token.
func CtxWithBearer(ctx context.Context, token string) context.Context {
	md := metadata.Pairs("authorization", "Bearer "+token)
	return metadata.NewIncomingContext(ctx, md)
}

// OutgoingBearer attaches the token to an outgoing client context.
func OutgoingBearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}
