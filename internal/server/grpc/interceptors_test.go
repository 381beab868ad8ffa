package grpcserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/account-keeper/internal/errs"
)

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "127.0.0.1:12345" }

type fakeTokens struct {
	id  uuid.UUID
	err error
}

func (f fakeTokens) Parse(raw string) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	return f.id, nil
}

func TestLoggingUnary_Passthrough(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	ic := LoggingUnary(zap.New(core), nil)

	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: fakeAddr{}})

	h := func(ctx context.Context, req any) (any, error) { return "ok", nil }
	info := &grpc.UnaryServerInfo{FullMethod: "/account.v1.Accounts/Method"}

	resp, err := ic(ctx, "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s, _ := resp.(string); s != "ok" {
		t.Fatalf("resp mismatch: %v", resp)
	}

	wantErr := errors.New("boom")
	hErr := func(ctx context.Context, req any) (any, error) { return nil, wantErr }
	_, err = ic(ctx, "req", info, hErr)
	if !errors.Is(err, wantErr) {
		t.Fatalf("want original error, got: %v", err)
	}

	entries := logs.FilterMessage("grpc").All()
	if len(entries) != 2 {
		t.Fatalf("want 2 log lines, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["peer"]; got != "127.0.0.1:12345" {
		t.Fatalf("peer not logged: %v", got)
	}
}

func TestRecoverUnary_CatchesPanic(t *testing.T) {
	t.Parallel()

	ic := RecoverUnary(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/account.v1.Accounts/Panic"}

	panicH := func(ctx context.Context, req any) (any, error) {
		panic("oh no")
	}

	_, err := ic(context.Background(), "req", info, panicH)
	if !errs.IsKind(err, errs.KindInternal) {
		t.Fatalf("want Internal, got: %v", err)
	}
}

func TestRecoverUnary_NoPanicPassThrough(t *testing.T) {
	t.Parallel()

	ic := RecoverUnary(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/account.v1.Accounts/Ok"}

	h := func(ctx context.Context, req any) (any, error) { return 42, nil }

	resp, err := ic(context.Background(), "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resp.(int) != 42 {
		t.Fatalf("resp mismatch: %v", resp)
	}
}

func TestLoggingUnary_DurationFieldDoesNotBlock(t *testing.T) {
	t.Parallel()

	ic := LoggingUnary(zaptest.NewLogger(t), nil)
	info := &grpc.UnaryServerInfo{FullMethod: "/account.v1.Accounts/Sleep"}
	h := func(ctx context.Context, req any) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return "done", nil
	}

	start := time.Now()
	resp, err := ic(context.Background(), "req", info, h)
	if err != nil || resp.(string) != "done" {
		t.Fatalf("unexpected result: %v, %v", resp, err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("duration should reflect handler time")
	}
}

func TestErrorsUnary(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ic := ErrorsUnary(zap.New(core), nil)
	info := &grpc.UnaryServerInfo{FullMethod: "/account.v1.Accounts/GetMe"}

	h := func(context.Context, any) (any, error) {
		return nil, errs.New(errs.KindUserNotFound).WithDetail("id", "42")
	}
	_, err := ic(context.Background(), nil, info, h)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("want NotFound, got %v", err)
	}
	rep, ok := FromStatus(err)
	if !ok || rep.Code != errs.KindUserNotFound.Code().String() || rep.Details["id"] != "42" {
		t.Fatalf("bad representation: %+v ok=%v", rep, ok)
	}
	if logs.FilterMessage("grpc request failed").Len() != 1 {
		t.Fatalf("error not logged")
	}

	already := status.Error(codes.Canceled, "gone")
	_, err = ic(context.Background(), nil, info, func(context.Context, any) (any, error) { return nil, already })
	if err != already {
		t.Fatalf("status errors must pass through, got %v", err)
	}

	resp, err := ic(context.Background(), nil, info, func(context.Context, any) (any, error) { return "ok", nil })
	if err != nil || resp != "ok" {
		t.Fatalf("unexpected result: %v, %v", resp, err)
	}
}

func TestAuthUnary(t *testing.T) {
	t.Parallel()

	id := uuid.Must(uuid.NewV4())
	ic := AuthUnary(fakeTokens{id: id}, FullMethod("Login"))

	var seen uuid.UUID
	h := func(ctx context.Context, _ any) (any, error) {
		seen, _ = UserIDFromCtx(ctx)
		return nil, nil
	}

	// public and foreign methods need no token
	for _, m := range []string{FullMethod("Login"), "/grpc.health.v1.Health/Check"} {
		if _, err := ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: m}, h); err != nil {
			t.Fatalf("%s: %v", m, err)
		}
	}

	protected := &grpc.UnaryServerInfo{FullMethod: FullMethod("GetMe")}
	if _, err := ic(context.Background(), nil, protected, h); !errs.IsKind(err, errs.KindAuthenticationRequired) {
		t.Fatalf("want AuthenticationRequired, got %v", err)
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer tok"))
	if _, err := ic(ctx, nil, protected, h); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if seen != id {
		t.Fatalf("user id not propagated: %s", seen)
	}

	bad := AuthUnary(fakeTokens{err: errs.New(errs.KindTokenExpired)})
	if _, err := bad(ctx, nil, protected, h); !errs.IsKind(err, errs.KindTokenExpired) {
		t.Fatalf("want TokenExpired, got %v", err)
	}
}
