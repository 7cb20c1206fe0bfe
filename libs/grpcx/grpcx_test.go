package grpcx

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/md-rashed-zaman/homebook/libs/httpx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestServerHealthRoundTrip(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	conn, err := Dial(lis.Addr().String(), DialOptions{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.SetServing(true, "booking")
	if err := HealthCheck(conn, "booking")(ctx); err != nil {
		t.Fatalf("expected serving, got %v", err)
	}
	srv.SetServing(false, "booking")
	if err := HealthCheck(conn, "booking")(ctx); err == nil {
		t.Fatal("expected not serving error")
	}
}

func TestServerInterceptorStoresRequestID(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDMetadataKey, "req-9"))
	var seen string
	_, err := UnaryServerRequestIDInterceptor()(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/x"}, func(ctx context.Context, _ any) (any, error) {
		seen = RequestIDFromContext(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != "req-9" {
		t.Fatalf("expected req-9, got %q", seen)
	}
}

func TestClientInterceptorPrefersHTTPRequestID(t *testing.T) {
	sent := func(ctx context.Context) []string {
		var got []string
		err := UnaryClientRequestIDInterceptor()(ctx, "/x", nil, nil, nil, func(ctx context.Context, _ string, _, _ any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
			md, _ := metadata.FromOutgoingContext(ctx)
			got = md.Get(RequestIDMetadataKey)
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return got
	}

	ctx := WithRequestID(context.Background(), "grpc-1")
	if got := sent(ctx); len(got) != 1 || got[0] != "grpc-1" {
		t.Fatalf("expected grpc-1, got %v", got)
	}
	if got := sent(httpx.ContextWithRequestID(ctx, "http-1")); len(got) != 1 || got[0] != "http-1" {
		t.Fatalf("expected http-1, got %v", got)
	}
	if got := sent(context.Background()); len(got) != 0 {
		t.Fatalf("expected no request id, got %v", got)
	}
}
