package api

import (
	"context"
	"net"
	"testing"

	"roombook/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func newGRPCClient(t *testing.T, st *stack, cfg config.APIConfig) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServerWithListener(&cfg, st.svc, lis, nil)
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func invoke(ctx context.Context, conn *grpc.ClientConn, method string, in map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	err = conn.Invoke(ctx, "/"+availabilityServiceName+"/"+method, req, out)
	return out, err
}

func TestGRPCAvailability(t *testing.T) {
	st := newStack(t)
	conn := newGRPCClient(t, st, config.APIConfig{})
	ctx := context.Background()

	_, err := st.svc.Bookings.Create(ctx, mustBookingRequest(t, st.hourlyBody("2025-03-01", "10:00", "11:00")))
	require.NoError(t, err)

	out, err := invoke(ctx, conn, "CheckAvailability", map[string]any{
		"rental_type": "hourly",
		"resource":    map[string]any{"room_id": float64(st.room.ID)},
		"period":      map[string]any{"start_date": "2025-03-01", "start_time": "10:30", "end_time": "12:00"},
	})
	require.NoError(t, err)
	assert.False(t, out.Fields["available"].GetBoolValue())
	assert.Len(t, out.Fields["conflicts"].GetListValue().GetValues(), 1)

	out, err = invoke(ctx, conn, "CalculatePrice", map[string]any{
		"rental_type": "room_daily",
		"resource":    map[string]any{"room_id": float64(st.room.ID)},
		"client_id":   float64(st.client.ID),
		"period":      map[string]any{"start_date": "2025-03-03", "end_date": "2025-03-04"},
	})
	require.NoError(t, err)
	assert.Equal(t, 12000.0, out.Fields["total_price"].GetNumberValue())

	out, err = invoke(ctx, conn, "GetOccupancy", map[string]any{
		"room_id": float64(st.room.ID),
		"dates":   []any{"2025-03-01"},
	})
	require.NoError(t, err)
	day := out.Fields["occupancy"].GetStructValue().Fields["2025-03-01"].GetStructValue()
	require.NotNil(t, day)
	assert.Contains(t, day.Fields, "10")
}

func TestGRPCErrorCodes(t *testing.T) {
	st := newStack(t)
	conn := newGRPCClient(t, st, config.APIConfig{})
	ctx := context.Background()

	_, err := invoke(ctx, conn, "CheckAvailability", map[string]any{
		"rental_type": "hourly",
		"resource":    map[string]any{"room_id": float64(999)},
		"period":      map[string]any{"start_date": "2025-03-01", "start_time": "10:00", "end_time": "11:00"},
	})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = invoke(ctx, conn, "GetOccupancy", map[string]any{"room_id": float64(st.room.ID)})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = invoke(ctx, conn, "CheckAvailability", map[string]any{"unknown": true, "rental_type": 5})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCAuth(t *testing.T) {
	st := newStack(t)
	cfg := authConfig()
	cfg.Auth.APIKeys = append(cfg.Auth.APIKeys, config.APIClientKey{
		Key: "writer", Extra: "w-secret", Permissions: []string{permWriteBookings},
	})
	conn := newGRPCClient(t, st, cfg)
	req := map[string]any{"room_id": float64(st.room.ID), "dates": []any{"2025-03-01"}}

	_, err := invoke(context.Background(), conn, "GetOccupancy", req)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "writer", "x-api-extra", "w-secret")
	_, err = invoke(ctx, conn, "GetOccupancy", req)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	ctx = metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "reader", "x-api-extra", "r-secret")
	_, err = invoke(ctx, conn, "GetOccupancy", req)
	assert.NoError(t, err)
}
