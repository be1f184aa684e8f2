package api

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const availabilityServiceName = "roombook.v1.AvailabilityService"

// AvailabilityServer is the gRPC face of the read-only operations. Messages
// are google.protobuf.Struct values carrying the same JSON shapes as the
// HTTP API.
type AvailabilityServer interface {
	CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CalculatePrice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetOccupancy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func unaryMethod(name string, call func(AvailabilityServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	fullMethod := "/" + availabilityServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AvailabilityServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AvailabilityServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var availabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: availabilityServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CheckAvailability", AvailabilityServer.CheckAvailability),
		unaryMethod("CalculatePrice", AvailabilityServer.CalculatePrice),
		unaryMethod("GetOccupancy", AvailabilityServer.GetOccupancy),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "roombook/v1/availability.proto",
}

func RegisterAvailabilityServer(s grpc.ServiceRegistrar, srv AvailabilityServer) {
	s.RegisterService(&availabilityServiceDesc, srv)
}

type AvailabilityService struct {
	svc Services
}

func NewAvailabilityService(svc Services) *AvailabilityService {
	return &AvailabilityService{svc: svc}
}

func (s *AvailabilityService) CheckAvailability(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body availabilityRequestDTO
	if err := fromStruct(in, &body); err != nil {
		return nil, err
	}
	req, err := body.toModel()
	if err != nil {
		return nil, grpcError(err)
	}
	res, err := s.svc.Availability.CheckAvailability(ctx, req)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(res)
}

func (s *AvailabilityService) CalculatePrice(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body bookingRequestDTO
	if err := fromStruct(in, &body); err != nil {
		return nil, err
	}
	req, err := body.toModel()
	if err != nil {
		return nil, grpcError(err)
	}
	quote, err := s.svc.Bookings.CalculatePrice(ctx, req)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(quote)
}

func (s *AvailabilityService) GetOccupancy(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body occupancyRequestDTO
	if err := fromStruct(in, &body); err != nil {
		return nil, err
	}
	if err := validateDTO(body); err != nil {
		return nil, grpcError(err)
	}
	dates, err := parseDates(body.Dates)
	if err != nil {
		return nil, grpcError(err)
	}
	occ, err := s.svc.Occupancy.RoomOccupancy(ctx, body.RoomID, dates)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"room_id": body.RoomID, "occupancy": occ})
}

// fromStruct decodes a Struct through JSON into a request DTO.
func fromStruct(in *structpb.Struct, dst any) error {
	raw, err := in.MarshalJSON()
	if err != nil {
		return status.Error(codes.InvalidArgument, "invalid request")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(raw); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

var _ AvailabilityServer = (*AvailabilityService)(nil)
