package api

import (
	"errors"
	"net/http"

	"roombook/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type errorResponse struct {
	Error     string                `json:"error"`
	Kind      string                `json:"kind,omitempty"`
	Conflicts []domain.ConflictInfo `json:"conflicts,omitempty"`
}

// httpStatus maps a service error onto its HTTP status and kind label.
func httpStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrInvariant):
		return http.StatusUnprocessableEntity, "invariant"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	code, kind := httpStatus(err)
	resp := errorResponse{Error: err.Error(), Kind: kind}
	if code == http.StatusInternalServerError {
		resp.Error = "internal error"
	}
	if code == http.StatusConflict {
		resp.Conflicts = domain.Conflicts(err)
	}
	writeJSON(w, code, resp)
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, domain.ErrInvariant):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
