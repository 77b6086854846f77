package handler

import (
	"errors"
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/credsync/internal/api/grpc/wire"
	"github.com/dtroode/credsync/internal/model"
)

func handleError(err error) error {
	var (
		partial    *model.PartialBatchFailure
		validation *model.ValidationError
	)

	switch {
	case errors.As(err, &partial):
		return partialBatchStatus(partial)
	case errors.As(err, &validation):
		return status.Error(codes.InvalidArgument, validation.Error())
	case errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, model.ErrLoginTaken):
		return status.Error(codes.AlreadyExists, model.ErrLoginTaken.Error())
	case errors.Is(err, model.ErrInvalidCredentials),
		errors.Is(err, model.ErrInvalidToken),
		errors.Is(err, model.ErrTokenRevoked),
		errors.Is(err, model.ErrTokenExpired),
		errors.Is(err, model.ErrTokenMismatch):
		return status.Error(codes.Unauthenticated, err.Error())
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}

func partialBatchStatus(e *model.PartialBatchFailure) error {
	st := status.New(codes.Aborted, e.Error())
	md := map[string]string{
		wire.MetaLayer:     string(e.Layer),
		wire.MetaUUID:      e.UUID.String(),
		wire.MetaIndex:     strconv.Itoa(e.Index),
		wire.MetaProcessed: strconv.Itoa(e.Processed),
	}
	if len(e.Assigned) > 0 {
		assigned, err := wire.EncodeAssignments(e.Assigned)
		if err != nil {
			return st.Err()
		}
		md[wire.MetaAssigned] = assigned
	}
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   wire.ReasonPartialBatch,
		Domain:   wire.ErrorDomain,
		Metadata: md,
	})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}
