package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/credsync/internal/api/grpc/wire"
	"github.com/dtroode/credsync/internal/model"
)

// mapError turns a gRPC status into the model error taxonomy.
func mapError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	st, ok := status.FromError(err)
	if !ok {
		return &model.TransportError{Op: op, Err: err}
	}

	switch st.Code() {
	case codes.Unauthenticated:
		return &model.AuthError{Op: op, Err: errors.New(st.Message())}
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return &model.TransportError{Op: op, Err: err}
	case codes.Canceled:
		return context.Canceled
	case codes.Aborted:
		if pbf := partialBatchFailure(st); pbf != nil {
			return pbf
		}
		return fmt.Errorf("%s aborted: %s", op, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	case codes.AlreadyExists:
		return fmt.Errorf("%s: %w", op, model.ErrLoginTaken)
	case codes.InvalidArgument:
		return &model.ValidationError{Field: op, Reason: st.Message()}
	default:
		return fmt.Errorf("%s failed: %s: %s", op, st.Code(), st.Message())
	}
}

func partialBatchFailure(st *status.Status) *model.PartialBatchFailure {
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != wire.ErrorDomain || info.GetReason() != wire.ReasonPartialBatch {
			continue
		}

		md := info.GetMetadata()
		pbf := &model.PartialBatchFailure{
			Layer: model.Layer(md[wire.MetaLayer]),
			Err:   errors.New(st.Message()),
		}
		pbf.UUID, _ = uuid.Parse(md[wire.MetaUUID])
		pbf.Index, _ = strconv.Atoi(md[wire.MetaIndex])
		pbf.Processed, _ = strconv.Atoi(md[wire.MetaProcessed])
		pbf.Assigned, _ = wire.DecodeAssignments(md[wire.MetaAssigned])
		return pbf
	}
	return nil
}
