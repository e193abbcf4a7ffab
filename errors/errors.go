package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	// ErrValidation is the parent of every synchronous, never-retried rejection.
	ErrValidation     = fmt.Errorf("validation error")
	ErrEmptyMessage   = fmt.Errorf("%w: message is empty", ErrValidation)
	ErrMessageTooLong = fmt.Errorf("%w: message is too long", ErrValidation)
	ErrNotMember      = fmt.Errorf("%w: author is not a member of the room", ErrValidation)
	ErrEmptyRoomName  = fmt.Errorf("%w: room name is empty", ErrValidation)
	ErrInvalidPayload = fmt.Errorf("%w: invalid payload", ErrValidation)

	ErrRoomNotFound    = fmt.Errorf("room not found")
	ErrMessageNotFound = fmt.Errorf("message not found")
	ErrBackpressure    = fmt.Errorf("author queue is full, retry later")
	ErrSendRejected    = fmt.Errorf("message rejected: classification unavailable")
	ErrAborted         = fmt.Errorf("message aborted before commit")
	ErrGateClosed      = fmt.Errorf("ingest gate is closed")

	ErrClassifierTimeout           = fmt.Errorf("classifier timeout")
	ErrClassifierUnavailable       = fmt.Errorf("classifier unavailable")
	ErrClassifierMalformedResponse = fmt.Errorf("classifier malformed response")
	ErrClassifierRejected          = fmt.Errorf("classifier rejected the request")

	ErrNotClassified      = fmt.Errorf("message has no terminal verdict")
	ErrSequencingConflict = fmt.Errorf("sequencing conflict")
	ErrRoomHalted         = fmt.Errorf("room is halted after a sequencing conflict")

	ErrSlowSubscriber  = fmt.Errorf("subscriber too slow, disconnected")
	ErrSubscriptionEnd = fmt.Errorf("subscription closed")
)

// MapToGRPCError translates domain errors into gRPC status errors.
// Internal faults never leak their message to end users.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrMessageNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrBackpressure):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, ErrSendRejected):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrAborted):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, ErrSlowSubscriber):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, ErrGateClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, ErrRoomHalted), errors.Is(err, ErrSequencingConflict):
		return status.Error(codes.Internal, "room temporarily unavailable")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
