// Package auth carries the caller's participant identity from the gRPC
// metadata into the request context. Identity is asserted by the caller;
// verifying it belongs to an upstream gateway.
package auth

import (
	"chat-guard/domain"
	"chat-guard/infrastructure/grpc/chatv1"
	"context"
	"strings"
	"unicode/utf8"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ParticipantHeader is the metadata key holding the caller's participant id.
const ParticipantHeader = "x-participant-id"

const maxParticipantLength = 64

// Methods that do not act on behalf of a participant.
var publicMethods = map[string]struct{}{
	chatv1.ChatService_CreateRoom_FullMethodName:       {},
	chatv1.ChatService_ListRooms_FullMethodName:        {},
	chatv1.ChatService_ListParticipants_FullMethodName: {},
	chatv1.ChatService_Classify_FullMethodName:         {},
}

type contextKey string

const ParticipantIDKey contextKey = "participant_id"

// WithParticipant returns a context carrying the participant id.
func WithParticipant(ctx context.Context, id domain.ParticipantID) context.Context {
	return context.WithValue(ctx, ParticipantIDKey, id)
}

// Participant reads the id injected by the interceptors.
func Participant(ctx context.Context) (domain.ParticipantID, error) {
	id, ok := ctx.Value(ParticipantIDKey).(domain.ParticipantID)
	if !ok || id == "" {
		return "", status.Error(codes.Unauthenticated, "participant identity is missing")
	}
	return id, nil
}

// ParticipantInterceptor rejects calls made without a participant id, except
// on public methods. Operator methods only pass once OperatorInterceptor has
// identified an operator.
func ParticipantInterceptor(ctx context.Context, req any,
	info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if isPublicMethod(info.FullMethod) {
		return handler(ctx, req)
	}
	if isOperatorMethod(info.FullMethod) {
		if _, ok := Operator(ctx); !ok {
			return nil, status.Error(codes.PermissionDenied, "operator token is required")
		}
		return handler(ctx, req)
	}
	newCtx, err := identify(ctx)
	if err != nil {
		return nil, err
	}
	return handler(newCtx, req)
}

// ParticipantStreamInterceptor is the streaming counterpart.
func ParticipantStreamInterceptor(srv any, ss grpc.ServerStream,
	info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if isPublicMethod(info.FullMethod) {
		return handler(srv, ss)
	}
	newCtx, err := identify(ss.Context())
	if err != nil {
		return err
	}
	return handler(srv, &identifiedStream{ServerStream: ss, ctx: newCtx})
}

func identify(ctx context.Context) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "metadata is missing")
	}
	values := md.Get(ParticipantHeader)
	if len(values) == 0 {
		return nil, status.Error(codes.Unauthenticated, "participant id is missing")
	}
	id := strings.TrimSpace(values[0])
	if id == "" || utf8.RuneCountInString(id) > maxParticipantLength {
		return nil, status.Error(codes.Unauthenticated, "participant id is invalid")
	}
	return WithParticipant(ctx, domain.ParticipantID(id)), nil
}

func isPublicMethod(method string) bool {
	_, ok := publicMethods[method]
	return ok
}

type identifiedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identifiedStream) Context() context.Context {
	return s.ctx
}
