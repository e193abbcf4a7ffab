package server

import (
	"chat-guard/auth"
	"chat-guard/domain"
	"chat-guard/errors"
	"chat-guard/infrastructure/grpc/chatv1"
	"chat-guard/services"
	"context"
	goerrors "errors"
	"log/slog"

	"github.com/samber/lo"
)

type ChatServer struct {
	chatv1.UnimplementedChatServiceServer
	chatService services.IChatService
	log         *slog.Logger
}

func NewChatServer(log *slog.Logger, chatService services.IChatService) *ChatServer {
	return &ChatServer{chatService: chatService, log: log}
}

func (s *ChatServer) CreateRoom(_ context.Context, req *chatv1.CreateRoomRequest) (*chatv1.Room, error) {
	summary, err := s.chatService.CreateRoom(services.CreateRoomRequest{Name: req.Name})
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return lo.ToPtr(toRoom(summary)), nil
}

func (s *ChatServer) ListRooms(context.Context, *chatv1.ListRoomsRequest) (*chatv1.ListRoomsResponse, error) {
	rooms := s.chatService.ListRooms()
	return &chatv1.ListRoomsResponse{
		Rooms: lo.Map(rooms, func(r domain.RoomSummary, _ int) chatv1.Room { return toRoom(r) }),
	}, nil
}

func (s *ChatServer) JoinRoom(ctx context.Context, req *chatv1.JoinRoomRequest) (*chatv1.Empty, error) {
	participant, err := auth.Participant(ctx)
	if err != nil {
		return nil, err
	}
	err = s.chatService.JoinRoom(services.JoinRoomRequest{
		Room:        req.Room,
		Participant: string(participant),
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &chatv1.Empty{}, nil
}

func (s *ChatServer) LeaveRoom(ctx context.Context, req *chatv1.LeaveRoomRequest) (*chatv1.Empty, error) {
	participant, err := auth.Participant(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.chatService.LeaveRoom(services.LeaveRoomRequest{Room: req.Room, Participant: string(participant)}); err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &chatv1.Empty{}, nil
}

func (s *ChatServer) ListParticipants(_ context.Context, req *chatv1.ListParticipantsRequest) (*chatv1.ListParticipantsResponse, error) {
	participants, err := s.chatService.ListParticipants(req.Room)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &chatv1.ListParticipantsResponse{
		Participants: lo.Map(participants, func(p domain.Participant, _ int) chatv1.Participant {
			return chatv1.Participant{
				ID:          string(p.ID),
				DisplayName: p.DisplayName,
				AvatarURL:   p.AvatarURL,
				LastAck:     uint64(p.LastAck),
			}
		}),
	}, nil
}

// SendMessage answers with the author's pending echo as soon as the message
// is queued. Everyone, the author included, then receives the committed
// version through Subscribe. With Wait set the call returns the committed
// message instead.
func (s *ChatServer) SendMessage(ctx context.Context, req *chatv1.SendMessageRequest) (*chatv1.Message, error) {
	participant, err := auth.Participant(ctx)
	if err != nil {
		return nil, err
	}
	msg, err := s.chatService.SendMessage(ctx, services.SendMessageRequest{
		Room:    req.Room,
		Author:  string(participant),
		Content: req.Content,
		Wait:    req.Wait,
	})
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return lo.ToPtr(toMessage(msg)), nil
}

func (s *ChatServer) Abort(ctx context.Context, req *chatv1.AbortRequest) (*chatv1.Empty, error) {
	participant, err := auth.Participant(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.chatService.Abort(services.AbortRequest{Author: string(participant), MessageID: req.MessageID}); err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &chatv1.Empty{}, nil
}

// Subscribe streams committed messages until the client goes away, leaves
// the room or falls too far behind. Each message is acknowledged once the
// transport accepted it, so a reconnect without a cursor resumes right after.
func (s *ChatServer) Subscribe(req *chatv1.SubscribeRequest, stream chatv1.ChatService_SubscribeServer) error {
	ctx := stream.Context()
	participant, err := auth.Participant(ctx)
	if err != nil {
		return err
	}
	sub, err := s.chatService.Subscribe(ctx, services.SubscribeRequest{
		Room:        req.Room,
		Participant: string(participant),
		From:        req.From,
	})
	if err != nil {
		return errors.MapToGRPCError(err)
	}
	defer sub.Close()

	for msg := range sub.C() {
		if err := stream.Send(lo.ToPtr(toMessage(msg))); err != nil {
			s.log.Error("failed to push message to stream",
				"participant", participant,
				"room_id", req.Room,
				"sequence", msg.Sequence,
				"error", err)
			return err
		}
		if err := sub.Ack(msg.Sequence); err != nil {
			s.log.Warn("Ack not recorded", "participant", participant, "room_id", req.Room, "error", err)
		}
	}

	err = sub.Err()
	switch {
	case err == nil, goerrors.Is(err, errors.ErrSubscriptionEnd):
		return nil
	case goerrors.Is(err, context.Canceled), goerrors.Is(err, context.DeadlineExceeded):
		s.log.Debug("Client disconnected", "participant", participant, "room_id", req.Room)
		return nil
	default:
		return errors.MapToGRPCError(err)
	}
}

func (s *ChatServer) History(ctx context.Context, req *chatv1.HistoryRequest) (*chatv1.HistoryResponse, error) {
	participant, err := auth.Participant(ctx)
	if err != nil {
		return nil, err
	}
	messages, err := s.chatService.History(services.HistoryRequest{
		Room:   req.Room,
		Reader: string(participant),
		After:  req.After,
		Limit:  req.Limit,
	})
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &chatv1.HistoryResponse{
		Messages: lo.Map(messages, func(m domain.Message, _ int) chatv1.Message { return toMessage(m) }),
	}, nil
}

func (s *ChatServer) Classify(ctx context.Context, req *chatv1.ClassifyRequest) (*chatv1.ClassifyResponse, error) {
	result, err := s.chatService.Classify(ctx, req.Text)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &chatv1.ClassifyResponse{
		Verdict:    result.Verdict.String(),
		Confidence: result.Confidence,
		Label:      result.Label,
	}, nil
}

func (s *ChatServer) SearchAudit(ctx context.Context, req *chatv1.SearchAuditRequest) (*chatv1.SearchAuditResponse, error) {
	entries, total, err := s.chatService.SearchAudit(ctx, services.AuditSearchRequest{
		Text:  req.Text,
		Room:  req.Room,
		Kind:  req.Kind,
		Limit: req.Limit,
	})
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &chatv1.SearchAuditResponse{
		Total: total,
		Entries: lo.Map(entries, func(e domain.AuditEntry, _ int) chatv1.AuditEntry {
			return chatv1.AuditEntry{
				MessageID: e.MessageID.String(),
				Room:      string(e.Room),
				Author:    string(e.Author),
				Kind:      string(e.Kind),
				Text:      e.Text,
				Label:     e.Label,
				Language:  e.Language,
				Sequence:  uint64(e.Sequence),
				At:        e.At,
			}
		}),
	}, nil
}

func (s *ChatServer) Remediate(_ context.Context, req *chatv1.RemediateRequest) (*chatv1.Empty, error) {
	if err := s.chatService.Remediate(req.Room); err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &chatv1.Empty{}, nil
}

func toRoom(r domain.RoomSummary) chatv1.Room {
	return chatv1.Room{
		ID:           string(r.ID),
		Name:         r.Name,
		Participants: r.Participants,
		Tail:         uint64(r.Tail),
		CreatedAt:    r.CreatedAt,
	}
}

// toMessage never exposes the classifier label: for a lexicon hit it would
// spell out the masked word. LocalAuthor is carried as set upstream, only
// the author's pending echo holds it; clients decide for committed messages.
func toMessage(m domain.Message) chatv1.Message {
	return chatv1.Message{
		ID:          m.ID.String(),
		Room:        string(m.Room),
		Author:      string(m.Author),
		Text:        m.Displayed,
		Verdict:     m.Verdict.String(),
		Flagged:     m.Flagged(),
		Confidence:  m.Confidence,
		Audit:       m.Audit,
		Sequence:    uint64(m.Sequence),
		SubmittedAt: m.SubmittedAt,
		CommittedAt: m.CommittedAt,
		LocalAuthor: m.LocalAuthor,
	}
}
