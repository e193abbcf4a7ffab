// Package services validates requests coming from the transports and turns
// them into domain commands for the runtime.
package services

import (
	"chat-guard/domain"
	"chat-guard/errors"
	"chat-guard/runtime"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// IChatOrchestrator is what the chat service needs from the runtime.
type IChatOrchestrator interface {
	CreateRoom(name string) (domain.RoomSummary, error)
	ListRooms() []domain.RoomSummary
	JoinRoom(roomID domain.RoomID, p domain.Participant) error
	LeaveRoom(roomID domain.RoomID, id domain.ParticipantID) error
	ListParticipants(roomID domain.RoomID) ([]domain.Participant, error)
	SendMessage(cmd domain.SendMessageCommand) (*runtime.Ticket, error)
	Abort(author domain.ParticipantID, messageID uuid.UUID) error
	Subscribe(ctx context.Context, roomID domain.RoomID, id domain.ParticipantID, from *domain.Sequence) (*runtime.Subscription, error)
	Ack(roomID domain.RoomID, id domain.ParticipantID, seq domain.Sequence) error
	History(cmd domain.HistoryCommand) ([]domain.Message, error)
	Classify(ctx context.Context, text string) (domain.Classification, error)
	SearchAudit(ctx context.Context, query domain.AuditQuery) ([]domain.AuditEntry, uint64, error)
	Remediate(roomID domain.RoomID) error
}

type IChatService interface {
	CreateRoom(req CreateRoomRequest) (domain.RoomSummary, error)
	ListRooms() []domain.RoomSummary
	JoinRoom(req JoinRoomRequest) error
	LeaveRoom(req LeaveRoomRequest) error
	ListParticipants(room string) ([]domain.Participant, error)
	SendMessage(ctx context.Context, req SendMessageRequest) (domain.Message, error)
	Abort(req AbortRequest) error
	Subscribe(ctx context.Context, req SubscribeRequest) (*runtime.Subscription, error)
	History(req HistoryRequest) ([]domain.Message, error)
	Classify(ctx context.Context, text string) (domain.Classification, error)
	SearchAudit(ctx context.Context, req AuditSearchRequest) ([]domain.AuditEntry, uint64, error)
	Remediate(room string) error
}

type CreateRoomRequest struct {
	Name string `validate:"required,max=80"`
}

type JoinRoomRequest struct {
	Room        string `validate:"required"`
	Participant string `validate:"required,max=64"`
	DisplayName string `validate:"max=64"`
	AvatarURL   string `validate:"omitempty,url"`
}

type LeaveRoomRequest struct {
	Room        string `validate:"required"`
	Participant string `validate:"required"`
}

// SendMessageRequest leaves Content to the gate, which owns the length and
// emptiness rules.
type SendMessageRequest struct {
	Room    string `validate:"required"`
	Author  string `validate:"required"`
	Content string
	// Wait holds the call until the message is committed or rejected.
	// Otherwise the pending echo is returned right away.
	Wait bool
}

type AbortRequest struct {
	Author    string `validate:"required"`
	MessageID string `validate:"required,uuid"`
}

type SubscribeRequest struct {
	Room        string `validate:"required"`
	Participant string `validate:"required"`
	From        *uint64
}

type HistoryRequest struct {
	Room   string `validate:"required"`
	Reader string `validate:"required"`
	After  uint64
	Limit  int `validate:"min=0,max=1000"`
}

type AuditSearchRequest struct {
	Text  string `validate:"max=256"`
	Room  string
	Kind  string `validate:"omitempty,oneof=flagged classification_failed rejected"`
	Limit int    `validate:"min=0,max=500"`
}

type ChatService struct {
	log          *slog.Logger
	orchestrator IChatOrchestrator
}

func NewChatService(log *slog.Logger, o IChatOrchestrator) *ChatService {
	return &ChatService{log: log, orchestrator: o}
}

func check(req any) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return nil
}

func (s *ChatService) CreateRoom(req CreateRoomRequest) (domain.RoomSummary, error) {
	if err := check(req); err != nil {
		return domain.RoomSummary{}, err
	}
	return s.orchestrator.CreateRoom(req.Name)
}

func (s *ChatService) ListRooms() []domain.RoomSummary {
	return s.orchestrator.ListRooms()
}

// JoinRoom adds the participant. The display name falls back to the id.
func (s *ChatService) JoinRoom(req JoinRoomRequest) error {
	if err := check(req); err != nil {
		return err
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = req.Participant
	}
	return s.orchestrator.JoinRoom(domain.RoomID(req.Room), domain.Participant{
		ID:          domain.ParticipantID(req.Participant),
		DisplayName: name,
		AvatarURL:   req.AvatarURL,
	})
}

func (s *ChatService) LeaveRoom(req LeaveRoomRequest) error {
	if err := check(req); err != nil {
		return err
	}
	return s.orchestrator.LeaveRoom(domain.RoomID(req.Room), domain.ParticipantID(req.Participant))
}

func (s *ChatService) ListParticipants(room string) ([]domain.Participant, error) {
	if room == "" {
		return nil, fmt.Errorf("%w: room is required", errors.ErrInvalidPayload)
	}
	return s.orchestrator.ListParticipants(domain.RoomID(room))
}

// SendMessage returns the pending echo, or the committed message when the
// request asks to wait. Giving up on ctx while waiting does not withdraw the
// message.
func (s *ChatService) SendMessage(ctx context.Context, req SendMessageRequest) (domain.Message, error) {
	if err := check(req); err != nil {
		return domain.Message{}, err
	}
	ticket, err := s.orchestrator.SendMessage(domain.SendMessageCommand{
		Room:      domain.RoomID(req.Room),
		Author:    domain.ParticipantID(req.Author),
		Content:   req.Content,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Message{}, err
	}
	if !req.Wait {
		return ticket.Echo, nil
	}
	return ticket.Wait(ctx)
}

func (s *ChatService) Abort(req AbortRequest) error {
	if err := check(req); err != nil {
		return err
	}
	id, err := uuid.Parse(req.MessageID)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return s.orchestrator.Abort(domain.ParticipantID(req.Author), id)
}

func (s *ChatService) Subscribe(ctx context.Context, req SubscribeRequest) (*runtime.Subscription, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	var from *domain.Sequence
	if req.From != nil {
		seq := domain.Sequence(*req.From)
		from = &seq
	}
	sub, err := s.orchestrator.Subscribe(ctx, domain.RoomID(req.Room), domain.ParticipantID(req.Participant), from)
	if err != nil {
		return nil, err
	}
	s.log.Debug("Participant subscribed", "room_id", req.Room, "participant", req.Participant)
	return sub, nil
}

func (s *ChatService) History(req HistoryRequest) ([]domain.Message, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.orchestrator.History(domain.HistoryCommand{
		Room:   domain.RoomID(req.Room),
		Reader: domain.ParticipantID(req.Reader),
		After:  domain.Sequence(req.After),
		Limit:  req.Limit,
	})
}

func (s *ChatService) Classify(ctx context.Context, text string) (domain.Classification, error) {
	return s.orchestrator.Classify(ctx, text)
}

func (s *ChatService) SearchAudit(ctx context.Context, req AuditSearchRequest) ([]domain.AuditEntry, uint64, error) {
	if err := check(req); err != nil {
		return nil, 0, err
	}
	return s.orchestrator.SearchAudit(ctx, domain.AuditQuery{
		Text:  req.Text,
		Room:  domain.RoomID(req.Room),
		Kind:  domain.AuditKind(req.Kind),
		Limit: req.Limit,
	})
}

// Remediate lifts a sequencing halt on an operator's request.
func (s *ChatService) Remediate(room string) error {
	if room == "" {
		return fmt.Errorf("%w: room is required", errors.ErrInvalidPayload)
	}
	if err := s.orchestrator.Remediate(domain.RoomID(room)); err != nil {
		return err
	}
	s.log.Info("Remediation requested", "room_id", room)
	return nil
}
