package client

import (
	"chat-guard/auth"
	"chat-guard/domain"
	"chat-guard/infrastructure/grpc/chatv1"
	"context"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// ChatClient speaks to a chat-guard server on behalf of one participant.
type ChatClient struct {
	conn          *grpc.ClientConn
	Client        chatv1.ChatServiceClient
	Participant   string
	// OperatorToken, when set, is sent as a bearer token for operator calls.
	OperatorToken string
}

// NewChatClient dials addr. Extra options come after the defaults so a test
// can swap the dialer.
func NewChatClient(addr, participant string, opts ...grpc.DialOption) (*ChatClient, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &ChatClient{conn: conn, Client: chatv1.NewChatServiceClient(conn), Participant: participant}, nil
}

func (c *ChatClient) Close() error {
	return c.conn.Close()
}

func (c *ChatClient) outgoing(ctx context.Context) context.Context {
	if c.Participant != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, auth.ParticipantHeader, c.Participant)
	}
	if c.OperatorToken != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, auth.AuthHeader, "Bearer "+c.OperatorToken)
	}
	return ctx
}

func (c *ChatClient) CreateRoom(ctx context.Context, name string) (*chatv1.Room, error) {
	return c.Client.CreateRoom(c.outgoing(ctx), &chatv1.CreateRoomRequest{Name: name})
}

func (c *ChatClient) ListRooms(ctx context.Context) ([]chatv1.Room, error) {
	res, err := c.Client.ListRooms(c.outgoing(ctx), &chatv1.ListRoomsRequest{})
	if err != nil {
		return nil, err
	}
	return res.Rooms, nil
}

func (c *ChatClient) Join(ctx context.Context, room, displayName, avatarURL string) error {
	_, err := c.Client.JoinRoom(c.outgoing(ctx), &chatv1.JoinRoomRequest{Room: room, DisplayName: displayName, AvatarURL: avatarURL})
	return err
}

func (c *ChatClient) Leave(ctx context.Context, room string) error {
	_, err := c.Client.LeaveRoom(c.outgoing(ctx), &chatv1.LeaveRoomRequest{Room: room})
	return err
}

func (c *ChatClient) Participants(ctx context.Context, room string) ([]chatv1.Participant, error) {
	res, err := c.Client.ListParticipants(c.outgoing(ctx), &chatv1.ListParticipantsRequest{Room: room})
	if err != nil {
		return nil, err
	}
	return res.Participants, nil
}

// Send queues a message and returns the pending echo, or the committed
// message when wait is set.
func (c *ChatClient) Send(ctx context.Context, room, content string, wait bool) (*chatv1.Message, error) {
	return c.Client.SendMessage(c.outgoing(ctx), &chatv1.SendMessageRequest{Room: room, Content: content, Wait: wait})
}

func (c *ChatClient) Abort(ctx context.Context, messageID string) error {
	_, err := c.Client.Abort(c.outgoing(ctx), &chatv1.AbortRequest{MessageID: messageID})
	return err
}

// Subscribe opens the live stream. A nil from resumes after the last
// acknowledged sequence.
func (c *ChatClient) Subscribe(ctx context.Context, room string, from *uint64) (chatv1.ChatService_SubscribeClient, error) {
	return c.Client.Subscribe(c.outgoing(ctx), &chatv1.SubscribeRequest{Room: room, From: from})
}

func (c *ChatClient) History(ctx context.Context, room string, after uint64, limit int) ([]chatv1.Message, error) {
	res, err := c.Client.History(c.outgoing(ctx), &chatv1.HistoryRequest{Room: room, After: after, Limit: limit})
	if err != nil {
		return nil, err
	}
	return res.Messages, nil
}

func (c *ChatClient) Classify(ctx context.Context, text string) (*chatv1.ClassifyResponse, error) {
	return c.Client.Classify(c.outgoing(ctx), &chatv1.ClassifyRequest{Text: text})
}

func (c *ChatClient) SearchAudit(ctx context.Context, req *chatv1.SearchAuditRequest) (*chatv1.SearchAuditResponse, error) {
	return c.Client.SearchAudit(c.outgoing(ctx), req)
}

func (c *ChatClient) Remediate(ctx context.Context, room string) error {
	_, err := c.Client.Remediate(c.outgoing(ctx), &chatv1.RemediateRequest{Room: room})
	return err
}

// ToDomain turns a wire message back into the domain shape, for local
// projections such as a timeline.
func ToDomain(m chatv1.Message) (domain.Message, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("message id %q: %w", m.ID, err)
	}
	return domain.Message{
		ID:          id,
		Room:        domain.RoomID(m.Room),
		Author:      domain.ParticipantID(m.Author),
		Displayed:   m.Text,
		Verdict:     domain.ParseVerdict(m.Verdict),
		Confidence:  m.Confidence,
		Audit:       m.Audit,
		Sequence:    domain.Sequence(m.Sequence),
		SubmittedAt: m.SubmittedAt,
		CommittedAt: m.CommittedAt,
		LocalAuthor: m.LocalAuthor,
	}, nil
}
