package chatv1

import (
	"chat-guard/codec"
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

func init() {
	encoding.RegisterCodec(codec.GRPC{})
}

const ServiceName = "chatguard.v1.ChatService"

const (
	ChatService_CreateRoom_FullMethodName       = "/chatguard.v1.ChatService/CreateRoom"
	ChatService_ListRooms_FullMethodName        = "/chatguard.v1.ChatService/ListRooms"
	ChatService_JoinRoom_FullMethodName         = "/chatguard.v1.ChatService/JoinRoom"
	ChatService_LeaveRoom_FullMethodName        = "/chatguard.v1.ChatService/LeaveRoom"
	ChatService_ListParticipants_FullMethodName = "/chatguard.v1.ChatService/ListParticipants"
	ChatService_SendMessage_FullMethodName      = "/chatguard.v1.ChatService/SendMessage"
	ChatService_Abort_FullMethodName            = "/chatguard.v1.ChatService/Abort"
	ChatService_Subscribe_FullMethodName        = "/chatguard.v1.ChatService/Subscribe"
	ChatService_History_FullMethodName          = "/chatguard.v1.ChatService/History"
	ChatService_Classify_FullMethodName         = "/chatguard.v1.ChatService/Classify"
	ChatService_SearchAudit_FullMethodName      = "/chatguard.v1.ChatService/SearchAudit"
	ChatService_Remediate_FullMethodName        = "/chatguard.v1.ChatService/Remediate"
)

type ChatServiceServer interface {
	CreateRoom(context.Context, *CreateRoomRequest) (*Room, error)
	ListRooms(context.Context, *ListRoomsRequest) (*ListRoomsResponse, error)
	JoinRoom(context.Context, *JoinRoomRequest) (*Empty, error)
	LeaveRoom(context.Context, *LeaveRoomRequest) (*Empty, error)
	ListParticipants(context.Context, *ListParticipantsRequest) (*ListParticipantsResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*Message, error)
	Abort(context.Context, *AbortRequest) (*Empty, error)
	Subscribe(*SubscribeRequest, ChatService_SubscribeServer) error
	History(context.Context, *HistoryRequest) (*HistoryResponse, error)
	Classify(context.Context, *ClassifyRequest) (*ClassifyResponse, error)
	SearchAudit(context.Context, *SearchAuditRequest) (*SearchAuditResponse, error)
	Remediate(context.Context, *RemediateRequest) (*Empty, error)
}

type ChatService_SubscribeServer = grpc.ServerStreamingServer[Message]

type ChatService_SubscribeClient = grpc.ServerStreamingClient[Message]

// UnimplementedChatServiceServer can be embedded to stay forward compatible.
type UnimplementedChatServiceServer struct{}

func (UnimplementedChatServiceServer) CreateRoom(context.Context, *CreateRoomRequest) (*Room, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateRoom not implemented")
}
func (UnimplementedChatServiceServer) ListRooms(context.Context, *ListRoomsRequest) (*ListRoomsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListRooms not implemented")
}
func (UnimplementedChatServiceServer) JoinRoom(context.Context, *JoinRoomRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method JoinRoom not implemented")
}
func (UnimplementedChatServiceServer) LeaveRoom(context.Context, *LeaveRoomRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method LeaveRoom not implemented")
}
func (UnimplementedChatServiceServer) ListParticipants(context.Context, *ListParticipantsRequest) (*ListParticipantsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListParticipants not implemented")
}
func (UnimplementedChatServiceServer) SendMessage(context.Context, *SendMessageRequest) (*Message, error) {
	return nil, status.Error(codes.Unimplemented, "method SendMessage not implemented")
}
func (UnimplementedChatServiceServer) Abort(context.Context, *AbortRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Abort not implemented")
}
func (UnimplementedChatServiceServer) Subscribe(*SubscribeRequest, ChatService_SubscribeServer) error {
	return status.Error(codes.Unimplemented, "method Subscribe not implemented")
}
func (UnimplementedChatServiceServer) History(context.Context, *HistoryRequest) (*HistoryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method History not implemented")
}
func (UnimplementedChatServiceServer) Classify(context.Context, *ClassifyRequest) (*ClassifyResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Classify not implemented")
}
func (UnimplementedChatServiceServer) SearchAudit(context.Context, *SearchAuditRequest) (*SearchAuditResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SearchAudit not implemented")
}
func (UnimplementedChatServiceServer) Remediate(context.Context, *RemediateRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Remediate not implemented")
}

func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatService_ServiceDesc, srv)
}

// unary builds the method handler the generator would have written for one
// request/response pair.
func unary[Req, Res any](name, fullMethod string, call func(ChatServiceServer, context.Context, *Req) (*Res, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ChatServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ChatServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ChatServiceServer).Subscribe(in, &grpc.GenericServerStream[SubscribeRequest, Message]{ServerStream: stream})
}

var ChatService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateRoom", ChatService_CreateRoom_FullMethodName, ChatServiceServer.CreateRoom),
		unary("ListRooms", ChatService_ListRooms_FullMethodName, ChatServiceServer.ListRooms),
		unary("JoinRoom", ChatService_JoinRoom_FullMethodName, ChatServiceServer.JoinRoom),
		unary("LeaveRoom", ChatService_LeaveRoom_FullMethodName, ChatServiceServer.LeaveRoom),
		unary("ListParticipants", ChatService_ListParticipants_FullMethodName, ChatServiceServer.ListParticipants),
		unary("SendMessage", ChatService_SendMessage_FullMethodName, ChatServiceServer.SendMessage),
		unary("Abort", ChatService_Abort_FullMethodName, ChatServiceServer.Abort),
		unary("History", ChatService_History_FullMethodName, ChatServiceServer.History),
		unary("Classify", ChatService_Classify_FullMethodName, ChatServiceServer.Classify),
		unary("SearchAudit", ChatService_SearchAudit_FullMethodName, ChatServiceServer.SearchAudit),
		unary("Remediate", ChatService_Remediate_FullMethodName, ChatServiceServer.Remediate),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "chatguard/v1/chat.cbor",
}

type ChatServiceClient interface {
	CreateRoom(ctx context.Context, in *CreateRoomRequest, opts ...grpc.CallOption) (*Room, error)
	ListRooms(ctx context.Context, in *ListRoomsRequest, opts ...grpc.CallOption) (*ListRoomsResponse, error)
	JoinRoom(ctx context.Context, in *JoinRoomRequest, opts ...grpc.CallOption) (*Empty, error)
	LeaveRoom(ctx context.Context, in *LeaveRoomRequest, opts ...grpc.CallOption) (*Empty, error)
	ListParticipants(ctx context.Context, in *ListParticipantsRequest, opts ...grpc.CallOption) (*ListParticipantsResponse, error)
	SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*Message, error)
	Abort(ctx context.Context, in *AbortRequest, opts ...grpc.CallOption) (*Empty, error)
	Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (ChatService_SubscribeClient, error)
	History(ctx context.Context, in *HistoryRequest, opts ...grpc.CallOption) (*HistoryResponse, error)
	Classify(ctx context.Context, in *ClassifyRequest, opts ...grpc.CallOption) (*ClassifyResponse, error)
	SearchAudit(ctx context.Context, in *SearchAuditRequest, opts ...grpc.CallOption) (*SearchAuditResponse, error)
	Remediate(ctx context.Context, in *RemediateRequest, opts ...grpc.CallOption) (*Empty, error)
}

type chatServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewChatServiceClient returns a client speaking CBOR on cc.
func NewChatServiceClient(cc grpc.ClientConnInterface) ChatServiceClient {
	return &chatServiceClient{cc: cc}
}

func invoke[Res any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Res, error) {
	out := new(Res)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codec.Name)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatServiceClient) CreateRoom(ctx context.Context, in *CreateRoomRequest, opts ...grpc.CallOption) (*Room, error) {
	return invoke[Room](ctx, c.cc, ChatService_CreateRoom_FullMethodName, in, opts)
}

func (c *chatServiceClient) ListRooms(ctx context.Context, in *ListRoomsRequest, opts ...grpc.CallOption) (*ListRoomsResponse, error) {
	return invoke[ListRoomsResponse](ctx, c.cc, ChatService_ListRooms_FullMethodName, in, opts)
}

func (c *chatServiceClient) JoinRoom(ctx context.Context, in *JoinRoomRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, ChatService_JoinRoom_FullMethodName, in, opts)
}

func (c *chatServiceClient) LeaveRoom(ctx context.Context, in *LeaveRoomRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, ChatService_LeaveRoom_FullMethodName, in, opts)
}

func (c *chatServiceClient) ListParticipants(ctx context.Context, in *ListParticipantsRequest, opts ...grpc.CallOption) (*ListParticipantsResponse, error) {
	return invoke[ListParticipantsResponse](ctx, c.cc, ChatService_ListParticipants_FullMethodName, in, opts)
}

func (c *chatServiceClient) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*Message, error) {
	return invoke[Message](ctx, c.cc, ChatService_SendMessage_FullMethodName, in, opts)
}

func (c *chatServiceClient) Abort(ctx context.Context, in *AbortRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, ChatService_Abort_FullMethodName, in, opts)
}

func (c *chatServiceClient) Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (ChatService_SubscribeClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codec.Name)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ChatService_ServiceDesc.Streams[0], ChatService_Subscribe_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[SubscribeRequest, Message]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *chatServiceClient) History(ctx context.Context, in *HistoryRequest, opts ...grpc.CallOption) (*HistoryResponse, error) {
	return invoke[HistoryResponse](ctx, c.cc, ChatService_History_FullMethodName, in, opts)
}

func (c *chatServiceClient) Classify(ctx context.Context, in *ClassifyRequest, opts ...grpc.CallOption) (*ClassifyResponse, error) {
	return invoke[ClassifyResponse](ctx, c.cc, ChatService_Classify_FullMethodName, in, opts)
}

func (c *chatServiceClient) SearchAudit(ctx context.Context, in *SearchAuditRequest, opts ...grpc.CallOption) (*SearchAuditResponse, error) {
	return invoke[SearchAuditResponse](ctx, c.cc, ChatService_SearchAudit_FullMethodName, in, opts)
}

func (c *chatServiceClient) Remediate(ctx context.Context, in *RemediateRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, ChatService_Remediate_FullMethodName, in, opts)
}
