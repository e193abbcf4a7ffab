package main

import (
	"bufio"
	"chat-guard/domain"
	"chat-guard/infrastructure/grpc/chatv1"
	"chat-guard/infrastructure/grpc/client"
	"chat-guard/projection"
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/samber/lo"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func tailRoom(ctx context.Context, s *session, args []string) error {
	fs := flags("tail")
	from := fs.Int64("from", -1, "replay after this sequence, default resumes after the last ack")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var cursor *uint64
	if *from >= 0 {
		cursor = lo.ToPtr(uint64(*from))
	}
	stream, err := s.client.Subscribe(ctx, fs.Arg(0), cursor)
	if err != nil {
		return err
	}
	timeline := projection.NewTimeline(domain.ParticipantID(s.client.Participant))
	return receive(stream, func(msg domain.Message) {
		if timeline.Commit(msg) {
			fmt.Fprintln(s.out, formatLine(msg))
		}
	})
}

// chatRoom sends every input line and prints the room as it commits.
// Own lines show up at once as pending echoes, then again once committed.
func chatRoom(ctx context.Context, s *session, args []string) error {
	room := args[0]
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := s.client.Subscribe(ctx, room, nil)
	if err != nil {
		return err
	}
	p := &printer{out: s.out}
	timeline := projection.NewTimeline(domain.ParticipantID(s.client.Participant))

	go func() {
		defer cancel()
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			echo, err := s.client.Send(ctx, room, line, false)
			if err != nil {
				p.println(failure(err))
				continue
			}
			msg, err := client.ToDomain(*echo)
			if err != nil {
				p.println(failure(err))
				continue
			}
			timeline.Echo(msg)
			p.println(formatLine(msg))
		}
	}()

	return receive(stream, func(msg domain.Message) {
		if timeline.Commit(msg) {
			p.println(formatLine(msg))
		}
	})
}

// receive pumps the stream until it ends. A canceled context is a normal end.
func receive(stream chatv1.ChatService_SubscribeClient, fn func(domain.Message)) error {
	for {
		wire, err := stream.Recv()
		switch {
		case err == nil:
		case goerrors.Is(err, io.EOF), status.Code(err) == codes.Canceled:
			return nil
		default:
			return err
		}
		msg, err := client.ToDomain(*wire)
		if err != nil {
			return err
		}
		fn(msg)
	}
}

type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}
