package main

import (
	"chat-guard/auth"
	"chat-guard/infrastructure/grpc/chatv1"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/pflag"
)

func flags(name string) *pflag.FlagSet {
	return pflag.NewFlagSet(name, pflag.ContinueOnError)
}

func listRooms(ctx context.Context, s *session, _ []string) error {
	rooms, err := s.client.ListRooms(ctx)
	if err != nil {
		return err
	}
	renderRooms(s.out, rooms)
	return nil
}

func createRoom(ctx context.Context, s *session, args []string) error {
	room, err := s.client.CreateRoom(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s %s\n", ok("created"), room.ID)
	return nil
}

func joinRoom(ctx context.Context, s *session, args []string) error {
	fs := flags("join")
	name := fs.String("name", "", "display name")
	avatar := fs.String("avatar", "", "avatar url")
	if err := fs.Parse(args); err != nil {
		return err
	}
	room := fs.Arg(0)
	if err := s.client.Join(ctx, room, *name, *avatar); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s %s as %s\n", ok("joined"), room, s.client.Participant)
	return nil
}

func leaveRoom(ctx context.Context, s *session, args []string) error {
	if err := s.client.Leave(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s %s\n", ok("left"), args[0])
	return nil
}

func listParticipants(ctx context.Context, s *session, args []string) error {
	participants, err := s.client.Participants(ctx, args[0])
	if err != nil {
		return err
	}
	renderParticipants(s.out, participants)
	return nil
}

func sendMessage(ctx context.Context, s *session, args []string) error {
	fs := flags("send")
	wait := fs.Bool("wait", false, "wait for the committed message")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: chatctl send <room> <text> [--wait]")
	}
	msg, err := s.client.Send(ctx, fs.Arg(0), strings.Join(fs.Args()[1:], " "), *wait)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, formatMessage(*msg))
	if !*wait {
		fmt.Fprintf(s.out, "id %s\n", msg.ID)
	}
	return nil
}

func abortMessage(ctx context.Context, s *session, args []string) error {
	if err := s.client.Abort(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s %s\n", ok("aborted"), args[0])
	return nil
}

func history(ctx context.Context, s *session, args []string) error {
	fs := flags("history")
	after := fs.Uint64("after", 0, "list messages after this sequence")
	limit := fs.Int("limit", 50, "page size")
	if err := fs.Parse(args); err != nil {
		return err
	}
	messages, err := s.client.History(ctx, fs.Arg(0), *after, *limit)
	if err != nil {
		return err
	}
	renderMessages(s.out, messages)
	return nil
}

func classify(ctx context.Context, s *session, args []string) error {
	res, err := s.client.Classify(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	confidence := "-"
	if res.Confidence != nil {
		confidence = strconv.FormatFloat(*res.Confidence, 'f', 2, 64)
	}
	fmt.Fprintf(s.out, "%s confidence=%s label=%s\n", verdict(res.Verdict), confidence, lo.CoalesceOrEmpty(res.Label, "-"))
	return nil
}

func searchAudit(ctx context.Context, s *session, args []string) error {
	fs := flags("audit")
	text := fs.String("text", "", "full text query")
	room := fs.String("room", "", "restrict to a room")
	kind := fs.String("kind", "", "flagged or classification_failed")
	limit := fs.Int("limit", 20, "max entries")
	if err := fs.Parse(args); err != nil {
		return err
	}
	res, err := s.client.SearchAudit(ctx, &chatv1.SearchAuditRequest{Text: *text, Room: *room, Kind: *kind, Limit: *limit})
	if err != nil {
		return err
	}
	renderAudit(s.out, res.Entries)
	fmt.Fprintf(s.out, "%d of %d\n", len(res.Entries), res.Total)
	return nil
}

func remediate(ctx context.Context, s *session, args []string) error {
	if err := s.client.Remediate(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s %s\n", ok("resumed"), args[0])
	return nil
}

func operatorToken(_ context.Context, s *session, args []string) error {
	fs := flags("token")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	operators, err := auth.NewOperators(os.Getenv("OPERATOR_SECRET"))
	if err != nil {
		return err
	}
	token, err := operators.GenerateToken(fs.Arg(0), *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, token)
	return nil
}
