// chatctl talks to a chat-guard server from the terminal.
package main

import (
	"chat-guard/infrastructure/grpc/client"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/pflag"
)

type command struct {
	usage string
	// min is the number of positional arguments required
	min int
	run func(ctx context.Context, env *session, args []string) error
}

type session struct {
	client *client.ChatClient
	in     io.Reader
	out    io.Writer
}

var commands = map[string]command{
	"rooms":     {"rooms", 0, listRooms},
	"create":    {"create <name>", 1, createRoom},
	"join":      {"join <room> [--name display] [--avatar url]", 1, joinRoom},
	"leave":     {"leave <room>", 1, leaveRoom},
	"who":       {"who <room>", 1, listParticipants},
	"send":      {"send <room> <text> [--wait]", 2, sendMessage},
	"abort":     {"abort <message-id>", 1, abortMessage},
	"tail":      {"tail <room> [--from seq]", 1, tailRoom},
	"chat":      {"chat <room>", 1, chatRoom},
	"history":   {"history <room> [--after seq] [--limit n]", 1, history},
	"classify":  {"classify <text>", 1, classify},
	"audit":     {"audit [--text t] [--room r] [--kind flagged|classification_failed] [--limit n]", 0, searchAudit},
	"remediate": {"remediate <room>", 1, remediate},
}

// offline commands never dial the server.
var offline = map[string]command{
	"token": {"token <operator-id> [--ttl 1h]  (signs with $OPERATOR_SECRET)", 1, operatorToken},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	flagSet := pflag.NewFlagSet("chatctl", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	addr := flagSet.String("addr", "localhost:8080", "chat-guard server address")
	participant := flagSet.String("as", os.Getenv("CHAT_GUARD_PARTICIPANT"), "participant id sent with every call")
	timeout := flagSet.Duration("timeout", 10*time.Second, "deadline of one-shot commands")
	token := flagSet.String("token", os.Getenv("CHAT_GUARD_OPERATOR_TOKEN"), "operator token for audit and remediate")
	flagSet.Usage = func() { printUsage(out, flagSet) }
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(out, flagSet)
		return fmt.Errorf("missing command")
	}
	if cmd, ok := offline[rest[0]]; ok {
		if positional(rest[1:]) < cmd.min {
			return fmt.Errorf("usage: chatctl %s", cmd.usage)
		}
		return cmd.run(ctx, &session{in: in, out: out}, rest[1:])
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", rest[0])
	}
	if positional(rest[1:]) < cmd.min {
		return fmt.Errorf("usage: chatctl %s", cmd.usage)
	}

	c, err := client.NewChatClient(*addr, *participant)
	if err != nil {
		return fmt.Errorf("dial %s: %w", *addr, err)
	}
	defer c.Close()
	c.OperatorToken = *token

	// Streaming commands run until interrupted
	if rest[0] != "tail" && rest[0] != "chat" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}
	return cmd.run(ctx, &session{client: c, in: in, out: out}, rest[1:])
}

// positional counts the arguments that are not flags.
func positional(args []string) int {
	n := 0
	for _, a := range args {
		if len(a) > 0 && a[0] == '-' {
			break
		}
		n++
	}
	return n
}

func printUsage(out io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintln(out, "usage: chatctl [--addr host:port] [--as participant] [--token jwt] <command> [args]")
	fmt.Fprintln(out, "\ncommands:")
	all := make(map[string]command, len(commands)+len(offline))
	for name, cmd := range commands {
		all[name] = cmd
	}
	for name, cmd := range offline {
		all[name] = cmd
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s\n", all[name].usage)
	}
	fmt.Fprintln(out, "\nflags:")
	fmt.Fprint(out, flagSet.FlagUsages())
}
