package main

import (
	"bytes"
	"chat-guard/auth"
	"chat-guard/domain"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/require"
)

func TestRun_RefusesBadInvocations(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no command", nil, "missing command"},
		{"unknown command", []string{"shout"}, `unknown command "shout"`},
		{"send without text", []string{"--as", "alice", "send", "general"}, "usage: chatctl send"},
		{"create without name", []string{"create"}, "usage: chatctl create"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(context.Background(), tt.args, nil, &out)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestRun_Help(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer

	req.NoError(run(context.Background(), []string{"--help"}, nil, &out))

	req.Contains(out.String(), "remediate <room>")
	req.Contains(out.String(), "token <operator-id>")
	req.Contains(out.String(), "--addr")
}

func TestRun_Token(t *testing.T) {
	req := require.New(t)
	secret := "chatctl-operator-secret-of-32-bytes"
	t.Setenv("OPERATOR_SECRET", secret)
	var out bytes.Buffer

	// When a token is signed offline
	req.NoError(run(context.Background(), []string{"token", "ops-1", "--ttl", "10m"}, nil, &out))

	// Then the server side accepts it for that operator
	operators, err := auth.NewOperators(secret)
	req.NoError(err)
	claims, err := operators.ValidateToken(strings.TrimSpace(out.String()))
	req.NoError(err)
	req.Equal("ops-1", claims.Operator)

	// And without a secret nothing is signed
	t.Setenv("OPERATOR_SECRET", "")
	req.Error(run(context.Background(), []string{"token", "ops-1"}, nil, &out))
}

func TestFormatLine(t *testing.T) {
	color.Disable()
	req := require.New(t)
	at := time.Date(2026, 1, 2, 10, 11, 12, 0, time.Local)

	// Given a pending echo then its committed flagged version
	pending := domain.Message{Author: "alice", Displayed: "you idiot", SubmittedAt: at, LocalAuthor: true}
	committed := pending
	committed.Displayed = "*********"
	committed.Verdict = domain.VerdictFlagged
	committed.Sequence = 7

	req.Equal("  … 10:11:12 alice: you idiot", formatLine(pending))
	req.Equal("  7 10:11:12 alice: *********", formatLine(committed))
}

func TestPositional(t *testing.T) {
	req := require.New(t)
	req.Equal(2, positional([]string{"general", "hello", "--wait"}))
	req.Equal(0, positional([]string{"--limit", "3"}))
}
