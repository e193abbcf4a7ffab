package e2e

import (
	"chat-guard/infrastructure/grpc/client"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

type BaseGrpcSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseGrpcSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("CHAT_GUARD_ADDR is not set")
	}
}

// Dial connects as participant and logs every unary call with its status.
func (s *BaseGrpcSuite) Dial(t *testing.T, name, participant string) *client.ChatClient {
	header := fmt.Sprintf("  ====== %s (%s) ======", name, participant)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)

	c, err := client.NewChatClient(s.Config.ServerAddr, participant,
		grpc.WithUnaryInterceptor(func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			start := time.Now()
			err := invoker(ctx, method, req, reply, cc, opts...)

			logBuilder := strings.Builder{}
			fmt.Fprintf(&logBuilder, "GRPC %s [%s] in %v", method, status.Code(err), time.Since(start))
			if s.Config.DebugBodies {
				fmt.Fprintf(&logBuilder, "\nREQUEST: %+v", req)
				if err != nil {
					fmt.Fprintf(&logBuilder, "\nERROR: %v", err)
				} else {
					fmt.Fprintf(&logBuilder, "\nRESPONSE: %+v", reply)
				}
			}
			t.Log(logBuilder.String())
			return err
		}),
	)
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.ServerAddr)
	return c
}

// As runs fn on behalf of participant with a bounded context.
func (s *BaseGrpcSuite) As(name, participant string, fn func(ctx context.Context, c *client.ChatClient)) {
	c := s.Dial(s.T(), name, participant)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fn(ctx, c)
}
