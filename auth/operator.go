package auth

import (
	"chat-guard/infrastructure/grpc/chatv1"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	OperatorRole  = "operator"
	AuthHeader    = "authorization"
	tokenIssuer   = "chat-guard"
	minSecretSize = 32
)

// Methods reserved to operators. They read unmasked audit text or lift
// sequencing halts, so no participant identity is enough for them.
var operatorMethods = map[string]struct{}{
	chatv1.ChatService_SearchAudit_FullMethodName: {},
	chatv1.ChatService_Remediate_FullMethodName:   {},
}

const OperatorKey contextKey = "operator"

// OperatorClaims is the payload of an operator token.
type OperatorClaims struct {
	Operator string   `json:"operator"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// Operators signs and checks operator tokens with a shared HMAC secret.
type Operators struct {
	key []byte
}

func NewOperators(secret string) (*Operators, error) {
	if len(secret) < minSecretSize {
		return nil, fmt.Errorf("operator secret must hold at least %d bytes", minSecretSize)
	}
	return &Operators{key: []byte(secret)}, nil
}

// GenerateToken creates a signed operator token valid for ttl.
func (o *Operators) GenerateToken(operator string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &OperatorClaims{
		Operator: operator,
		Roles:    []string{OperatorRole},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(o.key)
}

// ValidateToken checks signature, expiry, issuer and the operator role.
func (o *Operators) ValidateToken(tokenString string) (*OperatorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(*jwt.Token) (any, error) {
		return o.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*OperatorClaims)
	if !ok || !token.Valid || claims.Operator == "" || !slices.Contains(claims.Roles, OperatorRole) {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// OperatorInterceptor guards operator methods. With a nil Operators the
// operator surface is disabled and every call to it is refused. It must run
// before ParticipantInterceptor in the chain.
func OperatorInterceptor(operators *Operators) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !isOperatorMethod(info.FullMethod) {
			return handler(ctx, req)
		}
		if operators == nil {
			return nil, status.Error(codes.PermissionDenied, "operator access is disabled")
		}
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get(AuthHeader)
		if len(values) == 0 {
			return nil, status.Error(codes.PermissionDenied, "operator token is required")
		}
		claims, err := operators.ValidateToken(strings.TrimPrefix(values[0], "Bearer "))
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid or expired operator token")
		}
		return handler(context.WithValue(ctx, OperatorKey, claims.Operator), req)
	}
}

// Operator returns the operator identified by OperatorInterceptor.
func Operator(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(OperatorKey).(string)
	return id, ok && id != ""
}

func isOperatorMethod(method string) bool {
	_, ok := operatorMethods[method]
	return ok
}
