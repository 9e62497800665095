package chain

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Coarse transport classes used in outcome reasons.
const (
	ClassTimeout     = "rpc_timeout"
	ClassUnavailable = "rpc_unavailable"
	ClassRateLimited = "rpc_rate_limited"
	ClassReverted    = "reverted"
	ClassError       = "rpc_error"
)

// ClassifyRPCError returns a coarse class for an RPC error.
func ClassifyRPCError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ClassTimeout
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "context deadline exceeded"), strings.Contains(s, "i/o timeout"):
		return ClassTimeout
	case strings.Contains(s, "connection reset"), strings.Contains(s, "broken pipe"),
		strings.Contains(s, "connection refused"), strings.HasSuffix(s, "eof"):
		return ClassUnavailable
	case strings.Contains(s, "too many requests"), strings.Contains(s, "-32005"), strings.Contains(s, "429"):
		return ClassRateLimited
	case strings.Contains(s, "execution reverted"):
		return ClassReverted
	}
	return ClassError
}

// RevertReason extracts the text after "execution reverted:" if present.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	i := strings.Index(strings.ToLower(s), "execution reverted")
	if i < 0 {
		return ""
	}
	rest := strings.TrimSpace(s[i+len("execution reverted"):])
	rest = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
	if rest == "" {
		return "execution reverted"
	}
	return rest
}
