// Package xid generates the prefixed identifiers used on the wire and in the
// store. Every id is a short type prefix plus 32 hex characters (a random
// UUID without dashes), so ids are collision-resistant and self-describing.
package xid

import (
	"strings"

	"github.com/google/uuid"
)

const (
	PrefixResponse     = "resp_"
	PrefixMessage      = "msg_"
	PrefixFunctionCall = "fc_"
	PrefixReasoning    = "rs_"
)

// New returns prefix + 32 lowercase hex characters.
func New(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func Response() string { return New(PrefixResponse) }

func Message() string { return New(PrefixMessage) }

func FunctionCall() string { return New(PrefixFunctionCall) }

func Reasoning() string { return New(PrefixReasoning) }
