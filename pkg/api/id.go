package api

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	responseIDPrefix     = "resp_"
	messageIDPrefix      = "msg_"
	functionCallIDPrefix = "fc_"
	reasoningIDPrefix    = "rs_"
	callIDPrefix         = "call_"
)

var responseIDPattern = regexp.MustCompile(`^resp_[a-zA-Z0-9]{24}$`)

// NewResponseID generates a new response ID with the "resp_" prefix
// followed by 24 cryptographically random alphanumeric characters.
func NewResponseID() string {
	return responseIDPrefix + randomAlphanumeric(idLength)
}

// NewMessageID generates an ID for an assistant message item.
func NewMessageID() string {
	return messageIDPrefix + randomAlphanumeric(idLength)
}

// NewFunctionCallID generates an ID for a function call item.
func NewFunctionCallID() string {
	return functionCallIDPrefix + randomAlphanumeric(idLength)
}

// NewReasoningID generates an ID for a reasoning item.
func NewReasoningID() string {
	return reasoningIDPrefix + randomAlphanumeric(idLength)
}

// NewCallID generates a call_id for a tool call whose backend did not
// supply one.
func NewCallID() string {
	return callIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidateResponseID checks whether the given string is a valid response ID
// (matches "resp_" + 24 alphanumeric characters).
func ValidateResponseID(id string) bool {
	return responseIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
