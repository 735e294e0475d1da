package webauthn

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-webauthn/webauthn/protocol"
)

const (
	ClientDataTypeCreate = string(protocol.CreateCeremony)
	ClientDataTypeGet    = string(protocol.AssertCeremony)
)

// ClientData is the subset of CollectedClientData the relying party checks.
type ClientData struct {
	Type        string
	Challenge   []byte
	Origin      string
	CrossOrigin bool
}

// ParseClientDataJSON decodes clientDataJSON and its base64url challenge.
func ParseClientDataJSON(b []byte) (*ClientData, error) {
	var wire protocol.CollectedClientData
	if err := json.Unmarshal(b, &wire); err != nil {
		return nil, fmt.Errorf("%w: client data: %v", ErrInvalidData, err)
	}
	challenge, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(wire.Challenge, "="))
	if err != nil || len(challenge) == 0 {
		return nil, fmt.Errorf("%w: client data challenge", ErrInvalidData)
	}
	return &ClientData{
		Type:        string(wire.Type),
		Challenge:   challenge,
		Origin:      wire.Origin,
		CrossOrigin: wire.CrossOrigin,
	}, nil
}
