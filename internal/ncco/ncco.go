package ncco

import (
	"errors"
	"strings"
)

// ErrInvalidEndpoint is returned for endpoint strings that are neither a
// websocket URI, a SIP URI, nor a phone number.
var ErrInvalidEndpoint = errors.New("unsupported or invalid endpoint: use ws(s)://, sip:, or phone number")

// Endpoint is one connect target inside a connect action.
type Endpoint struct {
	Type   string `json:"type"`
	URI    string `json:"uri,omitempty"`
	Number string `json:"number,omitempty"`
}

// Action is a single NCCO action. Fields are populated per action type.
type Action struct {
	Action   string     `json:"action"`
	Text     string     `json:"text,omitempty"`
	Endpoint []Endpoint `json:"endpoint,omitempty"`
	EventURL []string   `json:"eventUrl,omitempty"`
}

// Talk builds an NCCO with a single talk action.
func Talk(text string) []Action {
	return []Action{
		{
			Action: "talk",
			Text:   text,
		},
	}
}

// Connect builds an NCCO with a single connect action targeting the given
// endpoint. The endpoint is classified by prefix: ws:// or wss:// selects a
// websocket endpoint, sip: a SIP endpoint, and a digit string (optionally
// with a leading +) a phone endpoint.
func Connect(endpoint, eventURL string) ([]Action, error) {
	ep, err := classify(endpoint)
	if err != nil {
		return nil, err
	}

	return []Action{
		{
			Action:   "connect",
			Endpoint: []Endpoint{ep},
			EventURL: []string{eventURL},
		},
	}, nil
}

func classify(endpoint string) (Endpoint, error) {
	switch {
	case strings.HasPrefix(endpoint, "ws://"), strings.HasPrefix(endpoint, "wss://"):
		return Endpoint{Type: "websocket", URI: endpoint}, nil
	case strings.HasPrefix(endpoint, "sip:"):
		return Endpoint{Type: "sip", URI: endpoint}, nil
	case isPhoneNumber(endpoint):
		return Endpoint{Type: "phone", Number: endpoint}, nil
	default:
		return Endpoint{}, ErrInvalidEndpoint
	}
}

func isPhoneNumber(s string) bool {
	digits := strings.TrimPrefix(s, "+")
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
