package app

import (
	"fmt"
	"strings"

	"github.com/desertthunder/dssr/internal/devalue"
	"github.com/desertthunder/dssr/internal/directus"
	"github.com/desertthunder/dssr/internal/shared"
)

// StateGlobal is the browser global the state script assigns.
const StateGlobal = "window.__INITIAL_STATE__"

// InitialState is handed from a server render to the client bootstrap through the page.
type InitialState struct {
	AccessToken *string               `json:"access_token"`
	Credentials *directus.Credentials `json:"directusCredentials"`
}

// Script serializes s into the inline script placed before </body>.
func (s *InitialState) Script() (string, error) {
	src, err := devalue.Stringify(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrInitialState, err)
	}
	return "  <script>" + StateGlobal + " = " + src + "</script>", nil
}

// ExtractInitialState finds the state script in a rendered page and decodes it.
func ExtractInitialState(page string) (*InitialState, error) {
	_, rest, ok := strings.Cut(page, StateGlobal+" = ")
	if !ok {
		return nil, shared.ErrInitialState
	}
	src, _, ok := strings.Cut(rest, "</script>")
	if !ok {
		return nil, fmt.Errorf("%w: unterminated script", shared.ErrInitialState)
	}

	var state InitialState
	if err := devalue.Unmarshal(strings.TrimSpace(src), &state); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInitialState, err)
	}
	return &state, nil
}
