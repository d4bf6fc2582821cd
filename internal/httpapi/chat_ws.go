package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/duckworks/geminiduck/internal/bot"
	"github.com/duckworks/geminiduck/internal/gemini"
)

const (
	chatWSReadLimit    = 64 << 10
	chatWSReadTimeout  = 10 * time.Minute
	chatWSWriteTimeout = 30 * time.Second

	// Turns kept per connection. The completion client trims further to
	// its character and turn budgets on every request.
	chatWSMaxTurns = 50
)

var chatWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// chatWSInMessage is the JSON shape sent from the client.
type chatWSInMessage struct {
	Prompt string `json:"prompt"`
	Mode   string `json:"mode,omitempty"`
	Header string `json:"header,omitempty"`
	Model  string `json:"model,omitempty"`
}

// chatWSOutMessage is the JSON shape sent to the client.
type chatWSOutMessage struct {
	Type     string           `json:"type"` // status, response or error
	State    string           `json:"state,omitempty"`
	Response *messageResponse `json:"response,omitempty"`
	Kind     string           `json:"kind,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// ChatWS handles GET /v1/chat, a WebSocket conversation. The server keeps
// the turn history for the connection, so each message only carries the new
// prompt.
func (h *Handler) ChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := chatWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("chat ws upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(chatWSReadLimit)
	conn.SetReadDeadline(time.Now().Add(chatWSReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(chatWSReadTimeout))
		return nil
	})

	var turns []gemini.Turn
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			log.Debug().Err(err).Msg("chat ws read")
			return
		}
		conn.SetReadDeadline(time.Now().Add(chatWSReadTimeout))

		var in chatWSInMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			_ = writeWSJSON(conn, chatWSOutMessage{Type: "error", Kind: "INVALID_REQUEST", Error: "invalid JSON: " + err.Error()})
			continue
		}
		if in.Prompt == "" {
			_ = writeWSJSON(conn, chatWSOutMessage{Type: "error", Kind: "INVALID_REQUEST", Error: "prompt required"})
			continue
		}

		req := bot.Request{
			Prompt:  in.Prompt,
			Mode:    bot.Mode(in.Mode),
			Header:  in.Header,
			Model:   in.Model,
			Context: turns,
			OnState: func(state string) {
				switch state {
				case bot.StateCompleting, bot.StateRendering:
					_ = writeWSJSON(conn, chatWSOutMessage{Type: "status", State: state})
				}
			},
		}

		resp, callErr := h.service.Handle(context.Background(), req)
		if callErr != nil {
			_, kind := statusForError(callErr)
			if err := writeWSJSON(conn, chatWSOutMessage{Type: "error", Kind: kind, Error: callErr.Error()}); err != nil {
				log.Debug().Err(err).Msg("chat ws write")
				return
			}
			continue
		}

		turns = append(turns,
			gemini.Turn{Role: gemini.RoleUser, Text: in.Prompt},
			gemini.Turn{Role: gemini.RoleModel, Text: resp.Text},
		)
		if len(turns) > chatWSMaxTurns {
			turns = turns[len(turns)-chatWSMaxTurns:]
		}

		out := toMessageResponse(resp)
		if err := writeWSJSON(conn, chatWSOutMessage{Type: "response", Response: &out}); err != nil {
			log.Debug().Err(err).Msg("chat ws write")
			return
		}
	}
}

func writeWSJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(chatWSWriteTimeout))
	return conn.WriteJSON(v)
}
