package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fiverings/rings-server-go/internal/config"
	"github.com/fiverings/rings-server-go/internal/game"
)

// clientMessage is what a connected client sends: either a poll for the
// current prompt of a game, or an answer to it.
type clientMessage struct {
	Type     string `json:"type"` // "poll" or "choice"
	GameID   string `json:"game_id"`
	Player   string `json:"player"`
	ChoiceID string `json:"choice_id"` // empty means pass
}

// serverMessage is what the server sends back: the pending prompt, if any,
// and whether the game's pipeline has drained.
type serverMessage struct {
	Type   string              `json:"type"` // "prompt", "idle" or "error"
	GameID string              `json:"game_id,omitempty"`
	Prompt *game.PendingPrompt `json:"prompt,omitempty"`
	Done   bool                `json:"done,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// StartWebSocketServer serves the prompt/choice loop over websocket. It
// blocks until the listener fails.
func StartWebSocketServer(cfg config.WebSocketConfig, mgr *game.Manager, logger *zap.Logger) error {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()
		logger.Debug("websocket client connected", zap.String("remote", conn.RemoteAddr().String()))

		for {
			var msg clientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				logger.Debug("websocket client disconnected", zap.Error(err))
				return
			}
			reply := handleMessage(mgr, msg, logger)
			if err := conn.WriteJSON(reply); err != nil {
				logger.Warn("websocket write failed", zap.Error(err))
				return
			}
		}
	})

	logger.Info("starting websocket server", zap.String("address", cfg.Address))
	return http.ListenAndServe(cfg.Address, mux)
}

func handleMessage(mgr *game.Manager, msg clientMessage, logger *zap.Logger) serverMessage {
	inst, ok := mgr.Game(msg.GameID)
	if !ok {
		return serverMessage{Type: "error", GameID: msg.GameID, Error: fmt.Sprintf("unknown game %s", msg.GameID)}
	}

	switch msg.Type {
	case "poll":
		done, err := inst.Continue()
		if err != nil {
			return serverMessage{Type: "error", GameID: msg.GameID, Error: err.Error()}
		}
		return promptOrIdle(inst, done)
	case "choice":
		done, err := inst.SubmitChoice(msg.Player, msg.ChoiceID)
		if err != nil {
			return serverMessage{Type: "error", GameID: msg.GameID, Error: err.Error()}
		}
		return promptOrIdle(inst, done)
	default:
		logger.Debug("unknown websocket message type", zap.String("type", msg.Type))
		return serverMessage{Type: "error", GameID: msg.GameID, Error: fmt.Sprintf("unknown message type %q", msg.Type)}
	}
}

func promptOrIdle(inst *game.Instance, done bool) serverMessage {
	if prompt := inst.PendingPrompt(); prompt != nil {
		return serverMessage{Type: "prompt", GameID: inst.ID, Prompt: prompt}
	}
	return serverMessage{Type: "idle", GameID: inst.ID, Done: done}
}
