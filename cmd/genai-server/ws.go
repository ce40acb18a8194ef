package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
)

// wsReadLimit is the maximum message size for WebSocket reads.
const wsReadLimit = 1 << 20 // 1 MiB

// wsBufferSize is the read/write buffer size for WebSocket connections.
const wsBufferSize = 4096

// upgrader configures the WebSocket upgrade with permissive origin checks
// (the server sits behind the API gateway, not on the public internet).
var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsRequest is the WebSocket message payload from the client.
type wsRequest struct {
	Text string `json:"text"`
}

// wsResponse is the WebSocket message payload sent to the client: a
// sequence of "chunk" messages followed by one "done", or an "error".
type wsResponse struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleWebSocket upgrades the connection and streams one completion per
// client message.
func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(wsReadLimit)
	wsConnections.Inc()
	defer wsConnections.Dec()

	s.log.Info().Str("remote", r.RemoteAddr).Msg("websocket connection established")

	for {
		_, msg, readErr := conn.ReadMessage()
		if readErr != nil {
			if websocket.IsUnexpectedCloseError(readErr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway) {
				s.log.Error().Err(readErr).Msg("websocket read error")
			}
			return
		}
		s.streamCompletion(r, conn, msg)
	}
}

// streamCompletion handles a single WebSocket message by streaming model
// chunks back as they arrive.
func (s *server) streamCompletion(r *http.Request, conn *websocket.Conn, msg []byte) {
	var req wsRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		s.writeWS(conn, wsResponse{Type: "error", Error: "invalid JSON"})
		return
	}
	if req.Text == "" {
		s.writeWS(conn, wsResponse{Type: "error", Error: "'text' field required"})
		return
	}

	err := s.gen.GenerateStream(r.Context(), req.Text, func(chunk string) error {
		return conn.WriteJSON(wsResponse{Type: "chunk", Content: chunk})
	})
	if err != nil {
		s.log.Error().Err(err).Msg("streaming generation failed")
		s.writeWS(conn, wsResponse{Type: "error", Error: err.Error()})
		return
	}
	s.writeWS(conn, wsResponse{Type: "done"})
}

func (s *server) writeWS(conn *websocket.Conn, resp wsResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		s.log.Error().Err(err).Msg("websocket write error")
	}
}
