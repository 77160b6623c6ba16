package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"spinwin/internal/apperr"
	"spinwin/internal/auth"
	"spinwin/internal/kiosk"
	"spinwin/internal/models"
)

const (
	wsReadLimit     = 8 << 10
	wsActionTimeout = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type wsInbound struct {
	Type string          `json:"type"`
	Ts   int64           `json:"ts"`
	Seq  int64           `json:"seq"`
	Data json.RawMessage `json:"data"`
}

// HandleWS streams the session view to the kiosk on every change and accepts
// the same actions as the HTTP API.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = getBearerToken(r)
	}
	claims, err := auth.ParseToken(s.JWTSecret, token)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if err := s.validateSession(r.Context(), claims); err != nil {
		if errors.Is(err, errInvalidSession) {
			w.WriteHeader(http.StatusUnauthorized)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sess := s.session(claims)
	client := NewWSClient(sess.ID, conn)
	s.Hub.Register(client)
	s.bump(eventWSConnect)
	unsubscribe := sess.Subscribe(func(v kiosk.View) {
		client.Send(s.wsPayload(WSMessage{Type: "session", Data: v}))
	})
	defer func() {
		unsubscribe()
		s.Hub.Unregister(client)
		_ = conn.Close()
		client.Close()
	}()

	client.Send(s.wsPayload(WSMessage{
		Type: "hello",
		Data: map[string]interface{}{
			"server_time": time.Now().UnixMilli(),
			"kiosk_id":    claims.KioskID,
			"session":     sess.View(),
		},
	}))
	go client.WritePump()

	conn.SetReadLimit(wsReadLimit)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in wsInbound
		if err := json.Unmarshal(msg, &in); err != nil {
			continue
		}
		if in.Type == "ping" {
			client.Send(s.wsPayload(WSMessage{
				Type: "pong",
				Data: map[string]interface{}{
					"ts":          in.Ts,
					"seq":         in.Seq,
					"server_time": time.Now().UnixMilli(),
				},
			}))
			continue
		}
		client.Send(s.wsPayload(WSMessage{Type: "ack", Data: s.wsAction(sess, in)}))
	}
}

// wsAction applies one inbound action. The resulting view reaches the client
// through the session subscription, so the ack only carries the outcome.
func (s *Server) wsAction(sess *kiosk.Session, in wsInbound) map[string]interface{} {
	ack := map[string]interface{}{"seq": in.Seq, "action": in.Type}
	ctx, cancel := context.WithTimeout(context.Background(), wsActionTimeout)
	defer cancel()

	var err error
	switch in.Type {
	case eventTap:
		_, err = sess.Tap()
	case eventSkip:
		_, err = sess.Skip()
	case eventStart:
		_, err = sess.Start()
	case eventHome:
		_, err = sess.BackHome()
	case eventReview:
		var review models.Review
		if uerr := json.Unmarshal(in.Data, &review); uerr != nil {
			err = apperr.New(apperr.CodeInvalidRequest, "invalid request")
			break
		}
		_, err = sess.SubmitReview(ctx, review)
	case eventSpin:
		_, err = sess.Spin(ctx)
	default:
		err = apperr.New(apperr.CodeInvalidRequest, "unknown action")
	}
	if err != nil {
		ack["ok"] = false
		ack["error"] = apperr.MessageOf(err)
		ack["code"] = apperr.CodeOf(err)
		return ack
	}
	s.bump(in.Type)
	ack["ok"] = true
	return ack
}

// wsPayload encodes msg for the socket. It returns nil, which Send drops,
// when msg cannot be encoded.
func (s *Server) wsPayload(msg WSMessage) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Warn().Err(err).Str("type", msg.Type).Msg("ws message encode failed")
		return nil
	}
	return data
}
