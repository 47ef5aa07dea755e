package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/adjuface/facegate/internal/account"
	"github.com/adjuface/facegate/internal/auth"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type TimeoutConfig struct {
	PongWait   time.Duration
	PingPeriod time.Duration
	WriteWait  time.Duration
}

type connectionManager struct {
	connections sync.Map
}

var (
	wsTimeouts = TimeoutConfig{
		PongWait:   60 * time.Second,
		PingPeriod: 54 * time.Second,
		WriteWait:  10 * time.Second,
	}

	wsManager = &connectionManager{}

	upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			// The chat adapter is a trusted server-side client.
			return true
		},
	}
)

func (cm *connectionManager) add(conn *websocket.Conn)    { cm.connections.Store(conn, struct{}{}) }
func (cm *connectionManager) remove(conn *websocket.Conn) { cm.connections.Delete(conn) }

// wsCommand is one inbound chat command. Photos arrive as binary frames, not
// commands.
type wsCommand struct {
	Command  string `json:"command"`
	Category string `json:"category,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
}

type wsEvent struct {
	Type    string      `json:"type"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// HandleWebSocket carries the chat adapter's single inbound channel: JSON
// command frames and binary photo frames in, JSON events and binary result
// images out.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenString := auth.ExtractToken(r)
	if tokenString == "" {
		tokenString = r.URL.Query().Get("token")
	}
	if tokenString == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ParseToken(tokenString)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "Could not upgrade connection", http.StatusInternalServerError)
		return
	}

	wsManager.add(conn)
	defer func() {
		wsManager.remove(conn)
		conn.Close()
	}()

	logger := log.With().Str("user_id", claims.UserID).Logger()
	logger.Info().Msg("Chat channel connected")

	conn.SetReadLimit(maxImageBytes)
	conn.SetReadDeadline(time.Now().Add(wsTimeouts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsTimeouts.PongWait))
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(wsTimeouts.PingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(wsTimeouts.WriteWait)
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	session := &wsSession{handlers: h, conn: conn, userID: claims.UserID, logger: logger}
	session.sendEvent(wsEvent{Type: "connected"})

	for {
		conn.SetReadDeadline(time.Now().Add(wsTimeouts.PongWait))
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("Chat channel closed unexpectedly")
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			session.handleCommand(r.Context(), message)
		case websocket.BinaryMessage:
			session.handlePhoto(r.Context(), message)
		}
	}
}

// wsSession is the per-connection state. expectTarget mirrors the "send me
// your next photo as the target" flow: after an upload_target command the
// next binary frame is stored as the custom target instead of being swapped.
type wsSession struct {
	handlers *Handlers
	conn     *websocket.Conn
	userID   string
	logger   zerolog.Logger

	expectTarget bool
}

func (s *wsSession) sendEvent(event wsEvent) {
	s.conn.SetWriteDeadline(time.Now().Add(wsTimeouts.WriteWait))
	if err := s.conn.WriteJSON(event); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write chat event")
	}
}

func (s *wsSession) sendImage(image []byte) {
	s.conn.SetWriteDeadline(time.Now().Add(wsTimeouts.WriteWait))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, image); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write result image")
	}
}

func (s *wsSession) handleCommand(ctx context.Context, message []byte) {
	var cmd wsCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.sendEvent(wsEvent{Type: "error", Error: "invalid_command", Message: "Malformed command."})
		return
	}

	h := s.handlers
	switch cmd.Command {
	case "status":
		acct, err := h.accounts.GetOrCreate(ctx, s.userID)
		if err != nil {
			s.sendEvent(wsEvent{Type: "error", Error: "internal_error"})
			return
		}
		s.sendEvent(wsEvent{Type: "status", Payload: statusResponse{
			UserID:           acct.UserID,
			Tier:             string(acct.Tier),
			QuotaRemaining:   acct.QuotaRemaining,
			TargetSlots:      acct.TargetSlots,
			SelectedCategory: acct.SelectedCategory,
			SelectedMode:     acct.SelectedMode,
			CustomTargetSet:  acct.CustomTargetPath != "",
		}})

	case "categories":
		s.sendEvent(wsEvent{Type: "categories", Payload: h.catalog.Categories()})

	case "select":
		if _, err := h.catalog.ResolveTarget(cmd.Category, cmd.Mode); err != nil {
			s.sendEvent(wsEvent{Type: "error", Error: "unknown_category", Message: "No such category or target."})
			return
		}
		if err := h.accounts.SetSelection(ctx, s.userID, cmd.Category, cmd.Mode); err != nil {
			s.sendEvent(wsEvent{Type: "error", Error: "internal_error"})
			return
		}
		s.sendEvent(wsEvent{Type: "selected", Payload: map[string]string{
			"category": cmd.Category,
			"mode":     cmd.Mode,
		}})

	case "premium":
		if err := h.accounts.UpgradeToPremium(ctx, s.userID, h.quotaCfg.PremiumBonusQuota, h.quotaCfg.PremiumBonusTargets); err != nil {
			s.sendEvent(wsEvent{Type: "error", Error: "internal_error"})
			return
		}
		s.sendEvent(wsEvent{Type: "premium", Message: "Premium activated."})

	case "upload_target":
		acct, err := h.accounts.GetOrCreate(ctx, s.userID)
		if err != nil {
			s.sendEvent(wsEvent{Type: "error", Error: "internal_error"})
			return
		}
		if !acct.IsPremium() {
			s.sendEvent(wsEvent{Type: "error", Error: "not_premium", Message: "Custom targets require premium."})
			return
		}
		if acct.TargetSlots <= 0 {
			s.sendEvent(wsEvent{Type: "error", Error: "no_target_slots", Message: "No target uploads left."})
			return
		}
		s.expectTarget = true
		s.sendEvent(wsEvent{Type: "awaiting_target", Message: "Send the target photo."})

	case "clear_target":
		if err := h.accounts.ClearCustomTarget(ctx, s.userID); err != nil {
			s.sendEvent(wsEvent{Type: "error", Error: "internal_error"})
			return
		}
		s.sendEvent(wsEvent{Type: "target_cleared"})

	case "draw":
		s.handleDraw(ctx, cmd.Prompt)

	default:
		s.sendEvent(wsEvent{Type: "error", Error: "unknown_command", Message: "Unknown command."})
	}
}

func (s *wsSession) handleDraw(ctx context.Context, prompt string) {
	h := s.handlers
	if !h.draws.Enabled() {
		s.sendEvent(wsEvent{Type: "error", Error: "draw_disabled", Message: "Drawing is not available."})
		return
	}
	acct, err := h.accounts.GetOrCreate(ctx, s.userID)
	if err != nil {
		s.sendEvent(wsEvent{Type: "error", Error: "internal_error"})
		return
	}
	if !acct.IsPremium() {
		s.sendEvent(wsEvent{Type: "error", Error: "not_premium", Message: "Drawing requires premium."})
		return
	}

	image, err := h.draws.Generate(ctx, prompt)
	if err != nil {
		s.sendEvent(wsEvent{Type: "error", Error: "draw_failed", Message: "Could not generate that image."})
		return
	}
	s.sendImage(image)
}

func (s *wsSession) handlePhoto(ctx context.Context, image []byte) {
	h := s.handlers

	if s.expectTarget {
		s.expectTarget = false
		s.storeTarget(ctx, image)
		return
	}

	if !h.limiter.Allow(s.userID) {
		s.sendEvent(wsEvent{Type: "error", Error: "too_fast", Message: "You are sending photos too fast. Wait a moment."})
		return
	}

	result, err := h.swaps.HandleImage(ctx, s.userID, image)
	if err != nil {
		out := classifySwapError(err)
		if out.Status == http.StatusInternalServerError {
			s.logger.Error().Err(err).Msg("Swap failed unexpectedly")
		}
		s.sendEvent(wsEvent{Type: "error", Error: out.Code, Message: out.Message})
		return
	}

	s.sendImage(result.Image)
	s.sendEvent(wsEvent{Type: "swap_done", Payload: map[string]int{"quota_remaining": result.QuotaRemaining}})
}

func (s *wsSession) storeTarget(ctx context.Context, image []byte) {
	h := s.handlers

	path, err := saveTargetUpload(s.userID, image)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to save target upload")
		s.sendEvent(wsEvent{Type: "error", Error: "internal_error"})
		return
	}

	if err := h.accounts.SetCustomTarget(ctx, s.userID, path); err != nil {
		switch err {
		case account.ErrNotPremium:
			s.sendEvent(wsEvent{Type: "error", Error: "not_premium", Message: "Custom targets require premium."})
		case account.ErrNoTargetSlots:
			s.sendEvent(wsEvent{Type: "error", Error: "no_target_slots", Message: "No target uploads left."})
		default:
			s.logger.Error().Err(err).Msg("Failed to set custom target")
			s.sendEvent(wsEvent{Type: "error", Error: "internal_error"})
		}
		return
	}

	s.sendEvent(wsEvent{Type: "target_uploaded", Message: "Target stored. New photos will use it."})
}
