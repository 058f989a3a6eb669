package chatserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/anatolykoptev/go_moments/internal/assistant"
	"github.com/anatolykoptev/go_moments/internal/chatstore"
	"github.com/anatolykoptev/go_moments/internal/ui"
)

type messageRequest struct {
	Content string `json:"content" binding:"required"`
}

type turnResponse struct {
	ChatID    string              `json:"chatId"`
	Fragments []ui.Fragment       `json:"fragments"`
	Messages  []assistant.Message `json:"messages"`
}

// socketFrame is one server-to-client websocket message.
type socketFrame struct {
	Type     string       `json:"type"` // fragment | done | error
	Fragment *ui.Fragment `json:"fragment,omitempty"`
	Messages int          `json:"messages,omitempty"`
	Error    string       `json:"error,omitempty"`
}

func (s *Server) postMessage(c *gin.Context) {
	chatID := c.Param("id")
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	if !s.allow(chatID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many messages, slow down"})
		return
	}

	var frags []ui.Fragment
	sink := assistant.SinkFunc(func(f ui.Fragment) { frags = append(frags, f) })
	state, err := s.runTurn(c.Request.Context(), chatID, userID(c), req.Content, sink)
	if errors.Is(err, chatstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}
	if err != nil {
		slog.Error("chat turn failed", slog.String("chat", chatID), slog.Any("error", err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "chatId": chatID, "messages": state.Messages})
		return
	}
	c.JSON(http.StatusOK, turnResponse{ChatID: state.ChatID, Fragments: finalFragments(frags), Messages: state.Messages})
}

// finalFragments keeps the last update of every fragment, in first-seen order.
func finalFragments(frags []ui.Fragment) []ui.Fragment {
	idx := make(map[string]int, len(frags))
	out := make([]ui.Fragment, 0, len(frags))
	for _, f := range frags {
		if i, ok := idx[f.ID]; ok {
			out[i] = f
			continue
		}
		idx[f.ID] = len(out)
		out = append(out, f)
	}
	return out
}

func (s *Server) chatSocket(c *gin.Context) {
	chatID := c.Param("id")
	user := userID(c)
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", slog.Any("error", err))
		return
	}
	defer ws.Close()

	ctx := c.Request.Context()
	for {
		var req messageRequest
		if err := ws.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("ws read ended", slog.String("chat", chatID), slog.Any("error", err))
			}
			return
		}
		if req.Content == "" {
			_ = ws.WriteJSON(socketFrame{Type: "error", Error: "content is required"})
			continue
		}
		if !s.allow(chatID) {
			_ = ws.WriteJSON(socketFrame{Type: "error", Error: "too many messages, slow down"})
			continue
		}

		var writeErr error
		sink := assistant.SinkFunc(func(f ui.Fragment) {
			if writeErr != nil {
				return
			}
			writeErr = ws.WriteJSON(socketFrame{Type: "fragment", Fragment: &f})
		})
		state, err := s.runTurn(ctx, chatID, user, req.Content, sink)
		if writeErr != nil {
			slog.Debug("ws write failed", slog.String("chat", chatID), slog.Any("error", writeErr))
			return
		}
		if err != nil {
			_ = ws.WriteJSON(socketFrame{Type: "error", Error: err.Error()})
			continue
		}
		if err := ws.WriteJSON(socketFrame{Type: "done", Messages: len(state.Messages)}); err != nil {
			return
		}
	}
}

func (s *Server) listChats(c *gin.Context) {
	user := userID(c)
	if user == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": UserHeader + " header is required"})
		return
	}
	if s.store == nil {
		c.JSON(http.StatusOK, gin.H{"chats": []chatstore.Chat{}})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	chats, err := s.store.List(c.Request.Context(), user, limit)
	if err != nil {
		slog.Error("list chats failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// getChat returns the state and its display; ?format=html or markdown renders it.
func (s *Server) getChat(c *gin.Context) {
	chatID := c.Param("id")
	state, err := s.loadState(c.Request.Context(), chatID, userID(c))
	if errors.Is(err, chatstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load failed"})
		return
	}
	frags := assistant.UIFromState(state)

	switch c.Query("format") {
	case "html":
		page, err := ui.RenderPage(frags)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
	case "markdown":
		var out []byte
		for _, f := range frags {
			md, err := ui.Markdown(f)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			out = append(out, md...)
			out = append(out, '\n', '\n')
		}
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", out)
	default:
		c.JSON(http.StatusOK, gin.H{"chatId": state.ChatID, "messages": state.Messages, "ui": frags})
	}
}

func (s *Server) deleteChat(c *gin.Context) {
	chatID := c.Param("id")
	user := userID(c)
	if user == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": UserHeader + " header is required"})
		return
	}
	storeErr := chatstore.ErrNotFound
	if s.store != nil {
		storeErr = s.store.Delete(c.Request.Context(), chatID, user)
	}
	if storeErr != nil && !errors.Is(storeErr, chatstore.ErrNotFound) {
		slog.Error("delete chat failed", slog.String("chat", chatID), slog.Any("error", storeErr))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if dropped := s.dropSession(chatID, user); !dropped && storeErr != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
