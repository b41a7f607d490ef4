package websocket

import (
	"context"
	"encoding/json"
	"time"

	"ai-notebook-be/internal/dto"
	"ai-notebook-be/internal/pkg/serverutils"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// Pastes carry whole documents.
	maxMessageSize = 1 << 20
	// handleTimeout bounds one inbound message, including a forced save.
	handleTimeout = 30 * time.Second
)

// InboundHandler applies one message of a workspace.
type InboundHandler interface {
	Dispatch(ctx context.Context, workspaceId string, env *dto.SyncEnvelope) (*dto.SyncResultResponse, error)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// WorkspaceID associated with this connection
	WorkspaceID string

	// Buffered channel of outbound messages.
	Send chan []byte

	handler InboundHandler

	// guarded by Hub.mu
	registered bool
}

// readPump feeds inbound envelopes to the handler and answers each with a
// result message carrying the envelope id.
func (c *Client) readPump() {
	defer func() {
		c.Hub.drop(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("Client", "Unexpected close", map[string]interface{}{
					"workspace_id": c.WorkspaceID,
					"error":        err.Error(),
				})
			}
			break
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var env dto.SyncEnvelope
	out := dto.OutboundMessage{Type: dto.OutboundResult, WorkspaceId: c.WorkspaceID}

	if err := json.Unmarshal(data, &env); err != nil {
		out.Payload = serverutils.ErrorResponse(400, "malformed envelope: "+err.Error())
	} else {
		out.Id = env.Id
		out.SessionId = env.SessionId

		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		res, err := c.handler.Dispatch(ctx, c.WorkspaceID, &env)
		cancel()
		if err != nil {
			code, message := serverutils.ErrorStatus(err)
			out.Payload = serverutils.ErrorResponse(code, message)
		} else {
			out.Payload = serverutils.SuccessResponse("ok", res)
		}
	}

	reply, err := json.Marshal(out)
	if err != nil {
		return
	}
	c.Hub.reply(c, reply)
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One frame per message: every frame is a JSON document.
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
