package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"droppers-api/apperr"
	"droppers-api/logx"
	"droppers-api/middleware"
	"droppers-api/models"
	"droppers-api/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

type tokenParser interface {
	ParseToken(token string) (service.Caller, error)
}

// orderActions is the subset of the order service reachable over the socket.
type orderActions interface {
	AcceptOrder(ctx context.Context, c service.Caller, id string) (*models.Order, error)
	AdvanceStatus(ctx context.Context, c service.Caller, id string, to models.OrderStatus) (*models.Order, error)
	CompleteDelivery(ctx context.Context, c service.Caller, id string) (*models.Order, error)
}

// Server upgrades authenticated HTTP requests to websocket clients of a Hub.
type Server struct {
	hub      *Hub
	tokens   tokenParser
	orders   orderActions
	upgrader websocket.Upgrader
	buffer   int
	log      logx.Logger
}

// NewServer builds the websocket endpoint. An empty origins list accepts any origin.
func NewServer(hub *Hub, tokens tokenParser, orders orderActions, sendBuffer int, origins []string, log logx.Logger) *Server {
	s := &Server{
		hub:    hub,
		tokens: tokens,
		orders: orders,
		buffer: sendBuffer,
		log:    log.With(logx.String("component", "realtime")),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(origins) == 0 || origin == "" || slices.Contains(origins, origin)
		},
	}
	return s
}

// Handle is the gin handler for the websocket endpoint. The token comes from
// the Authorization header or the token query parameter.
func (s *Server) Handle(c *gin.Context) {
	token := middleware.BearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token = c.Query("token")
	}
	caller, err := s.tokens.ParseToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": apperr.MessageOf(err),
		})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", logx.Err(err))
		return
	}

	client := newClient(caller, s.buffer)
	if !s.hub.register(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	for _, room := range client.homeRooms() {
		s.hub.Join(client, room)
	}
	s.log.Debug("realtime client connected",
		logx.String("client_id", client.id),
		logx.String("user_id", caller.ID),
		logx.String("role", string(caller.Role)))

	go s.writePump(conn, client)
	s.readPump(context.WithoutCancel(c.Request.Context()), conn, client)
}

func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, client *Client) {
	defer func() {
		s.hub.unregister(client)
		_ = conn.Close()
		s.log.Debug("realtime client disconnected", logx.String("client_id", client.id))
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("realtime read failed", logx.String("client_id", client.id), logx.Err(err))
			}
			return
		}
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil || f.Event == "" {
			s.log.Warn("malformed realtime frame", logx.String("client_id", client.id))
			continue
		}
		s.dispatch(ctx, client, f)
	}
}

func (s *Server) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch runs one client request. Failures are logged and, when the frame
// carried an ack id, answered with success=false; the connection stays open.
func (s *Server) dispatch(ctx context.Context, client *Client, f Frame) {
	data, msg, err := s.handle(ctx, client, f)
	if err != nil {
		s.log.Warn("realtime request failed",
			logx.String("client_id", client.id),
			logx.String("event", f.Event),
			logx.Err(err))
		if f.Ack != "" {
			s.reply(client, f.Ack, AckPayload{Success: false, Message: apperr.MessageOf(err)})
		}
		return
	}
	if f.Ack != "" {
		s.reply(client, f.Ack, AckPayload{Success: true, Message: msg, Data: data})
	}
}

func (s *Server) handle(ctx context.Context, client *Client, f Frame) (any, string, error) {
	caller := client.caller
	switch f.Event {
	case RequestJoinVendor:
		return s.join(client, VendorRoom(decodeID(f.Data)))
	case RequestJoinDropper:
		return s.join(client, DropperRoom(decodeID(f.Data)))
	case RequestJoinAvailableOrders:
		return s.join(client, RoomAvailableOrders)

	case RequestAcceptOrder:
		var req acceptRequest
		if err := decode(f.Data, &req); err != nil {
			return nil, "", err
		}
		if req.DropperID != "" && req.DropperID != caller.ID {
			return nil, "", apperr.New(apperr.Authorization, "dropperId does not match the connected delivery partner")
		}
		o, err := s.orders.AcceptOrder(ctx, caller, req.OrderID)
		if err != nil {
			return nil, "", err
		}
		return o, "Order accepted successfully", nil

	case RequestStatusUpdate:
		var req statusRequest
		if err := decode(f.Data, &req); err != nil {
			return nil, "", err
		}
		o, err := s.orders.AdvanceStatus(ctx, caller, req.OrderID, models.OrderStatus(strings.ToUpper(string(req.Status))))
		if err != nil {
			return nil, "", err
		}
		return o, "Order status updated", nil

	case RequestDeliveryCompleted:
		var req statusRequest
		if err := decode(f.Data, &req); err != nil {
			return nil, "", err
		}
		o, err := s.orders.CompleteDelivery(ctx, caller, req.OrderID)
		if err != nil {
			return nil, "", err
		}
		return o, "Delivery completed", nil
	}
	return nil, "", apperr.Newf(apperr.Validation, "unknown event %q", f.Event)
}

func (s *Server) join(client *Client, room string) (any, string, error) {
	if !client.canJoin(room) {
		return nil, "", apperr.Newf(apperr.Authorization, "not allowed to join %s", room)
	}
	s.hub.Join(client, room)
	return gin.H{"room": room}, "Joined " + room, nil
}

func (s *Server) reply(client *Client, ack string, payload AckPayload) {
	frame, err := encodeFrame(EventAck, ack, payload)
	if err != nil {
		s.log.Error("encode ack", logx.Err(err))
		return
	}
	s.hub.send(client, frame)
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return apperr.New(apperr.Validation, "request data is required")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Wrap(apperr.Validation, "malformed request data", err)
	}
	return nil
}

// decodeID accepts either a bare JSON string or {"id": "..."}.
func decodeID(data json.RawMessage) string {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return id
	}
	var req joinRequest
	_ = json.Unmarshal(data, &req)
	return req.ID
}
