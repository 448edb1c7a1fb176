package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"droppers-api/config"
	"droppers-api/distance"
	"droppers-api/logx"
	"droppers-api/models"
	"droppers-api/repository"
	"droppers-api/service"
	"droppers-api/testutil"
)

type env struct {
	t      *testing.T
	url    string
	auth   *service.AuthService
	orders *service.OrderService
	hub    *Hub
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.OpenDB(t)
	log := logx.Nop()

	auth := service.NewAuthService(repository.NewUserRepository(db),
		config.Auth{JWTSecret: "ws-secret", TokenTTL: time.Hour}, config.DefaultRules(), log,
		service.WithHashCost(bcrypt.MinCost))
	hub := NewHub(log)
	orders := service.NewOrderService(repository.NewOrderRepository(db), distance.Fixed(2.5),
		NewNotifier(hub), config.DefaultRules(), log)

	r := gin.New()
	r.GET("/api/ws", NewServer(hub, auth, orders, 32, nil, log).Handle)
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})
	return &env{t: t, url: "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws", auth: auth, orders: orders, hub: hub}
}

type peer struct {
	t      *testing.T
	conn   *websocket.Conn
	caller service.Caller
	token  string
}

func (e *env) signUp(email string, role models.UserRole) *peer {
	e.t.Helper()
	res, err := e.auth.Register(context.Background(), service.RegisterInput{
		Email: email, Password: "secret123", Name: "Test User", Phone: "+15551234567", Role: role,
	})
	require.NoError(e.t, err)
	caller, err := e.auth.ParseToken(res.Token)
	require.NoError(e.t, err)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+res.Token)
	conn, _, err := websocket.DefaultDialer.Dial(e.url, header)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = conn.Close() })
	return &peer{t: e.t, conn: conn, caller: caller, token: res.Token}
}

func (p *peer) emit(event, ack string, data any) {
	p.t.Helper()
	raw, err := encodeFrame(event, ack, data)
	require.NoError(p.t, err)
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, raw))
}

// next reads frames until one matches event (and ack id when set).
func (p *peer) next(event, ack string) Frame {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f Frame
		require.NoError(p.t, p.conn.ReadJSON(&f))
		if f.Event == event && (ack == "" || f.Ack == ack) {
			return f
		}
	}
}

func (p *peer) request(event, ack string, data any) AckPayload {
	p.t.Helper()
	p.emit(event, ack, data)
	var out AckPayload
	require.NoError(p.t, json.Unmarshal(p.next(EventAck, ack).Data, &out))
	return out
}

func TestServer_RejectsMissingToken(t *testing.T) {
	e := newEnv(t)
	_, resp, err := websocket.DefaultDialer.Dial(e.url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_AcceptFlowAndReconciliation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	vendor := e.signUp("vendor@ws.test", models.RoleVendor)
	d1 := e.signUp("d1@ws.test", models.RoleDeliveryPartner)
	d2 := e.signUp("d2@ws.test", models.RoleDeliveryPartner)

	require.True(t, vendor.request(RequestJoinVendor, "j1", vendor.caller.ID).Success)
	require.True(t, d1.request(RequestJoinAvailableOrders, "j1", nil).Success)
	require.True(t, d2.request(RequestJoinDropper, "j1", map[string]string{"id": d2.caller.ID}).Success)

	view := NewView()
	order, err := e.orders.CreateOrder(ctx, vendor.caller, service.CreateOrderInput{
		PickupAddress: "1 Warehouse Way", DeliveryAddress: "99 Customer Court",
		CustomerName: "Cee", CustomerPhone: "+15550001111", ItemDescription: "Flowers", OrderValue: 40,
	})
	require.NoError(t, err)

	created := d2.next(EventOrderCreated, "")
	require.NoError(t, view.Apply(created))
	require.Equal(t, []string{order.ID}, view.Available())
	d1.next(EventOrderCreated, "")

	ack := d1.request(RequestAcceptOrder, "a1", map[string]string{"orderId": order.ID, "dropperId": d1.caller.ID})
	require.True(t, ack.Success, ack.Message)

	accepted := d2.next(EventOrderAccepted, "")
	require.NoError(t, view.Apply(accepted))
	require.Empty(t, view.Available())

	var p OrderAcceptedPayload
	require.NoError(t, json.Unmarshal(vendor.next(EventOrderAccepted, "").Data, &p))
	require.Equal(t, order.ID, p.OrderID)
	require.NotNil(t, p.Order)
	require.NotNil(t, p.Order.DropperID)
	require.Equal(t, d1.caller.ID, *p.Order.DropperID)

	lost := d2.request(RequestAcceptOrder, "a2", map[string]string{"orderId": order.ID})
	require.False(t, lost.Success)
	require.Contains(t, lost.Message, "already been accepted")

	// the connection survives a failed request
	require.True(t, d2.request(RequestJoinAvailableOrders, "j2", nil).Success)

	require.True(t, d1.request(RequestStatusUpdate, "s1", map[string]string{"orderId": order.ID, "status": "picked_up"}).Success)
	changed := vendor.next(EventDeliveryStatusChanged, "")
	vendorView := NewView()
	vendorView.Track(*order)
	require.NoError(t, vendorView.Apply(changed))
	got, ok := vendorView.Owned(order.ID)
	require.True(t, ok)
	require.Equal(t, models.StatusPickedUp, got.Status)

	skip := d1.request(RequestDeliveryCompleted, "c1", map[string]string{"orderId": order.ID})
	require.False(t, skip.Success)

	require.True(t, d1.request(RequestStatusUpdate, "s2", map[string]string{"orderId": order.ID, "status": "IN_TRANSIT"}).Success)
	require.True(t, d1.request(RequestDeliveryCompleted, "c2", map[string]string{"orderId": order.ID}).Success)
	require.NoError(t, vendorView.Apply(vendor.next(EventDeliveryCompleted, "")))
	got, _ = vendorView.Owned(order.ID)
	require.Equal(t, models.StatusDelivered, got.Status)
}

func TestServer_RejectsForeignRoomsAndIdentity(t *testing.T) {
	e := newEnv(t)
	vendor := e.signUp("v@ws.test", models.RoleVendor)
	dropper := e.signUp("d@ws.test", models.RoleDeliveryPartner)

	res := vendor.request(RequestJoinVendor, "1", "someone-else")
	require.False(t, res.Success)
	res = vendor.request(RequestJoinAvailableOrders, "2", nil)
	require.False(t, res.Success)

	res = dropper.request(RequestAcceptOrder, "3", map[string]string{"orderId": "x", "dropperId": "impostor"})
	require.False(t, res.Success)
	require.Contains(t, res.Message, "dropperId")

	res = dropper.request("order:teleport", "4", nil)
	require.False(t, res.Success)

	res = vendor.request(RequestAcceptOrder, "5", map[string]string{"orderId": "x"})
	require.False(t, res.Success)
}

func TestServer_TokenFromQuery(t *testing.T) {
	e := newEnv(t)
	vendor := e.signUp("q@ws.test", models.RoleVendor)

	conn, _, err := websocket.DefaultDialer.Dial(e.url+"?token="+vendor.token, nil)
	require.NoError(t, err)
	defer conn.Close()
	p := &peer{t: t, conn: conn, caller: vendor.caller}
	require.True(t, p.request(RequestJoinVendor, "1", vendor.caller.ID).Success)
}
