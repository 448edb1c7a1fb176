package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"droppers-api/config"
	"droppers-api/distance"
	"droppers-api/handlers"
	"droppers-api/logx"
	"droppers-api/middleware"
	"droppers-api/repository"
	"droppers-api/service"
	"droppers-api/testutil"
)

type apiSuite struct {
	suite.Suite
	router  *gin.Engine
	auth    *service.AuthService
	vendor  string
	dropper string
}

func TestAPI(t *testing.T) {
	suite.Run(t, new(apiSuite))
}

func (s *apiSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	db := testutil.OpenDB(s.T())
	log := logx.Nop()
	s.auth = service.NewAuthService(repository.NewUserRepository(db),
		config.Auth{JWTSecret: "api-secret", TokenTTL: time.Hour}, config.DefaultRules(), log,
		service.WithHashCost(bcrypt.MinCost))
	orders := service.NewOrderService(repository.NewOrderRepository(db), distance.Fixed(5), nil, config.DefaultRules(), log)

	s.router = gin.New()
	s.router.Use(middleware.Observability(log))
	SetupRoutes(s.router, Deps{Handler: handlers.New(s.auth, orders, log), Tokens: s.auth})

	s.vendor = s.register("shop@api.test", "VENDOR")
	s.dropper = s.register("rider@api.test", "DELIVERY_PARTNER")
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (s *apiSuite) call(method, path, token string, body any) (int, envelope) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	var env envelope
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func (s *apiSuite) register(email, role string) string {
	code, env := s.call(http.MethodPost, "/api/auth/register", "", map[string]any{
		"email": email, "password": "secret123", "name": "Api User", "phone": "+15551230000", "role": role,
	})
	s.Require().Equal(http.StatusCreated, code, env.Message)
	var res struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &res))
	return res.Token
}

func (s *apiSuite) createOrder(value float64) string {
	code, env := s.call(http.MethodPost, "/api/orders/vendor/create", s.vendor, map[string]any{
		"pickupAddress": "10 Depot Lane", "deliveryAddress": "20 Home Street", "customerName": "Cat",
		"customerPhone": "+15557654321", "itemDescription": "Groceries", "orderValue": value,
	})
	s.Require().Equal(http.StatusCreated, code, env.Message)
	var o struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &o))
	s.Equal("PENDING", o.Status)
	return o.ID
}

func (s *apiSuite) TestAuthAndRoleGuards() {
	code, env := s.call(http.MethodGet, "/api/orders/vendor/my-orders", "", nil)
	s.Equal(http.StatusUnauthorized, code)
	s.False(env.Success)

	code, _ = s.call(http.MethodGet, "/api/orders/vendor/my-orders", "not-a-token", nil)
	s.Equal(http.StatusUnauthorized, code)

	code, env = s.call(http.MethodGet, "/api/orders/vendor/my-orders", s.dropper, nil)
	s.Equal(http.StatusForbidden, code)
	s.Equal("AuthorizationError", env.Error)

	code, _ = s.call(http.MethodGet, "/api/orders/delivery/available", s.vendor, nil)
	s.Equal(http.StatusForbidden, code)

	code, _ = s.call(http.MethodGet, "/api/admin/orders", s.vendor, nil)
	s.Equal(http.StatusForbidden, code)

	code, env = s.call(http.MethodGet, "/api/auth/profile", s.vendor, nil)
	s.Equal(http.StatusOK, code)
	s.True(env.Success)

	code, _ = s.call(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "shop@api.test", "password": "nope-nope"})
	s.Equal(http.StatusUnauthorized, code)

	code, env = s.call(http.MethodPost, "/api/auth/register", "", map[string]any{
		"email": "shop@api.test", "password": "secret123", "name": "Dup", "phone": "+15551230000", "role": "VENDOR",
	})
	s.Equal(http.StatusConflict, code)
	s.False(env.Success)
}

func (s *apiSuite) TestDeliveryLifecycle() {
	id := s.createOrder(500)

	code, env := s.call(http.MethodGet, "/api/orders/delivery/available", s.dropper, nil)
	s.Require().Equal(http.StatusOK, code)
	var list struct {
		Count int `json:"count"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &list))
	s.Equal(1, list.Count)

	code, env = s.call(http.MethodPatch, "/api/orders/delivery/"+id+"/status", s.dropper, map[string]string{"status": "PICKED_UP"})
	s.Equal(http.StatusBadRequest, code)
	s.Equal("InvalidTransition", env.Error)

	code, env = s.call(http.MethodPost, "/api/orders/delivery/"+id+"/accept", s.dropper, nil)
	s.Require().Equal(http.StatusOK, code, env.Message)

	code, env = s.call(http.MethodDelete, "/api/orders/vendor/"+id+"/cancel", s.vendor, nil)
	s.Equal(http.StatusBadRequest, code)
	s.Equal("InvalidTransition", env.Error)

	for _, st := range []string{"PICKED_UP", "in_transit"} {
		code, env = s.call(http.MethodPatch, "/api/orders/delivery/"+id+"/status", s.dropper, map[string]string{"status": st})
		s.Require().Equal(http.StatusOK, code, env.Message)
	}
	code, env = s.call(http.MethodPost, "/api/orders/delivery/"+id+"/complete", s.dropper, nil)
	s.Require().Equal(http.StatusOK, code, env.Message)

	code, env = s.call(http.MethodGet, "/api/orders/delivery/stats", s.dropper, nil)
	s.Require().Equal(http.StatusOK, code)
	var ds struct {
		TotalEarnings       float64 `json:"totalEarnings"`
		CompletedDeliveries int64   `json:"completedDeliveries"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &ds))
	s.Equal(100.0, ds.TotalEarnings)
	s.Equal(int64(1), ds.CompletedDeliveries)

	code, env = s.call(http.MethodGet, "/api/orders/vendor/stats", s.vendor, nil)
	s.Require().Equal(http.StatusOK, code)
	var vs struct {
		TotalRevenue float64 `json:"totalRevenue"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &vs))
	s.Equal(500.0, vs.TotalRevenue)

	code, env = s.call(http.MethodGet, "/api/orders/"+id+"/history", s.vendor, nil)
	s.Require().Equal(http.StatusOK, code)
	var hist struct {
		Count int `json:"count"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &hist))
	s.Equal(5, hist.Count)
}

func (s *apiSuite) TestConcurrentAcceptOverHTTP() {
	id := s.createOrder(30)
	riders := []string{s.dropper, s.register("rider2@api.test", "DELIVERY_PARTNER"), s.register("rider3@api.test", "DELIVERY_PARTNER")}

	codes := make([]int, len(riders))
	var g errgroup.Group
	for i, tok := range riders {
		g.Go(func() error {
			req := httptest.NewRequest(http.MethodPost, "/api/orders/delivery/"+id+"/accept", nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)
			codes[i] = rec.Code
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	ok, conflict := 0, 0
	for _, c := range codes {
		switch c {
		case http.StatusOK:
			ok++
		case http.StatusConflict:
			conflict++
		}
	}
	s.Equal(1, ok)
	s.Equal(len(riders)-1, conflict)
}

func (s *apiSuite) TestOrderVisibilityAndCancel() {
	id := s.createOrder(12)
	otherVendor := s.register("other@api.test", "VENDOR")

	code, _ := s.call(http.MethodGet, "/api/orders/"+id, otherVendor, nil)
	s.Equal(http.StatusNotFound, code)
	code, _ = s.call(http.MethodGet, "/api/orders/missing-id", s.vendor, nil)
	s.Equal(http.StatusNotFound, code)

	code, _ = s.call(http.MethodDelete, "/api/orders/vendor/"+id+"/cancel", otherVendor, nil)
	s.Equal(http.StatusForbidden, code)

	code, env := s.call(http.MethodPatch, "/api/orders/vendor/"+id+"/status", s.vendor, map[string]string{"status": "DELIVERED"})
	s.Equal(http.StatusBadRequest, code)
	s.Equal("InvalidTransition", env.Error)

	code, env = s.call(http.MethodPatch, "/api/orders/vendor/"+id+"/status", s.vendor, map[string]string{"status": "cancelled"})
	s.Require().Equal(http.StatusOK, code, env.Message)

	code, env = s.call(http.MethodPost, "/api/orders/delivery/"+id+"/accept", s.dropper, nil)
	s.Equal(http.StatusBadRequest, code)
	s.Equal("InvalidTransition", env.Error)
}

func (s *apiSuite) TestAdminAndPublicEndpoints() {
	_, err := s.auth.EnsureAdmin(context.Background(), "admin@api.test", "adminpass")
	s.Require().NoError(err)
	code, env := s.call(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "admin@api.test", "password": "adminpass"})
	s.Require().Equal(http.StatusOK, code)
	var login struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &login))

	s.createOrder(10)
	code, env = s.call(http.MethodGet, "/api/admin/orders", login.Token, nil)
	s.Require().Equal(http.StatusOK, code)
	var overview struct {
		Count   int            `json:"count"`
		Summary map[string]int `json:"summary"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &overview))
	s.Equal(1, overview.Count)
	s.Equal(1, overview.Summary["PENDING"])

	code, _ = s.call(http.MethodGet, "/api/admin/users?role=VENDOR", login.Token, nil)
	s.Equal(http.StatusOK, code)

	code, env = s.call(http.MethodGet, "/api/auth/profile", s.dropper, nil)
	s.Require().Equal(http.StatusOK, code)
	var rider struct {
		ID string `json:"id"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &rider))

	code, _ = s.call(http.MethodPatch, "/api/admin/users/"+rider.ID+"/active", s.vendor, map[string]bool{"active": false})
	s.Equal(http.StatusForbidden, code)
	code, env = s.call(http.MethodPatch, "/api/admin/users/"+rider.ID+"/active", login.Token, map[string]any{})
	s.Equal(http.StatusBadRequest, code)
	s.Equal("ValidationError", env.Error)
	code, env = s.call(http.MethodPatch, "/api/admin/users/"+rider.ID+"/active", login.Token, map[string]bool{"active": false})
	s.Require().Equal(http.StatusOK, code, env.Message)
	code, env = s.call(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "rider@api.test", "password": "secret123"})
	s.Equal(http.StatusForbidden, code)
	s.Equal("AuthorizationError", env.Error)

	code, env = s.call(http.MethodGet, "/api/orders/state-machine", "", nil)
	s.Equal(http.StatusOK, code)
	s.True(env.Success)

	code, _ = s.call(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, code)
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupRoutes(r, Deps{Handler: handlers.New(nil, nil, logx.Nop()), Tokens: nil})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "droppers_accept_conflicts_total")
}
