// Package api exposes the order daemon over HTTP: REST endpoints for order
// management and a WebSocket endpoint for the live event stream.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"order-systemv1/internal/logger"
	"order-systemv1/internal/markethours"
	"order-systemv1/internal/model"
	"order-systemv1/internal/stream"
	"order-systemv1/internal/validate"
)

// OrderService is the slice of the service layer the API needs.
type OrderService interface {
	PlaceSuperOrder(ctx context.Context, req validate.SuperOrderRequest) (model.Order, error)
	PlaceForeverOrder(ctx context.Context, req validate.ForeverOrderRequest) (model.Order, error)
	ModifyLeg(ctx context.Context, req validate.ModifyRequest) (model.Order, error)
	Cancel(ctx context.Context, orderID string, leg model.LegRole) (model.Order, error)
	Order(orderID string) (model.Order, error)
	Orders() []model.Order
}

// EventLog reads back journaled events for one order.
type EventLog interface {
	EventsForOrder(ctx context.Context, orderID string, limit int) ([]model.OrderEvent, error)
}

// Server wires the HTTP surface. Hub and Log are optional; their endpoints
// return 503 when absent.
type Server struct {
	svc OrderService
	hub *stream.Hub
	log EventLog

	upgrader websocket.Upgrader
}

// NewServer creates the API server.
func NewServer(svc OrderService, hub *stream.Hub, eventLog EventLog) *Server {
	return &Server{
		svc: svc,
		hub: hub,
		log: eventLog,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), traceMiddleware())

	v1 := r.Group("/api/v1")
	{
		v1.POST("/orders/super", s.placeSuper)
		v1.POST("/orders/forever", s.placeForever)
		v1.GET("/orders", s.listOrders)
		v1.GET("/orders/:orderId", s.getOrder)
		v1.GET("/orders/:orderId/events", s.orderEvents)
		v1.PUT("/orders/:orderId", s.modify)
		v1.DELETE("/orders/:orderId", s.cancelOrder)
		v1.DELETE("/orders/:orderId/legs/:leg", s.cancelLeg)

		v1.GET("/events/replay", s.replay)
		v1.GET("/stream", s.streamWS)

		v1.GET("/market", func(c *gin.Context) {
			now := time.Now()
			c.JSON(http.StatusOK, gin.H{
				"open":   markethours.IsMarketOpen(now),
				"status": markethours.StatusString(now),
			})
		})
	}

	return r
}

// traceMiddleware stamps each request with a trace ID for log correlation.
func traceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tid := c.GetHeader("X-Trace-Id")
		if tid == "" {
			tid = logger.GenerateTraceID("api", time.Now())
		}
		c.Request = c.Request.WithContext(logger.WithTraceID(c.Request.Context(), tid))
		c.Header("X-Trace-Id", tid)
		c.Next()
	}
}

func (s *Server) placeSuper(c *gin.Context) {
	var req validate.SuperOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &model.MalformedRequestError{Reason: err.Error()})
		return
	}
	ord, err := s.svc.PlaceSuperOrder(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ord)
}

func (s *Server) placeForever(c *gin.Context) {
	var req validate.ForeverOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &model.MalformedRequestError{Reason: err.Error()})
		return
	}
	ord, err := s.svc.PlaceForeverOrder(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ord)
}

func (s *Server) listOrders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"orders": s.svc.Orders()})
}

func (s *Server) getOrder(c *gin.Context) {
	ord, err := s.svc.Order(c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ord)
}

func (s *Server) orderEvents(c *gin.Context) {
	if s.log == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event journal not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	events, err := s.log.EventsForOrder(c.Request.Context(), c.Param("orderId"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) modify(c *gin.Context) {
	var req validate.ModifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &model.MalformedRequestError{Reason: err.Error()})
		return
	}
	// The path wins over any orderId in the body.
	req.OrderID = c.Param("orderId")
	ord, err := s.svc.ModifyLeg(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ord)
}

func (s *Server) cancelOrder(c *gin.Context) {
	ord, err := s.svc.Cancel(c.Request.Context(), c.Param("orderId"), "")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ord)
}

func (s *Server) cancelLeg(c *gin.Context) {
	leg := model.LegRole(c.Param("leg"))
	if !leg.Valid() {
		writeError(c, &model.MalformedRequestError{Reason: "unknown leg " + c.Param("leg")})
		return
	}
	ord, err := s.svc.Cancel(c.Request.Context(), c.Param("orderId"), leg)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ord)
}

// replay returns raw buffered event envelopes for seq-gap backfill.
func (s *Server) replay(c *gin.Context) {
	if s.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream not configured"})
		return
	}
	from, _ := strconv.ParseInt(c.DefaultQuery("from", "0"), 10, 64)
	to, _ := strconv.ParseInt(c.DefaultQuery("to", "0"), 10, 64)
	if to == 0 {
		to = s.hub.Seq()
	}
	envelopes := s.hub.ReplayRange(from, to)

	c.Writer.Header().Set("Content-Type", "application/json")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Write([]byte(`{"seq":` + strconv.FormatInt(s.hub.Seq(), 10) + `,"events":[`))
	for i, env := range envelopes {
		if i > 0 {
			c.Writer.Write([]byte(","))
		}
		c.Writer.Write(env)
	}
	c.Writer.Write([]byte("]}"))
}

func (s *Server) streamWS(c *gin.Context) {
	if s.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream not configured"})
		return
	}
	fromSeq, _ := strconv.ParseInt(c.DefaultQuery("fromSeq", "0"), 10, 64)
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[api] ws upgrade failed: %v", err)
		return
	}
	s.hub.HandleWSRequest(conn, fromSeq)
}

// writeError maps domain errors to HTTP statuses.
func writeError(c *gin.Context, err error) {
	var (
		malformed *model.MalformedRequestError
		valErr    *model.ValidationError
		precond   *model.PreconditionError
		gwErr     *model.GatewayError
	)
	switch {
	case errors.As(err, &malformed):
		c.JSON(http.StatusBadRequest, gin.H{"error": malformed.Reason, "kind": "malformed_request"})
	case errors.As(err, &valErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "validation failed",
			"kind":       "validation",
			"violations": valErr.Violations,
		})
	case errors.Is(err, model.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found", "kind": "not_found"})
	case errors.As(err, &precond):
		c.JSON(http.StatusConflict, gin.H{"error": precond.Error(), "kind": "precondition"})
	case errors.As(err, &gwErr):
		status := http.StatusBadGateway
		if gwErr.Timeout {
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, gin.H{"error": gwErr.Error(), "kind": "gateway", "code": gwErr.Code})
	default:
		log.Printf("[api] internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
