// Package gateway serves the marketplace core over HTTP for the polling UIs.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/example/agrimarket/pkg/config"
	"github.com/example/agrimarket/pkg/dispute"
	"github.com/example/agrimarket/pkg/lifecycle"
	"github.com/example/agrimarket/pkg/matching"
	"github.com/example/agrimarket/pkg/models"
	"github.com/example/agrimarket/pkg/pricing"
	"github.com/example/agrimarket/pkg/repository"
	"github.com/example/agrimarket/pkg/store"
)

type Gateway struct {
	config    *config.Config
	logger    *zap.Logger
	router    *gin.Engine
	store     *store.Store
	cache     *repository.RedisRepository
	lifecycle *lifecycle.Engine
	dispute   *dispute.Engine
	pricing   *pricing.Engine
	matching  *matching.Engine
}

type Deps struct {
	Store     *store.Store
	Cache     *repository.RedisRepository
	Lifecycle *lifecycle.Engine
	Dispute   *dispute.Engine
	Pricing   *pricing.Engine
	Matching  *matching.Engine
}

func New(cfg *config.Config, logger *zap.Logger, deps Deps) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))

	return &Gateway{
		config:    cfg,
		logger:    logger,
		router:    router,
		store:     deps.Store,
		cache:     deps.Cache,
		lifecycle: deps.Lifecycle,
		dispute:   deps.Dispute,
		pricing:   deps.Pricing,
		matching:  deps.Matching,
	}
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := g.router.Group("/api/v1")
	{
		orders := v1.Group("/orders")
		{
			orders.POST("", g.createFullOrder)
			orders.POST("/instant", g.createInstantOrder)
			orders.GET("", g.listOrders)
			orders.GET("/:id", g.getOrder)
			orders.POST("/:id/accept", g.acceptOrder)
			orders.POST("/:id/pack", g.packOrder)
			orders.POST("/:id/dispatch", g.dispatchOrder)
			orders.POST("/:id/deliver", g.markDelivered)
			orders.POST("/:id/cancel", g.cancelOrder)
			orders.GET("/:id/countdown", g.orderCountdown)
		}

		issues := v1.Group("/issues")
		{
			issues.POST("", g.reportIssue)
			issues.GET("", g.listIssues)
			issues.GET("/workload", g.repWorkload)
			issues.POST("/:id/resolve", g.resolveIssue)
			issues.POST("/:id/rep", g.updateRepStatus)
		}

		prices := v1.Group("/price-requests")
		{
			prices.GET("", g.listPriceRequests)
			prices.POST("/:id/submit", g.submitPriceResponse)
			prices.GET("/win-probability", g.winProbability)
		}

		v1.GET("/matches/:userId", g.getMatches)
		v1.GET("/notifications/:userId", g.listNotifications)
		v1.POST("/chat", g.sendChatMessage)
		v1.GET("/chat/:userA/:userB", g.listChat)
		v1.POST("/offers/sms", g.sendOfferSMS)
		v1.GET("/meta/polling", g.pollingMeta)
	}

	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Router exposes the underlying handler for tests and embedding.
func (g *Gateway) Router() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	addr := fmt.Sprintf("%s:%d", g.config.Server.Host, g.config.Server.Port)
	g.logger.Info("Gateway starting", zap.String("address", addr))
	return g.router.Run(addr)
}

// --- orders ---

type fullOrderRequest struct {
	BuyerID       string               `json:"buyer_id" binding:"required"`
	SellerID      string               `json:"seller_id" binding:"required"`
	Items         []models.OrderItem   `json:"items" binding:"required"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	Logistics     models.Logistics     `json:"logistics"`
	Source        models.OrderSource   `json:"source"`
}

func (g *Gateway) createFullOrder(c *gin.Context) {
	var req fullOrderRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := g.lifecycle.CreateFullOrder(lifecycle.FullOrderInput{
		BuyerID:       req.BuyerID,
		SellerID:      req.SellerID,
		Items:         req.Items,
		PaymentMethod: req.PaymentMethod,
		Logistics:     req.Logistics,
		Source:        req.Source,
	})
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

type instantOrderRequest struct {
	BuyerID     string  `json:"buyer_id" binding:"required"`
	InventoryID string  `json:"inventory_id" binding:"required"`
	QuantityKg  float64 `json:"quantity_kg" binding:"required"`
	PricePerKg  float64 `json:"price_per_kg"`
}

func (g *Gateway) createInstantOrder(c *gin.Context) {
	var req instantOrderRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := g.lifecycle.CreateInstantOrder(lifecycle.InstantOrderInput{
		BuyerID:     req.BuyerID,
		InventoryID: req.InventoryID,
		QuantityKg:  req.QuantityKg,
		PricePerKg:  req.PricePerKg,
	})
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (g *Gateway) listOrders(c *gin.Context) {
	sellerID := c.Query("seller_id")
	buyerID := c.Query("buyer_id")

	var out []models.Order
	for _, o := range g.store.ListOrders() {
		if sellerID != "" && o.SellerID != sellerID {
			continue
		}
		if buyerID != "" && o.BuyerID != buyerID {
			continue
		}
		out = append(out, o)
	}
	c.JSON(http.StatusOK, gin.H{"orders": out, "total": len(out)})
}

func (g *Gateway) getOrder(c *gin.Context) {
	id := c.Param("id")

	if g.cache != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if order, err := g.cache.GetOrderCache(ctx, id); err == nil {
			c.JSON(http.StatusOK, order)
			return
		}
	}

	order, err := g.store.GetOrder(id)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (g *Gateway) acceptOrder(c *gin.Context) {
	order, err := g.lifecycle.Accept(c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type assignmentRequest struct {
	PackerID string `json:"packer_id"`
	DriverID string `json:"driver_id"`
}

func (g *Gateway) packOrder(c *gin.Context) {
	var req assignmentRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := g.lifecycle.Pack(c.Param("id"), req.PackerID)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (g *Gateway) dispatchOrder(c *gin.Context) {
	var req assignmentRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := g.lifecycle.Dispatch(c.Param("id"), req.DriverID)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (g *Gateway) markDelivered(c *gin.Context) {
	order, err := g.lifecycle.MarkDelivered(c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (g *Gateway) cancelOrder(c *gin.Context) {
	order, err := g.lifecycle.Cancel(c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (g *Gateway) orderCountdown(c *gin.Context) {
	order, err := g.store.GetOrder(c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id":  order.ID,
		"countdown": dispute.Countdown(order.DeliveredAt, g.store.Now()),
	})
}

// --- issues ---

type issueRequest struct {
	OrderID     string `json:"order_id" binding:"required"`
	ReporterID  string `json:"reporter_id" binding:"required"`
	Description string `json:"description" binding:"required"`
}

func (g *Gateway) reportIssue(c *gin.Context) {
	var req issueRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	issue, err := g.dispute.ReportIssue(req.OrderID, req.ReporterID, req.Description)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, issue)
}

func (g *Gateway) listIssues(c *gin.Context) {
	issues := g.store.ListIssues()
	c.JSON(http.StatusOK, gin.H{"issues": issues, "total": len(issues)})
}

type resolveRequest struct {
	Action models.SupplierAction `json:"action" binding:"required"`
}

func (g *Gateway) resolveIssue(c *gin.Context) {
	var req resolveRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	issue, err := g.dispute.ResolveSupplier(c.Param("id"), req.Action)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

type repStatusRequest struct {
	RepID  string           `json:"rep_id"`
	Status models.RepStatus `json:"status" binding:"required"`
}

func (g *Gateway) updateRepStatus(c *gin.Context) {
	var req repStatusRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	issue, err := g.dispute.UpdateRepStatus(c.Param("id"), req.RepID, req.Status)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (g *Gateway) repWorkload(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"workload": g.dispute.Workload()})
}

// --- pricing ---

func (g *Gateway) listPriceRequests(c *gin.Context) {
	supplierID := c.Query("supplier_id")
	if supplierID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "supplier_id is required"})
		return
	}
	reqs := g.store.ListPriceRequestsBySupplier(supplierID)
	c.JSON(http.StatusOK, gin.H{"requests": reqs, "total": len(reqs)})
}

type submitPriceRequest struct {
	Items []pricing.ItemResponse `json:"items"`
}

func (g *Gateway) submitPriceResponse(c *gin.Context) {
	var req submitPriceRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := g.pricing.SubmitResponse(c.Param("id"), req.Items)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (g *Gateway) winProbability(c *gin.Context) {
	target, err := strconv.ParseFloat(c.Query("target"), 64)
	if err != nil || target <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target must be a positive number"})
		return
	}
	offered, err := strconv.ParseFloat(c.Query("offered"), 64)
	if err != nil || offered < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offered must be a non-negative number"})
		return
	}
	c.JSON(http.StatusOK, pricing.WinProbability(target, offered))
}

type offerSMSRequest struct {
	RecipientID   string  `json:"recipient_id" binding:"required"`
	ProductName   string  `json:"product_name" binding:"required"`
	PricePerKg    float64 `json:"price_per_kg" binding:"required"`
	MinOrderKg    float64 `json:"min_order_kg"`
	LogisticsCost float64 `json:"logistics_cost"`
	Description   string  `json:"description"`
}

func (g *Gateway) sendOfferSMS(c *gin.Context) {
	var req offerSMSRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	body := g.pricing.SendOffer(req.RecipientID, pricing.Offer{
		ProductName:   req.ProductName,
		PricePerKg:    req.PricePerKg,
		MinOrderKg:    req.MinOrderKg,
		LogisticsCost: req.LogisticsCost,
		Description:   req.Description,
	})
	c.JSON(http.StatusAccepted, gin.H{"message": body})
}

// --- matching / notifications / meta ---

func (g *Gateway) getMatches(c *gin.Context) {
	matches, err := g.matching.Matches(c.Param("userId"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, matches)
}

func (g *Gateway) listNotifications(c *gin.Context) {
	notifications := g.store.ListNotifications(c.Param("userId"))
	c.JSON(http.StatusOK, gin.H{"notifications": notifications, "total": len(notifications)})
}

type chatRequest struct {
	SenderID   string `json:"sender_id" binding:"required"`
	ReceiverID string `json:"receiver_id" binding:"required"`
	Text       string `json:"text" binding:"required"`
}

func (g *Gateway) sendChatMessage(c *gin.Context) {
	var req chatRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg := g.store.AddChatMessage(models.ChatMessage{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Text:       req.Text,
	})
	c.JSON(http.StatusCreated, msg)
}

func (g *Gateway) listChat(c *gin.Context) {
	messages := g.store.ListChatBetween(c.Param("userA"), c.Param("userB"))
	c.JSON(http.StatusOK, gin.H{"messages": messages, "total": len(messages)})
}

// pollingMeta tells clients how often to refresh each view.
func (g *Gateway) pollingMeta(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"order_poll_interval": g.config.Market.OrderPollInterval.String(),
		"price_poll_interval": g.config.Market.PricePollInterval.String(),
		"countdown_tick":      g.config.Market.CountdownTick.String(),
	})
}

// fail maps the domain error taxonomy onto HTTP statuses. Every taxonomy
// error is recoverable and rendered as a user-visible message.
func (g *Gateway) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, lifecycle.ErrInvalidInput),
		errors.Is(err, dispute.ErrInvalidInput),
		errors.Is(err, pricing.ErrInvalidInput),
		errors.Is(err, lifecycle.ErrMissingAssignment):
		status = http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, dispute.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrInsufficientStock),
		errors.Is(err, dispute.ErrIneligibleForDispute),
		errors.Is(err, dispute.ErrAlreadyResolved),
		errors.Is(err, pricing.ErrAlreadySubmitted),
		errors.Is(err, store.ErrStaleState):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
