package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/namevault/namevault/internal/config"
	customerdomain "github.com/namevault/namevault/internal/customer/domain"
	domainsdomain "github.com/namevault/namevault/internal/domains/domain"
	orderdomain "github.com/namevault/namevault/internal/order/domain"
	paymentdomain "github.com/namevault/namevault/internal/payment/domain"
	"github.com/namevault/namevault/internal/payment/webhook"
	"github.com/namevault/namevault/internal/ratelimit"
	recondomain "github.com/namevault/namevault/internal/reconciliation/domain"
	"github.com/namevault/namevault/internal/scheduler"
	subscriptiondomain "github.com/namevault/namevault/internal/subscription/domain"
	transferdomain "github.com/namevault/namevault/internal/transfer/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	genID           *snowflake.Node
	customerSvc     customerdomain.Service
	domainSvc       domainsdomain.Service
	orderSvc        orderdomain.Service
	subscriptionSvc subscriptiondomain.Service
	paymentSvc      paymentdomain.Service
	transferSvc     transferdomain.Service
	reconSvc        recondomain.Service
	webhookParser   *webhook.Parser
	webhookLimiter  *ratelimit.WebhookLimiter
	engineSvc       *scheduler.Engine
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	GenID           *snowflake.Node
	CustomerSvc     customerdomain.Service
	DomainSvc       domainsdomain.Service
	OrderSvc        orderdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	PaymentSvc      paymentdomain.Service
	TransferSvc     transferdomain.Service
	ReconSvc        recondomain.Service
	WebhookParser   *webhook.Parser
	WebhookLimiter  *ratelimit.WebhookLimiter `optional:"true"`
	Engine          *scheduler.Engine
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		genID:           p.GenID,
		customerSvc:     p.CustomerSvc,
		domainSvc:       p.DomainSvc,
		orderSvc:        p.OrderSvc,
		subscriptionSvc: p.SubscriptionSvc,
		paymentSvc:      p.PaymentSvc,
		transferSvc:     p.TransferSvc,
		reconSvc:        p.ReconSvc,
		webhookParser:   p.WebhookParser,
		webhookLimiter:  p.WebhookLimiter,
		engineSvc:       p.Engine,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	// -------- Checkout / Orders --------
	v1.POST("/checkouts", s.CreateCheckout)
	v1.GET("/orders", s.CustomerRequired(), s.ListOrders)
	v1.GET("/orders/:id", s.GetOrderByID)

	// -------- Payment Webhooks --------
	v1.POST("/webhooks/payments/:provider", s.WebhookRateLimit(), s.HandlePaymentWebhook)
	v1.GET("/payment-events", s.ListPaymentEvents)

	// -------- Domains --------
	v1.GET("/domains", s.ListDomains)
	v1.GET("/domains/:id", s.GetDomainByID)
	v1.GET("/domains/:id/events", s.ListDomainEvents)
	v1.GET("/domains/:id/transfers", s.ListDomainTransfers)
	v1.POST("/domains/:id/renew", s.RenewDomain)
	v1.POST("/domains/:id/hold", s.HoldDomain)
	v1.POST("/domains/:id/restore", s.RestoreDomain)

	// -------- Subscriptions --------
	v1.GET("/subscriptions", s.CustomerRequired(), s.ListSubscriptions)
	v1.GET("/subscriptions/:provider_id", s.GetSubscriptionByProviderID)

	// -------- Transfers --------
	v1.POST("/transfers", s.CustomerRequired(), s.InitiateTransfer)
	v1.GET("/transfers/:id", s.GetTransferByID)
	v1.POST("/transfers/:id/payment", s.CreateTransferPayment)
	v1.POST("/transfers/:id/complete", s.CompleteTransfer)
	v1.POST("/transfers/:id/cancel", s.CancelTransfer)

	// -------- Engine --------
	// Manual triggers for the background sweeps, handy in ops runbooks and
	// end-to-end tests. The jobs themselves are idempotent.
	v1.POST("/lifecycle/run", s.RunLifecycle)
	v1.POST("/reconciliation/run", s.RunReconciliation)
	v1.GET("/reconciliation/runs", s.ListReconciliationRuns)
	v1.GET("/reconciliation/runs/:id", s.GetReconciliationRun)
	v1.GET("/reconciliation/runs/:id/discrepancies", s.ListReconciliationDiscrepancies)
}
