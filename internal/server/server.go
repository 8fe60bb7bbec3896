package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/npclabs/storefront/internal/config"
	"github.com/npclabs/storefront/internal/identity"
	onboardingdomain "github.com/npclabs/storefront/internal/onboarding/domain"
	orderdomain "github.com/npclabs/storefront/internal/order/domain"
	paymentdomain "github.com/npclabs/storefront/internal/payment/domain"
	productdomain "github.com/npclabs/storefront/internal/product/domain"
	subscriptiondomain "github.com/npclabs/storefront/internal/subscription/domain"
	"github.com/npclabs/storefront/pkg/db"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Cfg      config.Config
	Registry *prometheus.Registry
	DB       *gorm.DB
	Partner  db.Partner
	Verifier *identity.Verifier

	OnboardingSvc   onboardingdomain.Service
	OrderSvc        orderdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	ProductSvc      productdomain.Service
	PaymentSvc      paymentdomain.Service
}

type Server struct {
	log      *zap.Logger
	cfg      config.Config
	registry *prometheus.Registry
	db       *gorm.DB
	partner  db.Partner
	verifier *identity.Verifier

	onboardingSvc   onboardingdomain.Service
	orderSvc        orderdomain.Service
	subscriptionSvc subscriptiondomain.Service
	productSvc      productdomain.Service
	paymentSvc      paymentdomain.Service
}

func New(p Params) *Server {
	return &Server{
		log:      p.Log.Named("server"),
		cfg:      p.Cfg,
		registry: p.Registry,
		db:       p.DB,
		partner:  p.Partner,
		verifier: p.Verifier,

		onboardingSvc:   p.OnboardingSvc,
		orderSvc:        p.OrderSvc,
		subscriptionSvc: p.SubscriptionSvc,
		productSvc:      p.ProductSvc,
		paymentSvc:      p.PaymentSvc,
	}
}

func (s *Server) Engine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestMetrics())

	engine.GET("/healthz", s.Healthz)
	engine.GET("/readyz", s.Readyz)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := engine.Group("/api")
	api.POST("/payments/shopier/callback", s.ShopierCallback)

	authed := api.Group("", s.requireAuth())
	authed.POST("/onboarding/complete", s.CompleteOnboarding)
	authed.POST("/onboarding/setup", s.SetupTenant)
	authed.POST("/onboarding/link", s.LinkTenant)
	authed.GET("/orders", s.ListMyOrders)
	authed.GET("/orders/:ref", s.GetMyOrder)
	authed.GET("/subscriptions", s.ListMySubscriptions)

	admin := api.Group("/admin", s.requireAuth(), s.requireAdmin())
	admin.POST("/products", s.CreateProduct)
	admin.GET("/products", s.ListProducts)
	admin.GET("/products/:id", s.GetProduct)
	admin.PATCH("/products/:id", s.UpdateProduct)
	admin.POST("/products/:id/archive", s.ArchiveProduct)
	admin.POST("/packages", s.CreatePackage)
	admin.GET("/products/:id/packages", s.ListPackages)

	return engine
}

var Module = fx.Module("server",
	fx.Provide(New),
	fx.Invoke(Start),
)

func Start(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:    s.cfg.Server.Addr,
		Handler: s.Engine(),
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.log.Info("http server starting", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
