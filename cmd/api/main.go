package main

import (
	"context"
	"log"
	nethttp "net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/northpay/gateway/internal/adapter/primary/http"
	"github.com/northpay/gateway/internal/adapter/secondary/database"
	"github.com/northpay/gateway/internal/adapter/secondary/mail"
	"github.com/northpay/gateway/internal/adapter/secondary/messaging"
	"github.com/northpay/gateway/internal/config"
	"github.com/northpay/gateway/internal/constant/model/db"
	"github.com/northpay/gateway/internal/core"
	"github.com/northpay/gateway/internal/core/service"
	"github.com/northpay/gateway/internal/provider"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize secondary adapter: Database
	dbConn, err := db.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbConn.Close()

	// Initialize secondary adapters: Repository and Messaging (implement output ports)
	orderRepo := database.NewGormOrderRepository(dbConn)
	settingsStore := database.NewGormSettingsStore(dbConn)

	msgClient, err := messaging.NewRabbitMQClient(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer msgClient.Close()

	// Event bus: paid orders go to the settlement queue, failures optionally
	// alert administrators by email.
	bus := core.NewEventBus()
	bus.SubscribeSuccess(func(ctx context.Context, e core.SuccessEvent) error {
		return msgClient.PublishOrderPaid(ctx, e.Order)
	})
	if cfg.SendEmailAlerts {
		mailer := mail.NewMailer(logger, cfg.SMTPHost, cfg.SMTPPort,
			cfg.SMTPUser, cfg.SMTPPassword, cfg.AlertFrom, cfg.AlertTo)
		bus.SubscribeError(mailer.HandleError)
	}

	httpClient := &nethttp.Client{Timeout: 30 * time.Second}
	defaults := cfg.ProviderDefaults

	paypal := provider.NewPayPal(logger, settingsStore,
		defaults[provider.PayPalName], cfg.CallbackURL(provider.PayPalName), httpClient)
	valitorPay := provider.NewValitorPay(logger, settingsStore,
		defaults[provider.ValitorPayName], cfg.CallbackURL(provider.ValitorPayName), httpClient)

	providers := []provider.Provider{
		provider.NewBorgun(logger, settingsStore,
			defaults[provider.BorgunName], cfg.CallbackURL(provider.BorgunName)),
		provider.NewValitor(logger, settingsStore,
			defaults[provider.ValitorName], cfg.CallbackURL(provider.ValitorName)),
		valitorPay,
		provider.NewNetgiro(logger, settingsStore,
			defaults[provider.NetgiroName], cfg.CallbackURL(provider.NetgiroName)),
		paypal,
		provider.NewSiminnPay(logger, settingsStore,
			defaults[provider.SiminnPayName], cfg.CallbackURL(provider.SiminnPayName), httpClient),
		provider.NewAltaPay(logger, settingsStore,
			defaults[provider.AltaPayName], cfg.CallbackURL(provider.AltaPayName), httpClient),
		provider.NewStraumur(logger, settingsStore,
			defaults[provider.StraumurName], httpClient),
		provider.NewDemo(logger, settingsStore,
			defaults[provider.DemoName], cfg.CallbackURL(provider.DemoName)),
	}

	// Initialize core services (implement input ports)
	checkoutService := service.NewCheckoutService(logger, orderRepo, providers, bus)
	callbackService := service.NewCallbackService(logger, orderRepo, bus)

	// Initialize primary adapters: HTTP handlers (use input ports)
	checkoutHandler := http.NewCheckoutHandler(logger, checkoutService)
	callbackHandler := http.NewCallbackHandler(logger, callbackService, paypal, valitorPay)

	// Initialize Echo
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Routes
	api := e.Group("/api/v1")
	api.POST("/checkout/:provider", checkoutHandler.Checkout)

	// Callback routes, one per provider; payload shapes and expected
	// responses differ per provider contract.
	payments := e.Group("/payments")
	payments.POST("/borgun", callbackHandler.Borgun)
	payments.GET("/valitor", callbackHandler.Valitor)
	payments.POST("/valitorpay", callbackHandler.ValitorPay)
	payments.POST("/netgiro", callbackHandler.Netgiro)
	payments.POST("/paypal", callbackHandler.PayPal)
	payments.POST("/siminnpay", callbackHandler.SiminnPay)
	payments.POST("/altapay", callbackHandler.AltaPay)
	payments.POST("/straumur", callbackHandler.Straumur)
	payments.POST("/demo", callbackHandler.Demo)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// Start server
	logger.Info("Starting API server", zap.String("port", cfg.Port))
	if err := e.Start(":" + cfg.Port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
