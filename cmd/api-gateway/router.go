// Package main 是应用程序入口
package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quickmech/quickmech-backend/internal/common/config"
	"github.com/quickmech/quickmech-backend/internal/common/jwt"
	"github.com/quickmech/quickmech-backend/internal/common/metrics"
	commonMiddleware "github.com/quickmech/quickmech-backend/internal/common/middleware"
	adminHandler "github.com/quickmech/quickmech-backend/internal/handler/admin"
	authHandler "github.com/quickmech/quickmech-backend/internal/handler/auth"
	chatHandler "github.com/quickmech/quickmech-backend/internal/handler/chat"
	notificationHandler "github.com/quickmech/quickmech-backend/internal/handler/notification"
	orderHandler "github.com/quickmech/quickmech-backend/internal/handler/order"
	partsHandler "github.com/quickmech/quickmech-backend/internal/handler/parts"
	paymentHandler "github.com/quickmech/quickmech-backend/internal/handler/payment"
	vehicleHandler "github.com/quickmech/quickmech-backend/internal/handler/vehicle"
	walletHandler "github.com/quickmech/quickmech-backend/internal/handler/wallet"
	"github.com/quickmech/quickmech-backend/internal/middleware"
	"github.com/quickmech/quickmech-backend/internal/repository"
	adminService "github.com/quickmech/quickmech-backend/internal/service/admin"
	authService "github.com/quickmech/quickmech-backend/internal/service/auth"
	chatService "github.com/quickmech/quickmech-backend/internal/service/chat"
	notificationService "github.com/quickmech/quickmech-backend/internal/service/notification"
	orderService "github.com/quickmech/quickmech-backend/internal/service/order"
	partsService "github.com/quickmech/quickmech-backend/internal/service/parts"
	paymentService "github.com/quickmech/quickmech-backend/internal/service/payment"
	vehicleService "github.com/quickmech/quickmech-backend/internal/service/vehicle"
	walletService "github.com/quickmech/quickmech-backend/internal/service/wallet"
	"github.com/quickmech/quickmech-backend/pkg/email"
	"github.com/quickmech/quickmech-backend/pkg/platelookup"
	"github.com/quickmech/quickmech-backend/pkg/sms"
	"github.com/quickmech/quickmech-backend/pkg/stripe"
)

// appContext 聚合启动期组装的核心组件，供 main 管理生命周期
type appContext struct {
	dispatcher  *notificationService.Dispatcher
	orderRepo   *repository.OrderRepository
	reservation *partsService.ReservationService
	wallet      *walletService.WalletService
}

// setupRouter 设置路由并组装依赖
func setupRouter(
	r *gin.Engine,
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	redisClient *redis.Client,
) *appContext {
	// 创建 JWT 管理器
	jwtManager := jwt.NewManager(&jwt.Config{
		Secret:            cfg.JWT.Secret,
		AccessExpireTime:  cfg.JWT.AccessTokenDuration(),
		RefreshExpireTime: cfg.JWT.RefreshTokenDuration(),
		Issuer:            cfg.JWT.Issuer,
	})

	// 初始化仓储
	userRepo := repository.NewUserRepository(db)
	vehicleRepo := repository.NewVehicleRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	partRepo := repository.NewPartRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	chatRepo := repository.NewChatRepository(db)

	// 初始化外部服务客户端
	smsProvider := newSMSProvider(cfg)
	emailSender := newEmailSender(cfg)
	stripeClient := stripe.NewClient(&stripe.Config{
		BaseURL:       cfg.Stripe.BaseURL,
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		SuccessURL:    cfg.Stripe.SuccessURL,
		CancelURL:     cfg.Stripe.CancelURL,
		MockMode:      cfg.Stripe.MockMode,
		Timeout:       time.Duration(cfg.Stripe.Timeout) * time.Second,
	})
	plateClient := platelookup.NewClient(&platelookup.Config{
		DVLAEndpoint: cfg.PlateLookup.DVLAEndpoint,
		DVLAAPIKey:   cfg.PlateLookup.DVLAAPIKey,
		Timeout:      time.Duration(cfg.PlateLookup.Timeout) * time.Second,
		MockFallback: cfg.PlateLookup.MockFallback,
	})

	// 通知分发器：异步落库并按渠道推送
	dispatcher := notificationService.NewDispatcher(notificationRepo, userRepo, smsProvider, emailSender, 256)

	// 初始化服务
	authSvc := authService.NewAuthService(userRepo, jwtManager)
	vehicleSvc := vehicleService.NewVehicleService(vehicleRepo, plateClient, cfg)
	orderSvc := orderService.NewOrderService(db, orderRepo, userRepo, vehicleRepo, reviewRepo, dispatcher, cfg)
	partsSvc := partsService.NewPartsService(partRepo)
	reservationSvc := partsService.NewReservationService(db, reservationRepo, partRepo, orderRepo, dispatcher, cfg)
	paymentSvc := paymentService.NewPaymentService(db, paymentRepo, orderRepo, walletRepo, stripeClient, dispatcher, cfg)
	walletSvc := walletService.NewWalletService(db, walletRepo, payoutRepo, dispatcher, cfg)
	notificationSvc := notificationService.NewNotificationService(notificationRepo)
	chatRegistry := chatService.NewRegistry(time.Duration(cfg.Business.Chat.PresenceTTL) * time.Second)
	chatSvc := chatService.NewChatService(chatRepo, orderRepo, chatRegistry, dispatcher, cfg)
	adminSvc := adminService.NewAdminService(userRepo, orderRepo, paymentRepo, dispatcher)

	// 初始化处理器
	authH := authHandler.NewHandler(authSvc)
	vehicleH := vehicleHandler.NewHandler(vehicleSvc)
	orderH := orderHandler.NewHandler(orderSvc)
	partsH := partsHandler.NewHandler(partsSvc)
	reservationH := partsHandler.NewReservationHandler(reservationSvc)
	paymentH := paymentHandler.NewHandler(paymentSvc)
	walletH := walletHandler.NewHandler(walletSvc)
	notificationH := notificationHandler.NewHandler(notificationSvc)
	chatH := chatHandler.NewHandler(chatSvc, cfg)
	adminH := adminHandler.NewHandler(adminSvc, walletSvc)

	// 全局中间件
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RealIP())
	r.Use(middleware.CORS(nil))
	r.Use(middleware.AccessLog(logger))
	if cfg.RateLimit.Enabled {
		r.Use(middleware.IPRateLimit(redisClient, cfg.RateLimit.RequestsPerSecond, time.Second))
	}
	if cfg.Tracing.Enabled {
		r.Use(commonMiddleware.Tracing(&commonMiddleware.TracingConfig{
			ServiceName: cfg.Tracing.ServiceName,
			SkipPaths:   []string{"/health", "/ping", "/ready", "/metrics"},
		}))
	}
	if cfg.Metrics.Enabled {
		r.Use(metrics.GetMetrics().Middleware())
		r.GET(cfg.Metrics.Path, metrics.Handler())
	}

	// 健康检查（不需要认证）
	r.GET("/health", healthHandler)
	r.GET("/ping", pingHandler)
	r.GET("/ready", readyHandler(db, redisClient))

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1 路由组
	v1 := r.Group("/api/v1")
	{
		// 公开接口（无需认证），登录注册单独收紧限流防撞库
		public := v1.Group("")
		if cfg.RateLimit.Enabled {
			public.Use(middleware.APIRateLimit(redisClient, 10, time.Minute))
		}
		{
			public.POST("/auth/register", authH.Register)
			public.POST("/auth/login", authH.Login)
			public.POST("/auth/refresh", authH.Refresh)
		}

		// Stripe 回调（验签，不需要认证）
		v1.POST("/payments/stripe/webhook", paymentH.StripeWebhook)

		// 登录用户通用接口
		user := v1.Group("")
		user.Use(middleware.UserAuth(jwtManager))
		{
			user.GET("/auth/me", authH.Me)
			user.PUT("/auth/profile", authH.UpdateProfile)
			user.PUT("/auth/password", authH.ChangePassword)

			// 配件公开目录（登录即可浏览）
			user.GET("/parts/:id", partsH.Get)
			user.GET("/parts/search", partsH.Search)
			user.GET("/parts/suggestions", partsH.Suggestions)

			// 订单详情三方可见
			user.GET("/orders/:id", orderH.Get)

			// 钱包（技师与配件店）
			user.GET("/wallet", walletH.Balance)
			user.GET("/wallet/entries", walletH.ListEntries)
			user.POST("/wallet/payouts", walletH.RequestPayout)
			user.GET("/wallet/payouts", walletH.ListPayouts)

			// 通知
			user.GET("/notifications", notificationH.List)
			user.GET("/notifications/unread", notificationH.CountUnread)
			user.POST("/notifications/:id/read", notificationH.MarkRead)
			user.POST("/notifications/read-all", notificationH.MarkAllRead)

			// 聊天
			user.GET("/chat/ws", chatH.Connect)
			user.POST("/chat/messages", chatH.Send)
			user.GET("/chat/orders/:id/messages", chatH.History)
			user.GET("/chat/unread", chatH.CountUnread)
		}

		// 客户端接口
		client := v1.Group("")
		client.Use(middleware.ClientAuth(jwtManager))
		{
			client.POST("/vehicles", vehicleH.Create)
			client.GET("/vehicles", vehicleH.List)
			client.GET("/vehicles/:id", vehicleH.Get)
			client.PUT("/vehicles/:id", vehicleH.Update)
			client.DELETE("/vehicles/:id", vehicleH.Delete)
			client.POST("/vehicles/lookup", vehicleH.Lookup)
			client.POST("/vehicles/from-plate", vehicleH.CreateFromLookup)

			client.POST("/orders", orderH.Create)
			client.GET("/orders", orderH.List)
			client.POST("/orders/:id/approve", orderH.Approve)
			client.POST("/orders/:id/reject", orderH.Reject)
			client.POST("/orders/:id/cancel", orderH.Cancel)
			client.POST("/orders/:id/review", orderH.Review)

			client.POST("/payments", paymentH.Create)
			client.GET("/payments", paymentH.List)
			client.GET("/payments/:payment_no", paymentH.Get)
			client.POST("/payments/stripe/checkout", paymentH.CreateStripeCheckout)
			client.GET("/payments/stripe/status/:session_id", paymentH.StripeStatus)
			client.POST("/payments/pix", paymentH.CreatePixCharge)
			client.GET("/payments/pix/status/:payment_no", paymentH.PixStatus)
		}

		// 技师端接口
		mechanic := v1.Group("/mechanic")
		mechanic.Use(middleware.MechanicAuth(jwtManager))
		{
			mechanic.GET("/orders/open", orderH.ListOpen)
			mechanic.GET("/orders", orderH.ListMine)
			mechanic.POST("/orders/:id/accept", orderH.Accept)
			mechanic.POST("/orders/:id/quote", orderH.SubmitQuote)
			mechanic.POST("/orders/:id/start", orderH.StartService)
			mechanic.POST("/orders/:id/complete", orderH.CompleteService)

			mechanic.POST("/reservations", reservationH.Prereserve)
			mechanic.GET("/reservations", reservationH.ListByMechanic)
			mechanic.GET("/reservations/:id", reservationH.Get)
		}

		// 配件店端接口
		autoparts := v1.Group("/autoparts")
		autoparts.Use(middleware.AutopartsAuth(jwtManager))
		{
			autoparts.POST("/parts", partsH.Create)
			autoparts.GET("/parts", partsH.ListMine)
			autoparts.PUT("/parts/:id", partsH.Update)
			autoparts.DELETE("/parts/:id", partsH.Delete)

			autoparts.GET("/reservations", reservationH.ListByShop)
			autoparts.GET("/reservations/:id", reservationH.Get)
			autoparts.POST("/reservations/:id/confirm", reservationH.Confirm)
			autoparts.POST("/reservations/:id/refuse", reservationH.Refuse)
			autoparts.POST("/reservations/:id/void", reservationH.Void)
			autoparts.POST("/reservations/pickup", reservationH.ConfirmPickup)
		}
	}

	// 管理后台 API
	admin := r.Group("/api/admin")
	admin.Use(middleware.AdminAuth(jwtManager))
	{
		admin.GET("/stats", adminH.Stats)
		admin.GET("/users", adminH.ListUsers)
		admin.GET("/users/pending", adminH.ListPendingApproval)
		admin.POST("/users/:id/approve", adminH.ApproveUser)
		admin.PUT("/users/:id/active", adminH.SetUserActive)
		admin.GET("/orders", adminH.ListOrders)
		admin.GET("/payments", adminH.ListPayments)
		admin.GET("/payouts", adminH.ListPayouts)
		admin.POST("/payouts/:id/approve", adminH.ApprovePayout)
		admin.POST("/payouts/:id/reject", adminH.RejectPayout)
		admin.POST("/payouts/:id/paid", adminH.MarkPayoutPaid)
	}

	// 404 处理
	r.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{
			"code":    404,
			"message": "接口不存在",
		})
	})

	return &appContext{
		dispatcher:  dispatcher,
		orderRepo:   orderRepo,
		reservation: reservationSvc,
		wallet:      walletSvc,
	}
}

// newSMSProvider 按配置选择短信渠道
func newSMSProvider(cfg *config.Config) sms.Provider {
	if cfg.SMS.Provider == "twilio" {
		return sms.NewTwilioProvider(&sms.Config{
			AccountSID: cfg.SMS.AccountSID,
			AuthToken:  cfg.SMS.AuthToken,
			FromNumber: cfg.SMS.FromNumber,
		})
	}
	return sms.NewMockProvider()
}

// newEmailSender 按配置选择邮件渠道
func newEmailSender(cfg *config.Config) email.Sender {
	if cfg.Email.Provider == "smtp" {
		return email.NewSMTPSender(&email.Config{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			User:     cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		})
	}
	return email.NewMockSender()
}
