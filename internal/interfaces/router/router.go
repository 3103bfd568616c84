package router

import (
	"context"
	"net/http"

	"carbonpay-backend/internal/application/assets"
	authsvc "carbonpay-backend/internal/application/auth"
	fundingsvc "carbonpay-backend/internal/application/funding"
	ledgersvc "carbonpay-backend/internal/application/ledger"
	offsetsvc "carbonpay-backend/internal/application/offsets"
	projectsvc "carbonpay-backend/internal/application/projects"
	purchasesvc "carbonpay-backend/internal/application/purchases"
	usersvc "carbonpay-backend/internal/application/user"
	"carbonpay-backend/internal/config"
	"carbonpay-backend/internal/constants"
	"carbonpay-backend/internal/infrastructure/database"
	"carbonpay-backend/internal/infrastructure/metrics"
	authhandler "carbonpay-backend/internal/interfaces/handlers/auth"
	fundinghandler "carbonpay-backend/internal/interfaces/handlers/funding"
	healthhandler "carbonpay-backend/internal/interfaces/handlers/health"
	ledgerhandler "carbonpay-backend/internal/interfaces/handlers/ledger"
	offsethandler "carbonpay-backend/internal/interfaces/handlers/offsets"
	projecthandler "carbonpay-backend/internal/interfaces/handlers/projects"
	purchasehandler "carbonpay-backend/internal/interfaces/handlers/purchases"
	userhandler "carbonpay-backend/internal/interfaces/handlers/user"
	"carbonpay-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	if g == nil || g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Deps are the already-open resources the app is built on. Intents overrides
// the Stripe client; nil means use STRIPE_SECRET_KEY.
type Deps struct {
	DB       *gorm.DB
	Rdb      *redis.Client
	Registry *prometheus.Registry
	Intents  fundingsvc.IntentCreator
}

// CreateApp opens the database and Redis from cfg, migrates and builds the app.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	rdb := redis.NewClient(opt)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, err := Build(cfg, Deps{DB: db, Rdb: rdb, Registry: registry})
	if err != nil {
		return nil, nil, nil, err
	}
	return app, db, rdb, nil
}

// Build migrates deps.DB and registers every route.
func Build(cfg *config.Config, deps Deps) (*fiber.App, error) {
	db, rdb := deps.DB, deps.Rdb
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}
	if err := ledgersvc.AutoMigrate(db); err != nil {
		return nil, err
	}
	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := metrics.New(registry)

	assetSvc := &assets.Service{}
	ledgerSvc := &ledgersvc.Service{DB: db, Assets: assetSvc, Namespace: cfg.LedgerNamespace, Metrics: m}
	projectSvc := &projectsvc.Service{DB: db, Ledger: ledgerSvc, Assets: assetSvc, Metrics: m}
	purchaseSvc := &purchasesvc.Service{DB: db, Ledger: ledgerSvc, Assets: assetSvc, Metrics: m}
	offsetSvc := &offsetsvc.Service{DB: db, Ledger: ledgerSvc, Assets: assetSvc, Metrics: m}
	intents := deps.Intents
	if intents == nil {
		intents = &fundingsvc.StripeIntentCreator{SecretKey: cfg.StripeSecretKey}
	}
	fundingSvc := &fundingsvc.Service{
		DB:       db,
		Ledger:   ledgerSvc,
		Assets:   assetSvc,
		Metrics:  m,
		Intents:  intents,
		Treasury: cfg.TreasuryAuthority,
	}
	if l, err := ledgerSvc.Get(context.Background()); err == nil {
		ledgerSvc.PublishTotals(l)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix:  cfg.FrontendURLEndsWith,
		AllowLocalhost: cfg.Env != "production",
	}))

	// Mounted before the session so the raw body and signature header reach it untouched.
	stripeWebhook := &fundinghandler.WebhookHandler{Service: fundingSvc, WebhookSecret: cfg.StripeWebhookSecret}
	app.Post("/api/v1/stripe/webhook", stripeWebhook.HandleWebhook)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	app.Use(middleware.SessionWithClient(rdb))
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		DB:             &gormDBPinger{db: db},
		Ledger:         ledgerSvc,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Get("/health/reset", hh.Reset)

	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.Env == "production",
	}
	ah := &authhandler.Handlers{
		UserFinder: &authsvc.GormUserFinder{DB: db},
		DB:         db,
		Rdb:        rdb,
		Config:     sessionCfg,
	}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/login", ah.Login)
	authGroup.Post("/register", ah.Register)
	authGroup.Get("/me", ah.Me)
	authGroup.Delete("/logout", ah.Logout)

	api := app.Group("/api/v1", middleware.RequireAuth())
	view := middleware.AuthorizePermission(constants.ViewData)
	manageUsers := middleware.AuthorizePermission(constants.ManageUsers)

	uh := &userhandler.Handlers{Service: &usersvc.Service{DB: db, Rdb: rdb}}
	api.Get("/users", manageUsers, uh.ListUsers)
	api.Get("/users/view-user", uh.ViewUser)
	api.Put("/users/update-user", uh.UpdateUser)
	api.Patch("/users/update-role", manageUsers, uh.UpdateRole)
	api.Delete("/users/remove-user", manageUsers, uh.RemoveUser)

	lh := &ledgerhandler.Handlers{Service: ledgerSvc}
	api.Post("/ledger/initialize", middleware.AuthorizePermission(constants.InitializeLedger), lh.Initialize)
	api.Get("/ledger", view, lh.Get)

	fh := &fundinghandler.Handlers{Service: fundingSvc}
	api.Post("/assets/payment-mint", middleware.AuthorizePermission(constants.CreatePaymentAsset), fh.CreatePaymentMint)
	api.Post("/funding/create-intent", middleware.AuthorizePermission(constants.FundAccount), fh.CreateIntent)

	ph := &projecthandler.Handlers{Service: projectSvc}
	api.Post("/projects/create-project", middleware.AuthorizePermission(constants.CreateProject), ph.CreateProject)
	api.Get("/projects", view, ph.ListProjects)
	api.Get("/projects/:id", view, ph.GetProject)

	puh := &purchasehandler.Handlers{Service: purchaseSvc}
	oh := &offsethandler.Handlers{Service: offsetSvc}
	api.Post("/purchases/purchase", middleware.AuthorizePermission(constants.BuyCredits), puh.Purchase)
	api.Get("/purchases", view, puh.ListPurchases)
	api.Get("/purchases/:id", view, puh.GetPurchase)
	api.Get("/purchases/:id/offsets", view, oh.ListForPurchase)

	api.Post("/offsets/request-offset", middleware.AuthorizePermission(constants.RequestOffset), oh.RequestOffset)
	api.Post("/offsets/review", middleware.AuthorizePermission(constants.ReviewOffset), oh.Review)
	api.Get("/offsets/:id", view, oh.GetOffsetRequest)

	return app, nil
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
