package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"team-engagement-system/handlers"
	"team-engagement-system/middleware"
	"team-engagement-system/models"
	"team-engagement-system/services"
	"team-engagement-system/utils"
	"team-engagement-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB — badge icon uploads
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Team{},
		&models.TeamEvent{},
		&models.TeamMember{},
		&models.SupporterFollow{},
		&models.Game{},
		&models.DeviceToken{},
		&models.LiveSession{},
		&models.TapEvent{},
		&models.TapTotal{},
		&models.SeasonTapArchive{},
		&models.Shoutout{},
		&models.BadgeDefinition{},
		&models.SupporterBadge{},
		&models.ThemeUnlock{},
		&models.ChatPresence{},
		&models.NotificationPreferences{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	clock := clockwork.NewRealClock()

	// --- Outbound providers ---
	pushGatewayURL := os.Getenv("PUSH_GATEWAY_URL")
	if pushGatewayURL == "" {
		log.Fatal("PUSH_GATEWAY_URL environment variable not set")
	}
	pushGatewayToken := os.Getenv("PUSH_GATEWAY_TOKEN")
	if pushGatewayToken == "" {
		log.Fatal("PUSH_GATEWAY_TOKEN environment variable not set")
	}
	pushClient := services.NewPushGatewayClient(pushGatewayURL, pushGatewayToken)

	var emailClient services.EmailSender
	if smtp, err := services.NewSMTPEmailClientFromEnv(); err != nil {
		log.Println("⚠️  SMTP not configured — email fallback channel disabled")
	} else {
		emailClient = smtp
	}

	// --- Core services ---
	presenceService := services.NewPresenceService(db, clock)
	tokenRegistry := services.NewGormTokenRegistry(db)
	notificationService, err := services.NewNotificationService(db, presenceService, pushClient, emailClient, tokenRegistry, clock)
	if err != nil {
		log.Fatal("failed to start notification dispatcher:", err)
	}
	defer notificationService.Shutdown()

	badgeService := services.NewBadgeService(db)
	if err := badgeService.SeedDefaults(); err != nil {
		log.Fatal("failed to seed badge definitions:", err)
	}

	limiter := services.NewTapRateLimiter(services.RateLimitWindow, services.RateLimitBudget, clock)
	sessionService := services.NewSessionService(db, notificationService, clock)
	engagementService := services.NewEngagementService(db, limiter, badgeService, notificationService, clock)

	scheduler := services.NewLifecycleScheduler(db, sessionService, notificationService, clock)
	if err := scheduler.Start(); err != nil {
		log.Fatal("failed to start lifecycle scheduler:", err)
	}
	defer scheduler.Stop()

	// --- Roster mirror sync from the team service ---
	teamServiceURL := os.Getenv("TEAM_SERVICE_URL")
	if teamServiceURL == "" {
		log.Fatal("TEAM_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("ENGAGE_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("ENGAGE_SERVICE_TOKEN environment variable not set")
	}
	rosterWorker := workers.NewRosterSyncWorker(db, teamServiceURL, "/api/v1/public/roster", serviceToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rosterWorker.Start(ctx)

	// ✅ Setup routes — enforced Gateway auth everywhere
	handlers.SetupSessionRoutes(app, sessionService, scheduler)
	handlers.SetupEngagementRoutes(app, engagementService, badgeService)
	handlers.SetupChatRoutes(app, notificationService, presenceService)
	handlers.SetupBadgeRoutes(app, badgeService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Lifecycle scheduler running (1m sweep + on-demand /sweep)")
	log.Println("✅ Roster Sync Worker running")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
