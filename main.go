package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"lawn-points-service/handlers"
	"lawn-points-service/models"
	"lawn-points-service/services"
	"lawn-points-service/storage"
	"lawn-points-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		AppName: "lawn-points-service",
	})

	// CORS for the mini-app frontend
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(allowedOriginsList, ","),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, If-None-Match",
		MaxAge:       86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	neynarAPIKey := os.Getenv("NEYNAR_API_KEY")
	if neynarAPIKey == "" {
		log.Fatal("NEYNAR_API_KEY environment variable not set")
	}

	refreshSecret := os.Getenv("REFRESH_SECRET")
	if refreshSecret == "" {
		log.Fatal("❌ REFRESH_SECRET is not set — refresh/reset triggers cannot be secured")
	}

	r2AccountID := os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	if r2AccountID == "" {
		log.Fatal("CLOUDFLARE_ACCOUNT_ID environment variable not set")
	}
	r2AccessKeyID := os.Getenv("R2_ACCESS_KEY_ID")
	if r2AccessKeyID == "" {
		log.Fatal("R2_ACCESS_KEY_ID environment variable not set")
	}
	r2AccessKeySecret := os.Getenv("R2_ACCESS_KEY_SECRET")
	if r2AccessKeySecret == "" {
		log.Fatal("R2_ACCESS_KEY_SECRET environment variable not set")
	}
	r2Bucket := os.Getenv("R2_BUCKET_NAME")
	if r2Bucket == "" {
		log.Fatal("R2_BUCKET_NAME environment variable not set")
	}

	adminFid := int64(262391)
	if v := os.Getenv("ADMIN_FID"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Fatalf("invalid ADMIN_FID %q: %v", v, err)
		}
		adminFid = parsed
	}

	boardName := os.Getenv("BOARD_NAME")
	if boardName == "" {
		boardName = "Lawn Points"
	}

	refreshInterval := 15 * time.Minute
	if v := os.Getenv("REFRESH_INTERVAL_MINUTES"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil || minutes <= 0 {
			log.Fatalf("invalid REFRESH_INTERVAL_MINUTES %q", v)
		}
		refreshInterval = time.Duration(minutes) * time.Minute
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(&models.StoreEntry{}); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	store := storage.NewKVStore(db, boardName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	blob, err := storage.NewBlobStore(ctx, storage.BlobConfig{
		AccountID:       r2AccountID,
		AccessKeyID:     r2AccessKeyID,
		AccessKeySecret: r2AccessKeySecret,
		Bucket:          r2Bucket,
		CDNBaseURL:      os.Getenv("CDN_BASE_URL"),
		BoardSlug:       store.Prefix(),
	})
	if err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	neynar := services.NewNeynarClient(neynarAPIKey, time.Now)
	leaderboardService := services.NewLeaderboardService(store, blob, neynar, neynar, adminFid)

	sched, err := leaderboardService.StartRefreshScheduler(ctx, refreshInterval)
	if err != nil {
		log.Fatal("failed to start refresh scheduler:", err)
	}
	defer func() { _ = sched.Shutdown() }()

	profileWorker := workers.NewProfileRefreshWorker(store, blob, neynar, time.Hour)
	profileWorker.Start(ctx)

	handlers.SetupLeaderboardRoutes(app, leaderboardService, refreshSecret)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "board": store.Prefix()})
	})

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Printf("✅ Tracking board %q for admin fid %d", boardName, adminFid)
	log.Printf("✅ Scheduled refresh every %s", refreshInterval)
	log.Println("✅ Profile Refresh Worker running (hourly)")

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = app.Shutdown()
}
