package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/emre/presentia/internal/app/controllers"
	"github.com/emre/presentia/internal/app/migrations"
	"github.com/emre/presentia/internal/app/models"
	"github.com/emre/presentia/internal/app/repositories"
	"github.com/emre/presentia/internal/app/routes"
	"github.com/emre/presentia/internal/app/services"
	"github.com/emre/presentia/internal/config"
	"github.com/emre/presentia/internal/db"
	"github.com/emre/presentia/internal/middleware"
	pkgAuth "github.com/emre/presentia/internal/pkg/auth"
	"github.com/emre/presentia/internal/pkg/challenge"
	"github.com/emre/presentia/internal/pkg/cryptobox"
	"github.com/emre/presentia/internal/pkg/faceclient"
	"github.com/emre/presentia/internal/pkg/facever"
	"github.com/emre/presentia/internal/pkg/logger"
	"github.com/emre/presentia/internal/pkg/metrics"
	"github.com/emre/presentia/internal/pkg/webauthnx"
	"github.com/emre/presentia/internal/pkg/websocket"
	"github.com/emre/presentia/internal/seed"
)

// Dependencies holds everything the server needs after wiring.
type Dependencies struct {
	Repositories  *repositories.Repositories
	Services      *services.Services
	JWTService    *pkgAuth.JWTService
	Challenges    challenge.Store
	FaceEngine    *facever.Engine
	Hub           *websocket.Hub
	WSHandler     *websocket.Handler
	AuthMW        *middleware.AuthMiddleware
	MarkLimiter   *middleware.TokenBucket
	AuthCtrl      *controllers.AuthController
	AttendCtrl    *controllers.AttendanceController
	BiometricCtrl *controllers.BiometricController
	FacultyCtrl   *controllers.FacultyController
}

// LoadConfigAndSetupLogger loads the application configuration and configures
// the global logger accordingly.
func LoadConfigAndSetupLogger(configPath string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Configure(logger.Config{
		Level:  logger.LogLevel(cfg.Logging.Level),
		Pretty: strings.EqualFold(cfg.Logging.Format, "console"),
	})

	lgr := logger.GetLogger()
	lgr.Info().
		Str("mode", cfg.Server.Mode).
		Str("port", cfg.Server.Port).
		Msg("Configuration loaded")

	return cfg, lgr, nil
}

// SetupDatabase opens the connection pool and applies pending migrations.
func SetupDatabase(cfg *config.Config, lgr zerolog.Logger) (*pgxpool.Pool, error) {
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	migrator := migrations.NewMigrator(database.Pool)
	if err := migrator.MigrateFromDirectory("migrations"); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if cfg.Server.Mode == "development" {
		if err := seed.CreateDefaultData(context.Background(), database.Pool, lgr); err != nil {
			lgr.Warn().Err(err).Msg("Failed to seed development data")
		}
	}

	lgr.Info().Msg("Database connection established and migrations applied")
	return database.Pool, nil
}

// BuildDependencies wires repositories, domain services, controllers and
// middleware into a ready-to-route dependency graph.
func BuildDependencies(cfg *config.Config, dbPool *pgxpool.Pool, lgr zerolog.Logger) (*Dependencies, error) {
	repos := repositories.NewRepositories(dbPool)

	jwtService := pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:   cfg.JWT.Secret,
		TokenExp:    cfg.JWTExpiration(),
		TokenIssuer: cfg.JWT.Issuer,
	})

	box, err := cryptobox.New(cfg.Biometric.EncryptionSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize descriptor encryption: %w", err)
	}

	webauthnEngine, err := webauthnx.New(webauthnx.Config{
		RPID:      cfg.WebAuthn.RPID,
		RPName:    cfg.WebAuthn.RPName,
		RPOrigins: cfg.WebAuthn.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize webauthn engine: %w", err)
	}

	faceEngine := setupFaceEngine(cfg, lgr)
	challenges := setupChallengeStore(cfg, lgr)

	hub := websocket.NewHub(lgr)
	go hub.Run()

	authService := services.NewAuthService(repos.UserRepository, jwtService, lgr)
	sessionService := services.NewSessionService(repos.SessionRepository, cfg.SessionCodeTTL(), lgr)
	biometricService := services.NewBiometricService(
		repos.UserRepository,
		repos.CredentialRepository,
		repos.FaceRepository,
		webauthnEngine,
		faceEngine,
		challenges,
		box,
		lgr,
	)
	attendanceService := services.NewAttendanceService(
		repos.SessionRepository,
		repos.EnrollmentRepository,
		repos.AttendanceRepository,
		repos.UserRepository,
		repos.ReportRepository,
		biometricService,
		hub,
		models.ParseBiometricPolicy(cfg.Biometric.Policy),
		lgr,
	)

	svcs := &services.Services{
		Auth:       authService,
		Session:    sessionService,
		Biometric:  biometricService,
		Attendance: attendanceService,
	}

	return &Dependencies{
		Repositories:  repos,
		Services:      svcs,
		JWTService:    jwtService,
		Challenges:    challenges,
		FaceEngine:    faceEngine,
		Hub:           hub,
		WSHandler:     websocket.NewHandler(hub, repos.SessionRepository, lgr),
		AuthMW:        middleware.NewAuthMiddleware(jwtService),
		MarkLimiter:   middleware.NewTokenBucket(cfg.RateLimit.MarkPerMinute, cfg.RateLimit.MarkPerMinute),
		AuthCtrl:      controllers.NewAuthController(authService, lgr),
		AttendCtrl:    controllers.NewAttendanceController(attendanceService, lgr),
		BiometricCtrl: controllers.NewBiometricController(biometricService, lgr),
		FacultyCtrl:   controllers.NewFacultyController(sessionService, attendanceService, lgr),
	}, nil
}

// setupFaceEngine builds the descriptor engine and probes the extraction
// service once. An unreachable service starts the engine degraded so
// mandatory face gates fail closed instead of timing out per request.
func setupFaceEngine(cfg *config.Config, lgr zerolog.Logger) *facever.Engine {
	client := faceclient.New(cfg.Biometric.FaceServiceURL)
	engine := facever.NewEngine(client, facever.NewThreshold(cfg.Biometric.MatchThreshold))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Health(ctx); err != nil {
		lgr.Warn().Err(err).
			Str("url", cfg.Biometric.FaceServiceURL).
			Msg("Face extraction service unreachable, engine starts degraded")
		engine.SetMode(facever.ModeDegraded)
		metrics.FaceEngineDegraded.Set(1)
	}

	return engine
}

// setupChallengeStore picks the ceremony challenge backend from config.
func setupChallengeStore(cfg *config.Config, lgr zerolog.Logger) challenge.Store {
	if strings.EqualFold(cfg.Challenge.Backend, "redis") {
		lgr.Info().Str("addr", cfg.Redis.Addr).Msg("Using redis challenge store")
		client := challenge.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		return challenge.NewRedisStore(client, cfg.ChallengeTTL())
	}
	return challenge.NewMemoryStore(cfg.ChallengeTTL(), cfg.SweepInterval())
}

// SetupRouter configures the gin engine with middleware, swagger and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestLogger(lgr))
	router.Use(gin.Recovery())

	routes.SetupSwagger(router)
	routes.SetupRouter(
		router,
		deps.AuthCtrl,
		deps.AttendCtrl,
		deps.BiometricCtrl,
		deps.FacultyCtrl,
		deps.WSHandler,
		deps.AuthMW,
		deps.MarkLimiter,
	)

	return router
}
