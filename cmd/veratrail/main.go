package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/veratrail/veratrail/internal/config"
	"github.com/veratrail/veratrail/internal/infrastructure/providers"
	"github.com/veratrail/veratrail/internal/infrastructure/repository"
	"github.com/veratrail/veratrail/internal/present/rest"
	"github.com/veratrail/veratrail/internal/present/rest/middleware"
	"github.com/veratrail/veratrail/internal/service"
	"github.com/veratrail/veratrail/internal/usecase"
)

func main() {
	godotenv.Load()

	configPath := os.Getenv("VERATRAIL_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	conf, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()

	if conf.Server.EnableTrace {
		shutdown, err := setupTracer(ctx, conf.Server.TraceEndpoint)
		if err != nil {
			slog.Error("failed to set up tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer shutdown(ctx)
	}

	db, err := providers.NewDatabase(conf.Server)
	if err != nil {
		slog.Error("failed to connect database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := providers.MigrateDatabase(db); err != nil {
		slog.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	mc := providers.NewMemcache(conf.Server)
	rdb := providers.NewRedis(conf.Server)
	identity := providers.NewIdentityGateway(conf.Server)

	files, err := providers.NewFileStore(ctx, conf.Server)
	if err != nil {
		slog.Error("failed to set up file store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	site := providers.SiteConfig(conf)

	documentRepo := repository.NewDocumentRepository(db)
	userRepo := repository.NewUserRepository(db, mc)
	auditRepo := repository.NewAuditRepository(db)

	signal := service.NewSignalService(rdb)
	auth := service.NewAuthService(identity, userRepo)

	documentUC := usecase.NewDocumentUsecase(documentRepo, signal, site)
	userUC := usecase.NewUserUsecase(userRepo, identity, signal, site)
	signatureUC := usecase.NewSignatureUsecase(userRepo, signal)
	auditUC := usecase.NewAuditUsecase(auditRepo)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("veratrail"))
	}

	authMiddleware := middleware.NewAuthMiddleware(auth, site)
	e.Use(authMiddleware.IdentifyIdentity)

	var uploader rest.Uploader
	if files != nil {
		uploader = files
	}

	handler := rest.NewHandler(site, documentUC, userUC, signatureUC, auditUC, signal, uploader)
	handler.RegisterRoutes(e, authMiddleware)

	e.Logger.Fatal(e.Start(conf.Server.Listen))
}

func setupTracer(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", "veratrail"),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
