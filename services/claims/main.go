// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ClearlineAI/ClearlineClaims/pkg/logging"
	"github.com/ClearlineAI/ClearlineClaims/services/claims/middleware"
	"github.com/ClearlineAI/ClearlineClaims/services/claims/observability"
	"github.com/ClearlineAI/ClearlineClaims/services/claims/pipeline"
	"github.com/ClearlineAI/ClearlineClaims/services/claims/providers"
	"github.com/ClearlineAI/ClearlineClaims/services/claims/routes"
	"github.com/ClearlineAI/ClearlineClaims/services/claims/storage/auditdb"
	"github.com/ClearlineAI/ClearlineClaims/services/redaction"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "clearline-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("claims-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// buildEmbedder selects the embedding backend from EMBEDDING_BACKEND_TYPE.
func buildEmbedder() (providers.Embedder, error) {
	switch os.Getenv("EMBEDDING_BACKEND_TYPE") {
	case "sidecar":
		slog.Info("Using sidecar embedding backend")
		return providers.NewSidecarEmbedder()
	case "openai":
		slog.Info("Using OpenAI embedding backend")
		return providers.NewOpenAIEmbedder()
	default:
		slog.Warn("EMBEDDING_BACKEND_TYPE not set or invalid, defaulting to openai")
		return providers.NewOpenAIEmbedder()
	}
}

func main() {
	port := os.Getenv("CLAIMS_PORT")
	if port == "" {
		port = "12310"
	}

	logCfg := logging.Config{
		Level:   logging.LevelInfo,
		Service: "claims-service",
		JSON:    true,
		LogDir:  os.Getenv("CLAIMS_LOG_DIR"),
	}
	// Log messages quote claimant text in places; scrub them with the
	// same masker the pipeline applies to outbound explanations.
	if masker, err := redaction.NewMasker(); err == nil {
		logCfg.Redact = masker.Redact
	}
	logger := logging.New(logCfg)
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	metrics := observability.InitMetrics()

	weaviateClient, err := providers.NewWeaviateClient()
	if err != nil {
		log.Fatalf("FATAL: Could not create the Weaviate client: %v", err)
	}
	retriever := providers.NewWeaviateClauseRetriever(weaviateClient)

	embedder, err := buildEmbedder()
	if err != nil {
		log.Fatalf("FATAL: Could not initialize the embedding backend: %v", err)
	}

	generator, err := providers.NewOpenAIGenerator()
	if err != nil {
		log.Fatalf("FATAL: Could not initialize the decision generator: %v", err)
	}

	// Document extraction is optional. Without it claims are validated
	// with no supporting-document evidence, which blocks auto-approval
	// but keeps the service usable.
	var extractor providers.DocumentExtractor
	if httpExtractor, err := providers.NewHTTPDocumentExtractor(); err != nil {
		slog.Warn("EXTRACTION_SERVICE_URL not set. Supporting documents will be ignored.", "error", err)
		extractor = providers.NopExtractor{}
	} else {
		extractor = httpExtractor
	}

	dbPath := os.Getenv("CLAIMS_AUDIT_DB_PATH")
	if dbPath == "" {
		dbPath = "/data/claims-audit"
	}
	dbCfg := auditdb.DefaultConfig()
	dbCfg.Path = dbPath
	auditDB, err := auditdb.Open(dbCfg)
	if err != nil {
		log.Fatalf("FATAL: Could not open the audit database at %s: %v", dbPath, err)
	}
	defer func() {
		if err := auditDB.Close(); err != nil {
			slog.Error("failed to close the audit database", "error", err)
		}
	}()

	auditSink := providers.NewBadgerAuditSink(auditDB)
	pipe, err := pipeline.New(pipeline.Config{
		Embedder:  embedder,
		Retriever: retriever,
		Generator: generator,
		Extractor: extractor,
		Audit:     auditSink,
		History:   providers.NewBadgerClaimHistory(auditDB),
	})
	if err != nil {
		log.Fatalf("FATAL: Could not assemble the validation pipeline: %v", err)
	}

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())

	router := gin.Default()
	router.Use(otelgin.Middleware("claims-service"))

	routes.SetupRoutes(router, pipe, auditSink, limiter, metrics)
	log.Println("started up the container")

	log.Println("Starting the claims server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
