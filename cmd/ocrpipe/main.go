package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ironsheep/ocrpipe/internal/cache"
	"github.com/ironsheep/ocrpipe/internal/config"
	"github.com/ironsheep/ocrpipe/internal/detection"
	"github.com/ironsheep/ocrpipe/internal/inference/onnx"
	"github.com/ironsheep/ocrpipe/internal/logging"
	"github.com/ironsheep/ocrpipe/internal/ocr"
	"github.com/ironsheep/ocrpipe/internal/recognition"
	"github.com/ironsheep/ocrpipe/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("ocrpipe %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			fmt.Printf("  Processor:  %s\n", processorName)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	// An optional .env file supplies defaults; real environment wins.
	_ = godotenv.Load()

	// stdout is for the MCP protocol
	log.SetOutput(os.Stderr)

	if err := run(); err != nil {
		log.Fatalf("ocrpipe: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.NewLogger("ocrpipe")
	logger.SetLevel(cfg.LogLevel)
	logger.Debug("Starting", "version", Version, "commit", GitCommit, "processor", processorName, "engine", cfg.Engine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	det, rec, dict, err := cfg.ReadSources()
	if err != nil {
		return err
	}

	loader, err := onnx.NewLoader(onnx.Options{
		LibraryPath:    cfg.OnnxRuntimeLib,
		IntraOpThreads: cfg.IntraOpThreads,
	})
	if err != nil {
		return err
	}

	detOpts := detection.DefaultOptions()
	detOpts.AutoDeskew = cfg.AutoDeskew

	pipelineLog := logging.NewLogger("ocr")
	pipelineLog.SetLevel(cfg.LogLevel)

	pcfg := ocr.Config{
		Loader:       loader,
		Processor:    newProcessor(),
		Detection:    detOpts,
		Recognition:  recognition.Options{Concurrency: cfg.Concurrency},
		DisableCache: cfg.CacheDisabled,
		Logger:       pipelineLog,
	}
	if cfg.Engine == config.EngineTesseract {
		pcfg.LineRecognizer = ocr.NewTesseract(cfg.TesseractLanguage, cfg.TessdataPrefix)
	}

	switch {
	case cfg.CacheDisabled:
	case cfg.RedisURL != "":
		store, err := cache.DialRedis(ctx, cache.RedisConfig{
			URL:    cfg.RedisURL,
			Prefix: cfg.RedisPrefix,
			TTL:    cfg.RedisTTL,
		})
		if err != nil {
			return err
		}
		defer store.Close()
		pcfg.Cache = store
	default:
		pcfg.Cache = cache.NewLRU(cfg.CacheCapacity)
	}

	pipeline := ocr.New(pcfg, ocr.Sources{
		DetectionModel:   det,
		RecognitionModel: rec,
		Dictionary:       dict,
	})
	if err := pipeline.Initialize(ctx); err != nil {
		return err
	}
	defer func() {
		if err := pipeline.Destroy(); err != nil {
			logger.Warn("Failed to release models", "error", err)
		}
	}()

	serverLog := logging.NewLogger("server")
	serverLog.SetLevel(cfg.LogLevel)

	srv := server.New(pipeline, Version, serverLog)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func printHelp() {
	fmt.Println("ocrpipe - MCP server for text detection and recognition")
	fmt.Println()
	fmt.Println("Usage: ocrpipe [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables (also read from ./.env):")
	fmt.Println("  OCRPIPE_DET_MODEL=path          Detection model (required)")
	fmt.Println("  OCRPIPE_REC_MODEL=path          Recognition model (required for ctc)")
	fmt.Println("  OCRPIPE_DICTIONARY=path         Dictionary file (required for ctc)")
	fmt.Println("  OCRPIPE_ENGINE=ctc|tesseract    Line recognizer. Default ctc")
	fmt.Println("  OCRPIPE_TESSERACT_LANG=eng      Tesseract language")
	fmt.Println("  TESSDATA_PREFIX=path            Tesseract training data directory")
	fmt.Println("  OCRPIPE_ONNXRUNTIME_LIB=path    onnxruntime shared library")
	fmt.Println("  OCRPIPE_INTRA_OP_THREADS=n      Threads per inference session")
	fmt.Println("  OCRPIPE_AUTO_DESKEW=true        Straighten images before detection")
	fmt.Println("  OCRPIPE_CONCURRENCY=4           Boxes recognized in parallel")
	fmt.Println("  OCRPIPE_CACHE_CAPACITY=10       In-memory result cache entries")
	fmt.Println("  OCRPIPE_CACHE_DISABLED=true     Disable result caching")
	fmt.Println("  OCRPIPE_REDIS_URL=redis://...   Share results through Redis")
	fmt.Println("  OCRPIPE_REDIS_TTL=24h           Redis entry lifetime")
	fmt.Println("  OCRPIPE_LOG_LEVEL=debug         Enable debug logging")
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
}
