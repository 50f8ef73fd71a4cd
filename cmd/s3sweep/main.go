// Command s3sweep enumerates every object key in an S3-compatible
// bucket by parallel-traversing its key-prefix tree.
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssdkconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/FairForge/s3sweep/internal/autoscaler"
	"github.com/FairForge/s3sweep/internal/config"
	"github.com/FairForge/s3sweep/internal/coordinator"
	"github.com/FairForge/s3sweep/internal/httpapi"
	"github.com/FairForge/s3sweep/internal/logging"
	"github.com/FairForge/s3sweep/internal/signer"
	"github.com/FairForge/s3sweep/internal/writer"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML or JSON config file")
		bucket     = flag.String("bucket", "", "bucket to enumerate (overrides config)")
		endpoint   = flag.String("endpoint", "", "S3-compatible endpoint hostname (overrides config)")
		accessKey  = flag.String("access-key", "", "explicit access key (overrides env and shared credentials)")
		secretKey  = flag.String("secret-key", "", "explicit secret key (overrides env and shared credentials)")
		profile    = flag.String("profile", config.GetEnvOrDefault("AWS_PROFILE", ""), "shared credentials file profile to use")
		preflight  = flag.Bool("preflight", false, "perform a HeadBucket probe before starting the crawl")
		resume     = flag.Bool("resume", false, "resume from the checkpoint file instead of the bucket root")
	)
	flag.Parse()

	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "s3sweep:", err)
			os.Exit(1)
		}
		cfg = *loaded
	}
	config.ApplyEnvOverrides(&cfg)
	if *bucket != "" {
		cfg.Bucket = *bucket
	}
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	if *resume {
		cfg.Resume = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "s3sweep: invalid configuration:", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "s3sweep:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	creds, err := config.ResolveCredentials(ctx, *accessKey, *secretKey, cfg.Region, cfg.Endpoint, *profile)
	if err != nil {
		logger.Fatal("credential resolution failed", zap.Error(err))
	}

	if *preflight {
		if err := probeBucket(ctx, cfg.Bucket, creds); err != nil {
			logger.Fatal("preflight bucket probe failed", zap.Error(err))
		}
		logger.Info("preflight bucket probe succeeded", zap.String("bucket", cfg.Bucket))
	}

	sink, closeSink, err := openSink(cfg.OutputPath)
	if err != nil {
		logger.Fatal("failed to open output sink", zap.Error(err))
	}
	defer closeSink()

	registry := prometheus.NewRegistry()

	var knobs atomic.Pointer[config.TuningKnobs]
	initialKnobs := cfg.TuningKnobs
	knobs.Store(&initialKnobs)

	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, cfg.TuningKnobs, logger)
		if err != nil {
			logger.Warn("config hot-reload disabled, failed to start file watcher",
				zap.String("path", *configPath), zap.Error(err))
		} else {
			defer watcher.Close()
			go forwardTuningKnobs(ctx, watcher, &knobs)
		}
	}

	opts := coordinator.Options{
		Bucket:         cfg.Bucket,
		Endpoint:       cfg.Endpoint,
		Scheme:         "https",
		Delimiter:      "/",
		MaxKeys:        1000,
		UseV2:          cfg.APIVersion == 2,
		Format:         parseFormat(cfg.OutputFormat),
		InitialWorkers: cfg.InitialWorkers,
		RatePerSecond:  cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		ScalingOpts: []autoscaler.Option{
			autoscaler.WithInterval(time.Duration(cfg.ScalingIntervalS) * time.Second),
			autoscaler.WithScaleFactors(cfg.ScaleUpFactor, cfg.ScaleDownFactor),
		},
		CheckpointPath: cfg.CheckpointPath,
		CheckpointKey:  checkpointKey(logger, cfg.CheckpointPath),
		Resume:         cfg.Resume,
		Knobs:          &knobs,
		PluginPath:     cfg.PluginPath,
	}

	co, err := coordinator.New(ctx, opts, creds, sink, logger, registry)
	if err != nil {
		logger.Fatal("failed to construct coordinator", zap.Error(err))
	}

	metricsSrv := &http.Server{Addr: cfg.MetricsListen, Handler: httpapi.MetricsRouter(registry)}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	controlSrv := &http.Server{Addr: cfg.ControlListen, Handler: httpapi.ControlRouter(co.Metrics(), &knobs)}
	go func() {
		if err := controlSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("control server stopped", zap.Error(err))
		}
	}()

	logger.Info("starting crawl",
		zap.String("bucket", cfg.Bucket), zap.String("endpoint", cfg.Endpoint),
		zap.Int("initial_workers", cfg.InitialWorkers))

	co.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	_ = controlSrv.Shutdown(shutdownCtx)

	logger.Info("crawl complete")
}

// probeBucket is the one place this program uses the AWS SDK's own
// transport and signing: a single HeadBucket call, synchronously,
// before the Coordinator (and its from-scratch signer/client) ever
// exists. Its result never touches C1-C9.
func probeBucket(ctx context.Context, bucket string, creds signer.Credentials) error {
	awsCfg, err := awssdkconfig.LoadDefaultConfig(ctx,
		awssdkconfig.WithRegion(creds.Region),
		awssdkconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKey, creds.SecretKey, "")),
	)
	if err != nil {
		return fmt.Errorf("load aws config for preflight probe: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if creds.Endpoint != "" {
			o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s", creds.Endpoint))
		}
	})

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	return err
}

func checkpointKey(logger *zap.Logger, path string) []byte {
	if path == "" {
		return nil
	}
	encoded := os.Getenv("S3SWEEP_CHECKPOINT_KEY")
	if encoded == "" {
		logger.Fatal("checkpoint requested but S3SWEEP_CHECKPOINT_KEY is not set")
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		logger.Fatal("S3SWEEP_CHECKPOINT_KEY is not valid base64", zap.Error(err))
	}
	return key
}

func openSink(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

// forwardTuningKnobs copies the Watcher's file-driven snapshot into the
// shared knobs pointer the Coordinator and the control-plane PUT
// handler both read from, so a file edit and an HTTP PUT are just two
// writers racing for the same atomic.Pointer — whichever lands last
// wins, which is the same rule ControlRouter documents for its own
// writes.
func forwardTuningKnobs(ctx context.Context, watcher *config.Watcher, knobs *atomic.Pointer[config.TuningKnobs]) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	last := watcher.Current()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := watcher.Current()
			if current == last {
				continue // no file reload since the last forward
			}
			last = current
			knobs.Store(&current)
		}
	}
}

func parseFormat(name string) writer.Format {
	if name == "json" {
		return writer.JSON
	}
	return writer.Plain
}
