// Command yomika fetches a list of URLs concurrently under a shared rate
// budget and writes one JSON summary line per URL to stdout.
package main

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/yomika/yomika/pkg/batch"
	"github.com/yomika/yomika/pkg/cache"
	"github.com/yomika/yomika/pkg/fetch"
	"github.com/yomika/yomika/pkg/logging"
	"github.com/yomika/yomika/pkg/netprobe"
	"github.com/yomika/yomika/pkg/ratelimit"
)

// summary is the JSONL record emitted per fetched URL.
type summary struct {
	URL         string `json:"url"`
	Status      int    `json:"status,omitempty"`
	Bytes       int    `json:"bytes,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	ElapsedMS   int64  `json:"elapsed_ms,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	File        string `json:"file,omitempty"`
}

func main() {
	var (
		urlsFile    = flag.String("urls", "", "file with one URL per line ('#' starts a comment); positional args otherwise")
		profile     = flag.String("profile", getEnv("YOMIKA_PROFILE", "default"), "rate profile: default (5 rps) or aggressive (250 rps)")
		rps         = flag.Float64("rps", 0, "override requests per second (takes precedence over -profile)")
		concurrency = flag.Int64("concurrency", 10, "max concurrent fetches (0 = unlimited)")
		timeout     = flag.Duration("timeout", fetch.DefaultTimeout, "per-attempt request timeout")
		expect      = flag.String("expect", "", "required Content-Type substring")
		insecure    = flag.Bool("insecure", false, "skip TLS certificate verification")
		proxy       = flag.String("proxy", getEnv("YOMIKA_PROXY", ""), "proxy URL")
		redisAddr   = flag.String("redis", getEnv("YOMIKA_REDIS", ""), "Redis address enabling the response cache (empty = no cache)")
		outputDir   = flag.String("output", "", "directory to write response bodies into (empty = summaries only)")
		probe       = flag.Bool("probe", false, "check internet connectivity before fetching")
		logLevel    = flag.String("log-level", getEnv("YOMIKA_LOG_LEVEL", "info"), "log level: debug, info, warn, error")
		pretty      = flag.Bool("pretty", false, "human-readable log output")
	)
	flag.Parse()

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(*logLevel),
		Pretty: *pretty,
		Output: os.Stderr,
	})

	urls, err := collectURLs(*urlsFile, flag.Args())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to read URL list")
	}
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "usage: yomika [flags] url [url ...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx := context.Background()

	if *probe {
		checker := netprobe.New(netprobe.DefaultConfig())
		if !checker.IsConnected(ctx) {
			logger.Fatal().Msg("No internet connectivity, aborting")
		}
		logger.Info().Msg("Connectivity probe passed")
	}

	fetchCfg, err := buildFetchConfig(*profile, *rps)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	fetchCfg.Timeout = *timeout
	fetchCfg.ExpectedContentType = *expect
	fetchCfg.InsecureSkipVerify = *insecure
	fetchCfg.Proxy = *proxy

	if *redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: *redisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", *redisAddr).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		fetchCfg.Cache = cache.NewManager(redisClient)
		logger.Info().Str("addr", *redisAddr).Msg("Response cache enabled")
	}

	if *outputDir != "" {
		if err := os.MkdirAll(*outputDir, 0o755); err != nil {
			logger.Fatal().Err(err).Msg("Failed to create output directory")
		}
	}

	items := batch.New(batch.Config{
		Fetch:          fetchCfg,
		MaxConcurrency: *concurrency,
	}).FetchAll(ctx, urls)

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	failures := 0
	enc := json.NewEncoder(out)
	for _, item := range items {
		s := summarize(item)

		if item.Err == nil && *outputDir != "" {
			name := outputFilename(item.URL)
			path := filepath.Join(*outputDir, name)
			if err := os.WriteFile(path, item.Result.Content, 0o644); err != nil {
				logger.Error().Err(err).Str("url", item.URL).Msg("Failed to write body file")
			} else {
				s.File = path
			}
		}

		if item.Err != nil {
			failures++
		}
		if err := enc.Encode(s); err != nil {
			logger.Error().Err(err).Msg("Failed to encode summary")
		}
	}

	if failures > 0 {
		out.Flush()
		logger.Warn().Int("failures", failures).Int("total", len(items)).Msg("Batch finished with failures")
		os.Exit(1)
	}
}

// buildFetchConfig maps the profile name and rps override onto a config.
func buildFetchConfig(profile string, rps float64) (fetch.Config, error) {
	var cfg fetch.Config
	switch strings.ToLower(profile) {
	case "default":
		cfg = fetch.DefaultConfig()
	case "aggressive":
		cfg = fetch.AggressiveConfig()
	default:
		return fetch.Config{}, fmt.Errorf("unknown profile %q (want default or aggressive)", profile)
	}

	if rps > 0 {
		cfg.Limiter = ratelimit.New(rps)
	} else if rps < 0 {
		return fetch.Config{}, fmt.Errorf("rps must be positive, got %v", rps)
	}
	return cfg, nil
}

// collectURLs merges the -urls file and positional arguments.
func collectURLs(file string, args []string) ([]string, error) {
	urls := append([]string{}, args...)

	if file != "" {
		fromFile, err := readURLFile(file)
		if err != nil {
			return nil, err
		}
		urls = append(urls, fromFile...)
	}
	return urls, nil
}

// readURLFile reads one URL per line, skipping blanks and '#' comments.
func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

// summarize converts a batch item to its JSONL record.
func summarize(item batch.Item) summary {
	s := summary{URL: item.URL}

	if item.Err != nil {
		s.Error = item.Err.Error()
		var ferr *fetch.Error
		if errors.As(item.Err, &ferr) {
			s.ErrorKind = string(ferr.Kind)
			s.Status = ferr.StatusCode
		}
		return s
	}

	s.Status = item.Result.StatusCode
	s.Bytes = len(item.Result.Content)
	s.ContentType = item.Result.ContentType
	s.ElapsedMS = item.Result.Elapsed.Milliseconds()
	return s
}

// outputFilename derives a stable, filesystem-safe name for a URL's body.
func outputFilename(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	base := "page"
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		base = u.Host
	}
	return fmt.Sprintf("%s-%s.body", base, hex.EncodeToString(sum[:8]))
}

// getEnv returns the environment value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
