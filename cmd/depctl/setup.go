package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/distribution/depctl/cache"
	"github.com/distribution/depctl/index"
	"github.com/distribution/depctl/interp"
	"github.com/distribution/depctl/orchestrator"
	"github.com/distribution/depctl/platform"
)

// defaultIndexURL is used when DEPCTL_INDEX_URL is unset.
const defaultIndexURL = "https://index.example/api"

// configureLogging sets the package-wide logrus level and formatter from
// DEPCTL_LOG_LEVEL / DEPCTL_LOG_FORMAT, mirroring cmd/registry/main.go's
// configureLogging step but driven by environment variables instead of a
// parsed configuration file, since depctl has no service config (spec.md
// names none).
func configureLogging() *logrus.Entry {
	log := logrus.New()

	level := os.Getenv("DEPCTL_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	switch os.Getenv("DEPCTL_LOG_FORMAT") {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{})
	}

	return logrus.NewEntry(log)
}

// buildOrchestrator wires C1-C8 into an Orchestrator rooted at the current
// working directory, reading HOME/USERPROFILE (via cache.Default) and
// INDEX_TOKEN as spec.md §6 requires.
func buildOrchestrator(log *logrus.Entry) (*orchestrator.Orchestrator, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	c, err := cache.Default()
	if err != nil {
		return nil, err
	}

	indexURL := os.Getenv("DEPCTL_INDEX_URL")
	if indexURL == "" {
		indexURL = defaultIndexURL
	}
	idx := index.New(indexURL, os.Getenv("INDEX_TOKEN"), log)

	concurrency := 0
	if raw := os.Getenv("DEPCTL_CONCURRENCY"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			concurrency = n
		}
	}

	return &orchestrator.Orchestrator{
		ProjectDir:  wd,
		Index:       idx,
		Cache:       c,
		EnvBuilder:  interp.DefaultEnvBuilder{},
		Extractor:   interp.DefaultExtractor{},
		Interpreter: interp.StaticInterpreterProvider{BinPath: os.Getenv("DEPCTL_PYTHON")},
		Host:        platform.Detect(),
		Concurrency: concurrency,
		Log:         log,
	}, nil
}

// exitCodeFor maps a surfaced error to the process exit code spec.md §6
// requires: 0 success, 130 user cancel, 1 any other surfaced error.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if isCancellation(err) {
		return 130
	}
	return 1
}
