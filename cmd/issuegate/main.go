package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/issuegate/internal/api"
	"github.com/mattjoyce/issuegate/internal/config"
	"github.com/mattjoyce/issuegate/internal/dedupe"
	"github.com/mattjoyce/issuegate/internal/events"
	"github.com/mattjoyce/issuegate/internal/github"
	"github.com/mattjoyce/issuegate/internal/lock"
	"github.com/mattjoyce/issuegate/internal/log"
	"github.com/mattjoyce/issuegate/internal/storage"
	"github.com/mattjoyce/issuegate/internal/tui/watch"
	"github.com/mattjoyce/issuegate/internal/webhook"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// dotEnvPath is loaded before the config; real environment variables win.
const dotEnvPath = ".env"

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	// --- NOUNS ---
	case "system":
		return runSystemNoun(args)
	case "config":
		return runConfigNoun(args)
	case "webhook":
		return runWebhookNoun(args)

	// --- ROOT ALIASES ---
	case "start":
		return runStart(args)
	case "watch":
		return runWatch(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: issuegate version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("issuegate %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if commit != "" {
		info.Commit = shortenCommit(commit)
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if t, err := time.Parse(time.RFC3339Nano, built); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}
	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`issuegate - REST gateway and webhook receiver for one GitHub repository

Usage:
  issuegate <noun> <action> [flags]

Core Resources (Nouns):
  system    Run and observe the gateway (start, watch)
  config    Inspect configuration (check, show)
  webhook   Webhook tooling (sign)

Shortcuts:
  start     Same as "system start"
  watch     Same as "system watch"
  version   Print version metadata

Use "issuegate <noun> help" for the actions of a noun.
`)
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		printSystemNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printSystemNounHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "start":
		if hasHelpFlag(actionArgs) {
			printSystemStartHelp()
			return 0
		}
		return runStart(actionArgs)
	case "watch":
		if hasHelpFlag(actionArgs) {
			printSystemWatchHelp()
			return 0
		}
		return runWatch(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", action)
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printConfigShowHelp()
			return 0
		}
		return runConfigShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runWebhookNoun(args []string) int {
	if len(args) < 1 {
		printWebhookNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printWebhookNounHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "sign":
		if hasHelpFlag(actionArgs) {
			printWebhookSignHelp()
			return 0
		}
		return runWebhookSign(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown webhook action: %s\n", action)
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printSystemNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: issuegate system <action>")
	fmt.Fprintln(w, "Actions: start, watch")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: issuegate config <action>")
	fmt.Fprintln(w, "Actions: check, show")
}

func printWebhookNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: issuegate webhook <action>")
	fmt.Fprintln(w, "Actions: sign")
}

func printSystemStartHelp() {
	fmt.Println("Usage: issuegate system start [--config PATH]")
	fmt.Println("Run the gateway in the foreground. Configuration comes from defaults,")
	fmt.Println("the optional YAML file, ./.env and the environment, in that order.")
	fmt.Println("Without --config, $ISSUEGATE_CONFIG, ./issuegate.yaml and")
	fmt.Println("~/.config/issuegate/config.yaml are tried.")
}

func printSystemWatchHelp() {
	fmt.Println("Usage: issuegate system watch [flags]")
	fmt.Println()
	fmt.Println("Live view of webhook deliveries and recorded issue events.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --api-url URL    Gateway URL (default: http://localhost:8000)")
	fmt.Println("  --api-key KEY    API bearer token (or API_KEY env var)")
	fmt.Println()
	fmt.Println("Keybindings:")
	fmt.Println("  q, Ctrl+C        Quit")
	fmt.Println("  ↑/↓, k/j         Scroll deliveries")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: issuegate config check [--config PATH] [--json]")
	fmt.Println("Load and validate configuration without starting the gateway.")
}

func printConfigShowHelp() {
	fmt.Println("Usage: issuegate config show [--config PATH]")
	fmt.Println("Print the effective configuration as YAML with secrets redacted.")
}

func printWebhookSignHelp() {
	fmt.Println("Usage: issuegate webhook sign [flags] [FILE]")
	fmt.Println("Sign a payload (FILE or stdin) the way GitHub does and print the delivery headers.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --secret S       Webhook secret (default: WEBHOOK_SECRET)")
	fmt.Println("  --event NAME     X-GitHub-Event value (default: issues)")
	fmt.Println("  --delivery ID    X-GitHub-Delivery value (default: random UUID)")
	fmt.Println("  --url URL        Print a curl command posting to URL instead of headers")
}

// loadConfig reads .env, then the YAML file and environment. Without
// --config the standard locations are searched.
func loadConfig(configPath string) (*config.Config, error) {
	if err := config.LoadDotEnv(dotEnvPath); err != nil {
		return nil, err
	}
	if configPath == "" {
		configPath = config.DiscoverConfigFile()
	}
	return config.Load(configPath)
}

// --- ACTIONS ---

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to YAML configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("issuegate starting", "version", version, "repository", cfg.GitHub.Owner+"/"+cfg.GitHub.Repo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open dedupe store", "backend", cfg.Dedupe.Backend, "error", err)
		return 1
	}
	defer closeStore()

	go dedupe.RunPruner(ctx, store, cfg.Dedupe.PruneInterval, func(removed int, err error) {
		if err != nil {
			logger.Warn("dedupe prune failed", "error", err)
			return
		}
		if removed > 0 {
			logger.Debug("dedupe pruned", "removed", removed)
		}
	})

	client, err := github.NewClient(github.Options{
		Token:   cfg.GitHub.Token,
		Owner:   cfg.GitHub.Owner,
		Repo:    cfg.GitHub.Repo,
		BaseURL: cfg.GitHub.BaseURL,
		Timeout: cfg.GitHub.Timeout,
		Retry:   github.RetryConfig{MaxRetries: cfg.GitHub.MaxRetries},
	})
	if err != nil {
		logger.Error("failed to build upstream client", "error", err)
		return 1
	}

	hub := events.NewHub(cfg.API.EventsBuffer)
	eventLog := events.NewLog(cfg.API.EventsBuffer, hub)

	webhookConfig, err := webhook.FromGlobalConfig(cfg)
	if err != nil {
		logger.Error("failed to configure webhook", "error", err)
		return 1
	}
	dispatcher := webhook.NewDispatcher([]byte(cfg.Webhook.Secret), store, hub, log.WithComponent("dispatcher"))
	webhook.NewEventRecorder(eventLog).Register(dispatcher)
	hook := webhook.New(webhookConfig, dispatcher, log.WithComponent("webhook"))

	apiServer := api.New(api.Config{
		Listen:          cfg.Server.Addr(),
		APIKey:          cfg.API.APIKey,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxBodySize:     webhookConfig.MaxBodySize,
		Repository:      client.Repository(),
		DedupeBackend:   cfg.Dedupe.Backend,
		Ledger:          ledgerCounter(store),
	}, client, hook, hub, eventLog, log.WithComponent("api"))

	logger.Info("issuegate running (press Ctrl+C to stop)",
		"listen", cfg.Server.Addr(),
		"webhook_path", hook.Path(),
		"dedupe_backend", cfg.Dedupe.Backend,
		"auth", cfg.API.APIKey != "",
	)

	if err := apiServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("api server failed", "error", err)
		return 1
	}

	logger.Info("issuegate stopped")
	return 0
}

// ledgerCounter returns store as a counter when the backend can count.
func ledgerCounter(store dedupe.Store) api.LedgerCounter {
	if c, ok := store.(dedupe.Counter); ok {
		return c
	}
	return nil
}

// openStore builds the configured dedupe backend. The returned func closes
// the store and anything it holds.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (dedupe.Store, func(), error) {
	opts := dedupe.Options{
		Retention:  cfg.Dedupe.Retention,
		ClaimLease: cfg.Dedupe.ClaimLease,
		MaxEntries: cfg.Dedupe.MaxEntries,
	}

	switch cfg.Dedupe.Backend {
	case config.BackendMemory:
		s := dedupe.NewMemory(opts)
		return s, func() { _ = s.Close() }, nil

	case config.BackendSQLite:
		lockPath := lock.PathFor(cfg.State.Path)
		pidLock, err := lock.AcquirePIDLock(lockPath)
		if err != nil {
			return nil, nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
		}
		logger.Info("acquired PID lock", "path", lockPath)

		db, err := storage.OpenSQLite(ctx, cfg.State.Path)
		if err != nil {
			_ = pidLock.Release()
			return nil, nil, err
		}
		logger.Info("database opened", "path", cfg.State.Path)

		s := dedupe.NewSQLite(db, opts)
		return s, func() {
			_ = s.Close()
			_ = db.Close()
			_ = pidLock.Release()
		}, nil

	case config.BackendRedis:
		client, err := dedupe.ConnectRedis(ctx, cfg.Dedupe.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		s := dedupe.NewRedis(client, cfg.Dedupe.RedisPrefix, opts)
		return s, func() { _ = s.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown dedupe backend %q", cfg.Dedupe.Backend)
	}
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	apiURL := fs.String("api-url", "http://localhost:8000", "Gateway URL")
	apiKey := fs.String("api-key", os.Getenv("API_KEY"), "API bearer token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	m := watch.New(strings.TrimRight(*apiURL, "/"), *apiKey)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

type checkReport struct {
	OK            bool   `json:"ok"`
	Error         string `json:"error,omitempty"`
	Repository    string `json:"repository,omitempty"`
	Listen        string `json:"listen,omitempty"`
	WebhookPath   string `json:"webhook_path,omitempty"`
	DedupeBackend string `json:"dedupe_backend,omitempty"`
	AuthEnabled   bool   `json:"auth_enabled"`
	// LockHolderPID is set when another process holds the sqlite ledger lock.
	LockHolderPID int `json:"lock_holder_pid,omitempty"`
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to YAML configuration file")
	jsonOut := fs.Bool("json", false, "Output the report as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	report := checkReport{}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		report.Error = err.Error()
	} else {
		report.OK = true
		report.Repository = cfg.GitHub.Owner + "/" + cfg.GitHub.Repo
		report.Listen = cfg.Server.Addr()
		report.WebhookPath = cfg.Webhook.Path
		report.DedupeBackend = cfg.Dedupe.Backend
		report.AuthEnabled = cfg.API.APIKey != ""
		if cfg.Dedupe.Backend == config.BackendSQLite {
			report.LockHolderPID = activeLockHolder(lock.PathFor(cfg.State.Path))
		}
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(data))
	} else if report.OK {
		fmt.Println("config: OK")
		fmt.Printf("  repository:     %s\n", report.Repository)
		fmt.Printf("  listen:         %s\n", report.Listen)
		fmt.Printf("  webhook path:   %s\n", report.WebhookPath)
		fmt.Printf("  dedupe backend: %s\n", report.DedupeBackend)
		fmt.Printf("  api auth:       %t\n", report.AuthEnabled)
		if report.LockHolderPID > 0 {
			fmt.Printf("  ledger locked by pid %d\n", report.LockHolderPID)
		}
	} else {
		fmt.Printf("config: FAIL\n  %s\n", report.Error)
	}

	if !report.OK {
		return 1
	}
	return 0
}

// activeLockHolder returns the pid of a running process holding lockPath, or 0.
func activeLockHolder(lockPath string) int {
	if _, err := os.Stat(lockPath); err != nil {
		return 0
	}
	l, err := lock.AcquirePIDLock(lockPath)
	if err == nil {
		_ = l.Release()
		return 0
	}
	if !errors.Is(err, lock.ErrLocked) {
		return 0
	}
	pid, err := lock.ReadHolderPID(lockPath)
	if err != nil {
		return 0
	}
	return pid
}

const redacted = "********"

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to YAML configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	shown := *cfg
	redact(&shown.GitHub.Token)
	redact(&shown.Webhook.Secret)
	redact(&shown.API.APIKey)
	redact(&shown.Dedupe.RedisURL)

	data, err := yaml.Marshal(&shown)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render config: %v\n", err)
		return 1
	}
	fmt.Print(string(data))
	return 0
}

func redact(v *string) {
	if *v != "" {
		*v = redacted
	}
}

func runWebhookSign(args []string) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	secret := fs.String("secret", os.Getenv("WEBHOOK_SECRET"), "Webhook secret")
	event := fs.String("event", webhook.EventIssues, "X-GitHub-Event value")
	delivery := fs.String("delivery", "", "X-GitHub-Delivery value")
	url := fs.String("url", "", "Print a curl command posting to this URL")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *secret == "" {
		fmt.Fprintln(os.Stderr, "Error: secret required. Use --secret or WEBHOOK_SECRET env var.")
		return 1
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "Usage: issuegate webhook sign [flags] [FILE]")
		return 1
	}

	var body []byte
	var err error
	if fs.NArg() == 1 {
		body, err = os.ReadFile(fs.Arg(0))
	} else {
		body, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read payload: %v\n", err)
		return 1
	}

	if *delivery == "" {
		*delivery = uuid.NewString()
	}
	sig := webhook.Sign(body, []byte(*secret))

	if *url == "" {
		fmt.Printf("%s: %s\n", webhook.HeaderSignature, sig)
		fmt.Printf("%s: %s\n", webhook.HeaderEvent, *event)
		fmt.Printf("%s: %s\n", webhook.HeaderDelivery, *delivery)
		return 0
	}

	var cmd bytes.Buffer
	fmt.Fprintf(&cmd, "curl -sS -X POST %s \\\n", shellQuote(*url))
	fmt.Fprintf(&cmd, "  -H 'Content-Type: application/json' \\\n")
	fmt.Fprintf(&cmd, "  -H %s \\\n", shellQuote(webhook.HeaderSignature+": "+sig))
	fmt.Fprintf(&cmd, "  -H %s \\\n", shellQuote(webhook.HeaderEvent+": "+*event))
	fmt.Fprintf(&cmd, "  -H %s \\\n", shellQuote(webhook.HeaderDelivery+": "+*delivery))
	fmt.Fprintf(&cmd, "  --data-binary %s\n", shellQuote(string(body)))
	fmt.Print(cmd.String())
	return 0
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
