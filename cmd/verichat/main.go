package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/verichat/internal/handler"
	appI18n "github.com/pavelanni/verichat/internal/i18n"
	appmw "github.com/pavelanni/verichat/internal/middleware"
	"github.com/pavelanni/verichat/internal/model"
	"github.com/pavelanni/verichat/internal/sample"
	"github.com/pavelanni/verichat/internal/session"
	"github.com/pavelanni/verichat/internal/verify"
)

const janitorInterval = time.Minute

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "verichat",
		Short: "Conversational identity verification front-end",
	}

	serve := serveCmd()
	root.AddCommand(serve, sampleCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `verichat --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat web server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("api-url", "http://localhost:5000/api", "Verification service base URL")
	f.Duration("api-timeout", 30*time.Second, "Verification service request deadline")
	f.Duration("question-delay", 1500*time.Millisecond, "Pause before the next question appears")
	f.Duration("result-delay", time.Second, "Pause before the final summary appears")
	f.Duration("session-ttl", 30*time.Minute, "Idle tab session eviction")
	f.StringP("lang", "l", "en", "UI language (en, ru)")
	f.StringSlice("allowed-origins", nil, "CORS allowed origins for split deployments")
	f.Bool("secure-cookies", true, "Set Secure flag on tab cookies")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func sampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write the bundled demo transaction CSV",
		RunE:  runSample,
	}
	f := cmd.Flags()
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("VERICHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("verichat")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/verichat")
	v.AddConfigPath("/etc/verichat")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}
	setupLogging(cmd)
	v := viperForCmd(cmd)

	cfg := model.Config{
		Addr:           v.GetString("addr"),
		APIBaseURL:     v.GetString("api-url"),
		APITimeout:     v.GetDuration("api-timeout"),
		QuestionDelay:  v.GetDuration("question-delay"),
		ResultDelay:    v.GetDuration("result-delay"),
		SessionTTL:     v.GetDuration("session-ttl"),
		Lang:           v.GetString("lang"),
		AllowedOrigins: v.GetStringSlice("allowed-origins"),
		SecureCookies:  v.GetBool("secure-cookies"),
	}

	if err := appI18n.Init(cfg.Lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	client := verify.New(cfg.APIBaseURL, cfg.APITimeout)

	// The verification service may come up later; a failed probe is not
	// fatal, every command surfaces its own transport failures.
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := client.Ping(pingCtx); err != nil {
		slog.Warn("verification service unreachable", "url", cfg.APIBaseURL, "error", err)
	} else {
		slog.Info("verification service OK", "url", cfg.APIBaseURL)
	}
	cancel()

	// Controllers outlive any single request; their context carries the
	// message catalog only.
	appCtx := appI18n.WithLocalizer(context.Background(), appI18n.NewLocalizer(cfg.Lang))
	registry := session.NewRegistry(appCtx, client, session.NewTimerScheduler(), session.Delays{
		NextQuestion: cfg.QuestionDelay,
		FinalSummary: cfg.ResultDelay,
	}, cfg.SessionTTL)
	go registry.Janitor(appCtx, janitorInterval)

	h := handler.New(registry, client, cfg)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(appI18n.Middleware(cfg.Lang))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(appmw.CORS(cfg.AllowedOrigins))
	}
	h.Routes(r)

	slog.Info("starting server",
		"addr", cfg.Addr,
		"api_url", cfg.APIBaseURL,
		"lang", cfg.Lang,
		"question_delay", cfg.QuestionDelay,
		"result_delay", cfg.ResultDelay,
		"session_ttl", cfg.SessionTTL,
	)
	return http.ListenAndServe(cfg.Addr, r)
}

func runSample(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	outPath := v.GetString("output")
	if outPath == "" || outPath == "-" {
		_, err := os.Stdout.Write(sample.Data())
		return err
	}
	if err := os.WriteFile(outPath, sample.Data(), 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	slog.Info("wrote sample transactions", "path", outPath, "count", sample.Count())
	return nil
}
