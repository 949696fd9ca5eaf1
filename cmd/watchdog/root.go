package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evaafi/oracle-watchdog/watchdog/config"
	"github.com/evaafi/oracle-watchdog/watchdog/daemon"
	"github.com/evaafi/oracle-watchdog/watchdog/log"
	"github.com/evaafi/oracle-watchdog/watchdog/notify"
	"github.com/evaafi/oracle-watchdog/watchdog/telemetry"
	"github.com/evaafi/oracle-watchdog/watchdog/types"
)

const (
	flagHome    = "home"
	flagEnvFile = "env-file"
	flagLogFile = "log-file"
)

// NewRootCmd runs one liveness check of the configured oracle and exits.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watchdog",
		Short: "Check that a price oracle is alive and run recovery commands if it is not",
		Long: `watchdog polls the ICP, backend and IOTA price feeds for the configured oracle,
verifies timestamp freshness and signatures, and decides liveness with IOTA as the
anchor. After the attempt budget is spent it runs the recovery commands once.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runWatchdog,
	}

	cmd.Flags().String(flagHome, config.DefaultHome(), "directory holding .env, pool.toml and logs")
	cmd.Flags().String(flagEnvFile, "", "dotenv file (default <home>/.env)")
	cmd.Flags().Bool(flagLogFile, false, "write logs to <home>/logs instead of stdout")

	return cmd
}

func runWatchdog(cmd *cobra.Command, _ []string) error {
	home, _ := cmd.Flags().GetString(flagHome)
	envFile, _ := cmd.Flags().GetString(flagEnvFile)
	logFile, _ := cmd.Flags().GetBool(flagLogFile)

	if envFile == "" {
		envFile = filepath.Join(home, ".env")
	}

	if logFile {
		path, err := log.ResetLogger(home)
		if err != nil {
			log.Errorf("failed to open log file: %v", err)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "logging to %s\n", path)
	}

	v, err := config.NewViper(home, envFile)
	if err != nil {
		log.Errorf("%v", err)
		return err
	}

	cfg := config.Load(home, v)
	notifier := newNotifier(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		log.Errorf("invalid configuration: %v", err)
		notifier.Notify(ctx, config.ReportText(err))
		return err
	}
	cfg.Print()

	metrics, err := telemetry.New()
	if err != nil {
		// run without telemetry
		log.Warnf("failed to create metrics: %v", err)
	}

	w, err := daemon.New(ctx, cfg, notifier, daemon.WithMetrics(metrics))
	if err != nil {
		log.Errorf("failed to create watchdog: %v", err)
		notifier.Notify(ctx, config.ReportText(err))
		return err
	}

	inc := w.Run(ctx)
	logSummary(inc, metrics)

	return nil
}

func newNotifier(cfg *config.Config) types.Notifier {
	if !cfg.Telegram.Enabled() {
		log.Warn("BOT_TOKEN is not set, notifications are only logged")
		return notify.New(cfg.Oracle, nil)
	}

	return notify.New(cfg.Oracle, notify.NewTelegramTransport(
		cfg.Telegram.APIURL,
		cfg.Telegram.BotToken,
		cfg.Telegram.ChatID,
		cfg.Telegram.TopicID,
		cfg.HTTPTimeout,
	))
}

func logSummary(inc *daemon.Incident, metrics *telemetry.Metrics) {
	log.Infof("run finished after %d attempt(s), escalated: %t", inc.Attempts, inc.Escalated())
	for _, c := range metrics.Counters() {
		log.Debugf("%s %v = %v", c.Name, c.Labels, c.Value)
	}
}
