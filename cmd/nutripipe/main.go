// Command nutripipe runs the NutriPipe nutrition assistant bot and its admin tools.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BTreeMap/NutriPipe/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "nutripipe",
	Short: "nutripipe is a nutrition assistant chat bot",
	Long: "nutripipe registers users over Telegram or WhatsApp, answers nutrition questions, " +
		"builds recipes and nutrition plans with OpenAI, and sends water reminders.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadDotEnv()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "", "log level: debug, info, warn or error (overrides $LOG_LEVEL)")
	flags.String("state-dir", "", "state directory for NutriPipe data (overrides $NUTRIPIPE_STATE_DIR)")
	flags.String("db-dsn", "", "profile database DSN, SQLite path or Postgres URL (overrides $DATABASE_URL)")
	flags.String("transport", "", "messaging transport: telegram, whatsapp or twilio (overrides $TRANSPORT)")

	_ = viper.BindPFlag("LOG_LEVEL", flags.Lookup("log-level"))
	_ = viper.BindPFlag("NUTRIPIPE_STATE_DIR", flags.Lookup("state-dir"))
	_ = viper.BindPFlag("DATABASE_URL", flags.Lookup("db-dsn"))
	_ = viper.BindPFlag("TRANSPORT", flags.Lookup("transport"))
}

// initializeLogger installs a text handler at level as the default logger.
func initializeLogger(level slog.Level) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadConfig reads configuration after flags are parsed and sets up logging.
func loadConfig() (config.Config, error) {
	initializeLogger(config.ParseLevel(viper.GetString("LOG_LEVEL")))
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	initializeLogger(cfg.SlogLevel())
	return cfg, nil
}
