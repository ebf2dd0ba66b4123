package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/BTreeMap/NutriPipe/internal/api"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var noImages bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot, the reminder scheduler and the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if noImages {
			cfg.ImagesEnabled = false
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return api.Run(ctx, cfg)
	},
}

func init() {
	flags := runCmd.Flags()
	flags.String("api-addr", "", "API server address (overrides $API_ADDR)")
	flags.String("qr-output", "", "path to write the WhatsApp login QR code (overrides $WHATSAPP_QR_OUTPUT)")
	flags.Bool("numeric-code", false, "print the WhatsApp login code as text instead of a QR code")
	flags.BoolVar(&noImages, "no-images", false, "do not attach generated images to recipes (same as IMAGES_ENABLED=false)")

	_ = viper.BindPFlag("API_ADDR", flags.Lookup("api-addr"))
	_ = viper.BindPFlag("WHATSAPP_QR_OUTPUT", flags.Lookup("qr-output"))
	_ = viper.BindPFlag("WHATSAPP_NUMERIC_CODE", flags.Lookup("numeric-code"))
	rootCmd.AddCommand(runCmd)
}
