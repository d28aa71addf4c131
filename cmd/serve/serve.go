// Package serve registers the http server subcommand.
package serve

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ordana/payments/cmd"
)

var (
	// ServeCmd starts the payments REST server
	ServeCmd = &cobra.Command{
		Use:   "serve",
		Short: "subcommand to serve the payments API",
		Run:   RestRun,
	}
)

func init() {
	cmd.RootCmd.AddCommand(ServeCmd)

	flags := ServeCmd.Flags()

	flags.String("address", ":3333", "the default address to bind to")
	cmd.Must(viper.BindPFlag("address", flags.Lookup("address")))
	cmd.Must(viper.BindEnv("address", "ADDR"))

	flags.String("datastore", "", "the postgres datastore url")
	cmd.Must(viper.BindPFlag("datastore", flags.Lookup("datastore")))
	cmd.Must(viper.BindEnv("datastore", "DATABASE_URL"))

	flags.Bool("enable-migration", false, "perform datastore migrations on startup")
	cmd.Must(viper.BindPFlag("enable-migration", flags.Lookup("enable-migration")))
	cmd.Must(viper.BindEnv("enable-migration", "ENABLE_MIGRATION"))

	flags.String("gateway-server", "", "the payment gateway base url, defaults by environment")
	cmd.Must(viper.BindPFlag("gateway-server", flags.Lookup("gateway-server")))
	cmd.Must(viper.BindEnv("gateway-server", "GATEWAY_SERVER"))

	flags.String("gateway-server-key", "", "the merchant server key for the payment gateway")
	cmd.Must(viper.BindPFlag("gateway-server-key", flags.Lookup("gateway-server-key")))
	cmd.Must(viper.BindEnv("gateway-server-key", "GATEWAY_SERVER_KEY"))

	flags.String("messenger-server", "", "the messaging provider base url for receipts")
	cmd.Must(viper.BindPFlag("messenger-server", flags.Lookup("messenger-server")))
	cmd.Must(viper.BindEnv("messenger-server", "MESSENGER_SERVER"))

	flags.String("messenger-token", "", "the messaging provider auth token")
	cmd.Must(viper.BindPFlag("messenger-token", flags.Lookup("messenger-token")))
	cmd.Must(viper.BindEnv("messenger-token", "MESSENGER_TOKEN"))

	flags.Int("rate-limit-per-min", 180, "requests per minute before rate limiting")
	cmd.Must(viper.BindPFlag("rate-limit-per-min", flags.Lookup("rate-limit-per-min")))
	cmd.Must(viper.BindEnv("rate-limit-per-min", "RATE_LIMIT_PER_MIN"))

	flags.String("sentry-dsn", "", "the sentry dsn for error reporting")
	cmd.Must(viper.BindPFlag("sentry-dsn", flags.Lookup("sentry-dsn")))
	cmd.Must(viper.BindEnv("sentry-dsn", "SENTRY_DSN"))
}
