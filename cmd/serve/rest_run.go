package serve

import (
	"context"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	chiware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ordana/payments/cmd"
	"github.com/ordana/payments/libs/clients/gateway"
	appctx "github.com/ordana/payments/libs/context"
	"github.com/ordana/payments/libs/handlers"
	"github.com/ordana/payments/libs/logging"
	"github.com/ordana/payments/libs/middleware"
	"github.com/ordana/payments/services/payments"
)

// RestRun starts the payments REST server.
func RestRun(command *cobra.Command, args []string) {
	ctx := command.Context()

	ctx = context.WithValue(ctx, appctx.EnvironmentCTXKey, viper.GetString("environment"))
	ctx = context.WithValue(ctx, appctx.DebugLoggingCTXKey, viper.GetBool("debug"))
	ctx = context.WithValue(ctx, appctx.GatewayServerCTXKey,
		resolveGatewayServer(viper.GetString("environment")))
	ctx = context.WithValue(ctx, appctx.GatewayServerKeyCTXKey, viper.GetString("gateway-server-key"))
	ctx = context.WithValue(ctx, appctx.RateLimitPerMinuteCTXKey, viper.GetInt("rate-limit-per-min"))

	if server := viper.GetString("messenger-server"); server != "" {
		ctx = context.WithValue(ctx, appctx.MessengerServerCTXKey, server)
		ctx = context.WithValue(ctx, appctx.MessengerTokenCTXKey, viper.GetString("messenger-token"))
	}

	ctx, logger := logging.SetupLogger(ctx)

	if dsn := viper.GetString("sentry-dsn"); dsn != "" {
		cmd.Must(sentry.Init(sentry.ClientOptions{
			Dsn:     dsn,
			Release: "payments@" + mustGetString(ctx, appctx.VersionCTXKey),
		}))
		defer sentry.Flush(2 * time.Second)
	}

	ctx, r, _ := SetupRouter(ctx)

	go func() {
		logger.Info().Str("addr", ":9090").Msg("serving metrics")
		err := http.ListenAndServe(":9090", middleware.Metrics())
		logger.Fatal().Err(err).Msg("metrics listener shut down")
	}()

	addr := viper.GetString("address")
	srv := http.Server{
		Addr:         addr,
		Handler:      chi.ServerBaseContext(ctx, r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	logger.Info().Str("addr", addr).Msg("serving payments API")
	cmd.Must(srv.ListenAndServe())
}

// SetupRouter wires the datastore, service and middleware stack.
func SetupRouter(ctx context.Context) (context.Context, *chi.Mux, *payments.Service) {
	logger := logging.Logger(ctx, "serve.SetupRouter")

	db, err := payments.NewPostgres(viper.GetString("datastore"), viper.GetBool("enable-migration"))
	cmd.Must(err)
	ctx = context.WithValue(ctx, appctx.DatastoreCTXKey, db)

	service, err := payments.InitService(ctx, db)
	cmd.Must(err)

	r := chi.NewRouter()

	r.Use(chiware.RequestID)
	r.Use(chiware.RealIP)
	r.Use(chiware.Heartbeat("/"))
	r.Use(chiware.Timeout(15 * time.Second))
	r.Use(middleware.RequestIDTransfer)
	r.Use(hlog.NewHandler(*logger))
	r.Use(hlog.UserAgentHandler("user_agent"))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.RateLimiter(ctx, viper.GetInt("rate-limit-per-min")))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Mount("/v1/transactions", payments.Router(service))
	r.Mount("/v1/callbacks", payments.CallbackRouter(service))

	r.Get("/health-check", handlers.HealthCheckHandler(
		mustGetString(ctx, appctx.VersionCTXKey),
		mustGetString(ctx, appctx.BuildTimeCTXKey),
		mustGetString(ctx, appctx.CommitCTXKey),
	))

	return ctx, r, service
}

func resolveGatewayServer(env string) string {
	if server := viper.GetString("gateway-server"); server != "" {
		return server
	}
	return gateway.ResolveServer(env)
}

func mustGetString(ctx context.Context, key appctx.CTXKey) string {
	value, err := appctx.GetStringFromContext(ctx, key)
	if err != nil {
		return "unknown"
	}
	return value
}
