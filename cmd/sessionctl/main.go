package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-client/internal/config"
	"github.com/spec-kit/marketplace-client/internal/credstore"
	"github.com/spec-kit/marketplace-client/internal/domain"
	"github.com/spec-kit/marketplace-client/internal/events"
	"github.com/spec-kit/marketplace-client/internal/expiry"
	"github.com/spec-kit/marketplace-client/internal/gateway"
	"github.com/spec-kit/marketplace-client/internal/observability"
	"github.com/spec-kit/marketplace-client/internal/session"
)

// app bundles the wired client for command runners.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	store      *credstore.Redis
	dispatcher events.Dispatcher
	manager    *session.Manager
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store := credstore.NewRedis(cfg.Redis, logger)
	clock := expiry.NewClock(store)
	metrics := observability.NewMetrics()
	client := gateway.NewClient(cfg.Backend, clock, logger, metrics)
	dispatcher := events.NewInMemoryDispatcher()

	manager := session.NewManager(cfg.Session, session.Dependencies{
		Store:      store,
		Gateway:    client,
		Dispatcher: dispatcher,
		Logger:     logger,
		Clock:      clock,
	})
	manager.Initialize(ctx)

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		dispatcher: dispatcher,
		manager:    manager,
	}, nil
}

func (a *app) close() {
	a.manager.Close()
	_ = a.store.Close()
	_ = a.logger.Sync()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Session lifecycle client for the ticketing marketplace backend",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newLoginCmd(),
		newRegisterCmd(),
		newVerifyOTPCmd(),
		newResendOTPCmd(),
		newForgotPasswordCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newSwitchRoleCmd(),
		newWatchCmd(),
	)
	return root
}

func withApp(run func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		return run(ctx, a, cmd, args)
	}
}

func newLoginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Authenticate and persist the session",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			if err := a.manager.Login(ctx, args[0], password); err != nil {
				return err
			}
			return printStatus(a.manager)
		}),
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account awaiting OTP verification",
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			err := a.manager.Register(ctx, gateway.RegisterRequest{
				Name:                 name,
				Email:                email,
				Password:             password,
				PasswordConfirmation: password,
				TNCAccepted:          true,
			})
			if err != nil {
				return err
			}
			fmt.Printf("verification pending for %s\n", a.manager.PendingVerificationEmail())
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newVerifyOTPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-otp <email> <code>",
		Short: "Confirm the registration code and authenticate",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			if err := a.manager.VerifyOTP(ctx, args[0], args[1]); err != nil {
				return err
			}
			return printStatus(a.manager)
		}),
	}
}

func newResendOTPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resend-otp",
		Short: "Re-send the pending verification code",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			a.manager.ResendOTP(ctx)
			return nil
		}),
	}
}

func newForgotPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forgot-password <email>",
		Short: "Start the password recovery flow",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			a.manager.ForgotPassword(ctx, args[0])
			return nil
		}),
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Tear the session down",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			a.manager.Logout(ctx)
			fmt.Println("logged out")
			return nil
		}),
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the restored session state",
		Args:  cobra.NoArgs,
		RunE: withApp(func(_ context.Context, a *app, _ *cobra.Command, _ []string) error {
			return printStatus(a.manager)
		}),
	}
}

func newSwitchRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch-role <role>",
		Short: "Activate another role the identity holds",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			a.manager.SwitchRole(ctx, domain.Role(args[0]))
			return printStatus(a.manager)
		}),
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the revalidation loop and print session events",
		Args:  cobra.NoArgs,
		RunE: withApp(func(_ context.Context, a *app, _ *cobra.Command, _ []string) error {
			for _, eventType := range []events.EventType{
				events.EventLoggedIn,
				events.EventLoggedOut,
				events.EventRevoked,
				events.EventExpiryWarning,
			} {
				a.dispatcher.Subscribe(eventType, func(_ context.Context, event events.Event) error {
					fmt.Printf("%s %s %+v\n", event.Timestamp.Format(time.RFC3339), event.Type, event.Payload)
					return nil
				})
			}

			waitForShutdown(a.logger)
			return nil
		}),
	}
}

func printStatus(manager *session.Manager) error {
	status := map[string]interface{}{
		"authenticated":            manager.IsAuthenticated(),
		"identity":                 manager.Identity(),
		"pendingVerificationEmail": manager.PendingVerificationEmail(),
		"canAccessDashboard":       manager.CanAccessDashboard(),
	}
	if expiresAt, ok := manager.TokenExpiresAt(); ok {
		status["tokenExpiresAt"] = expiresAt.Format(time.RFC3339)
	}

	encoded, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
