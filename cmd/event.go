package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/access-control/internal/core/events"
	"github.com/frahmantamala/access-control/internal/mailer"
	"github.com/frahmantamala/access-control/internal/session"
	"github.com/frahmantamala/access-control/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish identity events through the in-process bus to check their subscribers`,
}

var otpEventCmd = &cobra.Command{
	Use:   "otp [email]",
	Short: "Send a sample password reset OTP through the configured mail driver",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishTestOtp(cmd.Context(), args[0])
	},
}

func publishTestOtp(ctx context.Context, email string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	setupLogger(cfg)
	lg := logger.LoggerWrapper()

	bus := events.NewEventBus(lg)
	dispatcher := mailer.NewDispatcher(mailer.Config{
		Workers:   1,
		QueueSize: 1,
	}, newMailSender(cfg.Mail, lg), lg)
	dispatcher.Subscribe(bus)
	defer dispatcher.Shutdown()

	code, err := session.GenerateOTP(cfg.Security.OTPLength)
	if err != nil {
		return err
	}
	event := events.NewOtpRequestedEvent(email, code, time.Now().Add(cfg.Security.OTPDuration))

	lg.Info("publishing sample otp", "event_id", event.EventID(), "mail_driver", cfg.Mail.Driver)
	if err := bus.PublishSync(ctx, event); err != nil {
		return fmt.Errorf("publish otp event: %w", err)
	}

	drainCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return dispatcher.Drain(drainCtx)
}

func init() {
	eventCmd.AddCommand(otpEventCmd)
	rootCmd.AddCommand(eventCmd)
}
