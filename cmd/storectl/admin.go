package main

import (
	"bufio"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/wichananm65/ebook-storefront/internal/auth"
	"github.com/wichananm65/ebook-storefront/internal/events"
)

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Order events published by the server",
	}

	var (
		brokers []string
		topic   string
		group   string
	)
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print order events as they are published",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(brokers) == 0 {
				brokers = viper.GetStringSlice("kafka_brokers")
			}
			if len(brokers) == 0 {
				return errors.New("no kafka brokers given (--brokers or kafka_brokers in config)")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			consumer := events.NewConsumer(topic, group, brokers...)
			defer consumer.Close()

			for {
				e, err := consumer.Next(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-22s %s\n", e.OccurredAt.Format("2006-01-02T15:04:05Z07:00"), e.Type, e.Key)
			}
		},
	}
	tail.Flags().StringSliceVar(&brokers, "brokers", nil, "kafka brokers")
	tail.Flags().StringVar(&topic, "topic", "storefront-orders", "order events topic")
	tail.Flags().StringVar(&group, "group", "storectl", "consumer group")
	cmd.AddCommand(tail)
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := ""
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password is empty")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Get an admin token (pass it back with --token or STORECTL_TOKEN)",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := apiClient().Login(cmd.Context(), email, password)
			if err != nil {
				return explain(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
