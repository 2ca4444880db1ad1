package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/wichananm65/ebook-storefront/internal/client"
	"github.com/wichananm65/ebook-storefront/internal/session"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "storectl",
		Short:         "Operate and shop the ebook storefront from the terminal",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cfgFile)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.storectl.yaml)")
	root.PersistentFlags().String("base-url", "http://localhost:8080", "storefront API base URL")
	root.PersistentFlags().String("session-file", "", "file holding this profile's session id (default $HOME/.storectl/session)")
	root.PersistentFlags().String("token", "", "admin bearer token")
	_ = viper.BindPFlag("base_url", root.PersistentFlags().Lookup("base-url"))
	_ = viper.BindPFlag("session_file", root.PersistentFlags().Lookup("session-file"))
	_ = viper.BindPFlag("token", root.PersistentFlags().Lookup("token"))

	root.AddCommand(migrateCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(sessionCmd())
	root.AddCommand(cartCmd())
	root.AddCommand(checkoutCmd())
	root.AddCommand(orderCmd())
	root.AddCommand(feedCmd())
	root.AddCommand(eventsCmd())
	root.AddCommand(hashPasswordCmd())
	root.AddCommand(loginCmd())

	return root
}

func loadConfig(cfgFile string) error {
	viper.SetEnvPrefix("STORECTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".storectl")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func apiClient() *client.Client {
	var opts []client.Option
	if token := viper.GetString("token"); token != "" {
		opts = append(opts, client.WithAdminToken(token))
	}
	return client.New(viper.GetString("base_url"), opts...)
}

func sessionFile() string {
	if path := viper.GetString("session_file"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".storectl-session"
	}
	return filepath.Join(home, ".storectl", "session")
}

func sessionProvider() *session.Provider {
	return session.NewProvider(session.NewFileStore(sessionFile()))
}
