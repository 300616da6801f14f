package cmd

import (
	"github.com/spf13/cobra"

	"tripvault/config"
	"tripvault/logging"
	"tripvault/web"
)

func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long:  `This command starts the web server. Flags override the environment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			applyServeFlags(cmd, cfg)
			logging.Setup(cfg.LogLevel)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return web.Serve(cfg)
		},
	}

	cmd.Flags().Bool("dev", false, "Run in development mode")
	cmd.Flags().String("port", "8080", "Port to run the web server on")
	cmd.Flags().String("mq", config.MqGoChan, "Message queue mode (go_chan, rabbitmq, gcp_pub_sub)")
	cmd.Flags().String("store", config.StoreMemory, "Storage mode (memory, postgres)")

	return cmd
}

// applyServeFlags copies explicitly set flags over the loaded config.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("dev") {
		cfg.IsDev, _ = flags.GetBool("dev")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetString("port")
	}
	if flags.Changed("mq") {
		cfg.MqMode, _ = flags.GetString("mq")
	}
	if flags.Changed("store") {
		cfg.StoreMode, _ = flags.GetString("store")
	}
}
