package main

import (
	"voicerelay/core"
	"voicerelay/factories"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd creates the voicerelay command. Running it without a
// subcommand starts the server.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	root := &cobra.Command{
		Use:           "voicerelay",
		Short:         "Real-time voice chat relay",
		Long:          "voicerelay streams microphone audio through speech-to-text, a chat model and text-to-speech, and sends the spoken reply back over a WebSocket.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts.settings)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().IntP("port", "p", 0, "HTTP listen port")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

type rootOptions struct {
	v        *viper.Viper
	settings factories.Settings
}

// load reads .env files, binds flags and resolves settings, then installs
// the process logger.
func (o *rootOptions) load(cmd *cobra.Command) error {
	factories.LoadDotEnv(".env.local", ".env")

	flags := cmd.Root().PersistentFlags()
	if f := flags.Lookup("port"); f.Changed {
		if err := o.v.BindPFlag("port", f); err != nil {
			return err
		}
	}
	if f := flags.Lookup("log-level"); f.Changed {
		if err := o.v.BindPFlag("log.level", f); err != nil {
			return err
		}
	}

	cfgFile, _ := flags.GetString("config")
	settings, err := factories.LoadSettings(o.v, cfgFile)
	if err != nil {
		return err
	}
	o.settings = settings

	logger, err := core.NewZapLogger(settings.Log.Level, settings.Log.Format)
	if err != nil {
		return err
	}
	core.SetLogger(*logger)
	return nil
}
