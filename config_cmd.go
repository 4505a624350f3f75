package main

import (
	"fmt"

	"voicerelay/factories"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

const redacted = "********"

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with credentials redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := sonic.ConfigStd.MarshalIndent(redact(opts.settings), "", "  ")
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func redact(s factories.Settings) factories.Settings {
	for _, key := range []*string{
		&s.STT.Google.APIKey,
		&s.LLM.Mistral.APIKey,
		&s.LLM.OpenAI.APIKey,
		&s.LLM.Groq.APIKey,
		&s.TTS.Gemini.APIKey,
		&s.TTS.ElevenLabs.APIKey,
		&s.History.Redis.Password,
	} {
		if *key != "" {
			*key = redacted
		}
	}
	return s
}
