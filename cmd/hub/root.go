package main

import "github.com/spf13/cobra"

const defaultConfigPath = "configs/hub.local.yaml"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "hub",
		Short:         "Cognitive hub: routes robots, controllers and speech sessions",
		Long:          "hub bridges robot devices and controller apps over websockets and runs ASR, TTS, NLU and skills sessions for connected devices.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newTokenCmd(),
		newVersionCmd(),
	)

	return rootCmd
}
