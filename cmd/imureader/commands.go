package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/aldas/go-imucan-client/internal/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "imureader",
		Short:         "read telemetry of IMU devices on CAN bus",
		Long:          "read telemetry (angle, angular rate, acceleration, quaternion) of IMU devices on CAN bus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	readCmd := &cobra.Command{
		Use:        "read",
		SuggestFor: []string{"re", "rea", "stream"},
		Short:      "read enables IMU and prints its state until interrupted",
		Long: `read opens transport, resolves IMU device (configured model/number or first IMU seen on the bus),
sends enable frame and prints IMU state after each report until interrupted.
Configuration is read by the following order:
1. path specified in --config flag
2. path defined IMUCAN_CONFIG environment variable
3. default location $HOME/.config/imucan/config.yaml, /etc/imucan/config.yaml, current directory
The parameters in the configuration file will be overwritten by the following order:
1. command line arguments
2. environment variables
`,
		Example: `  imureader read --interface can0 --model 2 --number 1
  imureader read --transport slcan --device /dev/ttyACM0 --bitrate 500000
  imureader read --transport candump --device ./candump-2022-10-11.log --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, (*app).read)
		},
	}
	config.AddFlags(readCmd.Flags())

	captureCmd := &cobra.Command{
		Use:        "capture",
		SuggestFor: []string{"cap", "probe", "scan"},
		Short:      "capture prints model and number of first IMU seen on the bus",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, (*app).capture)
		},
	}
	config.AddFlags(captureCmd.Flags())

	enableCmd := &cobra.Command{
		Use:   "enable",
		Short: "enable sends enable frame to IMU",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, (*app).enable)
		},
	}
	config.AddFlags(enableCmd.Flags())

	disableCmd := &cobra.Command{
		Use:   "disable",
		Short: "disable sends disable frame to IMU",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, (*app).disable)
		},
	}
	config.AddFlags(disableCmd.Flags())

	initCmd := &cobra.Command{
		Use:        "init",
		SuggestFor: []string{"ini", "in"},
		Short:      "init create a configuration template",
		Long: `init create a configuration template.
If --print flag is present, the configuration will be printed to stdout.
If --output / -o flag is present, the configuration will be saved to the path specified
Otherwise init will output configuration file to $HOME/.config/imucan/config.yaml
If --yes / -y flag is present, existing configuration will be overwritten
`,
		Example: `  imureader init --print
  imureader init --output /path/to/config.yaml
  imureader init -o /path/to/config.yaml -y`,
		RunE: config.InitCfg,
	}
	initCmd.Flags().String("config", "", "configuration file used as template base")
	initCmd.Flags().Bool("print", false, "print config to stdout")
	initCmd.Flags().BoolP("yes", "y", false, "overwrite")
	initCmd.Flags().StringP("output", "o", config.DefaultConfig, "specify output path")

	rootCmd.AddCommand(readCmd, captureCmd, enableCmd, disableCmd, initCmd)
	return rootCmd
}

func runWithApp(cmd *cobra.Command, run func(a *app, ctx context.Context) error) error {
	desc := config.NewDesc()
	if err := desc.Parse(cmd); err != nil {
		return err
	}
	desc.PostParse()
	if err := desc.Opt.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := newApp(desc.Opt, cmd.OutOrStdout())
	return run(a, ctx)
}
