package config

import (
	"fmt"
	"io"
	"os"
	"path"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// InitCfg prepares configuration template for the application
func InitCfg(cmd *cobra.Command, _ []string) error {
	printFlag, _ := cmd.Flags().GetBool("print")
	outputPath, _ := cmd.Flags().GetString("output")
	overwriteFlag, _ := cmd.Flags().GetBool("yes")

	desc := NewDesc()
	if err := desc.Parse(cmd); err != nil {
		log.Errorln(err)
		return err
	}

	if printFlag {
		return PrintOption(cmd.OutOrStdout(), desc.Opt)
	}
	return DumpOption(desc.Opt, outputPath, overwriteFlag)
}

func PrintOption(w io.Writer, opt Opt) error {
	buffer, err := opt.Template()
	if err != nil {
		return err
	}
	_, err = w.Write(buffer)
	return err
}

// DumpOption writes options as yaml to outputPath. Existing file is only replaced when overwrite is set.
func DumpOption(opt Opt, outputPath string, overwrite bool) error {
	buffer, err := opt.Template()
	if err != nil {
		return err
	}

	parentPath := path.Dir(outputPath)
	if err := os.MkdirAll(parentPath, 0700); err != nil {
		return fmt.Errorf("cannot create directory %v: %w", parentPath, err)
	}

	if !overwrite {
		if _, err := os.Stat(outputPath); !os.IsNotExist(err) {
			return fmt.Errorf("configuration %v already exist, use --yes to overwrite", outputPath)
		}
	}

	log.Infoln("writing default configuration to", outputPath)
	return os.WriteFile(outputPath, buffer, 0600)
}
