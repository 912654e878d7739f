package main

import (
	"fmt"

	"github.com/c360studio/adpilot/config"
	"github.com/c360studio/adpilot/imagegen"
	"github.com/c360studio/adpilot/model"
	"github.com/c360studio/adpilot/output"
	"github.com/spf13/cobra"
)

func diagramCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "diagram",
		Short: "Print the campaign workflow diagram",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags, newLogger(flags.logLevel))
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), output.Diagram(diagramInfo(cfg)))
			return err
		},
	}
}

func diagramInfo(cfg *config.Config) output.DiagramInfo {
	reg := cfg.Registry()
	endpointModel := func(capability string) string {
		if ep := reg.GetEndpoint(reg.Resolve(model.Capability(capability))); ep != nil {
			return ep.Model
		}
		return ""
	}

	image := cfg.Image.Model
	switch {
	case cfg.Image.Provider == config.ImageProviderNone:
		image = "placeholder"
	case image == "" && cfg.Image.Provider == config.ImageProviderGenAI:
		image = imagegen.DefaultGenAIModel
	case image == "" && cfg.Image.Provider == config.ImageProviderOpenAI:
		image = openAIImageModel
	case image == "":
		image = imagegen.DefaultModel
	}

	return output.DiagramInfo{
		WriterModel:   endpointModel(cfg.Campaign.Writer.Capability),
		ReviewerModel: endpointModel(cfg.Campaign.Reviewer.Capability),
		ImageModel:    image,
		MaxRetries:    cfg.Campaign.MaxRetries,
	}
}
