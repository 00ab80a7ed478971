package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rhuss/weiche/pkg/api"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the gateway serves",
	Long:  `Print the model list derived from the route table, as returned by GET /v1/models.`,
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

func init() {
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "print the raw /v1/models response")
}

func runModels(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	router, _, err := newRouter(cfg)
	if err != nil {
		return err
	}
	list, err := router.Models()
	if err != nil {
		return err
	}
	if modelsJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	printModels(cmd.OutOrStdout(), list)
	return nil
}

func printModels(w io.Writer, list *api.ModelList) {
	id := color.New(color.FgCyan).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	for _, m := range list.Data {
		line := id(m.ID)
		if m.DisplayName != "" && m.DisplayName != m.ID {
			line += "  " + m.DisplayName
		}
		if m.ContextLength > 0 {
			line += "  " + dim(fmt.Sprintf("ctx=%d", m.ContextLength))
		}
		if m.Description != "" {
			line += "  " + dim(m.Description)
		}
		fmt.Fprintln(w, line)
	}
}
