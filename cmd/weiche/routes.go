package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rhuss/weiche/pkg/routing"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Show the configured routes",
	Long:  `Print every route with its backends in fallback order and how many of each backend's API keys resolve in the current environment.`,
	Args:  cobra.NoArgs,
	RunE:  runRoutes,
}

func runRoutes(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	router, _, err := newRouter(cfg)
	if err != nil {
		return err
	}
	table, err := router.Table()
	if err != nil {
		return err
	}
	printRoutes(cmd.OutOrStdout(), table, routing.EnvLookup)
	return nil
}

// printRoutes writes one block per route. Backends are listed in fallback
// order with the number of resolvable credentials.
func printRoutes(w io.Writer, t *routing.Table, lookup routing.SecretLookup) {
	name := color.New(color.FgCyan, color.Bold).SprintFunc()
	kind := color.New(color.FgBlue).SprintFunc()
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	for _, routeName := range t.Names() {
		entry, _ := t.Route(routeName)

		header := name(routeName)
		if entry.DisplayName != "" && entry.DisplayName != routeName {
			header += " " + dim("("+entry.DisplayName+")")
		}
		if effort := entry.Effort(); effort != "" {
			header += " " + dim("effort="+effort)
		}
		fmt.Fprintln(w, header)

		for i, pc := range entry.Providers {
			resolved := 0
			for _, keyName := range pc.APIKeys {
				if v, found := lookup(keyName); found && v != "" {
					resolved++
				}
			}

			status := ok(fmt.Sprintf("%d/%d keys", resolved, len(pc.APIKeys)))
			switch {
			case len(pc.APIKeys) > 0 && resolved == 0:
				status = bad(fmt.Sprintf("0/%d keys", len(pc.APIKeys)))
			case len(pc.APIKeys) == 0:
				status = dim("no keys")
			}

			line := fmt.Sprintf("  %d. %-18s %-28s %s", i+1, kind(pc.Provider), pc.Model, status)
			if pc.BaseURL != "" {
				line += " " + dim(pc.BaseURL)
			}
			fmt.Fprintln(w, strings.TrimRight(line, " "))
		}
	}
}
