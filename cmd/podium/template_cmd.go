package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/podium/internal/template"
)

var templateCmd = &cobra.Command{
	Use:     "template",
	Short:   "Manage contract templates",
	GroupID: "contracts",
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the latest version of every template",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tpls, err := podiumClient.ListTemplates(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(tpls)
			return nil
		}
		printTemplateList(os.Stdout, tpls)
		return nil
	},
}

var templateShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a template's sections and variables",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetInt("version")
		tpl, err := podiumClient.GetTemplate(context.Background(), args[0], version)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(tpl)
			return nil
		}
		printTemplate(os.Stdout, tpl)
		return nil
	},
}

var templateCreateCmd = &cobra.Command{
	Use:   "create <file.toml>",
	Short: "Create a template, or a new version of an existing one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tpl, err := template.LoadFile(args[0])
		if err != nil {
			return err
		}
		created, err := podiumClient.CreateTemplate(context.Background(), tpl)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(created)
			return nil
		}
		fmt.Printf("Created template %s version %d\n", created.ID, created.Version)
		return nil
	},
}

var templatePreviewCmd = &cobra.Command{
	Use:   "preview <id>",
	Short: "Render a template against a deal without persisting anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := createRequestFromFlags(cmd)
		if err != nil {
			return err
		}
		p, err := podiumClient.Preview(context.Background(), args[0], req)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(p)
			return nil
		}
		fmt.Println(p.DocumentBody)
		return nil
	},
}

func init() {
	templateShowCmd.Flags().Int("version", 0, "template version (default latest)")
	addCreateRequestFlags(templatePreviewCmd)

	templateCmd.AddCommand(templateListCmd)
	templateCmd.AddCommand(templateShowCmd)
	templateCmd.AddCommand(templateCreateCmd)
	templateCmd.AddCommand(templatePreviewCmd)
}
