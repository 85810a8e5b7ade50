package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"yeti/core"
	"yeti/util"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ttpImportFile is the YAML layout accepted by 'ttp import'
type ttpImportFile struct {
	TTPs []struct {
		Name        string   `yaml:"name"`
		KillChain   string   `yaml:"killchain"`
		Description string   `yaml:"description"`
		Tags        []string `yaml:"tags"`
	} `yaml:"ttps"`
}

// NewTTPCmd creates the 'ttp' command with its subcommands.
func NewTTPCmd() *cobra.Command {
	ttpCmd := &cobra.Command{
		Use:   "ttp",
		Short: "Manage TTPs",
		Long:  "Import and list tactics, techniques and procedures classified by kill-chain stage.",
	}
	addPersistentFlags(ttpCmd)

	ttpCmd.AddCommand(newTTPImportCmd())
	ttpCmd.AddCommand(newTTPListCmd())
	ttpCmd.AddCommand(newTTPKillChainCmd())
	return ttpCmd
}

func newTTPImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import TTPs from a YAML file",
		Long: `Import TTPs from a YAML file of the form:

  ttps:
    - name: Spearphishing
      killchain: "3"
      tags: [email]

Every entry is validated before anything is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttps, err := loadTTPFile(args[0])
			if err != nil {
				return err
			}
			return withEnv(func(ctx context.Context, env *cliEnv) error {
				return importTTPs(ctx, cmd, env, ttps)
			})
		},
	}
}

// loadTTPFile reads and validates every TTP in path
func loadTTPFile(path string) ([]*core.TTP, error) {
	absPath, err := util.ResolveImportPath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid file path: %w", err)
	}

	fileInfo, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if fileInfo.Size() > maxImportFileSize {
		return nil, fmt.Errorf("file too large: maximum size is %d bytes, got %d bytes", maxImportFileSize, fileInfo.Size())
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file ttpImportFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(file.TTPs) == 0 {
		return nil, fmt.Errorf("no TTPs found in %s", path)
	}

	ttps := make([]*core.TTP, 0, len(file.TTPs))
	for i, entry := range file.TTPs {
		ttp, err := core.NewTTP(entry.Name, entry.KillChain)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%q): %w", i+1, entry.Name, err)
		}
		ttp.Description = entry.Description
		ttp.Tag(entry.Tags...)
		if err := ttp.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d (%q): %w", i+1, entry.Name, err)
		}
		ttps = append(ttps, ttp)
	}
	return ttps, nil
}

func importTTPs(ctx context.Context, cmd *cobra.Command, env *cliEnv, ttps []*core.TTP) error {
	out := cmd.OutOrStdout()

	var s *spinner.Spinner
	if !quiet && !outputJSON {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
		s.Suffix = fmt.Sprintf(" Importing %d TTPs...", len(ttps))
		s.Start()
	}

	imported := make([]map[string]interface{}, 0, len(ttps))
	failures := make([]string, 0)
	for _, ttp := range ttps {
		if err := env.ttps.Create(ctx, nil, ttp); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", ttp.Name, err))
			continue
		}
		imported = append(imported, ttp.Info())
	}

	if s != nil {
		s.Stop()
	}
	env.logger.Infow("TTP import finished", "imported", len(imported), "failed", len(failures))

	if outputJSON {
		if err := outputAsJSON(out, map[string]interface{}{"imported": imported, "failed": failures}); err != nil {
			return err
		}
	} else {
		for _, f := range failures {
			errorColor.Fprintf(out, "✗ Failed to import %s\n", f)
		}
		if !quiet {
			for _, info := range imported {
				successColor.Fprintf(out, "✓ Imported TTP: %s\n", info["name"])
			}
			fmt.Fprintf(out, "\nImported %d TTPs, %d failed\n", len(imported), len(failures))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d TTPs failed to import", len(failures), len(ttps))
	}
	return nil
}

func newTTPListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List TTPs ordered by kill chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(ctx context.Context, env *cliEnv) error {
				ttps, err := env.ttps.List(ctx)
				if err != nil {
					return fmt.Errorf("failed to list TTPs: %w", err)
				}
				if outputJSON {
					infos := make([]map[string]interface{}, len(ttps))
					for i := range ttps {
						infos[i] = ttps[i].Info()
					}
					return outputAsJSON(cmd.OutOrStdout(), infos)
				}
				renderTTPTable(cmd.OutOrStdout(), ttps)
				return nil
			})
		},
	}
}

func newTTPKillChainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "killchain",
		Short: "Print the kill-chain stages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputJSON {
				steps := make([]map[string]string, len(core.KillChainSteps))
				for i, step := range core.KillChainSteps {
					steps[i] = map[string]string{"code": step.String(), "label": step.Label()}
				}
				return outputAsJSON(cmd.OutOrStdout(), steps)
			}
			renderKillChain(cmd.OutOrStdout())
			return nil
		},
	}
}
