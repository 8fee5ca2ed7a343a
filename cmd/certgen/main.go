package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/flanksource/certgen"
	"github.com/flanksource/certgen/names"
	"github.com/flanksource/certgen/shutdown"
	"github.com/flanksource/commons/logger"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Build information (set by goreleaser)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "certgen",
		Short: "Generate one certificate per name from a template",
		Long: `certgen writes a name onto a background template for every entry of a
name list and packs the results into a ZIP archive. Raster output (PNG, JPEG)
and vector output (PDF, SVG, EPS) share the same placement, so a layout tuned
with 'certgen preview' holds for every format.`,
		Example: `  certgen export --front frente.png --names nomes.csv --font fonte.ttf
  certgen export --job certificados.yaml --pdf -o certificados.zip
  certgen preview --job certificados.yaml --name "Maria da Silva"
  certgen job example > certificados.yaml`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			certgen.Flags.UseFlags()
		},
	}
	certgen.BindAllFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newPreviewCommand())
	rootCmd.AddCommand(newNamesCommand())
	rootCmd.AddCommand(newJobCommand())
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

func newExportCommand() *cobra.Command {
	var options certgen.ExportOptions

	cmd := &cobra.Command{
		Use:   "export [flags]",
		Short: "Render every name and write the ZIP archive",
		Long: `Render a certificate for every name in the list and write them to a ZIP
archive. The export is all-or-nothing: if any name fails, no archive is
written.`,
		Example: `  certgen export --front frente.png --names nomes.txt --x 1000 --y 600
  certgen export --job certificados.yaml --format "PDF (vetor)"
  certgen export --job certificados.yaml --jpeg --tier print --concurrency 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := options.Job(cmd.Flags())
			if err != nil {
				return err
			}

			ctx, stop := shutdown.WithSignals(cmd.Context())
			defer stop()

			res, err := certgen.Export(ctx, job)
			if err != nil {
				return err
			}
			if err := writeAtomic(job.Output, res.Archive); err != nil {
				return err
			}
			fmt.Fprint(os.Stderr, res.Report.Render(os.Stderr, certgen.Flags.NoColor))
			logger.Infof("wrote %s", job.Output)
			return nil
		},
	}
	certgen.BindPFlags(cmd.Flags(), &options)
	return cmd
}

// writeAtomic writes data next to path and renames it into place, so an
// interrupted run never leaves a truncated archive behind.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	remove := shutdown.AddHookWithPriority("remove "+tmp.Name(), shutdown.PriorityOutput, func() {
		_ = os.Remove(tmp.Name())
	})
	defer remove()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		logger.Warnf("failed to set permissions on %s: %v", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func newPreviewCommand() *cobra.Command {
	var options certgen.ExportOptions
	var name string

	cmd := &cobra.Command{
		Use:   "preview [flags]",
		Short: "Render the front side for one name as PNG",
		Long: `Render a single certificate front as PNG to check the placement before a
full export. The name does not need to be in the name list.`,
		Example: `  certgen preview --front frente.png --name "José Silva" -o preview.png
  certgen preview --job certificados.yaml --name "Maria da Silva" --y 620`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := options.Job(cmd.Flags())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("output") {
				job.Output = "preview.png"
			}
			data, _, err := certgen.Preview(cmd.Context(), job, name)
			if err != nil {
				return err
			}
			if err := writeAtomic(job.Output, data); err != nil {
				return err
			}
			logger.Infof("wrote %s", job.Output)
			return nil
		},
	}
	certgen.BindPFlags(cmd.Flags(), &options)
	cmd.Flags().StringVar(&name, "name", "Nome Sobrenome", "Name to render")
	return cmd
}

func newNamesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "names <file>",
		Short: "Print the names read from a .txt or .csv list",
		Long: `Read a name list the same way export does (encoding detection, CSV
delimiter sniffing, blank lines dropped) and print the result as YAML.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := names.ReadFile(args[0])
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(list)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			logger.Infof("%d names", len(list))
			return nil
		},
	}
}

func newJobCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Job file utilities",
	}
	cmd.AddCommand(newJobExampleCommand())
	cmd.AddCommand(newJobShowCommand())
	return cmd
}

func newJobExampleCommand() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "example",
		Short: "Generate an example job file",
		RunE: func(cmd *cobra.Command, args []string) error {
			example, err := certgen.ExampleJob().YAML()
			if err != nil {
				return err
			}
			if outputFile == "" {
				fmt.Print(example)
				return nil
			}
			if err := os.WriteFile(outputFile, []byte(example), 0644); err != nil {
				return fmt.Errorf("failed to write example job: %w", err)
			}
			fmt.Printf("Example job written to %s\n", outputFile)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file for the example job")
	return cmd
}

func newJobShowCommand() *cobra.Command {
	var options certgen.ExportOptions

	cmd := &cobra.Command{
		Use:   "show [flags]",
		Short: "Print the job after flags are applied",
		Long:  `Print the effective job as YAML, so a layout tuned with flags can be saved to a job file.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := options.Job(cmd.Flags())
			if err != nil {
				return err
			}
			out, err := job.YAML()
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
	certgen.BindPFlags(cmd.Flags(), &options)
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(getVersionInfo())
		},
	}
}

func getVersionInfo() string {
	return fmt.Sprintf("certgen %s (commit: %s, built: %s, go: %s)",
		version, commit, date, runtime.Version())
}
