// Package cliapp wires the bitschema command-line tool: a cobra
// command tree over the core model/layout/codec/jsonschema/render/
// codegen packages, with zap for structured diagnostics.
package cliapp

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bitschema/bitschema/internal/codegen"
	"github.com/bitschema/bitschema/internal/jsonschema"
	"github.com/bitschema/bitschema/internal/layout"
	"github.com/bitschema/bitschema/internal/model"
	"github.com/bitschema/bitschema/internal/render"
	"github.com/bitschema/bitschema/internal/schemaio"
)

// Settings configures the root command independent of any single
// invocation's flags, mirroring the teacher's Settings{WorkingDir}.
type Settings struct {
	WorkingDir string
}

// NewRoot builds the bitschema root command.
func NewRoot(s Settings) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "bitschema",
		Short:         "Compile declarative bit-packing schemas into layouts, codecs, and derived artifacts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	var logger *zap.Logger
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(logLevel)
		if err != nil {
			return err
		}
		logger = l
		return nil
	}

	root.AddCommand(
		newValidateCmd(s, &logger),
		newVisualizeCmd(s, &logger),
		newJSONSchemaCmd(s, &logger),
		newGenerateCmd(s, &logger),
	)

	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zap.NewDevelopmentEncoderConfig().EncodeTime

	var lvl zap.AtomicLevel
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	cfg.Level = lvl

	return cfg.Build()
}

// loadSchema reads and validates the schema at path, logging the
// attempt and its outcome.
func loadSchema(logger *zap.Logger, path string) (*model.Schema, error) {
	start := time.Now()
	logger.Debug("loading schema", zap.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %q: %w", path, err)
	}

	raw, err := schemaio.Read(path, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema file %q: %w", path, err)
	}

	s, err := model.Validate(raw)
	if err != nil {
		return nil, err
	}

	logger.Info("loaded schema",
		zap.String("name", s.Name),
		zap.Int("fields", len(s.Fields)),
		zap.Duration("took", time.Since(start)))

	return s, nil
}

func planSchema(logger *zap.Logger, s *model.Schema) ([]layout.FieldLayout, error) {
	layouts, total, err := layout.Plan(s)
	if err != nil {
		return nil, err
	}
	logger.Info("planned layout", zap.Int("total_bits", total))
	return layouts, nil
}

func newValidateCmd(s Settings, logger **zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <schema-file>",
		Short: "Validate a schema document and report the first error, if any",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadSchema(*logger, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is valid")
			return nil
		},
	}
}

func newVisualizeCmd(s Settings, logger **zap.Logger) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "visualize <schema-file>",
		Short: "Compute and render a schema's bit layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := loadSchema(*logger, args[0])
			if err != nil {
				return err
			}
			layouts, err := planSchema(*logger, sch)
			if err != nil {
				return err
			}

			out := renderLayout(format, layouts)
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "auto", "ascii, markdown, terminal, or auto")
	return cmd
}

// renderLayout picks ASCII, Markdown, or the lipgloss-styled terminal
// variant; "auto" uses Terminal only when stdout is an interactive TTY.
func renderLayout(format string, layouts []layout.FieldLayout) string {
	switch format {
	case "markdown":
		return render.Markdown(layouts)
	case "terminal":
		return render.Terminal(layouts)
	case "ascii":
		return render.ASCII(layouts)
	default:
		if isatty.IsTerminal(os.Stdout.Fd()) {
			return render.Terminal(layouts)
		}
		return render.ASCII(layouts)
	}
}

func newJSONSchemaCmd(s Settings, logger **zap.Logger) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "jsonschema <schema-file>",
		Short: "Emit a JSON Schema Draft 2020-12 document for a schema's record shape",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := loadSchema(*logger, args[0])
			if err != nil {
				return err
			}
			layouts, err := planSchema(*logger, sch)
			if err != nil {
				return err
			}

			doc := jsonschema.Generate(sch, layouts)
			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal JSON Schema: %w", err)
			}

			return writeOutput(cmd, outPath, data, *logger)
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "output file (default: stdout)")
	return cmd
}

func newGenerateCmd(s Settings, logger **zap.Logger) *cobra.Command {
	var outPath, pkg string

	cmd := &cobra.Command{
		Use:   "generate <schema-file>",
		Short: "Emit a native Go accessor type for a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := loadSchema(*logger, args[0])
			if err != nil {
				return err
			}
			layouts, err := planSchema(*logger, sch)
			if err != nil {
				return err
			}

			src, err := codegen.Generate(sch, layouts, pkg)
			if err != nil {
				return err
			}

			return writeOutput(cmd, outPath, []byte(src), *logger)
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&pkg, "package", "bitschema", "package name for the generated Go file")
	return cmd
}

func writeOutput(cmd *cobra.Command, outPath string, data []byte, logger *zap.Logger) error {
	if outPath == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %q: %w", outPath, err)
	}
	logger.Info("wrote artifact", zap.String("path", outPath), zap.Int("bytes", len(data)))
	return nil
}
