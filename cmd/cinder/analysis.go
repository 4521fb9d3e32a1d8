package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cinderlab/cinder/internal/analysis"
	"github.com/cinderlab/cinder/internal/conditions"
	"github.com/spf13/cobra"
)

func newAnnotateCmd(c *cli) *cobra.Command {
	var (
		dir         string
		samples     []string
		columnRange string
		indexColumn string
		assign      []string
		out         string
	)

	cmd := &cobra.Command{
		Use:   "annotate <file>",
		Short: "Write a sample annotation for an unprocessed data file",
		Long: "annotate assigns sample columns of a tracked unprocessed file to conditions and writes the " +
			"result as a tab-separated file into the sample_annotation category. Conditions are guessed " +
			"from the sample names unless set with --set sample=condition.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openApp()
			if err != nil {
				return err
			}
			snap, err := c.loadProject(optionalArg(dir))
			if err != nil {
				return err
			}

			dataFile := filepath.Join(snap.DataPath, string(analysis.CategoryUnprocessed), args[0])
			header, err := conditions.ReadHeader(a.FS, dataFile)
			if err != nil {
				return err
			}
			if columnRange != "" {
				picked, err := conditions.SelectRange(header, columnRange)
				if err != nil {
					return err
				}
				samples = append(samples, picked...)
			}
			if len(samples) == 0 {
				return fmt.Errorf("no sample columns given, use --samples or --columns")
			}
			known := make(map[string]bool, len(header))
			for _, col := range header {
				known[col] = true
			}
			for _, s := range samples {
				if !known[s] {
					return fmt.Errorf("%w: %q", conditions.ErrUnknownColumn, s)
				}
			}
			if indexColumn != "" && !known[indexColumn] {
				return fmt.Errorf("%w: %q", conditions.ErrUnknownColumn, indexColumn)
			}

			assignment := conditions.Guess(samples)
			for _, pair := range assign {
				sample, condition, ok := strings.Cut(pair, "=")
				if !ok {
					return fmt.Errorf("invalid --set %q, want sample=condition", pair)
				}
				if err := assignment.Set(sample, condition); err != nil {
					return err
				}
			}

			if out == "" {
				out = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0])) + "_annotation.tsv"
			}
			annotationDir := filepath.Join(snap.DataPath, string(analysis.CategoryAnnotation))
			if err := a.FS.MkdirAll(annotationDir, 0o755); err != nil {
				return err
			}
			if err := conditions.WriteAnnotation(a.FS, filepath.Join(annotationDir, out), assignment); err != nil {
				return err
			}

			settings, err := conditions.LoadSettings(a.FS, dataFile)
			if err != nil {
				return err
			}
			settings.SampleColumns = assignment.Entries()
			if indexColumn != "" {
				settings.IndexColumn = indexColumn
			}
			if err := conditions.SaveSettings(a.FS, dataFile, settings); err != nil {
				return err
			}

			result, err := a.Projects.Save(cmd.Context(), snap)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d samples to %s/%s\n", assignment.Len(), analysis.CategoryAnnotation, out)
			printRefresh(cmd, snap, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "project", "", "Project folder (defaults to the current directory)")
	cmd.Flags().StringSliceVar(&samples, "samples", nil, "Sample columns, comma separated")
	cmd.Flags().StringVar(&columnRange, "columns", "", "Sample columns by zero-based index range, e.g. 3-7")
	cmd.Flags().StringVar(&indexColumn, "index-col", "", "Column identifying rows")
	cmd.Flags().StringArrayVar(&assign, "set", nil, "Override a guessed condition as sample=condition")
	cmd.Flags().StringVar(&out, "out", "", "Annotation file name (defaults to <file>_annotation.tsv)")
	return cmd
}

func newAnalyzeCmd(c *cli) *cobra.Command {
	p := analysis.DefaultParams()
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "analyze [dir]",
		Short: "Run the differential analysis container over tracked files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openApp()
			if err != nil {
				return err
			}
			snap, err := c.loadProject(args)
			if err != nil {
				return err
			}
			if dryRun {
				if err := p.Validate(snap); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(a.Analyzer.Command(snap, p), " "))
				return nil
			}

			result, err := a.Analyzer.Run(cmd.Context(), snap, p)
			if err != nil {
				return err
			}
			refresh, err := a.Projects.Save(cmd.Context(), snap)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Analysis written to %s\n", result.OutputFile)
			printRefresh(cmd, snap, refresh)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.Unprocessed, "unprocessed", "", "Input file in the unprocessed category")
	f.StringVar(&p.Annotation, "annotation", "", "Annotation file in the sample_annotation category")
	f.StringVar(&p.Comparison, "comparison", "", "Comparison matrix in the comparison_matrix category")
	f.StringVar(&p.Output, "output", "", "Output file name in the differential_analysis category")
	f.StringSliceVar(&p.IndexColumns, "index-cols", nil, "Index columns, comma separated")
	f.Float64Var(&p.ColumnNAThreshold, "col-na", p.ColumnNAThreshold, "Column missing-value filter threshold")
	f.Float64Var(&p.RowNAThreshold, "row-na", p.RowNAThreshold, "Row missing-value filter threshold")
	f.StringVar(&p.Imputation, "imputation", p.Imputation, "Imputation method")
	f.StringVar(&p.Normalization, "normalization", p.Normalization, "Normalization method")
	f.StringVar(&p.Aggregation, "aggregation", p.Aggregation, "Aggregation method")
	f.StringVar(&p.AggregationColumn, "aggregation-col", "", "Column to aggregate rows by")
	f.BoolVar(&dryRun, "dry-run", false, "Print the container command instead of running it")
	return cmd
}
