package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"decision-matrix/backend/internal/catalog"
	"decision-matrix/backend/internal/matrix"
	"decision-matrix/backend/internal/scoring"
	"decision-matrix/backend/internal/session"
	"decision-matrix/backend/internal/store"
)

func newListCmd(d *deps) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored decisions, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return d.withRepo(func(repo store.Repository) error {
				var (
					decisions []matrix.Decision
					err       error
				)
				if search = strings.TrimSpace(search); search != "" {
					decisions, err = repo.Search(cmd.Context(), search)
				} else {
					decisions, err = repo.List(cmd.Context())
				}
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTITLE\tCRITERIA\tALTERNATIVES\tCOMPLETE\tUPDATED")
				for _, dec := range decisions {
					s := session.Summarize(dec)
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.0f%%\t%s\n",
						s.ID, s.Title, s.CriteriaCount, s.AlternativesCount, s.Completeness*100, s.UpdatedAt.Format("2006-01-02 15:04"))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "only decisions whose title contains this text")
	return cmd
}

func newShowCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one decision as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return d.withRepo(func(repo store.Repository) error {
				dec, err := repo.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), dec)
			})
		},
	}
}

func newResultsCmd(d *deps) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "results <id>",
		Short: "Rank the alternatives of a decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return d.withRepo(func(repo store.Repository) error {
				dec, err := repo.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				results := scoring.ComputeResults(dec)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), results)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "RANK\tALTERNATIVE\tSCORE\tPERCENT\tSTRENGTHS\tWEAKNESSES")
				for _, r := range results {
					fmt.Fprintf(tw, "%d\t%s\t%.2f / %.2f\t%d%%\t%s\t%s\n",
						r.Rank, r.Name, r.TotalScore, r.MaxPossible, r.Percentage,
						strings.Join(r.Strengths, ", "), strings.Join(r.Weaknesses, ", "))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func newExportCmd(d *deps) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every decision as a JSON array",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return d.withRepo(func(repo store.Repository) error {
				decisions, err := repo.ExportAll(cmd.Context())
				if err != nil {
					return err
				}
				if decisions == nil {
					decisions = []matrix.Decision{}
				}
				if output == "" || output == "-" {
					return writeJSON(cmd.OutOrStdout(), decisions)
				}
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				if err := writeJSON(f, decisions); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d decisions to %s\n", len(decisions), output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write; stdout when empty")
	return cmd
}

func newImportCmd(d *deps) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import decisions from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			importMode, err := store.ParseImportMode(mode)
			if err != nil {
				return err
			}
			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			var decisions []matrix.Decision
			if err := json.Unmarshal(raw, &decisions); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			for i, dec := range decisions {
				if err := matrix.ValidateDecision(dec); err != nil {
					return fmt.Errorf("decision %d: %w", i, err)
				}
			}
			return d.withRepo(func(repo store.Repository) error {
				if err := repo.ImportAll(cmd.Context(), decisions, importMode); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d decisions (%s)\n", len(decisions), importMode)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(store.ModeMerge), "merge or replace")
	return cmd
}

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the built-in decision templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tCRITERIA")
			for _, t := range matrix.Templates() {
				names := make([]string, 0, len(t.Criteria))
				for _, c := range t.Criteria {
					names = append(names, c.Name)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Category, strings.Join(names, ", "))
			}
			return tw.Flush()
		},
	}
}

func newCatalogCmd(d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the product catalog",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "search <query>",
			Short: "Fuzzy-search products by name, brand or category",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := d.openCatalog(d.catalogPath)
				if err != nil {
					return err
				}
				return writeProducts(cmd.OutOrStdout(), c.Search(strings.Join(args, " ")))
			},
		},
		&cobra.Command{
			Use:   "category [name]",
			Short: "List a category, or every category when no name is given",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := d.openCatalog(d.catalogPath)
				if err != nil {
					return err
				}
				if len(args) == 0 {
					for _, name := range c.Categories() {
						fmt.Fprintln(cmd.OutOrStdout(), name)
					}
					return nil
				}
				return writeProducts(cmd.OutOrStdout(), c.GetByCategory(args[0]))
			},
		},
	)
	return cmd
}

func writeProducts(out io.Writer, products []catalog.Product) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tBRAND\tPRICE")
	for _, p := range products {
		price := "-"
		if p.Price != nil {
			price = fmt.Sprintf("%.2f", *p.Price)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Brand, price)
	}
	return tw.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}
