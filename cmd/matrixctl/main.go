// Command matrixctl inspects and moves stored decisions without the server.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"decision-matrix/backend/internal/app"
	"decision-matrix/backend/internal/catalog"
	"decision-matrix/backend/internal/config"
	"decision-matrix/backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load configuration: %v", err)
	}
	logrus.SetLevel(logrus.WarnLevel)

	root := newRootCmd(sqliteDeps(cfg), os.Stdout)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// deps opens the store and catalog lazily so commands that need neither stay
// cheap.
type deps struct {
	openRepo    func(dbPath string) (store.Repository, io.Closer, error)
	openCatalog func(path string) (catalog.Catalog, error)
	dbPath      string
	catalogPath string
}

func sqliteDeps(cfg config.Config) *deps {
	return &deps{
		dbPath:      cfg.DBPath,
		catalogPath: cfg.CatalogPath,
		openRepo: func(dbPath string) (store.Repository, io.Closer, error) {
			c := cfg
			c.DBPath = dbPath
			db, err := app.OpenStore(c)
			if err != nil {
				return nil, nil, err
			}
			return db, db, nil
		},
		openCatalog: func(path string) (catalog.Catalog, error) {
			c := cfg
			c.CatalogPath = path
			return app.OpenCatalog(c)
		},
	}
}

// withRepo runs fn against the opened repository and closes it afterwards.
func (d *deps) withRepo(fn func(store.Repository) error) error {
	repo, closer, err := d.openRepo(d.dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := closer.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close store")
		}
	}()
	return fn(repo)
}

func newRootCmd(d *deps, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "matrixctl",
		Short:        "Inspect, export and import decision matrices",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SetErr(out)
	root.PersistentFlags().StringVar(&d.dbPath, "db", d.dbPath, "path to the sqlite database")
	root.PersistentFlags().StringVar(&d.catalogPath, "catalog", d.catalogPath, "product catalog file (json or csv); built-in catalog when empty")

	root.AddCommand(
		newListCmd(d),
		newShowCmd(d),
		newResultsCmd(d),
		newExportCmd(d),
		newImportCmd(d),
		newTemplatesCmd(),
		newCatalogCmd(d),
	)
	return root
}
