// Command districtloader bulk-loads a directory of district shapefiles
// into the shapefile-district tables. It is an admin-time utility, out of
// scope per the resolution service's own Non-goals; it exists only so the
// read path in internal/shapefile has somewhere its rows come from.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/nysage/atlas/internal/config"
	"github.com/nysage/atlas/internal/dbpool"
	"github.com/nysage/atlas/internal/geospatial/shpload"
	"github.com/spf13/cobra"
)

func main() {
	var (
		dir       string
		nameField string
		codeField string
	)

	root := &cobra.Command{
		Use:   "districtloader",
		Short: "Load district shapefiles into the shapefile-district tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.MustLoad()
			log := slog.New(slog.NewTextHandler(os.Stdout, nil))

			ctx := cmd.Context()
			pool, err := dbpool.New(ctx, cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name)
			if err != nil {
				return fmt.Errorf("districtloader: connect: %w", err)
			}
			defer pool.Close()

			if err := shpload.LoadDirectory(ctx, pool, dir, nameField, codeField); err != nil {
				return fmt.Errorf("districtloader: load: %w", err)
			}

			log.InfoContext(ctx, "districtloader: load complete", "dir", dir)
			return nil
		},
	}

	root.Flags().StringVar(&dir, "dir", ".", "directory containing per-district-type .shp files")
	root.Flags().StringVar(&nameField, "name-field", "NAME", "shapefile attribute holding the district display name")
	root.Flags().StringVar(&codeField, "code-field", "CODE", "shapefile attribute holding the district code")

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
