package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"carteira/internal/cli"
	"carteira/internal/config"
	gsheet "carteira/internal/sheets/google"
)

// sheets-check probes the configured spreadsheet: connectivity, worksheet
// presence and row counts per dataset. Run it after pointing the app at a
// new spreadsheet or rotating service account credentials.
func main() {
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline for the checks")
	flag.Parse()

	cli.LoadEnvFile()

	cfg := config.Load()
	if cfg.GoogleSpreadsheetID == "" {
		log.Fatalf("set GOOGLE_SPREADSHEET_ID")
	}
	if cfg.GoogleServiceAccountJSON == "" && cfg.GoogleServiceAccountFile == "" {
		log.Fatalf("set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		log.Fatalf("sheets client: %v", err)
	}

	title, err := client.Title(ctx)
	if err != nil {
		log.Fatalf("connectivity probe failed: %v", err)
	}
	fmt.Printf("Spreadsheet: %q (%s)\n", title, cfg.GoogleSpreadsheetID)

	failed := 0
	for _, spec := range client.Datasets() {
		ds, err := client.ReadRecords(ctx, spec.Name)
		if err != nil {
			fmt.Printf("  FAIL %-22s worksheet %q: %v\n", spec.Name, spec.Worksheet, err)
			failed++
			continue
		}
		fmt.Printf("  ok   %-22s worksheet %q: %d rows, %d columns\n",
			spec.Name, spec.Worksheet, ds.Len(), len(ds.Columns))
	}

	if failed > 0 {
		fmt.Printf("%d dataset(s) failed\n", failed)
		os.Exit(1)
	}
	fmt.Println("All datasets readable.")
}
