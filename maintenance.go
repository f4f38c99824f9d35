package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate-db",
	Short: "Add any missing expected columns to the leads table",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		added, err := db.Migrate(cmd.Context())
		if err != nil {
			return err
		}
		if len(added) == 0 {
			logger.Info("[migrate] Schema already up to date")
			return nil
		}
		logger.Info("[migrate] Added columns: %s", strings.Join(added, ", "))
		return nil
	},
}

var clearSheetCmd = &cobra.Command{
	Use:   "clear-sheet",
	Short: "Remove every data row from the spreadsheet, keeping the header",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.SheetsEnabled() {
			return eris.New("clear-sheet: GOOGLE_SHEETS_ID is not set")
		}
		sheet, err := openSheet(cfg, logger)
		if err != nil {
			return err
		}
		if err := sheet.Clear(cmd.Context()); err != nil {
			return err
		}
		logger.Info("[sheets] Cleared data rows in %s", sheet.URL())
		return nil
	},
}

var checkEnvCmd = &cobra.Command{
	Use:   "check-env",
	Short: "Report which credentials and outputs are configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Setting", "Value"})
		t.AppendRows([]table.Row{
			{"Target", cfg.Location()},
			{"Sources", strings.Join(cfg.Scrape.Sources, ", ")},
			{"ANTHROPIC_API_KEY", mask(cfg.Anthropic.APIKey)},
			{"Model", cfg.Anthropic.Model},
			{"GOOGLE_SHEETS_ID", orUnset(cfg.Google.SheetsID)},
			{"Google credentials", fileStatus(cfg.Google.CredentialsPath)},
			{"EMAIL_USER", orUnset(cfg.Email.User)},
			{"EMAIL_PASSWORD", mask(cfg.Email.Password)},
			{"Store", cfg.Store.Driver},
			{"Price history", cfg.HistoryPath()},
			{"Schedule", fmt.Sprintf("%s / %s (%s)", cfg.Schedule.FullCron, cfg.Schedule.PriceCron, cfg.Schedule.Timezone)},
		})
		t.Render()

		if missing := cfg.Validate(); len(missing) > 0 {
			fmt.Printf("\nMissing (pipeline runs degraded): %s\n", strings.Join(missing, ", "))
			return nil
		}
		fmt.Println("\nAll credentials configured.")
		return nil
	},
}

func mask(secret string) string {
	if secret == "" {
		return "unset"
	}
	if len(secret) <= 8 {
		return "set"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

func orUnset(s string) string {
	if s == "" {
		return "unset"
	}
	return s
}

func fileStatus(path string) string {
	if _, err := os.Stat(path); err != nil {
		return path + " (missing)"
	}
	return path
}
