/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/slotbook/internal/availability"
	"github.com/friendsincode/slotbook/internal/db"
	"github.com/friendsincode/slotbook/internal/events"
	"github.com/friendsincode/slotbook/internal/models"
	"github.com/friendsincode/slotbook/internal/scheduler"
	"github.com/friendsincode/slotbook/internal/slots"
)

var (
	genBusinessID string
	genDate       string
	genDaysAhead  int
	batchRefRaw   string
	availDuration int
	availServices []string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate slots for one business and date",
	Long: `Creates the missing 15 minute slots for a business on one calendar date.
Running it again for the same date creates nothing.

Examples:
  slotbook generate --business <uuid> --date 2026-03-02`,
	RunE: runGenerate,
}

var generateRangeCmd = &cobra.Command{
	Use:   "generate-range",
	Short: "Generate slots for consecutive dates",
	Long: `Generates slots for --days dates starting at --date. The first failing
date stops the run.

Examples:
  slotbook generate-range --business <uuid> --date 2026-03-02 --days 14`,
	RunE: runGenerateRange,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run the daily batch once",
	Long: `Generates the day after the reference instant for every business.
Per-business failures are reported and do not stop the run.

Examples:
  slotbook batch
  slotbook batch --reference 2026-03-01T00:00:00Z`,
	RunE: runBatch,
}

var availabilityCmd = &cobra.Command{
	Use:   "availability",
	Short: "List start times that can host a duration",
	Long: `Prints every start time on a date whose consecutive slots can hold the
requested duration. --service may be repeated and overrides --duration.

Examples:
  slotbook availability --business <uuid> --date 2026-03-02 --duration 45
  slotbook availability --business <uuid> --date 2026-03-02 --service <uuid> --service <uuid>`,
	RunE: runAvailability,
}

func init() {
	for _, c := range []*cobra.Command{generateCmd, generateRangeCmd, availabilityCmd} {
		c.Flags().StringVar(&genBusinessID, "business", "", "Business ID (required)")
		c.Flags().StringVar(&genDate, "date", "", "Date as YYYY-MM-DD (required)")
		_ = c.MarkFlagRequired("business")
		_ = c.MarkFlagRequired("date")
	}
	generateRangeCmd.Flags().IntVar(&genDaysAhead, "days", 0, "Number of dates to generate (default SLOTBOOK_DAYS_AHEAD)")
	batchCmd.Flags().StringVar(&batchRefRaw, "reference", "", "Reference instant as RFC3339 (default now)")
	availabilityCmd.Flags().IntVar(&availDuration, "duration", 0, "Duration in minutes")
	availabilityCmd.Flags().StringSliceVar(&availServices, "service", nil, "Service ID, repeatable")

	rootCmd.AddCommand(generateCmd, generateRangeCmd, batchCmd, availabilityCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDateFlag() (time.Time, error) {
	d, err := models.ParseDate(genDate, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", genDate)
	}
	return d, nil
}

func newSlotService() (*slots.Service, func(), error) {
	database, err := openDatabase()
	if err != nil {
		return nil, nil, err
	}
	svc := slots.NewService(slots.NewGormStore(database), events.NewBus(), cfg.DaysAhead, logger)
	return svc, func() { _ = db.Close(database) }, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	date, err := parseDateFlag()
	if err != nil {
		return err
	}
	svc, done, err := newSlotService()
	if err != nil {
		return err
	}
	defer done()

	res, err := svc.Generate(cmd.Context(), genBusinessID, date)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runGenerateRange(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	start, err := parseDateFlag()
	if err != nil {
		return err
	}
	if genDaysAhead < 0 {
		return fmt.Errorf("--days must not be negative")
	}
	svc, done, err := newSlotService()
	if err != nil {
		return err
	}
	defer done()

	res, err := svc.GenerateRange(cmd.Context(), genBusinessID, start, genDaysAhead)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stopped after %d slots\n", res.Created)
		return err
	}
	return printJSON(res)
}

func runBatch(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	reference := time.Now()
	if batchRefRaw != "" {
		parsed, err := time.Parse(time.RFC3339, batchRefRaw)
		if err != nil {
			return fmt.Errorf("invalid --reference %q: %w", batchRefRaw, err)
		}
		reference = parsed
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(database) }()

	slotSvc := slots.NewService(slots.NewGormStore(database), events.NewBus(), cfg.DaysAhead, logger)
	report := scheduler.New(database, slotSvc, cfg.BatchHour, logger).RunOnce(cmd.Context(), reference)
	if err := printJSON(report); err != nil {
		return err
	}
	return batchOutcome(report)
}

// batchOutcome fails only when the run itself could not proceed. Individual
// business failures are reported and logged, never returned.
func batchOutcome(report scheduler.Report) error {
	for _, failure := range report.Failures {
		if failure.BusinessID == "" {
			return fmt.Errorf("batch run failed: %s", failure.Message)
		}
		logger.Warn().
			Str("business_id", failure.BusinessID).
			Str("error", failure.Message).
			Msg("business skipped in batch run")
	}
	return nil
}

func runAvailability(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	date, err := parseDateFlag()
	if err != nil {
		return err
	}
	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(database) }()

	calc := availability.NewCalculator(database, logger)
	res, err := calc.Availability(cmd.Context(), availability.Query{
		BusinessID:      genBusinessID,
		Date:            date,
		DurationMinutes: availDuration,
		ServiceIDs:      availServices,
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}
