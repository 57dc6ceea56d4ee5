/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/slotbook/internal/auth"
	"github.com/friendsincode/slotbook/internal/catalog"
	"github.com/friendsincode/slotbook/internal/db"
)

var (
	seedFile   string
	tokenUser  string
	tokenRoles []string
	tokenTTL   time.Duration
	tokenBizID string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables",
	RunE:  runMigrate,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load businesses and services from a YAML catalog",
	Long: `Upserts businesses by name and their services by name. Businesses without
a timezone get SLOTBOOK_DEFAULT_TIMEZONE.

Examples:
  slotbook seed --file businesses.yaml`,
	RunE: runSeed,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token",
	Long: `Signs a bearer token with SLOTBOOK_JWT_SIGNING_KEY.

Examples:
  slotbook token --user ops --role admin --ttl 1h`,
	RunE: runToken,
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "Path to catalog YAML (required)")
	_ = seedCmd.MarkFlagRequired("file")

	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "Subject user ID (required)")
	tokenCmd.Flags().StringSliceVar(&tokenRoles, "role", []string{auth.RoleCustomer}, "Role, repeatable")
	tokenCmd.Flags().StringVar(&tokenBizID, "business", "", "Business the token is scoped to (optional)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(migrateCmd, seedCmd, tokenCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(database) }()

	logger.Info().Str("backend", string(cfg.DBBackend)).Msg("migrations applied")
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	cat, err := catalog.LoadFile(seedFile)
	if err != nil {
		return err
	}
	cat.ApplyDefaultTimezone(cfg.DefaultTimezone)

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(database) }()

	summary, err := catalog.Apply(cmd.Context(), database, cat, nil)
	if err != nil {
		return err
	}
	logger.Info().
		Int("created", summary.BusinessesCreated).
		Int("updated", summary.BusinessesUpdated).
		Int("services", summary.Services).
		Msg("catalog applied")
	return printJSON(summary)
}

func runToken(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if cfg.JWTSigningKey == "" {
		return fmt.Errorf("SLOTBOOK_JWT_SIGNING_KEY is not set")
	}
	tok, err := auth.Issue([]byte(cfg.JWTSigningKey), auth.Claims{
		UserID:     tokenUser,
		Roles:      tokenRoles,
		BusinessID: tokenBizID,
	}, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
