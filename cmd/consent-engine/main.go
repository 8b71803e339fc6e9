package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/consentcore/consentcore/internal/config"
	"github.com/consentcore/consentcore/internal/domain/consent"
	"github.com/consentcore/consentcore/internal/platform/audit"
	"github.com/consentcore/consentcore/internal/platform/temporal"
	"github.com/consentcore/consentcore/internal/platform/terminology"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "consent-engine",
		Short: "Healthcare consent decision engine",
	}

	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(tablesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// validateInput is the JSON document the validate command consumes: one
// request, the patient's consents, optional preferences, and an optional
// fixed clock for reproducible runs.
type validateInput struct {
	Request     consent.Request             `json:"request"`
	Consents    []consent.Consent           `json:"consents"`
	Preferences *consent.PatientPreferences `json:"preferences,omitempty"`
	Now         string                      `json:"now,omitempty"`
}

func validateCmd() *cobra.Command {
	var inputPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Evaluate an access request against a patient's consents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			raw, err := readInput(inputPath)
			if err != nil {
				return err
			}
			var input validateInput
			if err := json.Unmarshal(raw, &input); err != nil {
				return fmt.Errorf("decode input: %w", err)
			}

			now := temporal.Now()
			if input.Now != "" {
				parse := temporal.Parse
				if !cfg.StrictTimestampParsing {
					parse = temporal.ParseLenient
				}
				if now, err = parse(input.Now); err != nil {
					return err
				}
			}

			sink := audit.NewMemorySink()
			engine, err := consent.NewEngine(cfg.EngineOptions(), terminology.NewStore(), sink)
			if err != nil {
				return err
			}

			start := time.Now()
			bundle, err := engine.Validate(&input.Request, input.Consents, now, input.Preferences)
			if err != nil {
				if ie, ok := consent.AsInputError(err); ok {
					logger.Error().
						Str("request_id", input.Request.RequestID).
						Str("code", string(ie.Code)).
						Msg("rejected malformed input")
				}
				return err
			}

			logger.Info().
				Str("request_id", input.Request.RequestID).
				Str("decision", string(bundle.Decision.Kind)).
				Str("reason", string(bundle.Decision.Reason.Code)).
				Dur("latency", time.Since(start)).
				Msg("validate")

			out, err := json.MarshalIndent(bundle, "", "  ")
			if err != nil {
				return fmt.Errorf("encode bundle: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "input JSON file, or - for stdin")
	return cmd
}

// tablesCmd dumps the effective terminology registry so operators can see
// which static tables a build ships.
func tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "Print the effective terminology tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := terminology.NewRegistry()
			dump := map[string]any{
				"safetyCriticalClasses": reg.SafetyCriticalClasses(),
				"roles":                 map[string]terminology.RoleCapability{},
				"purposes":              map[string]terminology.PurposeInfo{},
			}
			roles := dump["roles"].(map[string]terminology.RoleCapability)
			for _, r := range []terminology.Role{
				terminology.RolePhysician, terminology.RoleNurse, terminology.RolePharmacist,
				terminology.RoleResearcher, terminology.RoleBilling, terminology.RoleOther,
			} {
				roles[string(r)] = reg.Capability(r)
			}
			purposes := dump["purposes"].(map[string]terminology.PurposeInfo)
			for _, p := range []terminology.Purpose{
				terminology.PurposeTreatment, terminology.PurposeEmergency, terminology.PurposePayment,
				terminology.PurposeOperations, terminology.PurposeResearch, terminology.PurposePublicHealth,
				terminology.PurposeMarketing, terminology.PurposeDirectory,
			} {
				purposes[string(p)], _ = reg.PurposeInfo(p)
			}
			out, err := json.MarshalIndent(dump, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return raw, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	}
	return logger
}
