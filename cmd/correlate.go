package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/veilscope/veilscope/internal/auth"
	"github.com/veilscope/veilscope/internal/database"
	"github.com/veilscope/veilscope/internal/logger"
	"github.com/veilscope/veilscope/pkg/correlation"
	"github.com/veilscope/veilscope/pkg/types"
)

var correlateCmd = &cobra.Command{
	Use:   "correlate <scan-id>",
	Short: "Run correlation against a completed scan",
	Long: `Run the correlation engine against a scan and print the result.

This is the operator-side entry point: the caller identity comes from
flags instead of an API token, but the same tier gate and credit charge
apply.

Example:
  veilscope correlate 7d444840-9dc0-11d1-b245-5ffdce74fad2 \
    --user a51334a0-4242-4101-9a24-33c0e4ee6d1f \
    --workspace 0d4cfea6-72f2-41b9-a2b4-53b994d36b62`,
	Args: cobra.ExactArgs(1),
	RunE: runCorrelate,
}

var (
	correlateUser      string
	correlateWorkspace string
	correlateTier      string
	correlateJSON      bool
)

func init() {
	rootCmd.AddCommand(correlateCmd)

	correlateCmd.Flags().StringVar(&correlateUser, "user", "", "acting user id (required)")
	correlateCmd.Flags().StringVar(&correlateWorkspace, "workspace", "", "workspace to charge (required)")
	correlateCmd.Flags().StringVar(&correlateTier, "tier", string(auth.TierPremium), "tier of the acting identity")
	correlateCmd.Flags().BoolVar(&correlateJSON, "json", false, "print the raw result as JSON")
	correlateCmd.MarkFlagRequired("user")
	correlateCmd.MarkFlagRequired("workspace")
}

func runCorrelate(cmd *cobra.Command, args []string) error {
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}

	store, err := database.New(cfg.Database, log)
	if err != nil {
		return err
	}
	defer store.Close()

	ledger, closeLedger := buildLedger(log)
	defer closeLedger()

	engine := correlation.NewEngine(store, ledger, auth.NewTierGate(), cfg.Credits.CorrelationCost, log)

	result, err := engine.Correlate(cmd.Context(), correlation.Request{
		ScanID: args[0],
		Identity: &auth.Identity{
			UserID:      correlateUser,
			WorkspaceID: correlateWorkspace,
			Tier:        auth.Tier(correlateTier),
		},
	})
	if err != nil {
		return err
	}

	if correlateJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(result)
	return nil
}

func printResult(result *types.CorrelationResult) {
	header := color.New(color.FgCyan, color.Bold)
	label := color.New(color.Bold)

	header.Printf("Correlation for scan %s\n\n", result.ScanID)

	label.Println("Identifier correlations")
	printField("email", result.Correlations.EmailMatches)
	printField("phone", result.Correlations.PhoneMatches)
	printField("name", result.Correlations.NameMatches)
	printField("username", result.Correlations.UsernameMatches)
	fmt.Printf("  overall: %.0f/100\n\n", result.Correlations.Confidence)

	if len(result.DuplicateProfiles) > 0 {
		label.Println("Duplicate profiles")
		for _, dup := range result.DuplicateProfiles {
			color.Yellow("  %s: %d profiles (%v)\n", dup.Platform, dup.Count, dup.Usernames)
		}
		fmt.Println()
	}

	label.Println("Data exposures")
	for _, exposure := range result.IdentityGraph.DataExposures {
		riskColor(exposure.RiskLevel).Printf("  [%s] %s (%s): %v\n",
			exposure.RiskLevel, exposure.Source, exposure.Category, exposure.DataTypes)
	}
	fmt.Printf("  risk: %d high / %d medium / %d low\n\n",
		result.RiskSummary.High, result.RiskSummary.Medium, result.RiskSummary.Low)

	if result.FindingSummary != nil {
		label.Println("Findings")
		fmt.Printf("  total: %d, by severity: %v\n\n", result.FindingSummary.Total, result.FindingSummary.BySeverity)
	}

	fmt.Printf("Credits remaining: %d\n", result.CreditsRemaining)
}

func printField(name string, field *types.FieldCorrelation) {
	if field == nil {
		return
	}
	fmt.Printf("  %s: %d matching sources, confidence %.2f\n", name, len(field.Entries), field.Confidence)
}

func riskColor(level types.RiskLevel) *color.Color {
	switch level {
	case types.RiskLevelHigh:
		return color.New(color.FgRed)
	case types.RiskLevelMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}
