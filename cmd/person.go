package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/facette/natsort"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mariadb"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var personCmd = &cobra.Command{
	Use:   "person",
	Short: "Manage the identity registry",
}

var personAddCmd = &cobra.Command{
	Use:   "add <code> <name>",
	Short: "Add a person to the registry",
	Long: `Add a person with a unique code (e.g., a roll number) and a display name.
The face is enrolled separately with "face register <code>".`,
	Example: `  face-attendance person add R001 "Jana Nováková"`,
	Args:    cobra.MinimumNArgs(2),
	RunE:    runPersonAdd,
}

var personListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered people in code order",
	Args:  cobra.NoArgs,
	RunE:  runPersonList,
}

var personImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import people from the external MariaDB roster",
	Long: `Import people from the roster table configured by REGISTRY_DATABASE_URL,
REGISTRY_TABLE, REGISTRY_NAME_COLUMN and REGISTRY_CODE_COLUMN.
People whose code is already registered are skipped.`,
	Args: cobra.NoArgs,
	RunE: runPersonImport,
}

func init() {
	rootCmd.AddCommand(personCmd)
	personCmd.AddCommand(personAddCmd)
	personCmd.AddCommand(personListCmd)
	personCmd.AddCommand(personImportCmd)

	personListCmd.Flags().String("search", "", "Only list people whose name contains this text (case and accent insensitive)")
	personListCmd.Flags().Bool("json", false, "Output as JSON")

	personImportCmd.Flags().Bool("dry-run", false, "Show what would be imported without writing")
}

func runPersonAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	code := strings.TrimSpace(args[0])
	name := strings.TrimSpace(strings.Join(args[1:], " "))
	if code == "" || name == "" {
		return errors.New("code and name must not be empty")
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	identity, err := a.identities.CreateIdentity(ctx, name, code)
	if errors.Is(err, database.ErrIdentityExists) {
		return fmt.Errorf("code %s is already registered", code)
	}
	if err != nil {
		return fmt.Errorf("failed to add person: %w", err)
	}

	fmt.Printf("Added %s (%s), id %d\n", identity.Name, identity.Code, identity.ID)
	fmt.Printf("Enroll the face with: face-attendance face register %s\n", identity.Code)
	return nil
}

// personRow is one line of `person list`.
type personRow struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Enrolled bool   `json:"enrolled"`
	Model    string `json:"model,omitempty"`
}

// filterPeople keeps identities whose normalized name contains search and orders them by code.
func filterPeople(identities []database.Identity, search string) []personRow {
	search = facematch.NormalizePersonName(search)
	rows := make([]personRow, 0, len(identities))
	for i := range identities {
		identity := &identities[i]
		if search != "" && !strings.Contains(facematch.NormalizePersonName(identity.Name), search) {
			continue
		}
		rows = append(rows, personRow{
			ID:       identity.ID,
			Code:     identity.Code,
			Name:     identity.Name,
			Enrolled: identity.Enrolled(),
			Model:    identity.EmbeddingModel,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return natsort.Compare(rows[i].Code, rows[j].Code) })
	return rows
}

func runPersonList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jsonOutput := mustGetBool(cmd, "json")

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	identities, err := a.identities.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("failed to list people: %w", err)
	}
	rows := filterPeople(identities, mustGetString(cmd, "search"))

	if jsonOutput {
		return outputJSON(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No people found")
		return nil
	}
	fmt.Printf("%-12s %-32s %s\n", "CODE", "NAME", "FACE")
	for _, row := range rows {
		face := "-"
		if row.Enrolled {
			face = row.Model
		}
		fmt.Printf("%-12s %-32s %s\n", row.Code, row.Name, face)
	}
	fmt.Printf("\n%d people\n", len(rows))
	return nil
}

func runPersonImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	dryRun := mustGetBool(cmd, "dry-run")

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	reg := a.cfg.Registry
	if reg.DatabaseURL == "" {
		return errors.New("REGISTRY_DATABASE_URL environment variable is required")
	}

	fmt.Println("Connecting to roster database...")
	pool, err := mariadb.NewPool(reg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to roster database: %w", err)
	}
	defer pool.Close()

	entries, err := pool.ListRoster(ctx, mariadb.RosterMapping{
		Table:      reg.Table,
		NameColumn: reg.NameColumn,
		CodeColumn: reg.CodeColumn,
	})
	if err != nil {
		return fmt.Errorf("failed to read roster: %w", err)
	}
	fmt.Printf("Found %d roster entries in %s\n", len(entries), reg.Table)

	if dryRun {
		for _, e := range entries {
			fmt.Printf("  %-12s %s\n", e.Code, e.Name)
		}
		fmt.Println("\n[DRY RUN] No changes made")
		return nil
	}

	bar := progressbar.NewOptions(len(entries),
		progressbar.OptionSetDescription("Importing roster"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("people"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var added, skipped int
	var failed []string
	for _, e := range entries {
		_ = bar.Add(1)
		if e.Code == "" || e.Name == "" {
			skipped++
			continue
		}
		_, err := a.identities.CreateIdentity(ctx, e.Name, e.Code)
		switch {
		case errors.Is(err, database.ErrIdentityExists):
			skipped++
		case err != nil:
			failed = append(failed, fmt.Sprintf("%s: %v", e.Code, err))
		default:
			added++
		}
	}
	_ = bar.Finish()

	fmt.Printf("\nImport complete:\n")
	fmt.Printf("  Added:   %d\n", added)
	fmt.Printf("  Skipped: %d\n", skipped)
	fmt.Printf("  Failed:  %d\n", len(failed))
	for _, f := range failed {
		fmt.Printf("    %s\n", f)
	}
	return nil
}
