// File path: cmd/teaching-stats/main.go
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"teaching-stats/internal/common"
	"teaching-stats/internal/limesurvey"
	"teaching-stats/internal/postgres"
	"teaching-stats/internal/report"
)

const version = "1.0.0"

func main() {
	logger := common.Logger()
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logger.Warn("teaching-stats: .env file not loaded", "error", err)
	}

	check := flag.Bool("check", false, "report whether the reporting schema has been upgraded")
	upgrade := flag.Bool("upgrade-db", false, "perform the one-time reporting schema upgrade")
	loadTeachingStats := flag.Bool("load-teaching-stats", false, "consolidate the legacy teaching-stats responses into the reporting table")
	loadLimeSurvey := flag.Bool("load-limesurvey", false, "import responses of every active limesurvey survey")
	yes := flag.Bool("yes", false, "skip confirmation prompts")
	flag.Parse()

	fmt.Printf("teaching-stats reporting tool (v%s)\n\n", version)

	var err error
	switch {
	case *check:
		err = runCheck(ctx)
	case *upgrade:
		err = runUpgrade(ctx, *yes)
	case *loadTeachingStats:
		err = runLoadTeachingStats(ctx, *yes)
	case *loadLimeSurvey:
		err = runLoadLimeSurvey(ctx, *yes)
	default:
		err = runMenu(ctx)
	}
	if err != nil {
		logger.Error("teaching-stats: operation failed", "error", err)
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

// schemaStore is the slice of the storage layer the startup gate needs.
type schemaStore interface {
	CheckIfUpgraded(ctx context.Context) (bool, error)
	PerformUpgrade(ctx context.Context) error
}

// runMenu performs the startup schema check the interactive flow expects:
// when the database is still legacy the upgrade is offered before the menu,
// and declining it ends the program.
func runMenu(ctx context.Context) error {
	store, err := postgres.Open(ctx)
	if err != nil {
		return err
	}
	gateErr := offerUpgrade(ctx, store, func(prompt string) bool {
		return confirm(prompt, false)
	})
	store.Close()
	if gateErr != nil {
		return gateErr
	}
	return menu(ctx)
}

func offerUpgrade(ctx context.Context, store schemaStore, ask func(string) bool) error {
	upgraded, err := store.CheckIfUpgraded(ctx)
	if err != nil {
		return err
	}
	if upgraded {
		return nil
	}
	if !ask("The current 'teaching-stats' database has not been upgraded, do you want to perform the necessary changes to use this program? [Y/n]") {
		return fmt.Errorf("the program cannot continue, because the 'teaching-stats' database has not been upgraded")
	}
	common.Logger().Info("teaching-stats: upgrading the reporting schema")
	if err := store.PerformUpgrade(ctx); err != nil {
		return err
	}
	fmt.Println("Upgrade completed.")
	return nil
}

func menu(ctx context.Context) error {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Println("Please, select an option:")
		fmt.Println("   1: Load reporting data from 'teaching-stats'")
		fmt.Println("   2: Load reporting data from 'limesurvey'")
		fmt.Println("   3: Check the database upgrade state")
		fmt.Println("   4: Upgrade the database")
		fmt.Println("   0: Exit")
		fmt.Println()

		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		var opErr error
		switch strings.TrimSpace(line) {
		case "0":
			return nil
		case "1":
			opErr = runLoadTeachingStats(ctx, false)
		case "2":
			opErr = runLoadLimeSurvey(ctx, false)
		case "3":
			opErr = runCheck(ctx)
		case "4":
			opErr = runUpgrade(ctx, false)
		default:
			fmt.Println("Please, select a valid option.")
		}
		if opErr != nil {
			fmt.Println("error:", opErr)
		}
		fmt.Println()
	}
}

func runCheck(ctx context.Context) error {
	store, err := postgres.Open(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	upgraded, err := store.CheckIfUpgraded(ctx)
	if err != nil {
		return err
	}
	if upgraded {
		fmt.Println("The 'teaching-stats' database has been upgraded.")
	} else {
		fmt.Println("The 'teaching-stats' database has NOT been upgraded.")
	}
	return nil
}

func runUpgrade(ctx context.Context, assumeYes bool) error {
	logger := common.Logger()
	store, err := postgres.Open(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	upgraded, err := store.CheckIfUpgraded(ctx)
	if err != nil {
		return err
	}
	if upgraded {
		fmt.Println("The 'teaching-stats' database has already been upgraded, nothing to do.")
		return nil
	}
	if !confirm("This option will convert the view-based reporting layer into the table-based one; it cannot be repeated. Do you want to continue? [Y/n]", assumeYes) {
		fmt.Println("Operation cancelled.")
		return nil
	}

	logger.Info("teaching-stats: upgrading the reporting schema")
	if err := store.PerformUpgrade(ctx); err != nil {
		return err
	}
	fmt.Println("Upgrade completed.")
	return nil
}

func runLoadTeachingStats(ctx context.Context, assumeYes bool) error {
	logger := common.Logger()
	if !confirm("This option will load all the current 'teaching-stats' responses into the report tables, cleaning the original tables (evaluation, answer and participation). Do you want to continue? [Y/n]", assumeYes) {
		fmt.Println("Operation cancelled.")
		return nil
	}

	store, err := postgres.Open(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := ensureUpgraded(ctx, store); err != nil {
		return err
	}
	logger.Info("teaching-stats: consolidating legacy responses")
	if err := store.ConsolidateLegacySource(ctx); err != nil {
		return err
	}
	fmt.Println("Legacy responses consolidated.")
	return nil
}

func runLoadLimeSurvey(ctx context.Context, assumeYes bool) error {
	logger := common.Logger()
	if !confirm("This option will load all the 'limesurvey' responses into the report tables. Do you want to continue? [Y/n]", assumeYes) {
		fmt.Println("Operation cancelled.")
		return nil
	}

	lsCfg, err := limesurvey.LoadConfig()
	if err != nil {
		return err
	}
	client, err := limesurvey.NewClient(lsCfg)
	if err != nil {
		return err
	}
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close(ctx)

	store, err := postgres.Open(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := ensureUpgraded(ctx, store); err != nil {
		return err
	}

	surveys, err := client.ListSurveys(ctx)
	if err != nil {
		return err
	}
	total := 0
	for _, survey := range surveys {
		if !survey.IsActive() {
			continue
		}
		questions, err := client.SurveyQuestions(ctx, survey.ID)
		if err != nil {
			return err
		}
		payload, err := client.SurveyResponses(ctx, survey.ID)
		if err != nil {
			return err
		}
		records, err := report.Normalize(questions, payload)
		if err != nil {
			return fmt.Errorf("normalize survey %d: %w", survey.ID, err)
		}
		count, err := store.ImportAnswers(ctx, records)
		if err != nil {
			return fmt.Errorf("import survey %d: %w", survey.ID, err)
		}
		logger.Info("teaching-stats: survey imported", "survey", survey.ID, "rows", count)
		total += count
	}
	fmt.Printf("Imported %d answer rows.\n", total)
	return nil
}

func ensureUpgraded(ctx context.Context, store *postgres.Store) error {
	upgraded, err := store.CheckIfUpgraded(ctx)
	if err != nil {
		return err
	}
	if !upgraded {
		return fmt.Errorf("the 'teaching-stats' database has not been upgraded; run with -upgrade-db first")
	}
	return nil
}

func confirm(prompt string, assumeYes bool) bool {
	if assumeYes {
		return true
	}
	fmt.Println(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "" || answer == "y"
}
