package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhwen/stockpool/backend/internal/store"
	"github.com/zhwen/stockpool/backend/pkg/database"
	"github.com/zhwen/stockpool/backend/pkg/logger"
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe all imported data",
	Long: `Clears every record, date summary, stock identity, and analysis
blob from the store. Snapshots on disk are not touched.

Example:
  go run ./cmd/stockpool reset --yes`,
	RunE: runReset,
}

var resetYes bool

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "skip the confirmation prompt")
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetYes {
		fmt.Print("This deletes ALL imported data. Type 'yes' to continue: ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.TrimSpace(line) != "yes" {
			fmt.Println("Aborted")
			return nil
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	recordStore := store.New(db.Pool, log)
	if err := recordStore.EnsureSchema(cmd.Context()); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	if err := recordStore.Reset(cmd.Context()); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	fmt.Println("Store reset")
	return nil
}
