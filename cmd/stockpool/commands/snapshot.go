package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhwen/stockpool/backend/internal/backup"
	"github.com/zhwen/stockpool/backend/internal/store"
	"github.com/zhwen/stockpool/backend/pkg/database"
	"github.com/zhwen/stockpool/backend/pkg/logger"
)

// snapshotCmd represents the snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write a store snapshot now",
	Long: `Dumps the whole store to a timestamped JSON file in the backup
directory, then prunes old snapshots past the configured retention.

Example:
  go run ./cmd/stockpool snapshot`,
	RunE: runSnapshot,
}

// restoreCmd represents the restore command
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the store from a snapshot",
	Long: `Loads a snapshot file back into the store. Rows with matching keys
are overwritten; everything else is left alone.

Example:
  go run ./cmd/stockpool restore --latest
  go run ./cmd/stockpool restore --file backups/snapshot-20260821-183000.json`,
	RunE: runRestore,
}

var (
	restoreFile   string
	restoreLatest bool
)

func init() {
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().StringVar(&restoreFile, "file", "", "snapshot file to restore")
	restoreCmd.Flags().BoolVar(&restoreLatest, "latest", false, "restore the newest snapshot")
}

func newBackupManager(cmd *cobra.Command) (*backup.Manager, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	recordStore := store.New(db.Pool, log)
	if err := recordStore.EnsureSchema(cmd.Context()); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}

	return backup.New(recordStore, cfg.Backup.Dir, cfg.Backup.Keep, log), db.Close, nil
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	mgr, closeDB, err := newBackupManager(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	path, err := mgr.Snapshot(cmd.Context())
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	fmt.Printf("Snapshot written to %s\n", path)
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	if restoreFile == "" && !restoreLatest {
		return fmt.Errorf("either --file or --latest is required")
	}

	mgr, closeDB, err := newBackupManager(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	path := restoreFile
	if path == "" {
		path, err = mgr.Latest()
		if err != nil {
			return fmt.Errorf("find latest snapshot: %w", err)
		}
		if path == "" {
			return fmt.Errorf("no snapshots found")
		}
	}

	if err := mgr.Restore(cmd.Context(), path); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	fmt.Printf("Restored from %s\n", path)
	return nil
}
