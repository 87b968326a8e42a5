package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhwen/stockpool/backend/internal/backup"
	"github.com/zhwen/stockpool/backend/internal/contracts"
	"github.com/zhwen/stockpool/backend/internal/importer"
	"github.com/zhwen/stockpool/backend/internal/parser"
	"github.com/zhwen/stockpool/backend/internal/store"
	"github.com/zhwen/stockpool/backend/pkg/database"
	"github.com/zhwen/stockpool/backend/pkg/logger"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import [files...]",
	Short: "Import TDX export files",
	Long: `Imports one or more TDX watchlist export files.

The trade date is taken from each file name (20260821 or 2026-08-21
anywhere in it); files without a date default to today. A failing file
does not abort the rest of the batch.

Example:
  go run ./cmd/stockpool import exports/20260821.xls
  go run ./cmd/stockpool import --date 2026-08-21 exports/*.xls
  go run ./cmd/stockpool import --merge 2026-08-21 late_additions.xls`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

var (
	importDate  string
	importMerge string
)

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importDate, "date", "", "override the trade date for all files")
	importCmd.Flags().StringVar(&importMerge, "merge", "", "merge stocks into an existing date, keeping its index benchmark")
}

func runImport(cmd *cobra.Command, args []string) error {
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

	ctx := cmd.Context()
	recordStore := store.New(db.Pool, log)
	if err := recordStore.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	backupMgr := backup.New(recordStore, cfg.Backup.Dir, cfg.Backup.Keep, log)
	imp := importer.New(recordStore, backupMgr, log)
	tdxParser := parser.New(log)

	opts := importer.Options{MergeIntoDate: importMerge}
	batch := imp.ImportFiles(ctx, dateOverrideParser{tdxParser}, args, opts)

	for _, fr := range batch.Files {
		if fr.OK {
			fmt.Printf("  %s -> %s: %d inserted, %d updated\n", fr.File, fr.Date, fr.Inserted, fr.Updated)
		} else {
			fmt.Printf("  %s: FAILED (%s)\n", fr.File, fr.Error)
		}
	}
	fmt.Printf("%d succeeded, %d failed\n", batch.Succeeded, batch.Failed)

	if batch.Failed > 0 && batch.Succeeded == 0 {
		return fmt.Errorf("all %d files failed", batch.Failed)
	}
	return nil
}

// dateOverrideParser applies the --date flag on top of the file parser.
type dateOverrideParser struct {
	parser *parser.Parser
}

func (p dateOverrideParser) ParseFile(path string) (*contracts.ParsedFile, error) {
	parsed, err := p.parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if importDate != "" {
		parsed.Date = importDate
	}
	return parsed, nil
}
