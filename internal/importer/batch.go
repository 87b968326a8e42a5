package importer

import (
	"context"

	"github.com/zhwen/stockpool/backend/internal/contracts"
)

// FileParser turns one export file into the shape the importer consumes.
type FileParser interface {
	ParseFile(path string) (*contracts.ParsedFile, error)
}

// ImportFiles parses and imports a set of files sequentially. A file that
// fails to parse or import is reported in the batch result and does not
// abort the remaining files.
func (i *Importer) ImportFiles(ctx context.Context, parser FileParser, paths []string, opts Options) *contracts.BatchResult {
	result := &contracts.BatchResult{}

	for _, path := range paths {
		fr := contracts.FileResult{File: path}

		parsed, err := parser.ParseFile(path)
		if err != nil {
			fr.Error = err.Error()
			result.Failed++
			result.Files = append(result.Files, fr)
			i.logger.WithError(err).WithField("file", path).Warn("Failed to parse export file")
			continue
		}

		res, err := i.ImportFile(ctx, parsed, opts)
		if err != nil {
			fr.Error = err.Error()
			result.Failed++
			result.Files = append(result.Files, fr)
			i.logger.WithError(err).WithField("file", path).Error("Failed to import export file")
			continue
		}

		fr.OK = true
		fr.Date = parsed.Date
		if opts.MergeIntoDate != "" {
			fr.Date = opts.MergeIntoDate
		}
		fr.Inserted = res.Inserted
		fr.Updated = res.Updated
		result.Succeeded++
		result.Files = append(result.Files, fr)
	}

	return result
}
