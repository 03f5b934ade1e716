package scanner

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/fenilsonani/reclaim/internal/dupes"
	"github.com/fenilsonani/reclaim/internal/risk"
	"github.com/fenilsonani/reclaim/internal/security"
	"github.com/fenilsonani/reclaim/internal/walker"
)

const maxLargeFiles = 5000

// recoveryScanner walks home once and applies the duplicate, large-file
// and old-download checks to the same file set.
type recoveryScanner struct{}

func (recoveryScanner) Name() string                        { return risk.CategoryStorageRecovery }
func (recoveryScanner) ValidationContext() security.Context { return security.ContextScan }

func (recoveryScanner) Scan(ctx context.Context, env *Env) ([]Item, error) {
	env.Report(0, "Indexing files", 0, 0)
	files, err := dupes.Collect(ctx, env.Info.HomeDir, walker.Options{
		MaxDepth:      env.Options.MaxDepth,
		MaxFiles:      env.Options.MaxFiles,
		IncludeHidden: env.Options.IncludeHidden,
		Exclude:       env.Options.Exclude,
	})
	if err != nil {
		return nil, err
	}

	analyzer := dupes.NewAnalyzer(files)
	seen := make(map[string]bool)
	var candidates []Item
	add := func(f dupes.File, kind, description string) {
		if seen[f.Path] {
			return
		}
		seen[f.Path] = true
		candidates = append(candidates, Item{
			Path:        f.Path,
			Kind:        kind,
			ItemType:    TypeFile,
			Size:        f.Size,
			ModTime:     f.ModTime,
			Description: description,
		})
	}

	env.Report(30, "Finding large files", 0, 0)
	large := analyzer.LargeFiles(env.Options.LargeFileThreshold)
	if len(large) > maxLargeFiles {
		large = large[:maxLargeFiles]
	}
	for _, f := range large {
		add(f, risk.KindLargeFile, fmt.Sprintf("Large file (%s)", humanize.IBytes(uint64(f.Size))))
	}

	env.Report(50, "Finding duplicate files", len(candidates), 0)
	groups, err := env.Detector.Group(ctx, files)
	if err != nil {
		return nil, err
	}
	env.RecordDuplicates(groups)
	for _, g := range groups {
		keeper := g.Keeper()
		for _, f := range g.Removable() {
			add(f, risk.KindDuplicate, fmt.Sprintf("Duplicate of %s", keeper.Path))
		}
	}

	env.Report(90, "Finding old downloads", len(candidates), 0)
	now := env.Now()
	for _, f := range analyzer.OldFiles(env.Info.DownloadsDir, env.Options.OldDownloadAge, now) {
		days := int(now.Sub(f.ModTime).Hours() / 24)
		add(f, risk.KindOldDownload, fmt.Sprintf("Download untouched for %d days", days))
	}

	return emitAll(env, candidates), nil
}
