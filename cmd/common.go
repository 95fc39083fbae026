package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chrisdamba/salescount/internal/bucketer"
	"github.com/chrisdamba/salescount/internal/classifier"
	"github.com/chrisdamba/salescount/internal/ingest"
	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/pos"
	"github.com/chrisdamba/salescount/internal/report"
	"github.com/chrisdamba/salescount/internal/repositories"
	"github.com/chrisdamba/salescount/internal/repositories/postgres"
	"github.com/chrisdamba/salescount/internal/repositories/sqlite"
	"github.com/chrisdamba/salescount/internal/utils"
	"github.com/sirupsen/logrus"
)

type store struct {
	lines   repositories.LineRepository
	reports repositories.ReportRepository
	close   func()
}

func openStore(ctx context.Context, cfg *models.Config) (*store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		return &store{
			lines:   postgres.NewLineRepository(pool),
			reports: postgres.NewReportRepository(pool),
			close:   pool.Close,
		}, nil
	case "sqlite":
		db, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		return &store{
			lines:   sqlite.NewLineRepository(db),
			reports: sqlite.NewReportRepository(db),
			close:   func() { db.Close() },
		}, nil
	}
	return nil, fmt.Errorf("unknown store.driver %q", cfg.Store.Driver)
}

// loadRules builds the rule set from rules_file, or the built-in mapping
// when none is configured. A configured category mapping endpoint replaces
// the code table.
func loadRules(ctx context.Context, cfg *models.Config) (*classifier.RuleSet, error) {
	spec := classifier.DefaultSpec()
	if cfg.RulesFile != "" {
		var err error
		if spec, err = classifier.ReadFileSpec(cfg.RulesFile); err != nil {
			return nil, err
		}
	}

	if path := cfg.POS.CategoryMappingPath; path != "" {
		client, err := newPOSClient(ctx, cfg, true)
		if err != nil {
			return nil, err
		}
		mapping, err := client.FetchCategoryMappings(ctx, path)
		if err != nil {
			return nil, err
		}
		spec.Codes = classifier.FromCategoryMap(spec.Categories, mapping).Codes
		utils.Log.WithFields(logrus.Fields{"path": path, "categories": len(mapping)}).Info("loaded category mappings")
	}
	return classifier.New(spec)
}

func newEngine(ctx context.Context, cfg *models.Config) (*report.Engine, error) {
	rules, err := loadRules(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b, err := bucketer.New(bucketer.OptionsFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	return report.NewEngine(rules, b).WithAuditExamples(cfg.AuditExamples), nil
}

// newPOSClient authenticates against Toast when credentials are configured.
func newPOSClient(ctx context.Context, cfg *models.Config, optionalAuth bool) (*pos.Client, error) {
	zone, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	client := pos.NewClient(cfg.POS, zone)
	if cfg.POS.ClientID == "" && optionalAuth {
		return client, nil
	}
	if err := client.Authenticate(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func ingestOptions(cfg *models.Config, location string) (ingest.Options, error) {
	zone, err := cfg.Location()
	if err != nil {
		return ingest.Options{}, err
	}
	return ingest.Options{Location: location, TimeZone: zone}, nil
}

// exports holds the lines read from the csv files and the rows that could
// not be read.
type exports struct {
	items      []models.RawLine
	modifiers  []models.RawLine
	rejections []models.Rejection
}

// readExports loads the item and modifier csv files. Either may be empty.
func readExports(itemsPath, modifiersPath string, opts ingest.Options) (*exports, error) {
	if itemsPath == "" && modifiersPath == "" {
		return nil, fmt.Errorf("no input: pass --items and/or --modifiers")
	}
	ex := &exports{}
	for _, src := range []struct {
		path string
		kind models.LineKind
		dst  *[]models.RawLine
	}{
		{itemsPath, models.LineKindItem, &ex.items},
		{modifiersPath, models.LineKindModifier, &ex.modifiers},
	} {
		if src.path == "" {
			continue
		}
		res, err := ingest.ReadFile(src.path, src.kind, opts)
		if err != nil {
			return nil, err
		}
		logRejections(src.path, res.Rejections)
		*src.dst = res.Lines
		ex.rejections = append(ex.rejections, res.Rejections...)
	}
	return ex, nil
}

func logRejections(source string, rejections []models.Rejection) {
	if len(rejections) == 0 {
		return
	}
	log := utils.Log.WithFields(logrus.Fields{"source": source, "rejected": len(rejections)})
	log.Warn("some rows could not be read")
	for i, r := range rejections {
		if i == 5 {
			break
		}
		log.WithField("row", r.Row).Debug(r.Reason)
	}
}

func parseDateFlag(name, value string) (time.Time, error) {
	d, err := bucketer.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return d, nil
}

// dateRange reads --from/--to, defaulting --to to --from.
func dateRange(from, to string) (time.Time, time.Time, error) {
	start, err := parseDateFlag("from", from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end := start
	if to != "" {
		if end, err = parseDateFlag("to", to); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", to, from)
	}
	return start, end, nil
}

func sameLocation(want, got string) bool {
	return strings.EqualFold(strings.TrimSpace(want), strings.TrimSpace(got))
}
