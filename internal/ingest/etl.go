package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/AngelCh415/campaign-dash/internal/config"
	"github.com/AngelCh415/campaign-dash/internal/merge"
	"github.com/AngelCh415/campaign-dash/internal/metrics"
	"github.com/AngelCh415/campaign-dash/internal/models"
	"github.com/AngelCh415/campaign-dash/internal/session"
	"github.com/AngelCh415/campaign-dash/internal/store"
	"github.com/AngelCh415/campaign-dash/internal/tabular"
	"github.com/AngelCh415/campaign-dash/internal/utils"
)

// InsightsFetcher is implemented by *InsightsClient.
type InsightsFetcher interface {
	Fetch(ctx context.Context, rng *models.DateRange) ([]models.CanonicalRecord, error)
}

// Activity describes the outcome of the last import or sync.
type Activity struct {
	At        time.Time         `json:"at"`
	Source    string            `json:"source"`
	Range     *models.DateRange `json:"range,omitempty"`
	Rows      int               `json:"rows"`
	Dropped   int               `json:"dropped,omitempty"`
	Inserted  int               `json:"inserted"`
	Updated   int               `json:"updated"`
	Discarded int               `json:"discarded"`
}

// Status is what the dashboard shows about the working set.
type Status struct {
	Records    int       `json:"records"`
	Enriched   int       `json:"enriched"`
	LoadedAt   time.Time `json:"loaded_at"`
	LastImport *Activity `json:"last_import,omitempty"`
	LastSync   *Activity `json:"last_sync,omitempty"`
}

const (
	keyLastImport = "activity:import"
	keyLastSync   = "activity:sync"
)

// ETL owns every change to the working set. Each operation builds the new
// record set, persists it to the sheet store and only then swaps it in, so a
// failure at any step leaves the previous set in place.
type ETL struct {
	c        HTTPClient
	sheets   store.SheetStore
	ws       *store.WorkingSet
	insights InsightsFetcher
	sess     session.Store
	log      *slog.Logger
	cfg      config.Config

	mu sync.Mutex
}

func NewETL(c HTTPClient, sheets store.SheetStore, ws *store.WorkingSet, insights InsightsFetcher, sess session.Store, log *slog.Logger, cfg config.Config) *ETL {
	return &ETL{c: c, sheets: sheets, ws: ws, insights: insights, sess: sess, log: log, cfg: cfg}
}

// Reload replaces the working set with the contents of the sheet store.
func (e *ETL) Reload(ctx context.Context) (stats tabular.Stats, err error) {
	defer utils.ObserveOp("reload", time.Now(), &err)
	e.mu.Lock()
	defer e.mu.Unlock()

	grid, err := e.sheets.Read(ctx, e.cfg.SheetName)
	if err != nil {
		return stats, err
	}
	recs, stats := tabular.FromGrid(grid)
	countRows("store", stats)
	merge.SortByDate(recs)
	e.ws.Replace(recs)
	e.log.Info("store reloaded", slog.String("sheet", e.cfg.SheetName), slog.Int("records", len(recs)), slog.Int("dropped", stats.Dropped))
	return stats, nil
}

// ImportWorkbook merges a workbook into the working set. Rows whose key is
// already present are ignored.
func (e *ETL) ImportWorkbook(ctx context.Context, r io.Reader) (res merge.Result, err error) {
	defer utils.ObserveOp("import", time.Now(), &err)

	incoming, stats, err := tabular.FromWorkbook(r)
	if err != nil {
		return res, err
	}
	countRows("workbook", stats)

	e.mu.Lock()
	defer e.mu.Unlock()
	res = merge.Import(e.ws.All(), incoming)
	if err := e.commit(ctx, res.Records); err != nil {
		return merge.Result{}, err
	}
	countMerge("import", res)
	e.record(ctx, keyLastImport, Activity{
		At: time.Now().UTC(), Source: "workbook", Rows: stats.Mapped, Dropped: stats.Dropped,
		Inserted: res.Inserted, Updated: res.Updated, Discarded: res.Discarded,
	})
	e.log.Info("workbook imported", slog.Int("rows", stats.Mapped), slog.Int("dropped", stats.Dropped),
		slog.Int("inserted", res.Inserted), slog.Int("skipped", res.Discarded))
	return res, nil
}

// SyncInsights fetches the platform insights for rng (nil for all time) and
// overlays them on records already in the working set.
func (e *ETL) SyncInsights(ctx context.Context, rng *models.DateRange) (res merge.Result, err error) {
	defer utils.ObserveOp("sync", time.Now(), &err)
	if e.insights == nil {
		return res, fmt.Errorf("insights: %w", config.ErrNotConfigured)
	}

	external, err := e.insights.Fetch(ctx, rng)
	if err != nil {
		return res, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	res = merge.Enrich(e.ws.All(), external)
	if err := e.commit(ctx, res.Records); err != nil {
		return merge.Result{}, err
	}
	countMerge("enrich", res)
	e.record(ctx, keyLastSync, Activity{
		At: time.Now().UTC(), Source: "insights", Range: rng, Rows: len(external),
		Updated: res.Updated, Discarded: res.Discarded,
	})
	e.log.Info("insights synced", slog.Int("fetched", len(external)),
		slog.Int("updated", res.Updated), slog.Int("unmatched", res.Discarded))
	return res, nil
}

// Export posts the per-day summary of the filtered working set to the sink,
// signed with SINK_SECRET.
func (e *ETL) Export(ctx context.Context, f metrics.Filter) (n int, err error) {
	defer utils.ObserveOp("export", time.Now(), &err)
	if err := config.Require(
		config.Setting{Name: "SINK_URL", Value: e.cfg.SinkURL},
		config.Setting{Name: "SINK_SECRET", Value: e.cfg.SinkSecret},
	); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	rows := metrics.ByDate(f.Apply(e.ws.All()))
	if len(rows) == 0 {
		return 0, nil
	}
	if err := postSigned(ctx, e.c, e.cfg.SinkURL, e.cfg.SinkSecret, rows); err != nil {
		return 0, err
	}
	e.log.Info("export complete", slog.Int("rows", len(rows)))
	return len(rows), nil
}

// Status reports the working set size, how many records carry insights and
// the last recorded activities.
func (e *ETL) Status(ctx context.Context) Status {
	st := Status{LoadedAt: e.ws.LoadedAt()}
	recs := e.ws.All()
	st.Records = len(recs)
	for _, r := range recs {
		if r.HasInsights() {
			st.Enriched++
		}
	}
	st.LastImport = e.activity(ctx, keyLastImport)
	st.LastSync = e.activity(ctx, keyLastSync)
	return st
}

func (e *ETL) commit(ctx context.Context, recs []models.CanonicalRecord) error {
	if err := e.sheets.Replace(ctx, e.cfg.SheetName, tabular.ToGrid(recs)); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	e.ws.Replace(recs)
	return nil
}

func (e *ETL) record(ctx context.Context, key string, a Activity) {
	if e.sess == nil {
		return
	}
	b, _ := json.Marshal(a)
	if err := e.sess.Set(ctx, key, string(b), 0); err != nil {
		e.log.Warn("session write failed", slog.String("key", key), slog.String("err", err.Error()))
	}
}

func (e *ETL) activity(ctx context.Context, key string) *Activity {
	if e.sess == nil {
		return nil
	}
	v, err := e.sess.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			e.log.Warn("session read failed", slog.String("key", key), slog.String("err", err.Error()))
		}
		return nil
	}
	var a Activity
	if json.Unmarshal([]byte(v), &a) != nil {
		return nil
	}
	return &a
}

func countRows(source string, s tabular.Stats) {
	utils.RowsTotal.WithLabelValues(source, "mapped").Add(float64(s.Mapped))
	utils.RowsTotal.WithLabelValues(source, "dropped").Add(float64(s.Dropped))
}

func countMerge(op string, r merge.Result) {
	utils.MergeRows.WithLabelValues(op, "inserted").Add(float64(r.Inserted))
	utils.MergeRows.WithLabelValues(op, "updated").Add(float64(r.Updated))
	utils.MergeRows.WithLabelValues(op, "discarded").Add(float64(r.Discarded))
}
