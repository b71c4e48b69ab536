package pipeline

import (
	"context"
	"testing"
	"time"

	"echoframe/internal/config"
	"echoframe/internal/core"
	"echoframe/internal/dedup"
	"echoframe/internal/emitter"
	"echoframe/internal/matcher"
	"echoframe/internal/persistence"
	"echoframe/internal/registry"
	"echoframe/internal/scorer"
)

func testPatterns() []core.RiskPattern {
	return []core.RiskPattern{
		{
			ID:          "energy-regulatory",
			Name:        "Suspensión regulatoria",
			Sector:      core.SectorEnergy,
			PatternType: "regulatory",
			Keywords:    []string{"SENER", "suspensión de permiso"},
			RiskLevel:   core.RiskLevelHigh,
			Template:    map[string]float64{"keyword_hit": 1.0},
			Active:      true,
		},
		{
			ID:          "pharma-cofepris",
			Name:        "Acción COFEPRIS",
			Sector:      core.SectorPharma,
			PatternType: "regulatory",
			Keywords:    []string{"COFEPRIS"},
			RiskLevel:   core.RiskLevelMedium,
			Template:    map[string]float64{"keyword_hit": 1.0},
			Active:      true,
		},
	}
}

func newTestPipeline(t *testing.T, db *persistence.MemoryDB) *Pipeline {
	t.Helper()
	reg, errs := registry.Load(testPatterns())
	if len(errs) != 0 {
		t.Fatalf("Pattern load errors: %v", errs)
	}
	d := dedup.New(db.Alerts(), dedup.NewMemoryWindow(72*time.Hour), 0.9)
	return New(Options{
		Registry:    reg,
		Matcher:     matcher.New(10),
		Scorer:      scorer.New(config.Thresholds{Low: 0.3, Medium: 0.6, High: 0.8}),
		Dedup:       d,
		Emitter:     emitter.New(db.Alerts(), db.Suppressions()),
		Articles:    db.Articles(),
		Alerts:      db.Alerts(),
		MinScore:    0.3,
		Concurrency: 4,
		BatchLimit:  100,
	})
}

func article(id, title, body string) *core.Article {
	return &core.Article{
		ID:        id,
		SourceID:  "s1",
		Title:     title,
		Body:      body,
		CreatedAt: time.Now(),
	}
}

func TestEvaluateArticleCreatesAlert(t *testing.T) {
	db := persistence.NewMemoryDB()
	p := newTestPipeline(t, db)
	ctx := context.Background()

	result := p.EvaluateArticle(ctx, article("a1",
		"SENER suspende permiso a planta solar",
		"SENER anunció la suspensión de permiso a la planta solar en Sonora"))

	if len(result.Alerts) != 1 {
		t.Fatalf("Expected 1 alert, got %d (suppressed=%d failures=%d)",
			len(result.Alerts), result.Suppressed, result.Failures)
	}
	alert := result.Alerts[0]
	if alert.RiskPatternID != "energy-regulatory" || alert.Sector != core.SectorEnergy {
		t.Errorf("Alert bound to wrong pattern: %+v", alert)
	}
	if alert.RiskLevel < core.RiskLevelHigh {
		t.Errorf("Expected at least the pattern's base level, got %v", alert.RiskLevel)
	}
}

func TestEvaluateArticleIdempotent(t *testing.T) {
	db := persistence.NewMemoryDB()
	p := newTestPipeline(t, db)
	ctx := context.Background()

	a := article("a1",
		"SENER suspende permiso a planta solar",
		"SENER anunció la suspensión de permiso a la planta")

	first := p.EvaluateArticle(ctx, a)
	if len(first.Alerts) != 1 {
		t.Fatalf("First pass produced %d alerts", len(first.Alerts))
	}

	second := p.EvaluateArticle(ctx, a)
	if len(second.Alerts) != 0 {
		t.Errorf("Re-evaluation produced %d new alerts", len(second.Alerts))
	}
	if second.Suppressed != 1 {
		t.Errorf("Expected 1 suppression on re-evaluation, got %d", second.Suppressed)
	}

	alerts, _ := db.Alerts().List(ctx, persistence.AlertFilter{})
	if len(alerts) != 1 {
		t.Errorf("Expected exactly 1 stored alert, got %d", len(alerts))
	}
	suppressions, _ := db.Suppressions().ListByArticle(ctx, "a1")
	if len(suppressions) != 1 || suppressions[0].Reason != "suppress_exact_duplicate" {
		t.Errorf("Expected exact-duplicate audit record, got %+v", suppressions)
	}
}

func TestEvaluateArticleNearDuplicateSuppressed(t *testing.T) {
	db := persistence.NewMemoryDB()
	p := newTestPipeline(t, db)
	ctx := context.Background()

	title := "SENER suspende permiso a planta solar en Sonora"
	first := p.EvaluateArticle(ctx, article("a1", title,
		"SENER anunció la suspensión de permiso a la planta"))
	if len(first.Alerts) != 1 {
		t.Fatalf("First article produced %d alerts", len(first.Alerts))
	}

	// Same story from a second outlet: same title, different article id.
	second := p.EvaluateArticle(ctx, article("a2", title,
		"La secretaría SENER confirmó la suspensión de permiso"))
	if len(second.Alerts) != 0 {
		t.Errorf("Near-duplicate produced %d alerts", len(second.Alerts))
	}
	if second.Suppressed != 1 {
		t.Errorf("Expected 1 near-duplicate suppression, got %d", second.Suppressed)
	}
	suppressions, _ := db.Suppressions().ListByArticle(ctx, "a2")
	if len(suppressions) != 1 || suppressions[0].Reason != "suppress_near_duplicate" {
		t.Errorf("Expected near-duplicate audit record, got %+v", suppressions)
	}
}

func TestEvaluateArticleBelowMinScore(t *testing.T) {
	db := persistence.NewMemoryDB()
	reg, _ := registry.Load([]core.RiskPattern{{
		ID:        "weak",
		Name:      "weak pattern",
		Sector:    core.SectorEnergy,
		Keywords:  []string{"suspensión"},
		RiskLevel: core.RiskLevelLow,
		Template:  map[string]float64{"keyword_hit": 1.0},
		Active:    true,
	}})
	d := dedup.New(db.Alerts(), dedup.NewMemoryWindow(time.Hour), 0.9)
	p := New(Options{
		Registry:    reg,
		Matcher:     matcher.New(10),
		Scorer:      scorer.New(config.Thresholds{Low: 0.7, Medium: 0.8, High: 0.9}),
		Dedup:       d,
		Emitter:     emitter.New(db.Alerts(), db.Suppressions()),
		Articles:    db.Articles(),
		Alerts:      db.Alerts(),
		MinScore:    0.7,
		Concurrency: 1,
		BatchLimit:  10,
	})

	// A stemmed partial hit scores 0.6, under the 0.7 gate.
	result := p.EvaluateArticle(context.Background(), article("a1", "Noticia",
		"Las suspensiones afectan a tres plantas"))
	if len(result.Alerts) != 0 || result.Suppressed != 0 {
		t.Errorf("Sub-threshold candidate reached the emitter: %+v", result)
	}
}

func TestWarmDedupSuppressesAcrossRestarts(t *testing.T) {
	db := persistence.NewMemoryDB()
	ctx := context.Background()
	title := "SENER suspende permiso a planta solar en Sonora"

	a1 := article("a1", title, "SENER anunció la suspensión de permiso")
	if err := db.Articles().Create(ctx, a1); err != nil {
		t.Fatal(err)
	}
	first := newTestPipeline(t, db)
	if r := first.EvaluateArticle(ctx, a1); len(r.Alerts) != 1 {
		t.Fatalf("First run produced %d alerts", len(r.Alerts))
	}

	// A later run starts with an empty in-process window; warming rebuilds
	// it from the alerts persisted within the lookback window.
	second := newTestPipeline(t, db)
	if err := second.WarmDedup(ctx, 72*time.Hour); err != nil {
		t.Fatalf("WarmDedup failed: %v", err)
	}
	r := second.EvaluateArticle(ctx, article("a2", title,
		"La secretaría SENER confirmó la suspensión de permiso"))
	if len(r.Alerts) != 0 || r.Suppressed != 1 {
		t.Errorf("Expected near-duplicate suppression after restart, got alerts=%d suppressed=%d",
			len(r.Alerts), r.Suppressed)
	}

	alerts, _ := db.Alerts().List(ctx, persistence.AlertFilter{})
	if len(alerts) != 1 {
		t.Errorf("Expected exactly 1 persisted alert across runs, got %d", len(alerts))
	}
}

func TestWarmDedupSkipsMissingArticles(t *testing.T) {
	db := persistence.NewMemoryDB()
	ctx := context.Background()

	orphan := &core.RiskAlert{
		ID:            "orphan",
		ArticleID:     "gone",
		RiskPatternID: "energy-regulatory",
		Sector:        core.SectorEnergy,
		CreatedAt:     time.Now(),
	}
	if err := db.Alerts().Create(ctx, orphan); err != nil {
		t.Fatal(err)
	}

	p := newTestPipeline(t, db)
	if err := p.WarmDedup(ctx, 72*time.Hour); err != nil {
		t.Errorf("WarmDedup should skip alerts whose article is gone: %v", err)
	}
}

type failingAlerts struct {
	persistence.AlertRepository
}

func (f *failingAlerts) Create(context.Context, *core.RiskAlert) error {
	return &persistence.RetryableError{Err: context.DeadlineExceeded}
}

func TestEvaluateArticleFailureIsolation(t *testing.T) {
	db := persistence.NewMemoryDB()
	reg, errs := registry.Load(testPatterns())
	if len(errs) != 0 {
		t.Fatalf("Pattern load errors: %v", errs)
	}
	broken := &failingAlerts{AlertRepository: db.Alerts()}
	d := dedup.New(broken, dedup.NewMemoryWindow(time.Hour), 0.9)
	p := New(Options{
		Registry:    reg,
		Matcher:     matcher.New(10),
		Scorer:      scorer.New(config.Thresholds{Low: 0.3, Medium: 0.6, High: 0.8}),
		Dedup:       d,
		Emitter:     emitter.New(broken, db.Suppressions()),
		Articles:    db.Articles(),
		Alerts:      broken,
		MinScore:    0.3,
		Concurrency: 1,
		BatchLimit:  10,
	})

	// The article matches both patterns; both inserts fail but neither stops
	// the other from being attempted.
	result := p.EvaluateArticle(context.Background(), article("a1",
		"SENER y COFEPRIS anuncian medidas",
		"SENER suspende permisos y COFEPRIS emite alerta sanitaria"))
	if result.Failures != 2 {
		t.Errorf("Expected 2 isolated failures, got %d (alerts=%d)", result.Failures, len(result.Alerts))
	}
	if len(result.Alerts) != 0 {
		t.Errorf("Failed inserts still returned alerts: %v", result.Alerts)
	}
}

func TestAnalyzeRecent(t *testing.T) {
	db := persistence.NewMemoryDB()
	p := newTestPipeline(t, db)
	ctx := context.Background()

	articles := []*core.Article{
		article("a1", "SENER suspende permiso a planta solar",
			"SENER anunció la suspensión de permiso"),
		article("a2", "COFEPRIS emite alerta sanitaria",
			"COFEPRIS retiró un lote de medicamentos"),
		article("a3", "Resultados deportivos",
			"El equipo local ganó el partido"),
	}
	for _, a := range articles {
		if err := db.Articles().Create(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	batch, err := p.AnalyzeRecent(ctx, time.Now().Add(-time.Hour), 0)
	if err != nil {
		t.Fatalf("AnalyzeRecent failed: %v", err)
	}
	if batch.Articles != 3 {
		t.Errorf("Articles = %d, want 3", batch.Articles)
	}
	if batch.Alerts != 2 {
		t.Errorf("Alerts = %d, want 2", batch.Alerts)
	}
	if batch.Failures != 0 {
		t.Errorf("Failures = %d, want 0", batch.Failures)
	}
}

func TestAnalyzeRecentRespectsSince(t *testing.T) {
	db := persistence.NewMemoryDB()
	p := newTestPipeline(t, db)
	ctx := context.Background()

	old := article("a1", "SENER suspende permiso", "SENER anunció la suspensión de permiso")
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	if err := db.Articles().Create(ctx, old); err != nil {
		t.Fatal(err)
	}

	batch, err := p.AnalyzeRecent(ctx, time.Now().Add(-time.Hour), 0)
	if err != nil {
		t.Fatalf("AnalyzeRecent failed: %v", err)
	}
	if batch.Articles != 0 {
		t.Errorf("Expected old article to be skipped, evaluated %d", batch.Articles)
	}
}
