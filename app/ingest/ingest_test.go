package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/database/memory"
	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/sources"
)

// fakeAdapter serves a fixed batch, or a fixed error, per fetch.
type fakeAdapter struct {
	slug     string
	enabled  bool
	articles []news.Article
	err      error
	calls    int
}

func (a *fakeAdapter) Fetch(context.Context, string, string) ([]news.Article, error) {
	a.calls++
	if a.err != nil {
		return nil, fmt.Errorf("%w: %s: %v", sources.ErrSourceUnavailable, a.slug, a.err)
	}
	return a.articles, nil
}

func (a *fakeAdapter) SourceSlug() string { return a.slug }
func (a *fakeAdapter) IsEnabled() bool    { return a.enabled }

func newStore(t *testing.T, slugs ...string) *database.Store {
	t.Helper()

	store := memory.NewStore()
	var configs []*sources.Config
	for _, slug := range slugs {
		configs = append(configs, &sources.Config{Slug: slug, Name: slug, Settings: sources.ConfigSettings{Enabled: true}})
	}
	if err := Seed(context.Background(), store, configs); err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}
	return store
}

func article(source string, n int) news.Article {
	published := time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC)
	return news.Article{
		Title:        fmt.Sprintf("%s story %d", source, n),
		Summary:      "summary",
		URL:          fmt.Sprintf("https://%s.test/%d", source, n),
		ImageURL:     "https://img.test/1.jpg",
		AuthorName:   "Jane Doe",
		CategorySlug: "technology",
		SourceSlug:   source,
		PublishedAt:  &published,
	}
}

func TestMerger_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "guardian")
	merger := NewMerger(store)

	first, created, err := merger.Upsert(ctx, article("guardian", 1))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !created {
		t.Error("Expected first upsert to create")
	}

	second, created, err := merger.Upsert(ctx, article("guardian", 1))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if created {
		t.Error("Expected second upsert to update")
	}
	if second.ID != first.ID {
		t.Errorf("Expected same ID %d, got %d", first.ID, second.ID)
	}

	stored, _ := store.Articles.FindByID(ctx, first.ID)
	if stored.Title != "guardian story 1" || *stored.AuthorID != *first.AuthorID || *stored.CategoryID != *first.CategoryID {
		t.Errorf("Unexpected stored state %+v", stored)
	}
	if count, _ := store.Articles.Count(ctx); count != 1 {
		t.Errorf("Expected 1 article, got %d", count)
	}
}

func TestMerger_DedupByURLKeepsLatestTitle(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "guardian")
	merger := NewMerger(store)

	a := article("guardian", 1)
	b := article("guardian", 1)
	b.Title = "Corrected headline"

	if _, _, err := merger.Upsert(ctx, a); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	stored, _, err := merger.Upsert(ctx, b)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	found, _ := store.Articles.FindByURL(ctx, a.URL)
	if found.ID != stored.ID || found.Title != "Corrected headline" {
		t.Errorf("Expected one row with the second title, got %+v", found)
	}
}

func TestMerger_OverwriteClearsMissingOptionalFields(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "guardian")
	merger := NewMerger(store)

	a := article("guardian", 1)
	if _, _, err := merger.Upsert(ctx, a); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	a.ImageURL = ""
	a.AuthorName = ""
	stored, _, err := merger.Upsert(ctx, a)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	found, _ := store.Articles.FindByID(ctx, stored.ID)
	if found.ImageURL != "" || found.AuthorID != nil {
		t.Errorf("Expected image and author cleared, got image=%q author=%v", found.ImageURL, found.AuthorID)
	}
}

func TestMerger_CategoryFallback(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "guardian")
	merger := NewMerger(store)

	general, _ := store.Categories.FindBySlug(ctx, sources.FallbackCategory)

	for _, slug := range []string{"astrology", ""} {
		a := article("guardian", 1)
		a.CategorySlug = slug

		stored, _, err := merger.Upsert(ctx, a)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if stored.CategoryID == nil || *stored.CategoryID != general.ID {
			t.Errorf("Category %q: expected fallback category %d, got %v", slug, general.ID, stored.CategoryID)
		}
	}
}

func TestMerger_UnknownSourceStoresUnassociated(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	stored, created, err := NewMerger(store).Upsert(ctx, article("mystery", 1))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !created || stored.SourceID != nil {
		t.Errorf("Expected created article without source, got created=%v source=%v", created, stored.SourceID)
	}
}

func TestMerger_AuthorsAreScopedBySource(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "guardian", "nytimes")
	merger := NewMerger(store)

	a, _, _ := merger.Upsert(ctx, article("guardian", 1))
	b, _, _ := merger.Upsert(ctx, article("nytimes", 1))
	c, _, _ := merger.Upsert(ctx, article("guardian", 2))

	if *a.AuthorID == *b.AuthorID {
		t.Error("Expected distinct authors for the same name under two sources")
	}
	if *a.AuthorID != *c.AuthorID {
		t.Error("Expected the same author for the same name under one source")
	}
}

// racingArticles hides the winner's row from the first lookup, as a concurrent
// insert between lookup and create would.
type racingArticles struct {
	database.ArticleRepository
	once sync.Once
}

func (r *racingArticles) FindByURL(ctx context.Context, url string) (*news.StoredArticle, error) {
	hidden := false
	r.once.Do(func() { hidden = true })
	if hidden {
		return nil, nil
	}
	return r.ArticleRepository.FindByURL(ctx, url)
}

func TestMerger_DuplicateRaceBecomesUpdate(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "guardian")

	winner := article("guardian", 1)
	if _, _, err := NewMerger(store).Upsert(ctx, winner); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	store.Articles = &racingArticles{ArticleRepository: store.Articles}
	loser := winner
	loser.Title = "Loser title"

	stored, created, err := NewMerger(store).Upsert(ctx, loser)
	if err != nil {
		t.Fatalf("Expected duplicate to resolve as update, got %v", err)
	}
	if created {
		t.Error("Expected created=false for the losing writer")
	}
	if stored.Title != "Loser title" {
		t.Errorf("Expected losing write applied as update, got %q", stored.Title)
	}
	if count, _ := store.Articles.Count(ctx); count != 1 {
		t.Errorf("Expected 1 article, got %d", count)
	}
}

func TestMerger_ConcurrentUpsertsOfOneURL(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "guardian")
	merger := NewMerger(store)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a := article("guardian", 1)
			a.Title = fmt.Sprintf("writer %d", i)
			if _, _, err := merger.Upsert(ctx, a); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Unexpected error: %v", err)
	}
	if count, _ := store.Articles.Count(ctx); count != 1 {
		t.Errorf("Expected 1 article, got %d", count)
	}
}

func TestCoordinator_TwoSourcesThenRepeatedURL(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "guardian", "nytimes")

	guardian := &fakeAdapter{slug: "guardian", enabled: true}
	nytimes := &fakeAdapter{slug: "nytimes", enabled: true}
	for n := 1; n <= 3; n++ {
		guardian.articles = append(guardian.articles, article("guardian", n))
		nytimes.articles = append(nytimes.articles, article("nytimes", n))
	}

	coordinator := NewCoordinator(sources.NewRegistry(guardian, nytimes), store)

	logs, err := coordinator.RunAll(ctx, "", "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("Expected 2 fetch logs, got %d", len(logs))
	}
	for _, log := range logs {
		if log.Status != news.FetchStatusSuccess || log.ArticlesCreated != 3 {
			t.Errorf("Expected success with 3 created for %s, got %s with %d", log.Source, log.Status, log.ArticlesCreated)
		}
	}
	if count, _ := store.Articles.Count(ctx); count != 6 {
		t.Errorf("Expected 6 articles, got %d", count)
	}

	guardian.articles = []news.Article{article("guardian", 2)}
	log, err := coordinator.Run(ctx, "guardian", "", "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if log.ArticlesUpdated != 1 || log.ArticlesCreated != 0 {
		t.Errorf("Expected 1 updated and 0 created, got %d and %d", log.ArticlesUpdated, log.ArticlesCreated)
	}
	if count, _ := store.Articles.Count(ctx); count != 6 {
		t.Errorf("Expected 6 articles after rerun, got %d", count)
	}

	all, _ := store.FetchLogs.List(ctx, "", 0)
	if len(all) != 3 {
		t.Errorf("Expected 3 fetch logs, got %d", len(all))
	}
}

func TestCoordinator_DisabledSourceIsSilentNoOp(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "guardian")
	adapter := &fakeAdapter{slug: "guardian", articles: []news.Article{article("guardian", 1)}}

	log, err := NewCoordinator(sources.NewRegistry(adapter), store).Run(ctx, "guardian", "", "")
	if err != nil || log != nil {
		t.Errorf("Expected no log and no error, got %v and %v", log, err)
	}
	if adapter.calls != 0 {
		t.Errorf("Expected no fetch, got %d", adapter.calls)
	}
	if logs, _ := store.FetchLogs.List(ctx, "", 0); len(logs) != 0 {
		t.Errorf("Expected no fetch logs, got %d", len(logs))
	}
}

func TestCoordinator_UnknownSourceIsAuditedAndTerminal(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	log, err := NewCoordinator(sources.NewRegistry(), store).Run(ctx, "bogus", "", "")
	if !errors.Is(err, ErrUnknownSource) {
		t.Errorf("Expected ErrUnknownSource, got %v", err)
	}
	if log == nil || log.Status != news.FetchStatusFailed {
		t.Errorf("Expected failed fetch log, got %+v", log)
	}
}

func TestCoordinator_SourceFailureIsAuditedAndAbsorbed(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "guardian", "nytimes")

	failing := &fakeAdapter{slug: "guardian", enabled: true, err: errors.New("connection refused")}
	healthy := &fakeAdapter{slug: "nytimes", enabled: true, articles: []news.Article{article("nytimes", 1)}}

	logs, err := NewCoordinator(sources.NewRegistry(failing, healthy), store).RunAll(ctx, "", "")
	if err != nil {
		t.Fatalf("Expected source failure to be absorbed, got %v", err)
	}

	statuses := map[string]news.FetchStatus{}
	for _, log := range logs {
		statuses[log.Source] = log.Status
	}
	if statuses["guardian"] != news.FetchStatusFailed || statuses["nytimes"] != news.FetchStatusSuccess {
		t.Errorf("Unexpected statuses %v", statuses)
	}

	failed, _ := store.FetchLogs.List(ctx, "guardian", 1)
	if failed[0].ErrorMessage == "" {
		t.Error("Expected error message on failed fetch log")
	}
}

func TestCoordinator_EmptyResultIsSuccess(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "guardian")

	log, err := NewCoordinator(sources.NewRegistry(&fakeAdapter{slug: "guardian", enabled: true}), store).Run(ctx, "guardian", "", "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if log.Status != news.FetchStatusSuccess || log.ArticlesFetched != 0 {
		t.Errorf("Expected empty success, got %+v", log)
	}
}

// failingAuthors fails once the given number of authors has been resolved.
type failingAuthors struct {
	database.AuthorRepository
	remaining int
}

func (r *failingAuthors) FirstOrCreate(ctx context.Context, name string, sourceID *int64) (int64, error) {
	if r.remaining == 0 {
		return 0, errors.New("connection reset")
	}
	r.remaining--
	return r.AuthorRepository.FirstOrCreate(ctx, name, sourceID)
}

func TestCoordinator_StorageFailureIsPartialAndPropagated(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "guardian")
	store.Authors = &failingAuthors{AuthorRepository: store.Authors, remaining: 2}

	adapter := &fakeAdapter{slug: "guardian", enabled: true}
	for n := 1; n <= 3; n++ {
		adapter.articles = append(adapter.articles, article("guardian", n))
	}

	log, err := NewCoordinator(sources.NewRegistry(adapter), store).Run(ctx, "guardian", "", "")
	if err == nil {
		t.Fatal("Expected storage failure to propagate")
	}
	if log.Status != news.FetchStatusPartial || log.ArticlesCreated != 2 || log.ArticlesFetched != 3 {
		t.Errorf("Expected partial log with 2 created of 3, got %+v", log)
	}
}
