package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wrprafra/newsletter-project/internal/domain"
	"github.com/wrprafra/newsletter-project/internal/repository"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Newsletter{}, &domain.DomainTypeOverride{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		db.Exec("DELETE FROM newsletters")
		db.Exec("DELETE FROM domain_type_overrides")
	})
	return db
}

func visibleRow(emailID, userID, threadID string, received time.Time) *domain.Newsletter {
	r := received
	return &domain.Newsletter{
		EmailID:      emailID,
		UserID:       userID,
		ThreadID:     threadID,
		ReceivedDate: &r,
		Enriched:     true,
		IsComplete:   true,
	}
}

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 26, 535000000, time.UTC)
	cursor := EncodeCursor(at, "msg-42")
	gotTime, gotID, err := DecodeCursor(cursor)
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	if !gotTime.Equal(at) || gotID != "msg-42" {
		t.Errorf("got (%v, %q), want (%v, %q)", gotTime, gotID, at, "msg-42")
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, cursor := range []string{"", "no-pipe", "|id", "2026-01-01T00:00:00Z|", "yesterday|id"} {
		if _, _, err := DecodeCursor(cursor); !errors.Is(err, ErrBadCursor) {
			t.Errorf("DecodeCursor(%q) err = %v, want ErrBadCursor", cursor, err)
		}
	}
}

func TestGetPageChainedCursorsCoverAllRows(t *testing.T) {
	db := testDB(t)
	repo := repository.NewNewsletterRepository(db)
	feed := NewFeedService(repo, nil)
	ctx := context.Background()

	// Duplicate timestamps force the email-id tie-breaker to carry the order.
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for n := 0; n < 7; n++ {
		received := base.Add(-time.Duration(n/2) * time.Hour)
		row := visibleRow(fmt.Sprintf("m%02d", n), "u1", fmt.Sprintf("t%02d", n), received)
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	var collected []string
	cursor := ""
	for pages := 0; pages < 10; pages++ {
		page, err := feed.GetPage(ctx, "u1", 3, cursor, false)
		if err != nil {
			t.Fatalf("GetPage: %v", err)
		}
		for _, item := range page.Items {
			collected = append(collected, item.EmailID)
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	if len(collected) != 7 {
		t.Fatalf("collected %d rows (%v), want 7", len(collected), collected)
	}
	seen := map[string]bool{}
	for _, id := range collected {
		if seen[id] {
			t.Errorf("row %s returned twice", id)
		}
		seen[id] = true
	}
}

func TestGetPageThreadCollapseKeepsCursorCorrect(t *testing.T) {
	db := testDB(t)
	repo := repository.NewNewsletterRepository(db)
	feed := NewFeedService(repo, nil)
	ctx := context.Background()

	// Three rows, the two newest share a thread; page size two.
	base := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	rows := []*domain.Newsletter{
		visibleRow("m3", "u1", "shared", base),
		visibleRow("m2", "u1", "shared", base.Add(-time.Hour)),
		visibleRow("m1", "u1", "solo", base.Add(-2*time.Hour)),
	}
	for _, row := range rows {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	first, err := feed.GetPage(ctx, "u1", 2, "", false)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if len(first.Items) != 1 || first.Items[0].EmailID != "m3" {
		t.Fatalf("first page items = %v, want just m3", first.Items)
	}
	if !first.HasMore || first.NextCursor == "" {
		t.Fatal("expected a continuation after the collapsed page")
	}

	// The cursor advanced over the hidden duplicate, so m1 still surfaces.
	second, err := feed.GetPage(ctx, "u1", 2, first.NextCursor, false)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if len(second.Items) != 1 || second.Items[0].EmailID != "m1" {
		t.Fatalf("second page items = %v, want just m1", second.Items)
	}
}

func TestGetPageHidesIncompleteDeletedAndHiddenDomains(t *testing.T) {
	db := testDB(t)
	repo := repository.NewNewsletterRepository(db)
	feed := NewFeedService(repo, nil)
	ctx := context.Background()

	base := time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC)
	ok := visibleRow("ok", "u1", "", base)
	incomplete := visibleRow("inc", "u1", "", base.Add(-time.Minute))
	incomplete.IsComplete = false
	deleted := visibleRow("del", "u1", "", base.Add(-2*time.Minute))
	deleted.IsDeleted = true
	noDate := &domain.Newsletter{EmailID: "nodate", UserID: "u1", Enriched: true, IsComplete: true}
	otherUser := visibleRow("other", "u2", "", base)

	for _, row := range []*domain.Newsletter{ok, incomplete, deleted, noDate, otherUser} {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	page, err := feed.GetPage(ctx, "u1", 10, "", false)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].EmailID != "ok" {
		t.Errorf("items = %+v, want only ok", page.Items)
	}
}

func TestGetPageHiddenDomainFilter(t *testing.T) {
	db := testDB(t)
	repo := repository.NewNewsletterRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	keep := visibleRow("keep", "u1", "", base)
	keep.SourceDomain = "good.com"
	hide := visibleRow("hide", "u1", "", base.Add(-time.Minute))
	hide.SourceDomain = "noisy.io"
	for _, row := range []*domain.Newsletter{keep, hide} {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rows, err := repo.FeedPage(ctx, "u1", nil, "", 10, []string{"noisy.io"}, false)
	if err != nil {
		t.Fatalf("FeedPage: %v", err)
	}
	if len(rows) != 1 || rows[0].EmailID != "keep" {
		t.Errorf("rows = %+v, want only keep", rows)
	}
}

func TestCollapseThreadsKeepsFirstAndThreadless(t *testing.T) {
	rows := []domain.Newsletter{
		{EmailID: "a", ThreadID: "t1"},
		{EmailID: "b", ThreadID: ""},
		{EmailID: "c", ThreadID: "t1"},
		{EmailID: "d", ThreadID: ""},
		{EmailID: "e", ThreadID: "t2"},
	}
	out := CollapseThreads(rows)
	want := []string{"a", "b", "d", "e"}
	if len(out) != len(want) {
		t.Fatalf("collapsed to %d rows, want %d", len(out), len(want))
	}
	for n, id := range want {
		if out[n].EmailID != id {
			t.Errorf("out[%d] = %s, want %s", n, out[n].EmailID, id)
		}
	}
}

func TestCompletenessGatesVisibility(t *testing.T) {
	db := testDB(t)
	repo := repository.NewNewsletterRepository(db)
	feed := NewFeedService(repo, nil)
	ctx := context.Background()

	base := time.Date(2026, 5, 5, 9, 0, 0, 0, time.UTC)
	row := visibleRow("m1", "u1", "", base)
	row.IsComplete = false
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	page, err := feed.GetPage(ctx, "u1", 10, "", false)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("incomplete row surfaced: %+v", page.Items)
	}

	// The image arriving flips completeness and the row becomes visible.
	if err := repo.UpdateFields(ctx, "m1", "u1", map[string]interface{}{
		"image_url":   "https://cdn.test/x.jpg",
		"is_complete": true,
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	page, err = feed.GetPage(ctx, "u1", 10, "", false)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatal("row should surface once complete")
	}
}
