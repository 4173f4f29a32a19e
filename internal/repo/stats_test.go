package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/domain"
)

func newStatsDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("stats_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.Rating{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// insertRating writes a row directly so tests control rated_at precisely.
func insertRating(t *testing.T, db *gorm.DB, userID, name, product string, score float64, at time.Time) {
	t.Helper()
	r := &domain.Rating{
		ID:          fmt.Sprintf("%s-%s-%d", userID, product, at.UnixNano()),
		UserID:      userID,
		DisplayName: name,
		ProductName: product,
		Visual:      score,
		Smell:       score,
		Touch:       score,
		Taste:       score,
		Effects:     score,
		RatedAt:     at,
	}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("insert rating: %v", err)
	}
}

func TestCommunityAverage(t *testing.T) {
	db := newStatsDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	avg, count, err := CommunityAverage(ctx, db, "Amnesia Haze")
	if err != nil || avg != 0 || count != 0 {
		t.Fatalf("empty product: avg=%v count=%d err=%v", avg, count, err)
	}

	insertRating(t, db, "u1", "alice", "Amnesia Haze", 8, now)
	insertRating(t, db, "u2", "bob", "amnesia haze", 6, now) // case-insensitive match

	avg, count, err = CommunityAverage(ctx, db, "AMNESIA HAZE")
	if err != nil {
		t.Fatalf("CommunityAverage: %v", err)
	}
	if count != 2 || avg != 7 {
		t.Fatalf("avg=%v count=%d, want 7 and 2", avg, count)
	}
}

func TestTopProducts_WindowAndOrdering(t *testing.T) {
	db := newStatsDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insertRating(t, db, "u1", "alice", "Old Glory", 10, now.Add(-30*24*time.Hour))
	insertRating(t, db, "u1", "alice", "Fresh A", 8, now.Add(-time.Hour))
	insertRating(t, db, "u2", "bob", "Fresh A", 8, now.Add(-2*time.Hour))
	insertRating(t, db, "u2", "bob", "Fresh B", 8, now.Add(-time.Hour))

	// All-time: highest average first.
	all, err := TopProducts(ctx, db, nil, 10)
	if err != nil {
		t.Fatalf("TopProducts all-time: %v", err)
	}
	if len(all) != 3 || all[0].ProductName != "Old Glory" {
		t.Fatalf("all-time ranking wrong: %+v", all)
	}

	// Windowed: the old rating drops out; equal averages break by count.
	since := now.Add(-7 * 24 * time.Hour)
	week, err := TopProducts(ctx, db, &since, 10)
	if err != nil {
		t.Fatalf("TopProducts windowed: %v", err)
	}
	if len(week) != 2 {
		t.Fatalf("expected 2 products in window, got %+v", week)
	}
	if week[0].ProductName != "Fresh A" || week[0].Count != 2 {
		t.Fatalf("count tie-break wrong: %+v", week)
	}

	// Limit applies.
	top1, err := TopProducts(ctx, db, nil, 1)
	if err != nil || len(top1) != 1 {
		t.Fatalf("limit: got %+v err=%v", top1, err)
	}
}

func TestRaterAggregates_RankingAndDisplayName(t *testing.T) {
	db := newStatsDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insertRating(t, db, "u1", "alice-old", "A", 6, now.Add(-2*time.Hour))
	insertRating(t, db, "u1", "alice-new", "B", 8, now.Add(-time.Hour))
	insertRating(t, db, "u2", "bob", "A", 10, now)

	aggs, err := RaterAggregates(ctx, db, nil, 0)
	if err != nil {
		t.Fatalf("RaterAggregates: %v", err)
	}
	if len(aggs) != 2 {
		t.Fatalf("expected 2 raters, got %+v", aggs)
	}
	// u1 has more ratings, so ranks first despite the lower average.
	if aggs[0].UserID != "u1" || aggs[0].Count != 2 {
		t.Fatalf("count-first ordering wrong: %+v", aggs)
	}
	// DisplayName is the snapshot from the most recent row.
	if aggs[0].DisplayName != "alice-new" {
		t.Fatalf("expected latest display name, got %q", aggs[0].DisplayName)
	}

	// Windowed leaderboard only counts recent rows.
	since := now.Add(-90 * time.Minute)
	recent, err := RaterAggregates(ctx, db, &since, 0)
	if err != nil {
		t.Fatalf("windowed RaterAggregates: %v", err)
	}
	for _, a := range recent {
		if a.UserID == "u1" && a.Count != 1 {
			t.Fatalf("window should trim u1 to 1 rating: %+v", a)
		}
	}

	// Limit applies.
	one, err := RaterAggregates(ctx, db, nil, 1)
	if err != nil || len(one) != 1 {
		t.Fatalf("limit: got %+v err=%v", one, err)
	}
}

func TestBestRating(t *testing.T) {
	db := newStatsDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := BestRating(ctx, db, "u1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for unrated user, got %v", err)
	}

	insertRating(t, db, "u1", "alice", "Meh", 5, now.Add(-time.Hour))
	insertRating(t, db, "u1", "alice", "Great", 9, now)

	best, err := BestRating(ctx, db, "u1")
	if err != nil {
		t.Fatalf("BestRating: %v", err)
	}
	if best.ProductName != "Great" {
		t.Fatalf("expected highest-scoring product, got %+v", best)
	}
}

func TestUserScoreBounds(t *testing.T) {
	db := newStatsDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	count, min, max, avg, err := UserScoreBounds(ctx, db, "u1")
	if err != nil || count != 0 || min != 0 || max != 0 || avg != 0 {
		t.Fatalf("unrated user should be all zeros: %d %v %v %v %v", count, min, max, avg, err)
	}

	insertRating(t, db, "u1", "alice", "A", 4, now)
	insertRating(t, db, "u1", "alice", "B", 8, now)

	count, min, max, avg, err = UserScoreBounds(ctx, db, "u1")
	if err != nil {
		t.Fatalf("UserScoreBounds: %v", err)
	}
	if count != 2 || min != 4 || max != 8 || avg != 6 {
		t.Fatalf("bounds wrong: count=%d min=%v max=%v avg=%v", count, min, max, avg)
	}
}

func TestRecentRatingCounts(t *testing.T) {
	db := newStatsDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insertRating(t, db, "u1", "alice", "A", 5, now.Add(-40*24*time.Hour))
	insertRating(t, db, "u1", "alice", "B", 5, now.Add(-time.Hour))
	insertRating(t, db, "u2", "bob", "A", 5, now.Add(-time.Hour))
	insertRating(t, db, "u2", "bob", "B", 5, now.Add(-2*time.Hour))

	out, err := RecentRatingCounts(ctx, db, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("RecentRatingCounts: %v", err)
	}
	if len(out) != 2 || out[0].UserID != "u2" || out[0].Count != 2 {
		t.Fatalf("unexpected recent counts: %+v", out)
	}
}

func TestProductCriterionAverages(t *testing.T) {
	db := newStatsDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	avgs, total, count, err := ProductCriterionAverages(ctx, db, "Nothing")
	if err != nil || count != 0 || total != 0 || avgs != (CriterionAverages{}) {
		t.Fatalf("empty product should be zero: %+v %v %d %v", avgs, total, count, err)
	}

	// Two raters with distinct per-criterion profiles.
	r1 := &domain.Rating{ID: "r1", UserID: "u1", DisplayName: "alice", ProductName: "Amnesia Haze",
		Visual: 8, Smell: 6, Touch: 4, Taste: 10, Effects: 2, RatedAt: now}
	r2 := &domain.Rating{ID: "r2", UserID: "u2", DisplayName: "bob", ProductName: "amnesia haze",
		Visual: 6, Smell: 8, Touch: 6, Taste: 8, Effects: 4, RatedAt: now}
	if err := db.Create(r1).Error; err != nil {
		t.Fatalf("insert r1: %v", err)
	}
	if err := db.Create(r2).Error; err != nil {
		t.Fatalf("insert r2: %v", err)
	}

	avgs, total, count, err = ProductCriterionAverages(ctx, db, "AMNESIA HAZE")
	if err != nil {
		t.Fatalf("ProductCriterionAverages: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	want := CriterionAverages{Visual: 7, Smell: 7, Touch: 5, Taste: 9, Effects: 3}
	if avgs != want {
		t.Fatalf("avgs = %+v, want %+v", avgs, want)
	}
	if total < 6.199 || total > 6.201 {
		t.Fatalf("total = %v, want ~6.2", total)
	}
}
