package service

import (
	"context"
	"testing"

	"github.com/hana/catnip/internal/catapi"
	"github.com/hana/catnip/internal/domain"
)

func ingestOne(t *testing.T, ingest *IngestService, apiID string) {
	t.Helper()
	if _, err := ingest.Ingest(context.Background(), []catapi.Image{
		{ID: apiID, URL: "https://cdn.example/" + apiID + ".jpg", Width: 100, Height: 100},
	}); err != nil {
		t.Fatalf("failed to ingest %s: %v", apiID, err)
	}
}

func TestToggleLikeThenUnlike(t *testing.T) {
	db, ingest, likes := newTestServices(t)
	ctx := context.Background()

	ingestOne(t, ingest, "a1")

	result := likes.Toggle(ctx, "user-1", "a1")
	if !result.Success || !result.IsLiked || result.LikeCount != 1 {
		t.Errorf("first toggle = %+v, want success liked count=1", result)
	}

	result = likes.Toggle(ctx, "user-1", "a1")
	if !result.Success || result.IsLiked || result.LikeCount != 0 {
		t.Errorf("second toggle = %+v, want success unliked count=0", result)
	}

	// Toggle is its own inverse: no row may remain for the pair
	if got := countRows(t, db, &domain.CatLike{}, "user_id = ?", "user-1"); got != 0 {
		t.Errorf("like rows after toggle pair = %d, want 0", got)
	}
}

func TestToggleWithoutUser(t *testing.T) {
	_, ingest, likes := newTestServices(t)

	ingestOne(t, ingest, "a1")

	result := likes.Toggle(context.Background(), "", "a1")
	if result.Success || result.IsLiked || result.LikeCount != 0 {
		t.Errorf("toggle without user = %+v, want neutral failure", result)
	}
}

func TestToggleOnUningestedImage(t *testing.T) {
	_, _, likes := newTestServices(t)

	result := likes.Toggle(context.Background(), "user-1", "never-seen")
	if result.Success {
		t.Errorf("toggle on un-ingested id = %+v, want failure", result)
	}
}

func TestToggleTwoUsersSameCat(t *testing.T) {
	_, ingest, likes := newTestServices(t)
	ctx := context.Background()

	ingestOne(t, ingest, "a1")

	first := likes.Toggle(ctx, "user-1", "a1")
	second := likes.Toggle(ctx, "user-2", "a1")

	if !first.Success || !first.IsLiked {
		t.Errorf("user-1 toggle = %+v", first)
	}
	if !second.Success || !second.IsLiked {
		t.Errorf("user-2 toggle = %+v", second)
	}
	if second.LikeCount != 2 {
		t.Errorf("count after both users = %d, want 2", second.LikeCount)
	}
}

func TestEnrichDropsUningestedIDs(t *testing.T) {
	_, ingest, likes := newTestServices(t)
	ctx := context.Background()

	ingestOne(t, ingest, "a1")

	results := likes.Enrich(ctx, []string{"a1", "unknown"}, "")
	if len(results) != 1 {
		t.Fatalf("enrich returned %d entries, want 1", len(results))
	}
	entry := results[0]
	if entry.APIID != "a1" || entry.LikeCount != 0 || entry.IsLikedByUser {
		t.Errorf("entry = %+v, want a1 with zero likes, not liked", entry)
	}
	if entry.CatID == nil {
		t.Error("entry.CatID is nil, want the internal id of the ingested row")
	}
}

func TestEnrichLikedFlagScopedToUser(t *testing.T) {
	_, ingest, likes := newTestServices(t)
	ctx := context.Background()

	ingestOne(t, ingest, "a1")
	ingestOne(t, ingest, "b2")

	likes.Toggle(ctx, "user-1", "a1")

	results := likes.Enrich(ctx, []string{"a1", "b2"}, "user-1")
	if len(results) != 2 {
		t.Fatalf("enrich returned %d entries, want 2", len(results))
	}
	if !results[0].IsLikedByUser || results[0].LikeCount != 1 {
		t.Errorf("a1 entry = %+v, want liked with count 1", results[0])
	}
	if results[1].IsLikedByUser || results[1].LikeCount != 0 {
		t.Errorf("b2 entry = %+v, want not liked with count 0", results[1])
	}

	// Another viewer sees the count but not the liked flag
	other := likes.Enrich(ctx, []string{"a1"}, "user-2")
	if len(other) != 1 || other[0].IsLikedByUser || other[0].LikeCount != 1 {
		t.Errorf("other viewer entry = %+v, want count 1, not liked", other)
	}
}

func TestEnrichCountMatchesRelationRows(t *testing.T) {
	db, ingest, likes := newTestServices(t)
	ctx := context.Background()

	ingestOne(t, ingest, "a1")
	likes.Toggle(ctx, "user-1", "a1")
	likes.Toggle(ctx, "user-2", "a1")
	likes.Toggle(ctx, "user-3", "a1")
	likes.Toggle(ctx, "user-3", "a1") // unlike again

	var cat domain.Cat
	if err := db.First(&cat, "api_id = ?", "a1").Error; err != nil {
		t.Fatalf("failed to load cat: %v", err)
	}
	rows := countRows(t, db, &domain.CatLike{}, "cat_id = ?", cat.ID)

	results := likes.Enrich(ctx, []string{"a1"}, "")
	if len(results) != 1 {
		t.Fatalf("enrich returned %d entries, want 1", len(results))
	}
	if results[0].LikeCount != rows {
		t.Errorf("enriched count = %d, relation rows = %d", results[0].LikeCount, rows)
	}
	if rows != 2 {
		t.Errorf("relation rows = %d, want 2", rows)
	}
}

func TestEnrichDeduplicatesInput(t *testing.T) {
	_, ingest, likes := newTestServices(t)

	ingestOne(t, ingest, "a1")

	results := likes.Enrich(context.Background(), []string{"a1", "a1"}, "")
	if len(results) != 1 {
		t.Errorf("enrich returned %d entries for duplicated input, want 1", len(results))
	}
}

func TestPopularRanksByLikeCount(t *testing.T) {
	_, ingest, likes := newTestServices(t)
	ctx := context.Background()

	ingestOne(t, ingest, "x")
	ingestOne(t, ingest, "y")

	likes.Toggle(ctx, "user-1", "x")
	likes.Toggle(ctx, "user-2", "x")
	likes.Toggle(ctx, "user-1", "y")

	top := likes.Popular(ctx, 1)
	if len(top) != 1 {
		t.Fatalf("popular returned %d entries, want 1", len(top))
	}
	if top[0].APIID != "x" || top[0].LikeCount != 2 {
		t.Errorf("top entry = %+v, want x with count 2", top[0])
	}

	full := likes.Popular(ctx, 10)
	if len(full) != 2 {
		t.Fatalf("popular returned %d entries, want 2", len(full))
	}
	if full[0].APIID != "x" || full[1].APIID != "y" {
		t.Errorf("ranking order = [%s %s], want [x y]", full[0].APIID, full[1].APIID)
	}
}

func TestPopularTieBreaksByIngestionOrder(t *testing.T) {
	_, ingest, likes := newTestServices(t)
	ctx := context.Background()

	ingestOne(t, ingest, "first")
	ingestOne(t, ingest, "second")

	likes.Toggle(ctx, "user-1", "second")
	likes.Toggle(ctx, "user-1", "first")

	for i := 0; i < 3; i++ {
		top := likes.Popular(ctx, 2)
		if len(top) != 2 {
			t.Fatalf("popular returned %d entries, want 2", len(top))
		}
		if top[0].APIID != "first" || top[1].APIID != "second" {
			t.Errorf("tie order = [%s %s], want ingestion order [first second]", top[0].APIID, top[1].APIID)
		}
	}
}

func TestPopularExcludesUnlikedCats(t *testing.T) {
	_, ingest, likes := newTestServices(t)
	ctx := context.Background()

	ingestOne(t, ingest, "a1")

	top := likes.Popular(ctx, 5)
	if len(top) != 0 {
		t.Errorf("popular returned %d entries with no likes, want 0", len(top))
	}
}

func TestStats(t *testing.T) {
	_, ingest, likes := newTestServices(t)
	ctx := context.Background()

	ingestOne(t, ingest, "a1")
	ingestOne(t, ingest, "b2")
	likes.Toggle(ctx, "user-1", "a1")

	catCount, likeCount, err := likes.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if catCount != 2 || likeCount != 1 {
		t.Errorf("stats = (%d, %d), want (2, 1)", catCount, likeCount)
	}
}
