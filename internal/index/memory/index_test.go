package memory

import (
	"context"
	"testing"

	"github.com/brlegis/normcrawler/internal/norm"
)

func TestIndexGetReturnsCopy(t *testing.T) {
	t.Parallel()

	idx := New()
	ctx := context.Background()

	doc, err := idx.Get(ctx, "LEI_1_2020_orig")
	if err != nil || doc != nil {
		t.Fatalf("unknown doc must be (nil, nil), got %v %v", doc, err)
	}

	stored := norm.Document{DocID: "LEI_1_2020_orig", Type: "LEI", Number: 1, Year: 2020,
		Variant: norm.VariantOriginal, ContentHash: "h1"}
	if err := idx.Upsert(ctx, stored); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := idx.Get(ctx, stored.DocID)
	if err != nil || got == nil {
		t.Fatalf("Get() = %v, %v", got, err)
	}
	got.ContentHash = "mutated"

	again, _ := idx.Get(ctx, stored.DocID)
	if again.ContentHash != "h1" {
		t.Fatal("expected Get to return a copy")
	}
	if idx.Len() != 1 {
		t.Fatalf("expected 1 document, got %d", idx.Len())
	}
}

func TestIndexUpsertReplaces(t *testing.T) {
	t.Parallel()

	idx := New()
	ctx := context.Background()
	doc := norm.Document{DocID: "DEC_2_2019_cons", Type: "DEC", Number: 2, Year: 2019,
		Variant: norm.VariantConsolidated, ContentHash: "h1"}
	_ = idx.Upsert(ctx, doc)
	doc.ContentHash = "h2"
	_ = idx.Upsert(ctx, doc)

	got, _ := idx.Get(ctx, doc.DocID)
	if got.ContentHash != "h2" || idx.Len() != 1 {
		t.Fatalf("expected replacement, got %+v len=%d", got, idx.Len())
	}
}
