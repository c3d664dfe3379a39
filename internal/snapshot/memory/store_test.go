package memory

import (
	"context"
	"testing"
)

func TestStoreSaveCopiesData(t *testing.T) {
	t.Parallel()

	store := New()
	payload := []byte("<html>content</html>")
	if err := store.Save(context.Background(), "pages/2020/LEI/LEI_1_2020_orig.html", payload); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	payload[1] = 'H'
	stored := string(store.Get("pages/2020/LEI/LEI_1_2020_orig.html"))
	if stored != "<html>content</html>" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 object, got %d", store.Len())
	}
}
