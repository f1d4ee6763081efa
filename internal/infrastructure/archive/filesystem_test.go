package archive

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

func TestFilesystemArchive(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "drafts", "discarded")
	archiver := NewFilesystem(dir)

	reason := "Dados desatualizados"
	reviewed := time.Date(2025, 3, 14, 11, 0, 0, 0, time.UTC)
	rec := ports.ArchiveRecord{
		Draft: domain.Draft{
			ID: 5, Ticker: "ACME4", Title: "Acme em alta", Content: "<p>Texto</p>",
			Status: domain.DraftRejected, RejectionReason: &reason, ReviewedAt: &reviewed,
			CreatedAt: time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC),
		},
		Snapshot: domain.MarketSnapshot{ID: 7, Price: domain.Float(30.5), Change: domain.Float(0.5), Source: domain.SourceLLM},
		SavedAt:  time.Date(2025, 3, 14, 11, 0, 5, 0, time.UTC),
	}

	path, err := archiver.Archive(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "artigo_5_ACME4_2025-03-14_110005.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	article := doc["article"].(map[string]any)
	assert.Equal(t, "Acme em alta", article["title"])
	assert.Equal(t, "Dados desatualizados", article["motivo_reprovacao"])
	assert.Equal(t, "reprovado", article["status"])
	assert.Equal(t, "2025-03-14T11:00:00Z", article["reviewed_at"])

	financial := doc["financial_data"].(map[string]any)
	assert.Equal(t, 30.5, financial["price"])
	assert.Nil(t, doc["sentiment_analysis"])
	assert.Equal(t, "2025-03-14T11:00:05Z", doc["saved_at"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFilesystemArchiveUnwritableDir(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := NewFilesystem(filepath.Join(file, "discarded")).Archive(context.Background(), ports.ArchiveRecord{Draft: domain.Draft{ID: 1, Ticker: "ACME4"}})
	require.Error(t, err)
}
