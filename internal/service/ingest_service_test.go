package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matiasvera/talklens/internal/domain"
	"github.com/matiasvera/talklens/internal/port"
)

func testIngestConfig() IngestConfig {
	return IngestConfig{
		Workers:           2,
		RetryAttempts:     3,
		RetryBaseDelay:    time.Millisecond,
		FreshnessWindow:   24 * time.Hour,
		AcquireTimeout:    time.Second,
		TranscribeTimeout: time.Second,
		EmbedTimeout:      time.Second,
	}
}

func testChunker() *Chunker {
	return NewChunker(ChunkConfig{TargetSeconds: 6, MaxSeconds: 10, MinSeconds: 2})
}

func defaultFragments() []domain.Fragment {
	return []domain.Fragment{
		{Text: "warm up", Start: 0.0, End: 2.0},
		{Text: "with light weight", Start: 2.0, End: 5.0},
		{Text: "feel the movement", Start: 5.0, End: 9.5},
	}
}

func TestIngestVideo_FullPipeline(t *testing.T) {
	acq := newFakeAcquirer()
	catalog := newFakeCatalog()
	idx := newFakeIndex()
	svc := NewIngestService(acq, &fakeTranscriber{fragments: defaultFragments()},
		newFakeEmbedder(), catalog, idx, testChunker(), testIngestConfig())

	res := svc.IngestVideo(context.Background(), "vid1", false)
	if res.Status != "done" {
		t.Fatalf("expected done, got %+v", res)
	}
	if res.Chunks != 1 {
		t.Errorf("expected 1 chunk, got %d", res.Chunks)
	}

	video, err := catalog.GetVideo(context.Background(), "vid1")
	if err != nil {
		t.Fatalf("video not recorded: %v", err)
	}
	if video.Status != domain.StageDone {
		t.Errorf("expected status done, got %q", video.Status)
	}
	if _, err := catalog.GetChannel(context.Background(), "chan1"); err != nil {
		t.Errorf("channel not recorded: %v", err)
	}

	chunks := catalog.chunks["vid1"]
	if len(chunks) != 1 {
		t.Fatalf("expected 1 catalog chunk, got %d", len(chunks))
	}
	if chunks[0].ID != domain.ChunkID("vid1", 0) {
		t.Errorf("unexpected chunk id %q", chunks[0].ID)
	}
	if chunks[0].ChannelID != "chan1" {
		t.Errorf("chunk missing denormalized channel id, got %q", chunks[0].ChannelID)
	}

	indexed, ok := idx.videos["vid1"]
	if !ok {
		t.Fatal("vectors not written to index")
	}
	if indexed.version != "test-embed-v1" {
		t.Errorf("vectors tagged %q, want test-embed-v1", indexed.version)
	}
	if len(indexed.chunks) != len(chunks) {
		t.Errorf("index holds %d chunks, catalog holds %d", len(indexed.chunks), len(chunks))
	}
}

func TestIngestVideo_SkipsFreshDoneVideo(t *testing.T) {
	acq := newFakeAcquirer()
	catalog := newFakeCatalog()
	catalog.videos["vid1"] = domain.Video{
		ID: "vid1", ChannelID: "chan1",
		Status:      domain.StageDone,
		ExtractedAt: time.Now(),
	}
	svc := NewIngestService(acq, &fakeTranscriber{fragments: defaultFragments()},
		newFakeEmbedder(), catalog, newFakeIndex(), testChunker(), testIngestConfig())

	res := svc.IngestVideo(context.Background(), "vid1", false)
	if res.Status != "skipped" {
		t.Fatalf("expected skipped, got %+v", res)
	}
	if acq.fetches != 0 {
		t.Errorf("acquirer called %d times for a fresh done video", acq.fetches)
	}
	if len(catalog.chunks["vid1"]) != 0 {
		t.Error("skip must not touch stored chunks")
	}
}

func TestIngestVideo_ForceReplaces(t *testing.T) {
	acq := newFakeAcquirer()
	catalog := newFakeCatalog()
	catalog.videos["vid1"] = domain.Video{
		ID: "vid1", ChannelID: "chan1",
		Status:      domain.StageDone,
		ExtractedAt: time.Now(),
	}
	idx := newFakeIndex()
	svc := NewIngestService(acq, &fakeTranscriber{fragments: defaultFragments()},
		newFakeEmbedder(), catalog, idx, testChunker(), testIngestConfig())

	res := svc.IngestVideo(context.Background(), "vid1", true)
	if res.Status != "done" {
		t.Fatalf("expected forced re-ingest to run, got %+v", res)
	}
	if acq.fetches != 1 {
		t.Errorf("expected 1 fetch, got %d", acq.fetches)
	}
	if len(catalog.chunks["vid1"]) != 1 {
		t.Errorf("expected chunk set replaced, got %d chunks", len(catalog.chunks["vid1"]))
	}
	if _, ok := idx.videos["vid1"]; !ok {
		t.Error("expected vectors rewritten on forced re-ingest")
	}
}

func TestIngestVideo_Reingest_SameChunkIDs(t *testing.T) {
	acq := newFakeAcquirer()
	catalog := newFakeCatalog()
	svc := NewIngestService(acq, &fakeTranscriber{fragments: defaultFragments()},
		newFakeEmbedder(), catalog, newFakeIndex(), testChunker(), testIngestConfig())

	svc.IngestVideo(context.Background(), "vid1", false)
	first := append([]domain.TranscriptChunk(nil), catalog.chunks["vid1"]...)

	svc.IngestVideo(context.Background(), "vid1", true)
	second := catalog.chunks["vid1"]

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ across ingestions: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("chunk %d id drifted: %q vs %q", i, first[i].ID, second[i].ID)
		}
	}
}

func TestIngestVideo_PermanentFailureNotRetried(t *testing.T) {
	acq := newFakeAcquirer()
	acq.failFor["gone"] = port.ErrVideoNotFound
	svc := NewIngestService(acq, &fakeTranscriber{}, newFakeEmbedder(),
		newFakeCatalog(), newFakeIndex(), testChunker(), testIngestConfig())

	res := svc.IngestVideo(context.Background(), "gone", false)
	if res.Status != "failed" {
		t.Fatalf("expected failed, got %+v", res)
	}
	if res.Stage != domain.StageAcquired {
		t.Errorf("expected failing stage %q, got %q", domain.StageAcquired, res.Stage)
	}
	if acq.fetches != 1 {
		t.Errorf("permanent failure retried: %d fetches", acq.fetches)
	}
}

func TestIngestVideo_TransientFailureExhaustsRetries(t *testing.T) {
	catalog := newFakeCatalog()
	svc := NewIngestService(newFakeAcquirer(), &fakeTranscriber{fail: errors.New("model timeout")},
		newFakeEmbedder(), catalog, newFakeIndex(), testChunker(), testIngestConfig())

	res := svc.IngestVideo(context.Background(), "vid1", false)
	if res.Status != "failed" {
		t.Fatalf("expected failed, got %+v", res)
	}
	if res.Stage != domain.StageTranscribed {
		t.Errorf("expected failing stage %q, got %q", domain.StageTranscribed, res.Stage)
	}

	video, err := catalog.GetVideo(context.Background(), "vid1")
	if err != nil {
		t.Fatalf("video row missing after failure: %v", err)
	}
	if video.Status != domain.StageFailed {
		t.Errorf("expected status failed, got %q", video.Status)
	}
	if video.FailedStage != domain.StageTranscribed {
		t.Errorf("expected failed_stage transcribed, got %q", video.FailedStage)
	}
}

func TestIngestBatch_FailureIsolation(t *testing.T) {
	acq := newFakeAcquirer()
	acq.failFor["bad"] = port.ErrVideoNotFound
	catalog := newFakeCatalog()
	svc := NewIngestService(acq, &fakeTranscriber{fragments: defaultFragments()},
		newFakeEmbedder(), catalog, newFakeIndex(), testChunker(), testIngestConfig())

	var progressed atomic.Int32
	results := svc.IngestBatch(context.Background(), []string{"ok1", "bad", "ok2"}, false, func(IngestResult) {
		progressed.Add(1)
	})

	if progressed.Load() != 3 {
		t.Errorf("expected 3 progress callbacks, got %d", progressed.Load())
	}
	byID := make(map[string]IngestResult, len(results))
	for _, r := range results {
		byID[r.VideoID] = r
	}
	if byID["bad"].Status != "failed" {
		t.Errorf("expected bad to fail, got %+v", byID["bad"])
	}
	for _, id := range []string{"ok1", "ok2"} {
		if byID[id].Status != "done" {
			t.Errorf("failure of one video affected %s: %+v", id, byID[id])
		}
	}
}
