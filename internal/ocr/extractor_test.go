package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printwerk/labelpress/internal/domain"
	"github.com/printwerk/labelpress/internal/storage"
)

// fakeEngine replays canned recognitions in call order
type fakeEngine struct {
	queue []*Recognition
	err   error
}

func (f *fakeEngine) Recognize(_ context.Context, _ []byte) (*Recognition, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.queue) == 0 {
		return &Recognition{}, nil
	}
	rec := f.queue[0]
	f.queue = f.queue[1:]
	return rec, nil
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestStore(t *testing.T) *storage.Local {
	t.Helper()
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestProcessScreenshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "shots/p1/full.png", testPNG(t, 64, 64)))

	engine := &fakeEngine{queue: []*Recognition{{
		Text: "Schraube M8\nArt.-Nr.: SW-10234\nPreis: 12,34 €",
		Words: []Word{
			{Text: "SW-10234", Confidence: 0.92},
			{Text: "12,34", Confidence: 0.88},
		},
	}}}

	ex := NewExtractor(engine, store, Config{})

	data, err := ex.ProcessScreenshot(ctx, "shots/p1/full.png")
	require.NoError(t, err)

	assert.Equal(t, "SW-10234", data.ArticleNumber)
	require.NotNil(t, data.Price)
	assert.InDelta(t, 12.34, *data.Price, 0.001)
	assert.Equal(t, "shots/p1/full.png", data.SourcePath)
	assert.NotEmpty(t, data.RawText)

	// Field confidences come from the words composing each value
	assert.InDelta(t, 0.92, data.Confidence.Fields[FieldArticleNumber], 0.001)
	assert.InDelta(t, 0.88, data.Confidence.Fields[FieldPrice], 0.001)
	assert.Greater(t, data.Confidence.Overall, 0.0)
}

func TestProcessScreenshotDefaultConfidence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "shots/p2/full.png", testPNG(t, 64, 64)))

	// Engine yields text but no word confidences
	engine := &fakeEngine{queue: []*Recognition{{Text: "Art.-Nr.: AB-100"}}}
	ex := NewExtractor(engine, store, Config{})

	data, err := ex.ProcessScreenshot(ctx, "shots/p2/full.png")
	require.NoError(t, err)
	assert.InDelta(t, DefaultFieldConfidence, data.Confidence.Fields[FieldArticleNumber], 0.001)
}

func TestProcessScreenshotEngineFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "shots/p3/full.png", testPNG(t, 32, 32)))

	ex := NewExtractor(&fakeEngine{err: errors.New("engine crashed")}, store, Config{})

	_, err := ex.ProcessScreenshot(ctx, "shots/p3/full.png")
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestProcessScreenshotEmptyText(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "shots/p4/full.png", testPNG(t, 32, 32)))

	ex := NewExtractor(&fakeEngine{}, store, Config{})

	_, err := ex.ProcessScreenshot(ctx, "shots/p4/full.png")
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestProcessScreenshotMissingBlob(t *testing.T) {
	ex := NewExtractor(&fakeEngine{}, newTestStore(t), Config{})

	_, err := ex.ProcessScreenshot(context.Background(), "shots/missing/full.png")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProcessArticleElements(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dir := "crawls/job/widget-42"
	require.NoError(t, store.Put(ctx, dir+"/articlenumber.png", testPNG(t, 32, 16)))
	require.NoError(t, store.Put(ctx, dir+"/price.png", testPNG(t, 32, 16)))
	require.NoError(t, store.Put(ctx, dir+"/full.png", testPNG(t, 64, 64)))

	// List returns keys sorted by walk order: articlenumber, full, price;
	// full.png is skipped by the crop path.
	engine := &fakeEngine{queue: []*Recognition{
		{Text: "Art.-Nr.: SW-10234"},
		{Text: "12,34 €\nab 10 Stück: 9,50 €"},
	}}

	ex := NewExtractor(engine, store, Config{})

	data, err := ex.ProcessArticleElements(ctx, dir, "fallback-key")
	require.NoError(t, err)

	assert.Equal(t, "SW-10234", data.ArticleNumber)
	require.NotNil(t, data.Price)
	assert.InDelta(t, 12.34, *data.Price, 0.001)
	assert.Len(t, data.TieredPrices, 1)

	// The crop path carries the fixed specialized confidence
	assert.InDelta(t, CropFieldConfidence, data.Confidence.Fields[FieldArticleNumber], 0.001)
	assert.InDelta(t, CropFieldConfidence, data.Confidence.Overall, 0.001)
}

func TestProcessArticleElementsNoCrops(t *testing.T) {
	store := newTestStore(t)
	ex := NewExtractor(&fakeEngine{}, store, Config{})

	_, err := ex.ProcessArticleElements(context.Background(), "crawls/job/empty", "key")
	assert.ErrorIs(t, err, domain.ErrExtraction)
}
