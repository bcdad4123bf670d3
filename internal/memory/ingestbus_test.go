package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mindloop/internal/chatmodel"
	"mindloop/internal/clock"
	"mindloop/internal/embedprovider"
	"mindloop/internal/llmprovider"
	"mindloop/internal/vectorstore"
)

// flakyStore wraps an in-memory vectorstore.Store and fails the first
// N calls to Add, succeeding afterward — used to exercise IngestBus's
// retry/backoff path deterministically.
type flakyStore struct {
	vectorstore.Store
	mu       sync.Mutex
	failLeft int
}

func (f *flakyStore) Add(ctx context.Context, collection string, req vectorstore.AddRequest) error {
	f.mu.Lock()
	if f.failLeft > 0 {
		f.failLeft--
		f.mu.Unlock()
		return chatmodel.ErrTransient
	}
	f.mu.Unlock()
	return f.Store.Add(ctx, collection, req)
}

func newBusSystem(t *testing.T, store vectorstore.Store) (*System, *Store, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC))
	st, err := NewStore(context.Background(), store, fake, StoreConfig{CacheSize: 100})
	require.NoError(t, err)
	embed := embedprovider.NewFake(8)
	extractor := NewExtractor(&llmprovider.Fake{}, embed, fake)
	fusion := NewFusion(FusionConfig{}, st, NewInProcessFingerprints(), fake)
	retriever := NewRetriever(RetrieveConfig{FinalResultLimit: 10}, st, embed)
	sys := NewSystem(SystemConfig{}, extractor, fusion, retriever, st, &llmprovider.Fake{}, fake)
	return sys, st, fake
}

func sampleTranscript() Transcript {
	return Transcript{
		ChatScope: "c1", UserScope: "u1",
		Messages: []chatmodel.Message{{UserDisplayName: "Alice", Text: "my name is Alice"}},
	}
}

func TestIngestBus_SubmitAndProcess_Succeeds(t *testing.T) {
	sys, st, _ := newBusSystem(t, vectorstore.NewMemory())
	bus := NewIngestBus(sys, IngestBusConfig{WorkerCount: 1, MaxAttempts: 1, BaseBackoff: time.Millisecond})

	ctx := context.Background()
	bus.Start(ctx)
	bus.Submit(IngestJob{Transcript: sampleTranscript()})
	bus.Stop()

	n, err := st.Count(ctx)
	require.NoError(t, err)
	require.Greater(t, n, 0)
}

func TestIngestBus_RetriesOnTransientFailure_EventuallySucceeds(t *testing.T) {
	inner := vectorstore.NewMemory()
	flaky := &flakyStore{Store: inner, failLeft: 2}
	sys, st, _ := newBusSystem(t, flaky)
	bus := NewIngestBus(sys, IngestBusConfig{WorkerCount: 1, MaxAttempts: 5, BaseBackoff: time.Millisecond})

	ctx := context.Background()
	bus.Start(ctx)
	bus.Submit(IngestJob{Transcript: sampleTranscript()})
	bus.Stop()

	n, err := st.Count(ctx)
	require.NoError(t, err)
	require.Greater(t, n, 0, "job should succeed once retries exhaust the injected failures")
}

func TestIngestBus_GivesUpAfterMaxAttempts_DoesNotPanic(t *testing.T) {
	flaky := &flakyStore{Store: vectorstore.NewMemory(), failLeft: 100}
	sys, st, _ := newBusSystem(t, flaky)
	bus := NewIngestBus(sys, IngestBusConfig{WorkerCount: 1, MaxAttempts: 2, BaseBackoff: time.Millisecond})

	ctx := context.Background()
	bus.Start(ctx)
	bus.Submit(IngestJob{Transcript: sampleTranscript()})
	bus.Stop()

	n, err := st.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n, "all attempts failed, nothing should have been persisted")
}

func TestIngestBus_Submit_DropsWhenQueueFull(t *testing.T) {
	sys, _, _ := newBusSystem(t, vectorstore.NewMemory())
	bus := NewIngestBus(sys, IngestBusConfig{WorkerCount: 1})

	for i := 0; i < cap(bus.jobs); i++ {
		bus.Submit(IngestJob{Transcript: sampleTranscript()})
	}
	require.NotPanics(t, func() {
		bus.Submit(IngestJob{Transcript: sampleTranscript()})
	})
}
