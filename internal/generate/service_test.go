package generate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/creatorkit/captiongen/internal/cache"
	"github.com/creatorkit/captiongen/internal/prompt"
	"github.com/creatorkit/captiongen/internal/provider"
	"github.com/creatorkit/captiongen/internal/quota"
	"github.com/creatorkit/captiongen/internal/store"
	mocks "github.com/creatorkit/captiongen/internal/testing"
	"github.com/creatorkit/captiongen/pkg/telemetry"
	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// newTestService wires a Service with in-memory stores and the given
// provider, returning the limiter's counter store for tier-level assertions.
func newTestService(t *testing.T, p provider.Provider) (*Service, *store.MemoryStore) {
	t.Helper()

	counters := store.NewMemoryStore()
	cm := cache.NewManager(store.NewMemoryStore(), store.NewMemoryStore(), "v1", time.Hour, testLogger())
	limiter := quota.NewLimiter(counters, quota.Policy{}, nil, testLogger())
	tracker := telemetry.NewUsageTracker(testLogger())

	return New(p, cm, limiter, tracker, prompt.Config{}, nil, testLogger()), counters
}

func testRequest() Request {
	return Request{
		Description: "A photo of fresh croissants cooling on a bakery rack",
		Tone:        "casual",
		Platforms:   []string{"instagram"},
		Identity:    Identity{UserID: "user-1"},
		Tier:        quota.TierFree,
	}
}

func TestGenerateReturnsItems(t *testing.T) {
	svc, _ := newTestService(t, provider.NewMockProvider(testLogger()))

	req := testRequest()
	result, err := svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	items := result.Items["instagram"]
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, item := range items {
		if !strings.Contains(item.Text, "croissants") {
			t.Errorf("item %d does not mention the description: %q", i, item.Text)
		}
		if !strings.HasSuffix(item.Text, prompt.HashtagPlaceholder) {
			t.Errorf("item %d missing hashtag placeholder: %q", i, item.Text)
		}
		if item.CharacterCount == 0 {
			t.Errorf("item %d has zero character count", i)
		}
	}

	if result.Meta.Cached {
		t.Error("first call should not be a cache hit")
	}
	if got := result.Meta.PlatformLimits["instagram"]; got != 2200 {
		t.Errorf("expected instagram limit 2200, got %d", got)
	}
}

func TestGenerateCacheHit(t *testing.T) {
	mock := &mocks.MockTextProvider{}
	svc, _ := newTestService(t, mock)

	req := testRequest()
	first, err := svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("first Generate failed: %v", err)
	}
	second, err := svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("second Generate failed: %v", err)
	}

	if mock.CallCount != 1 {
		t.Errorf("expected 1 provider call, got %d", mock.CallCount)
	}
	if first.Meta.Cached {
		t.Error("first call reported cached")
	}
	if !second.Meta.Cached {
		t.Error("second call did not report cached")
	}

	// A cache hit must not consume quota
	if second.Meta.RemainingQuota != first.Meta.RemainingQuota {
		t.Errorf("cache hit changed remaining quota: %d -> %d",
			first.Meta.RemainingQuota, second.Meta.RemainingQuota)
	}

	if len(first.Items["instagram"]) != len(second.Items["instagram"]) {
		t.Error("cached items differ from produced items")
	}
}

func TestGenerateConsumesQuota(t *testing.T) {
	svc, _ := newTestService(t, provider.NewMockProvider(testLogger()))

	req := testRequest()
	result, err := svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// Free tier default is 10; one generation leaves 9
	if result.Meta.RemainingQuota != 9 {
		t.Errorf("expected remaining quota 9, got %d", result.Meta.RemainingQuota)
	}
}

func TestGenerateQuotaExceeded(t *testing.T) {
	mock := &mocks.MockTextProvider{}
	svc, _ := newTestService(t, mock)

	req := testRequest()
	req.Tier = quota.TierGuest
	req.Identity = Identity{IP: "203.0.113.9"}

	// Guest tier default is 5. Vary the description so every call misses
	// the cache.
	for i := 0; i < 5; i++ {
		req.Description = fmt.Sprintf("A photo of fresh croissants, batch number %d", i)
		if _, err := svc.Generate(context.Background(), req); err != nil {
			t.Fatalf("generation %d failed: %v", i, err)
		}
	}

	req.Description = "A photo of fresh croissants, batch number final"
	_, err := svc.Generate(context.Background(), req)
	var exceeded *quota.QuotaExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected QuotaExceededError, got %v", err)
	}
	if exceeded.Limit != 5 {
		t.Errorf("expected limit 5 in error, got %d", exceeded.Limit)
	}

	if mock.CallCount != 5 {
		t.Errorf("provider called %d times, expected 5", mock.CallCount)
	}
}

func TestGenerateValidationBeforeQuota(t *testing.T) {
	mock := &mocks.MockTextProvider{}
	svc, counters := newTestService(t, mock)

	req := testRequest()
	req.Platforms = []string{"instagram", "tiktok", "linkedin", "short-form", "long-form", "instagram-reels"}

	_, err := svc.Generate(context.Background(), req)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "platforms" {
		t.Errorf("expected platforms field, got %q", verr.Field)
	}

	if mock.CallCount != 0 {
		t.Error("provider called for an invalid request")
	}
	count, err := counters.Count(context.Background(), quota.CounterKey(req.Identity.Key()))
	if err != nil {
		t.Fatalf("counter read failed: %v", err)
	}
	if count != 0 {
		t.Errorf("invalid request consumed quota: count %d", count)
	}
}

func TestGenerateMultiPlatform(t *testing.T) {
	mock := &mocks.MockTextProvider{
		GenerateTextFunc: func(_ context.Context, _, _ string) (*provider.Response, error) {
			content := "instagram:\n1. Insta option {hashtags}\n\n" +
				"tiktok:\n1. TikTok option {hashtags}\n"
			return &provider.Response{Content: content, Model: "mock-model-v1"}, nil
		},
	}
	svc, _ := newTestService(t, mock)

	req := testRequest()
	req.Platforms = []string{"instagram", "tiktok"}

	result, err := svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if mock.CallCount != 1 {
		t.Errorf("expected one batched provider call, got %d", mock.CallCount)
	}
	if len(result.Items["instagram"]) == 0 || len(result.Items["tiktok"]) == 0 {
		t.Fatalf("missing platform sections: %+v", result.Items)
	}
	if result.Items["instagram"][0].Text == result.Items["tiktok"][0].Text {
		t.Error("platform sections were not split")
	}

	// Each platform caches independently; a followup single-platform request
	// must hit.
	req.Platforms = []string{"tiktok"}
	second, err := svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("followup Generate failed: %v", err)
	}
	if !second.Meta.Cached {
		t.Error("single-platform followup missed the cache")
	}
	if mock.CallCount != 1 {
		t.Errorf("followup triggered a provider call: %d total", mock.CallCount)
	}
}

func TestGeneratePartialCacheMiss(t *testing.T) {
	mock := &mocks.MockTextProvider{
		GenerateTextFunc: func(_ context.Context, _, user string) (*provider.Response, error) {
			if strings.Contains(user, "one section per platform") {
				return &provider.Response{
					Content: "instagram:\n1. Insta {hashtags}\n\ntiktok:\n1. Tok {hashtags}\n",
				}, nil
			}
			return &provider.Response{Content: "1. Single {hashtags}\n"}, nil
		},
	}
	svc, _ := newTestService(t, mock)

	req := testRequest()
	req.Platforms = []string{"instagram"}
	if _, err := svc.Generate(context.Background(), req); err != nil {
		t.Fatalf("warmup Generate failed: %v", err)
	}

	req.Platforms = []string{"instagram", "tiktok"}
	result, err := svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("mixed Generate failed: %v", err)
	}

	if result.Meta.Cached {
		t.Error("partially-missed request reported fully cached")
	}
	if got := result.Items["instagram"][0].Text; got != "Single {hashtags}" {
		t.Errorf("cached instagram item replaced: %q", got)
	}
	if len(result.Items["tiktok"]) == 0 {
		t.Error("missing produced tiktok items")
	}
	if mock.CallCount != 2 {
		t.Errorf("expected 2 provider calls, got %d", mock.CallCount)
	}
}

func TestGenerateProviderErrorNotCached(t *testing.T) {
	boom := &provider.ProviderError{Provider: "openai", Status: 500, Message: "upstream"}
	failing := &mocks.ErrorProvider{Err: boom}
	svc, _ := newTestService(t, failing)

	req := testRequest()
	_, err := svc.Generate(context.Background(), req)
	var perr *provider.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}

	// Swap in a working provider behind the same cache: the failure must not
	// have poisoned the key.
	svc.provider = provider.NewMockProvider(testLogger())
	result, err := svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("retry Generate failed: %v", err)
	}
	if result.Meta.Cached {
		t.Error("failed generation was served from cache")
	}
	if len(result.Items["instagram"]) == 0 {
		t.Error("retry produced no items")
	}
}

func TestGenerateTimeout(t *testing.T) {
	mock := &mocks.MockTextProvider{
		GenerateTextFunc: func(ctx context.Context, _, _ string) (*provider.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	svc, _ := newTestService(t, mock)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := svc.Generate(ctx, testRequest())
	var terr *TimeoutError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
}

func TestQuotaStatus(t *testing.T) {
	svc, _ := newTestService(t, provider.NewMockProvider(testLogger()))

	identity := Identity{UserID: "user-1"}
	remaining, err := svc.QuotaStatus(context.Background(), identity, quota.TierFree)
	if err != nil {
		t.Fatalf("QuotaStatus failed: %v", err)
	}
	if remaining != 10 {
		t.Errorf("expected full free quota 10, got %d", remaining)
	}

	req := testRequest()
	if _, err := svc.Generate(context.Background(), req); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// Generation invalidates the cached status, so the next read reflects
	// the new usage.
	remaining, err = svc.QuotaStatus(context.Background(), identity, quota.TierFree)
	if err != nil {
		t.Fatalf("QuotaStatus after generation failed: %v", err)
	}
	if remaining != 9 {
		t.Errorf("expected remaining 9 after one generation, got %d", remaining)
	}
}
