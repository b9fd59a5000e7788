package imagegen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storyforge/internal/config"
	"storyforge/internal/story"
)

func testConfig(url string) config.ImageGen {
	return config.ImageGen{
		Enabled:        true,
		APIKey:         "test-key",
		BaseURL:        url,
		Model:          "test/image-model",
		TimeoutSeconds: 5,
	}
}

func TestGenerateReturnsImageRef(t *testing.T) {
	var gotReq generationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"url": "https://img.example/hero.png"}},
		})
	}))
	defer server.Close()

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	client := NewClient(testConfig(server.URL), WithClock(func() time.Time { return fixed }))

	ref, err := client.Generate(context.Background(), story.ImagePrompt{
		Text:        "a newsroom at dawn",
		Focus:       story.FocusHero,
		AspectRatio: "16:9",
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if ref.URL != "https://img.example/hero.png" {
		t.Fatalf("unexpected url: %q", ref.URL)
	}
	if ref.Prompt != "a newsroom at dawn" {
		t.Fatalf("unexpected prompt: %q", ref.Prompt)
	}
	if !ref.GeneratedAt.Equal(fixed) {
		t.Fatalf("unexpected timestamp: %v", ref.GeneratedAt)
	}
	if gotReq.Size != "1792x1024" {
		t.Fatalf("expected 16:9 size mapping, got %q", gotReq.Size)
	}
	if gotReq.N != 1 {
		t.Fatalf("expected n=1, got %d", gotReq.N)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"url": "https://img.example/retry.png"}},
		})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL),
		WithRetryBackoff(time.Millisecond, 10*time.Millisecond),
		WithSleeper(func(time.Duration) {}),
	)
	ref, err := client.Generate(context.Background(), story.ImagePrompt{Text: "p"})
	if err != nil {
		t.Fatalf("expected retry success, got %v", err)
	}
	if ref.URL != "https://img.example/retry.png" {
		t.Fatalf("unexpected url: %q", ref.URL)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestGenerateDoesNotRetryBadRequests(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), WithSleeper(func(time.Duration) {}))
	if _, err := client.Generate(context.Background(), story.ImagePrompt{Text: "p"}); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if calls != 1 {
		t.Fatalf("expected single call, got %d", calls)
	}
}

func TestGenerateValidatesInput(t *testing.T) {
	client := NewClient(testConfig("http://127.0.0.1:0"))
	if _, err := client.Generate(context.Background(), story.ImagePrompt{}); err == nil {
		t.Fatal("expected error for empty prompt text")
	}

	client = NewClient(config.ImageGen{BaseURL: "http://127.0.0.1:0"})
	if _, err := client.Generate(context.Background(), story.ImagePrompt{Text: "p"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestAspectToSize(t *testing.T) {
	cases := map[string]string{
		"16:9": "1792x1024",
		"9:16": "1024x1792",
		"1:1":  "1024x1024",
		"":     "1024x1024",
		"4:3":  "1024x1024",
	}
	for aspect, want := range cases {
		if got := aspectToSize(aspect); got != want {
			t.Errorf("aspectToSize(%q) = %q, want %q", aspect, got, want)
		}
	}
}
