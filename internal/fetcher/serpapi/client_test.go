package serpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSearchMapsOrganicResults(t *testing.T) {
	t.Parallel()

	var gotQuery, gotEngine, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotEngine = r.URL.Query().Get("engine")
		gotKey = r.URL.Query().Get("api_key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"organic_results": [
				{"position": 1, "link": "https://www.bigshop.example.com/shoes", "title": "Shoes", "snippet": "Buy shoes"},
				{"link": "https://blog.example.net/run", "title": "Running blog", "snippet": "Tips"}
			]
		}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, APIKey: "secret"})
	require.NoError(t, err)

	results, err := client.Search(context.Background(), "running shoes")
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.Equal(t, "running shoes", gotQuery)
	require.Equal(t, "google", gotEngine)
	require.Equal(t, "secret", gotKey)

	require.Equal(t, 1, results[0].Position)
	require.Equal(t, "bigshop.example.com", results[0].Domain)
	require.Equal(t, "Shoes", results[0].Title)

	// Missing position falls back to list order.
	require.Equal(t, 2, results[1].Position)
	require.Equal(t, "blog.example.net", results[1].Domain)
}

func TestSearchAPIErrorBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error": "quota exhausted"}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL})
	require.NoError(t, err)

	_, err = client.Search(context.Background(), "running shoes")
	require.ErrorContains(t, err, "quota exhausted")
}

func TestSearchNon200Status(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL})
	require.NoError(t, err)

	_, err = client.Search(context.Background(), "running shoes")
	require.ErrorContains(t, err, "429")
}

func TestSearchUnreachable(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{Endpoint: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = client.Search(context.Background(), "running shoes")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{})
	require.Error(t, err)
}
