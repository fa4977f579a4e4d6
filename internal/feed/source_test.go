package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"spreadwatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingsBody = `{
  "listings": [
    {"ticker": "PAXG", "mark_price": "2650.4", "quotes": {"size_1k": {"bid": "2650.1", "ask": "2650.9"}}},
    {"ticker": "XAUT", "mark_price": 2634.2, "quotes": {"size_1k": {"bid": 2633.8, "ask": 2634.5}}},
    {"ticker": "BTC", "mark_price": "97000", "quotes": {"size_1k": {"bid": "96990", "ask": "97010"}}}
  ]
}`

func newListingsServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != statsPath {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSource_FetchPair(t *testing.T) {
	srv := newListingsServer(t, http.StatusOK, listingsBody)
	src := NewHTTPSource(HTTPSourceConfig{BaseURL: srv.URL + "/", Timeout: 2 * time.Second})

	snap, err := src.FetchPair(context.Background(), "PAXG", "XAUT")
	require.NoError(t, err)

	assert.Equal(t, 16.2, snap.MarkSpread)
	assert.Equal(t, 15.6, snap.DirectionalFor(model.Upper))
	assert.Equal(t, 17.1, snap.DirectionalFor(model.Lower))
	assert.False(t, snap.Taken.IsZero())
}

func TestHTTPSource_MissingSymbol(t *testing.T) {
	srv := newListingsServer(t, http.StatusOK, listingsBody)
	src := NewHTTPSource(HTTPSourceConfig{BaseURL: srv.URL})

	_, err := src.FetchPair(context.Background(), "PAXG", "GLD")
	require.Error(t, err)
	assert.Equal(t, KindMissingSymbol, KindOf(err))
}

func TestHTTPSource_MissingBucket(t *testing.T) {
	srv := newListingsServer(t, http.StatusOK, listingsBody)
	src := NewHTTPSource(HTTPSourceConfig{BaseURL: srv.URL, Bucket: "size_100k"})

	_, err := src.FetchPair(context.Background(), "PAXG", "XAUT")
	require.Error(t, err)
	assert.Equal(t, KindParse, KindOf(err))
}

func TestHTTPSource_BadStatus(t *testing.T) {
	srv := newListingsServer(t, http.StatusBadGateway, `{"error":"upstream"}`)
	src := NewHTTPSource(HTTPSourceConfig{BaseURL: srv.URL})

	_, err := src.FetchPair(context.Background(), "PAXG", "XAUT")
	require.Error(t, err)
	assert.Equal(t, KindStatus, KindOf(err))
}

func TestHTTPSource_MalformedBody(t *testing.T) {
	srv := newListingsServer(t, http.StatusOK, `{"listings": [`)
	src := NewHTTPSource(HTTPSourceConfig{BaseURL: srv.URL})

	_, err := src.FetchPair(context.Background(), "PAXG", "XAUT")
	require.Error(t, err)
	assert.Equal(t, KindParse, KindOf(err))
}

func TestHTTPSource_NullPrice(t *testing.T) {
	body := `{"listings":[
	  {"ticker":"PAXG","mark_price":null,"quotes":{"size_1k":{"bid":"1","ask":"2"}}},
	  {"ticker":"XAUT","mark_price":"1","quotes":{"size_1k":{"bid":"1","ask":"2"}}}]}`
	srv := newListingsServer(t, http.StatusOK, body)
	src := NewHTTPSource(HTTPSourceConfig{BaseURL: srv.URL})

	_, err := src.FetchPair(context.Background(), "PAXG", "XAUT")
	require.Error(t, err)
	assert.Equal(t, KindParse, KindOf(err))
}

func TestHTTPSource_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	src := NewHTTPSource(HTTPSourceConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	_, err := src.FetchPair(context.Background(), "PAXG", "XAUT")
	require.Error(t, err)
	assert.Contains(t, []FetchErrorKind{KindTimeout, KindNetwork}, KindOf(err))
}
