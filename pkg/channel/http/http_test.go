package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/courier"
	"github.com/user/courier/pkg/blob"
	"github.com/user/courier/pkg/compression"
)

func testPayload(t *testing.T) *courier.Payload {
	t.Helper()
	p, err := courier.Build(courier.Fields{
		Username:         "alice",
		Email:            "alice@example.com",
		PhoneCountryCode: "91",
		PhoneNumber:      "812345678",
	}, blob.FromBytes("report.csv", []byte("Sex,Age\nmale,30\n")))
	require.NoError(t, err)
	return p
}

func TestDirectChannel_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		assert.NotEmpty(t, r.Header.Get("X-Submission-ID"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "alice", r.FormValue("username"))
		assert.Equal(t, "alice@example.com", r.FormValue("email"))
		assert.Equal(t, "91", r.FormValue("phoneCode"))
		assert.Equal(t, "812345678", r.FormValue("phone"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "report.csv", hdr.Filename)
		assert.Equal(t, "Sex,Age\nmale,30\n", string(data))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"message":"File uploaded successfully","submission":{"id":"abc123","username":"alice","fileURL":"http://files/1.csv"}}`)
	}))
	defer server.Close()

	ch := NewDirectChannel(Options{URL: server.URL})
	defer ch.Close()

	out := ch.Attempt(context.Background(), testPayload(t), time.Second)
	require.True(t, out.Success, out.Message)
	assert.Equal(t, "http://files/1.csv", out.Locator)
	assert.Equal(t, courier.DeliveryRemote, ch.Delivery())
}

func TestDirectChannel_CustomLocatorPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"key":"abc123"}}`)
	}))
	defer server.Close()

	ch := NewDirectChannel(Options{URL: server.URL, LocatorPaths: []string{"data.key"}})
	out := ch.Attempt(context.Background(), testPayload(t), time.Second)
	require.True(t, out.Success)
	assert.Equal(t, "abc123", out.Locator)
}

func TestDirectChannel_ServerRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"message":"Error uploading file","error":"disk full"}`)
	}))
	defer server.Close()

	out := NewDirectChannel(Options{URL: server.URL}).Attempt(context.Background(), testPayload(t), time.Second)
	require.False(t, out.Success)
	assert.Equal(t, courier.FailureServerRejected, out.Kind)
	assert.Equal(t, 500, out.StatusCode)
	assert.Equal(t, "disk full", out.Message)
}

func TestDirectChannel_NetworkUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	out := NewDirectChannel(Options{URL: url}).Attempt(context.Background(), testPayload(t), time.Second)
	require.False(t, out.Success)
	assert.Equal(t, courier.FailureNetworkUnreachable, out.Kind)
}

func TestDirectChannel_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	out := NewDirectChannel(Options{URL: server.URL}).Attempt(context.Background(), testPayload(t), 50*time.Millisecond)
	require.False(t, out.Success)
	assert.Equal(t, courier.FailureTimeout, out.Kind)
}

func TestDirectChannel_FollowsBodyPreservingRedirect(t *testing.T) {
	for _, code := range []int{http.StatusTemporaryRedirect, http.StatusPermanentRedirect} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "/upload", code)
			})
			mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				require.NoError(t, r.ParseMultipartForm(1<<20))
				assert.Equal(t, "alice", r.FormValue("username"))
				_, _ = io.WriteString(w, `{"locator":"abc123"}`)
			})
			server := httptest.NewServer(mux)
			defer server.Close()

			out := NewDirectChannel(Options{URL: server.URL + "/old"}).
				Attempt(context.Background(), testPayload(t), time.Second)
			require.True(t, out.Success, out.String())
			assert.Equal(t, "abc123", out.Locator)
		})
	}
}

func TestDirectChannel_MissingEndpoint(t *testing.T) {
	out := NewDirectChannel(Options{}).Attempt(context.Background(), testPayload(t), time.Second)
	assert.Equal(t, courier.FailureUnsupported, out.Kind)
}

func TestDirectChannel_Compression(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "zstd", r.Header.Get("Content-Encoding"))
		zr, err := compression.NewReader(compression.Zstd, r.Body)
		require.NoError(t, err)
		defer zr.Close()
		r.Body = zr
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "alice", r.FormValue("username"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	out := NewDirectChannel(Options{URL: server.URL, Compression: compression.Zstd}).
		Attempt(context.Background(), testPayload(t), time.Second)
	require.True(t, out.Success, out.Message)
	assert.Empty(t, out.Locator)
}

func TestDirectChannel_ReportsProgress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var mu sync.Mutex
	var seen []int
	ctx := courier.WithProgress(context.Background(), func(p int) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	})

	out := NewDirectChannel(Options{URL: server.URL}).Attempt(ctx, testPayload(t), time.Second)
	require.True(t, out.Success)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, 100, seen[len(seen)-1])
}
