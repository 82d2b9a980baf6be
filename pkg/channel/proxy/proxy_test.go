package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/courier"
	"github.com/user/courier/pkg/blob"
	chanhttp "github.com/user/courier/pkg/channel/http"
)

func TestProxyChannels(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/.netlify/functions/upload-proxy" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p, err := courier.Build(courier.Fields{}, blob.FromBytes("a.bin", []byte{1, 2, 3}))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	local := NewLocalProxyChannel(chanhttp.Options{URL: server.URL + "/api/upload"})
	if local.Kind() != KindLocal {
		t.Errorf("expected %s, got %s", KindLocal, local.Kind())
	}
	if out := local.Attempt(context.Background(), p, time.Second); !out.Success {
		t.Errorf("expected success, got %s", out)
	}

	fn := NewFunctionProxyChannel(chanhttp.Options{URL: server.URL + "/.netlify/functions/upload-proxy"})
	if fn.Kind() != KindFunction {
		t.Errorf("expected %s, got %s", KindFunction, fn.Kind())
	}
	out := fn.Attempt(context.Background(), p, time.Second)
	if out.Success || out.Kind != courier.FailureServerRejected || out.StatusCode != http.StatusBadGateway {
		t.Errorf("expected server_rejected(502), got %s", out)
	}

	if hits.Load() != 2 {
		t.Errorf("expected 2 requests, got %d", hits.Load())
	}
	if fn.Delivery() != courier.DeliveryRemote {
		t.Error("proxy channels deliver remotely")
	}
}
