package secrets

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvManager(t *testing.T) {
	t.Setenv("COURIER_SECRET_TG_TOKEN", "prefixed")
	t.Setenv("SMTP_PASSWORD", "plain")

	mgr := &EnvManager{Prefix: "COURIER_SECRET_"}
	val, err := mgr.Get(context.Background(), "TG_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", val)

	val, err = mgr.Get(context.Background(), "SMTP_PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, "plain", val)

	_, err = mgr.Get(context.Background(), "COURIER_TEST_MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChainManager(t *testing.T) {
	t.Setenv("B_KEY", "from-b")

	chain := &ChainManager{Managers: []Manager{&EnvManager{Prefix: "A_"}, &EnvManager{Prefix: "B_"}}}
	val, err := chain.Get(context.Background(), "KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-b", val)

	_, err = chain.Get(context.Background(), "COURIER_TEST_MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve(t *testing.T) {
	t.Setenv("COURIER_TEST_TOKEN", "resolved")
	mgr := &EnvManager{}
	ctx := context.Background()

	val, err := Resolve(ctx, mgr, "secret:COURIER_TEST_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "resolved", val)

	val, err = Resolve(ctx, mgr, "plain-value")
	require.NoError(t, err)
	assert.Equal(t, "plain-value", val)

	_, err = Resolve(ctx, mgr, "secret:COURIER_TEST_MISSING")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = Resolve(ctx, nil, "secret:X")
	assert.Error(t, err)
}

func TestSelectField(t *testing.T) {
	doc := `{"smtp":{"password":"pw"},"token":"t"}`
	v, err := selectField(doc, "creds", "smtp.password")
	require.NoError(t, err)
	assert.Equal(t, "pw", v)

	v, err = selectField(doc, "creds", "")
	require.NoError(t, err)
	assert.Equal(t, doc, v)

	_, err = selectField(doc, "creds", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKVManager(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("X-Vault-Token"))
		if r.URL.Path != "/v1/kv/data/courier/telegram" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"errors":[]}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":{"data":{"token":"123:abc","value":"default"},"metadata":{"created_time":"2024-01-01T00:00:00Z","custom_metadata":null,"deletion_time":"","destroyed":false,"version":1}}}`)
	}))
	defer server.Close()

	mgr, err := NewOpenBaoManager(server.URL, "test-token", "kv")
	require.NoError(t, err)

	val, err := mgr.Get(context.Background(), "courier/telegram#token")
	require.NoError(t, err)
	assert.Equal(t, "123:abc", val)

	val, err = mgr.Get(context.Background(), "courier/telegram")
	require.NoError(t, err)
	assert.Equal(t, "default", val)

	_, err = mgr.Get(context.Background(), "courier/telegram#chat")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = mgr.Get(context.Background(), "courier/other")
	assert.Error(t, err)
}

func TestNewManager(t *testing.T) {
	mgr, err := NewManager(context.Background(), Config{})
	require.NoError(t, err)
	assert.IsType(t, &EnvManager{}, mgr)

	mgr, err = NewManager(context.Background(), Config{Type: "vault", Vault: KVConfig{Address: "http://127.0.0.1:1"}})
	require.NoError(t, err)
	assert.IsType(t, &ChainManager{}, mgr)

	_, err = NewManager(context.Background(), Config{Type: "keychain"})
	assert.Error(t, err)
}
