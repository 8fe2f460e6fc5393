package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"floorsync/internal/client"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) (*client.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return client.New(server.URL, "test-token", 5*time.Second, zap.NewNop()), server
}

func TestCall_MissingCredential_NoNetworkAttempt(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
	}))
	defer server.Close()

	// 凭证缺失：构造成功，但任何调用都立即失败，不发起网络请求
	c := client.New(server.URL, "", 5*time.Second, zap.NewNop())

	err := c.Get(context.Background(), "/test", nil)
	require.Error(t, err)
	assert.True(t, client.IsKind(err, client.KindConfiguration))
	assert.Equal(t, int64(0), atomic.LoadInt64(&requests), "no request may be issued")

	err = c.Post(context.Background(), "/table", map[string]int{"numero": 1}, nil)
	require.Error(t, err)
	assert.True(t, client.IsKind(err, client.KindConfiguration))
	assert.Equal(t, int64(0), atomic.LoadInt64(&requests))
}

func TestCall_AttachesCredentialHeader(t *testing.T) {
	var gotAuth string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, c.Get(context.Background(), "/test", nil))
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestCall_EmptySuccessBody(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	// 空的 2xx 响应体是通用成功标记，不是解析失败
	var out map[string]any
	require.NoError(t, c.Post(context.Background(), "/table/5/open", nil, &out))
}

func TestCall_StatusClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   client.Kind
	}{
		{http.StatusUnauthorized, client.KindAuth},
		{http.StatusNotFound, client.KindNotFound},
		{http.StatusInternalServerError, client.KindServer},
		{http.StatusBadGateway, client.KindServer},
		{http.StatusConflict, client.KindAPI},
	}

	for _, tc := range cases {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		err := c.Get(context.Background(), "/layout/1", nil)
		require.Error(t, err)
		assert.True(t, client.IsKind(err, tc.kind), "HTTP %d must classify as %s", tc.status, tc.kind)
	}
}

func TestCall_ErrorEnvelopeAndFallback(t *testing.T) {
	// 结构化错误负载
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad_request","message":"numero already in use"}`))
	}))
	err := c.Post(context.Background(), "/table", nil, nil)
	require.Error(t, err)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "numero already in use", apiErr.Message)
	assert.Equal(t, "/table", apiErr.Endpoint)

	// 非 JSON 负载降级为原始文本
	c2, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("something broke"))
	}))
	err = c2.Post(context.Background(), "/table", nil, nil)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "something broke", apiErr.Message)
}

func TestCall_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // 立刻关闭，强制连接失败

	c := client.New(server.URL, "test-token", 2*time.Second, zap.NewNop())
	err := c.Get(context.Background(), "/test", nil)
	require.Error(t, err)
	assert.True(t, client.IsKind(err, client.KindNetwork))
}

func TestUpload_MultipartFields(t *testing.T) {
	var gotAuth, gotLayoutID, gotEntity, gotFileName string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotLayoutID = r.FormValue("layout_id")
		gotEntity = r.FormValue("entity")
		_, header, err := r.FormFile("image")
		require.NoError(t, err)
		gotFileName = header.Filename
		w.Write([]byte(`{"url":"/img/floor.png"}`))
	}))

	var result struct {
		URL string `json:"url"`
	}
	err := c.Upload(context.Background(), "/upload-image",
		map[string]string{"layout_id": "3", "entity": "42"},
		"image", "floor.png", strings.NewReader("fake-png-bytes"), &result)

	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "3", gotLayoutID)
	assert.Equal(t, "42", gotEntity)
	assert.Equal(t, "floor.png", gotFileName)
	assert.Equal(t, "/img/floor.png", result.URL)
}
