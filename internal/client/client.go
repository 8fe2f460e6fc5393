package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// errorEnvelope 远端非 2xx 响应的结构化错误负载
type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client 安全请求客户端
// 对版本化基础路径发起认证请求，每一次调用都附加凭证头，
// 并把成功/失败统一归一化为类型化结果。
type Client struct {
	http       *resty.Client
	logger     *zap.Logger
	configured bool
}

// New 创建安全请求客户端
// baseURL 或 token 缺失时客户端仍可构造，但每次调用都会立即
// 返回 ConfigurationError 而不发起网络请求。
func New(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Authorization", "Bearer "+token)

	return &Client{
		http:       httpClient,
		logger:     logger,
		configured: baseURL != "" && token != "",
	}
}

// Get 发起 GET 请求，out 为 nil 时忽略响应体
func (c *Client) Get(ctx context.Context, endpoint string, out any) error {
	return c.call(ctx, http.MethodGet, endpoint, nil, out)
}

// Post 发起 POST 请求
func (c *Client) Post(ctx context.Context, endpoint string, body any, out any) error {
	return c.call(ctx, http.MethodPost, endpoint, body, out)
}

// Put 发起 PUT 请求
func (c *Client) Put(ctx context.Context, endpoint string, body any, out any) error {
	return c.call(ctx, http.MethodPut, endpoint, body, out)
}

// Delete 发起 DELETE 请求
func (c *Client) Delete(ctx context.Context, endpoint string) error {
	return c.call(ctx, http.MethodDelete, endpoint, nil, nil)
}

// call 执行一次请求并归一化结果
// 空的 2xx 响应体视为通用成功标记而不是解析失败。
func (c *Client) call(ctx context.Context, method, endpoint string, body any, out any) error {
	if !c.configured {
		return &APIError{
			Kind:     KindConfiguration,
			Endpoint: endpoint,
			Message:  "remote base URL or credential is missing",
		}
	}

	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, endpoint)
	if err != nil {
		c.logger.Warn("Remote request failed",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		return &APIError{Kind: KindNetwork, Endpoint: endpoint, Message: err.Error()}
	}

	if resp.StatusCode() >= 400 {
		apiErr := c.errorFrom(endpoint, resp)
		c.logger.Warn("Remote request rejected",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Int("status", apiErr.Status),
			zap.String("kind", string(apiErr.Kind)),
		)
		return apiErr
	}

	if out != nil && len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return &APIError{
				Kind:     KindAPI,
				Status:   resp.StatusCode(),
				Endpoint: endpoint,
				Message:  "failed to decode response: " + err.Error(),
			}
		}
	}

	c.logger.Debug("Remote request ok",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode()),
	)
	return nil
}

// errorFrom 从非 2xx 响应提取错误信息
// 优先解析结构化错误负载，解析失败时降级为原始响应文本。
func (c *Client) errorFrom(endpoint string, resp *resty.Response) *APIError {
	apiErr := &APIError{
		Kind:     kindFromStatus(resp.StatusCode()),
		Status:   resp.StatusCode(),
		Endpoint: endpoint,
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err == nil {
		switch {
		case envelope.Message != "":
			apiErr.Message = envelope.Message
		case envelope.Error != "":
			apiErr.Message = envelope.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(resp.Body()))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode())
	}
	return apiErr
}

// Upload 上传二进制/multipart负载（图片上传）
// 使用同一凭证头；Content-Type 交给 multipart 编码器生成，
// 不做任何覆盖，否则会破坏 multipart 边界。
func (c *Client) Upload(ctx context.Context, endpoint string, fields map[string]string, fileField, fileName string, file io.Reader, out any) error {
	if !c.configured {
		return &APIError{
			Kind:     KindConfiguration,
			Endpoint: endpoint,
			Message:  "remote base URL or credential is missing",
		}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader(fileField, fileName, file).
		SetFormData(fields).
		Post(endpoint)
	if err != nil {
		c.logger.Warn("Upload failed",
			zap.String("endpoint", endpoint),
			zap.String("file", fileName),
			zap.Error(err),
		)
		return &APIError{Kind: KindNetwork, Endpoint: endpoint, Message: err.Error()}
	}
	if resp.StatusCode() >= 400 {
		return c.errorFrom(endpoint, resp)
	}
	if out != nil && len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return &APIError{
				Kind:     KindAPI,
				Status:   resp.StatusCode(),
				Endpoint: endpoint,
				Message:  "failed to decode response: " + err.Error(),
			}
		}
	}
	return nil
}

// Probe 启动时的连通性探测
func (c *Client) Probe(ctx context.Context) error {
	return c.Get(ctx, "/test", nil)
}
