package client

import (
	"errors"
	"fmt"
)

// Kind 错误分类（见错误处理设计）
type Kind string

const (
	KindConfiguration Kind = "configuration" // 缺少基础地址或凭证，未发起网络请求
	KindNetwork       Kind = "network"       // 请求无法完成（超时、连接失败等）
	KindAuth          Kind = "auth"          // HTTP 401，凭证被拒绝
	KindNotFound      Kind = "not_found"     // HTTP 404（布局加载时被上层重新解释为"需要初始化"）
	KindServer        Kind = "server"        // HTTP 5xx
	KindValidation    Kind = "validation"    // 本地校验失败，未发起网络请求
	KindAPI           Kind = "api"           // 其他非 2xx 响应
)

// APIError 请求层的统一错误类型
// 携带 HTTP 状态（如有）、消息和端点名，便于诊断。
type APIError struct {
	Kind     Kind
	Status   int
	Endpoint string
	Message  string
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: HTTP %d on %s: %s", e.Kind, e.Status, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Endpoint, e.Message)
}

// kindFromStatus 按 HTTP 状态码分类
func kindFromStatus(status int) Kind {
	switch {
	case status == 401:
		return KindAuth
	case status == 404:
		return KindNotFound
	case status >= 500:
		return KindServer
	default:
		return KindAPI
	}
}

// IsKind 判断错误是否属于指定分类
func IsKind(err error, kind Kind) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// IsNotFound 判断是否为 404 错误
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}
