package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
)

// 支付方式
const (
	MethodPaystack = "PAYSTACK"
	MethodCard     = "CARD"
	MethodAlipay   = "ALIPAY"
	MethodWechat   = "WECHAT"
)

var ErrNotRegistered = errors.New("payment gateway not registered")

// InitRequest 发起支付参数，金额单位为分 (kobo/cents)
type InitRequest struct {
	Email       string
	AmountMinor int64
	Reference   string
	Subject     string
	Metadata    map[string]string
}

// Session 支付会话，客户端据此跳转或拉起支付
type Session struct {
	AuthorizationURL string `json:"authorization_url,omitempty"`
	AccessCode       string `json:"access_code,omitempty"`
	Reference        string `json:"reference"`
}

// Verification 网关查询结果，AmountMinor 为实际支付金额 (分)，Raw 保留原始响应供排查
type Verification struct {
	Success     bool            `json:"success"`
	Status      string          `json:"status"`
	AmountMinor int64           `json:"amount"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// Gateway 托管支付网关
type Gateway interface {
	Initialize(ctx context.Context, req InitRequest) (*Session, error)
	Verify(ctx context.Context, reference string) (*Verification, error)
}

// Registry 按支付方式查找网关，未注册的方式视为无托管会话 (如 CARD)
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

func NewRegistry() *Registry {
	return &Registry{gateways: make(map[string]Gateway)}
}

func (r *Registry) Register(method string, g Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[method] = g
}

func (r *Registry) Get(method string) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[method]
	if !ok {
		return nil, ErrNotRegistered
	}
	return g, nil
}

// Hosted 该方式是否需要托管支付会话
func (r *Registry) Hosted(method string) bool {
	_, err := r.Get(method)
	return err == nil
}

func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.gateways))
	for m := range r.gateways {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
