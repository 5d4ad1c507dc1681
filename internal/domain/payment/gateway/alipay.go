package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"phonehub/internal/pkg/config"

	"github.com/shopspring/decimal"
	"github.com/smartwalle/alipay/v3"
)

// AlipayGateway App 支付，Verify 通过交易查询接口确认
type AlipayGateway struct {
	client *alipay.Client
	config config.AlipayConfig
}

func NewAlipayGateway(cfg config.AlipayConfig) (*AlipayGateway, error) {
	if cfg.AppID == "" {
		return nil, errors.New("alipay config missing")
	}

	client, err := alipay.New(cfg.AppID, cfg.PrivateKey, cfg.IsProduction)
	if err != nil {
		return nil, err
	}

	// 加载支付宝公钥 (用于验证签名)
	if err = client.LoadAliPayPublicKey(cfg.PublicKey); err != nil {
		return nil, err
	}

	return &AlipayGateway{client: client, config: cfg}, nil
}

// Initialize 返回签名后的参数串，放在 AccessCode 中交给客户端 SDK
func (g *AlipayGateway) Initialize(ctx context.Context, req InitRequest) (*Session, error) {
	p := alipay.TradeAppPay{}
	p.NotifyURL = g.config.NotifyURL
	p.ReturnURL = g.config.ReturnURL
	p.Subject = req.Subject
	if p.Subject == "" {
		p.Subject = req.Reference
	}
	p.OutTradeNo = req.Reference
	p.TotalAmount = minorToMajor(req.AmountMinor)
	p.ProductCode = "QUICK_MSECURITY_PAY" // App支付产品码

	signed, err := g.client.TradeAppPay(p)
	if err != nil {
		return nil, fmt.Errorf("alipay: trade app pay: %w", err)
	}
	return &Session{AccessCode: signed, Reference: req.Reference}, nil
}

func (g *AlipayGateway) Verify(ctx context.Context, reference string) (*Verification, error) {
	rsp, err := g.client.TradeQuery(alipay.TradeQuery{OutTradeNo: reference})
	if err != nil {
		return nil, fmt.Errorf("alipay: trade query: %w", err)
	}
	raw, err := json.Marshal(rsp)
	if err != nil {
		return nil, fmt.Errorf("alipay: encode trade query: %w", err)
	}
	if !rsp.IsSuccess() {
		return &Verification{Status: rsp.SubMsg, Raw: raw}, nil
	}

	amount, err := majorToMinor(rsp.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("alipay: total_amount %q: %w", rsp.TotalAmount, err)
	}

	// TRADE_SUCCESS 或 TRADE_FINISHED 表示成功
	status := rsp.TradeStatus
	return &Verification{
		Success:     status == alipay.TradeStatusSuccess || status == alipay.TradeStatusFinished,
		Status:      string(status),
		AmountMinor: amount,
		Raw:         raw,
	}, nil
}

// minorToMajor 分转元，保留两位小数
func minorToMajor(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

// majorToMinor 元转分，空串视为 0
func majorToMinor(major string) (int64, error) {
	if major == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(major)
	if err != nil {
		return 0, err
	}
	return d.Shift(2).IntPart(), nil
}

var _ Gateway = (*AlipayGateway)(nil)
