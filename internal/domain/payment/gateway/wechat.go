package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"phonehub/internal/pkg/config"

	"github.com/wechatpay-apiv3/wechatpay-go/core"
	"github.com/wechatpay-apiv3/wechatpay-go/core/option"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments/app"
	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

// WechatGateway 微信 App 支付
type WechatGateway struct {
	svc    app.AppApiService
	config config.WechatPayConfig
}

func NewWechatGateway(ctx context.Context, cfg config.WechatPayConfig) (*WechatGateway, error) {
	if cfg.MchID == "" {
		return nil, errors.New("wechat pay config missing")
	}

	// 1. 加载商户私钥
	mchPrivateKey, err := utils.LoadPrivateKey(cfg.MchPrivateKey)
	if err != nil {
		return nil, err
	}

	// 2. 初始化 Client，自动下载平台证书用于验签
	opts := []core.ClientOption{
		option.WithWechatPayAutoAuthCipher(cfg.MchID, cfg.MchCertificateSerial, mchPrivateKey, cfg.APIv3Key),
	}
	client, err := core.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &WechatGateway{svc: app.AppApiService{Client: client}, config: cfg}, nil
}

// Initialize 预下单，prepay_id 放在 AccessCode 中
func (g *WechatGateway) Initialize(ctx context.Context, req InitRequest) (*Session, error) {
	desc := req.Subject
	if desc == "" {
		desc = req.Reference
	}
	prepay := app.PrepayRequest{
		Appid:       core.String(g.config.AppID),
		Mchid:       core.String(g.config.MchID),
		Description: core.String(desc),
		OutTradeNo:  core.String(req.Reference),
		NotifyUrl:   core.String(g.config.NotifyURL),
		Amount: &app.Amount{
			Total: core.Int64(req.AmountMinor),
		},
	}

	resp, _, err := g.svc.Prepay(ctx, prepay)
	if err != nil {
		return nil, fmt.Errorf("wechat: prepay: %w", err)
	}
	if resp.PrepayId == nil {
		return nil, errors.New("wechat: prepay returned no prepay_id")
	}
	return &Session{AccessCode: *resp.PrepayId, Reference: req.Reference}, nil
}

func (g *WechatGateway) Verify(ctx context.Context, reference string) (*Verification, error) {
	tx, _, err := g.svc.QueryOrderByOutTradeNo(ctx, app.QueryOrderByOutTradeNoRequest{
		OutTradeNo: core.String(reference),
		Mchid:      core.String(g.config.MchID),
	})
	if err != nil {
		return nil, fmt.Errorf("wechat: query order: %w", err)
	}
	raw, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("wechat: encode order: %w", err)
	}

	state := ""
	if tx.TradeState != nil {
		state = *tx.TradeState
	}
	var amount int64
	if tx.Amount != nil && tx.Amount.Total != nil {
		amount = *tx.Amount.Total
	}
	return &Verification{Success: state == "SUCCESS", Status: state, AmountMinor: amount, Raw: raw}, nil
}

var _ Gateway = (*WechatGateway)(nil)
