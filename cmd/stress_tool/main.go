package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// 压测思路：S 件库存、N 个用户各下 1 件 PAYSTACK 订单后并发确认支付，
// 成功确认数必须等于 S，其余返回 409，库存最终为 0。
// 服务端需把 paystack.base_url 指向本工具启动的假网关 (-fake-paystack)。

var (
	baseURL      = flag.String("base", "http://localhost:8080/api", "API base URL")
	adminEmail   = flag.String("admin-email", "admin@phonehub.local", "admin account email")
	adminPass    = flag.String("admin-password", "", "admin account password")
	totalUsers   = flag.Int("users", 200, "concurrent buyers")
	totalStock   = flag.Int("stock", 5, "product stock")
	fakePaystack = flag.String("fake-paystack", ":9090", "listen address of the fake Paystack gateway, empty to disable")
)

var httpClient *http.Client

func init() {
	// 优化 HTTP Client 配置
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxIdleConnsPerHost = 2000
	t.MaxConnsPerHost = 2000
	httpClient = &http.Client{
		Transport: t,
		Timeout:   30 * time.Second,
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func main() {
	flag.Parse()
	if *adminPass == "" {
		fmt.Println("-admin-password is required")
		os.Exit(2)
	}
	if *fakePaystack != "" {
		go serveFakePaystack(*fakePaystack)
	}

	// 1. 管理员创建商品
	adminToken, err := login(*adminEmail, *adminPass)
	if err != nil {
		fmt.Printf("管理员登录失败: %v\n", err)
		os.Exit(1)
	}
	productID, err := createProduct(adminToken)
	if err != nil {
		fmt.Printf("创建商品失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("商品 %s 库存 %d，%d 个用户准备下单...\n", productID, *totalStock, *totalUsers)

	// 2. 注册用户并下单 (下单只检查库存，不扣减)
	refs := make([]string, *totalUsers)
	tokens := make([]string, *totalUsers)
	var wg sync.WaitGroup
	var created atomic.Int64
	for i := 0; i < *totalUsers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := register(i)
			if err != nil {
				return
			}
			ref, err := createOrder(token, productID)
			if err != nil {
				return
			}
			refs[i] = ref
			tokens[i] = token
			created.Add(1)
		}(i)
	}
	wg.Wait()
	fmt.Printf("创建订单: %d\n", created.Load())

	// 3. 并发确认支付
	var paid, conflict, failed atomic.Int64
	start := time.Now()
	for i, ref := range refs {
		if ref == "" {
			continue
		}
		wg.Add(1)
		go func(ref, token string) {
			defer wg.Done()
			switch verify(token, ref) {
			case http.StatusOK:
				paid.Add(1)
			case http.StatusConflict:
				conflict.Add(1)
			default:
				failed.Add(1)
			}
		}(ref, tokens[i])
	}
	wg.Wait()
	duration := time.Since(start)

	fmt.Println("--------------------------------------------------")
	fmt.Printf("支付确认耗时: %v\n", duration)
	fmt.Printf("QPS: %.2f\n", float64(created.Load())/duration.Seconds())
	fmt.Printf("确认成功: %d (预期: %d)\n", paid.Load(), min(int64(*totalStock), created.Load()))
	fmt.Printf("库存冲突: %d\n", conflict.Load())
	fmt.Printf("其他失败: %d\n", failed.Load())
	fmt.Println("--------------------------------------------------")
	if paid.Load() > int64(*totalStock) {
		fmt.Println("超卖！")
		os.Exit(1)
	}
}

func call(method, path, token string, payload interface{}) (int, *envelope, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, *baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, &env, nil
}

func tokenFrom(status int, env *envelope, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if status >= 300 {
		return "", fmt.Errorf("http %d: %s", status, env.Message)
	}
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", err
	}
	return data.Token, nil
}

func login(email, password string) (string, error) {
	return tokenFrom(call(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password}))
}

func register(i int) (string, error) {
	email := fmt.Sprintf("buyer-%d-%s@stress.local", i, strings.Split(uuid.NewString(), "-")[0])
	return tokenFrom(call(http.MethodPost, "/auth/register", "", map[string]string{
		"name": fmt.Sprintf("Buyer %d", i), "email": email, "password": "secret123",
	}))
}

func createProduct(token string) (string, error) {
	status, env, err := call(http.MethodPost, "/products", token, map[string]interface{}{
		"name":        "Stress Phone " + time.Now().Format("150405"),
		"description": "stress test product",
		"price":       "100.00",
		"stock":       *totalStock,
		"category":    "stress",
	})
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("http %d: %s", status, env.Message)
	}
	var data struct {
		Product struct {
			ID string `json:"id"`
		} `json:"product"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", err
	}
	return data.Product.ID, nil
}

func createOrder(token, productID string) (string, error) {
	status, env, err := call(http.MethodPost, "/orders", token, map[string]interface{}{
		"items": []map[string]interface{}{{"productId": productID, "quantity": 1}},
		"shippingAddress": map[string]string{
			"firstName": "Stress", "lastName": "Buyer", "address": "1 Load Street", "city": "Lagos",
			"state": "Lagos", "zipCode": "100001", "country": "Nigeria", "phone": "+2348000000",
		},
		"paymentMethod": "PAYSTACK",
	})
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("http %d: %s", status, env.Message)
	}
	var data struct {
		Order struct {
			Reference string `json:"reference"`
		} `json:"order"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", err
	}
	if data.Order.Reference == "" {
		return "", errors.New("missing reference")
	}
	return data.Order.Reference, nil
}

func verify(token, ref string) int {
	status, _, err := call(http.MethodPost, "/orders/verify-payment/"+ref, token, nil)
	if err != nil {
		return 0
	}
	return status
}

// serveFakePaystack 所有交易都视为支付成功，金额按初始化时的金额回传
func serveFakePaystack(addr string) {
	var amounts sync.Map
	mux := http.NewServeMux()
	mux.HandleFunc("/transaction/initialize", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Reference string `json:"reference"`
			Amount    int64  `json:"amount"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		amounts.Store(req.Reference, req.Amount)
		writeJSON(w, map[string]interface{}{
			"status": true, "message": "Authorization URL created",
			"data": map[string]string{
				"authorization_url": "http://fake-paystack.local/" + req.Reference,
				"access_code":       uuid.NewString(),
				"reference":         req.Reference,
			},
		})
	})
	mux.HandleFunc("/transaction/verify/", func(w http.ResponseWriter, r *http.Request) {
		ref := strings.TrimPrefix(r.URL.Path, "/transaction/verify/")
		amount, _ := amounts.Load(ref)
		writeJSON(w, map[string]interface{}{
			"status": true, "message": "Verification successful",
			"data": map[string]interface{}{"status": "success", "reference": ref, "amount": amount},
		})
	})
	fmt.Printf("fake paystack listening on %s\n", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Printf("fake paystack stopped: %v\n", err)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
