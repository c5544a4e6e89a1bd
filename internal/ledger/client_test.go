package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func txPage(hashes ...string) map[string]any {
	txs := make([]map[string]any, 0, len(hashes))
	for i, hash := range hashes {
		txs = append(txs, map[string]any{
			"validated": true,
			"meta":      map[string]any{"TransactionResult": "tesSUCCESS"},
			"tx": map[string]any{
				"hash":            hash,
				"TransactionType": "Payment",
				"Account":         "rSender",
				"Destination":     "rReceiver",
				"Amount":          "75000000000",
				"ledger_index":    100 + i,
				"date":            771000000,
			},
		})
	}
	return map[string]any{
		"result": map[string]any{
			"account":      "rWallet",
			"status":       "success",
			"transactions": txs,
		},
	}
}

func TestAccountTransactionsSuccess(t *testing.T) {
	var gotBody accountTxRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(txPage("ABC123"))
	}))
	defer srv.Close()

	client := NewClient(Options{Endpoints: []string{srv.URL}, Timeout: time.Second, PageLimit: 10}, noopLogger())

	entries, err := client.AccountTransactions(context.Background(), "rWallet", 50)
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("期望 1 条记录, 实际 %d", len(entries))
	}
	if gotBody.Method != "account_tx" {
		t.Fatalf("method 应为 account_tx, 实际 %s", gotBody.Method)
	}
	if gotBody.Params[0].LedgerIndexMin != 50 {
		t.Fatalf("ledger_index_min 应为 50, 实际 %d", gotBody.Params[0].LedgerIndexMin)
	}

	entry := entries[0]
	if entry.Hash != "ABC123" {
		t.Fatalf("hash 不正确: %s", entry.Hash)
	}
	if entry.Currency != "XRP" {
		t.Fatalf("drops 金额应归一化为 XRP, 实际 %s", entry.Currency)
	}
	if !entry.Amount.Equal(decimal.NewFromInt(75000)) {
		t.Fatalf("期望金额 75000, 实际 %s", entry.Amount.String())
	}
}

func TestAccountTransactionsFallbackChain(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	goodCalls := 0
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		goodCalls++
		_ = json.NewEncoder(w).Encode(txPage("DEF456"))
	}))
	defer good.Close()

	client := NewClient(Options{Endpoints: []string{bad.URL, good.URL}, Timeout: time.Second}, noopLogger())

	entries, err := client.AccountTransactions(context.Background(), "rWallet", -1)
	if err != nil {
		t.Fatalf("第二个节点成功时不应报错: %v", err)
	}
	if len(entries) != 1 || goodCalls != 1 {
		t.Fatalf("应从备用节点取得数据: entries=%d calls=%d", len(entries), goodCalls)
	}
}

func TestAccountTransactionsAllEndpointsFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	client := NewClient(Options{Endpoints: []string{bad.URL, bad.URL}, Timeout: time.Second}, noopLogger())

	if _, err := client.AccountTransactions(context.Background(), "rWallet", -1); err == nil {
		t.Fatal("所有节点失败时应报错")
	}
}

func TestAccountTransactionsLedgerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"status":        "error",
				"error_message": "Account malformed.",
			},
		})
	}))
	defer srv.Close()

	client := NewClient(Options{Endpoints: []string{srv.URL}, Timeout: time.Second}, noopLogger())

	if _, err := client.AccountTransactions(context.Background(), "bad", -1); err == nil {
		t.Fatal("status=error 应报错")
	}
}

func TestAccountTransactionsSkipsMalformedEntries(t *testing.T) {
	page := txPage("GOOD")
	result := page["result"].(map[string]any)
	txs := result["transactions"].([]map[string]any)
	txs = append(txs, map[string]any{
		"validated": true,
		"tx": map[string]any{
			"hash":         "BADAMOUNT",
			"Amount":       "not-a-number",
			"ledger_index": 105,
		},
	})
	result["transactions"] = txs

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	client := NewClient(Options{Endpoints: []string{srv.URL}, Timeout: time.Second}, noopLogger())

	entries, err := client.AccountTransactions(context.Background(), "rWallet", -1)
	if err != nil {
		t.Fatalf("坏记录不应导致整批失败: %v", err)
	}
	if len(entries) != 1 || entries[0].Hash != "GOOD" {
		t.Fatalf("坏记录应被跳过: %+v", entries)
	}
}

func TestParseAmountIssuedCurrency(t *testing.T) {
	raw := json.RawMessage(`{"currency":"USD","issuer":"rIssuer","value":"1234.56"}`)
	amount, currency, err := parseAmount(raw)
	if err != nil {
		t.Fatalf("发行货币金额解析失败: %v", err)
	}
	if currency != "USD" {
		t.Fatalf("currency 应为 USD, 实际 %s", currency)
	}
	if !amount.Equal(decimal.RequireFromString("1234.56")) {
		t.Fatalf("金额不正确: %s", amount.String())
	}
}

func TestParseAmountInvalid(t *testing.T) {
	if _, _, err := parseAmount(json.RawMessage(`[1,2]`)); err == nil {
		t.Fatal("无法识别的金额编码应报错")
	}
	if _, _, err := parseAmount(nil); err == nil {
		t.Fatal("缺失金额应报错")
	}
}
