package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	methodAccountTx = "account_tx"

	// Ledger timestamps count seconds since 2000-01-01T00:00:00Z.
	ledgerEpochOffset = 946684800
)

var decDropsPerUnit = decimal.NewFromInt(1_000_000)

// Options parameterise the ledger client.
type Options struct {
	Endpoints []string
	Timeout   time.Duration
	PageLimit int
	UserAgent string
}

// Client queries an XRPL-style JSON-RPC read API. Endpoints are equivalent
// read nodes; a request only fails once every endpoint has failed.
type Client struct {
	opts   Options
	logger zerolog.Logger
	client *http.Client
}

// NewClient constructs a ledger client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = 50
	}

	return &Client{
		opts:   opts,
		logger: logger.With().Str("component", "ledger_client").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

type accountTxParams struct {
	Account        string `json:"account"`
	Limit          int    `json:"limit"`
	LedgerIndexMin int64  `json:"ledger_index_min"`
	LedgerIndexMax int64  `json:"ledger_index_max"`
}

type accountTxRequest struct {
	Method string            `json:"method"`
	Params []accountTxParams `json:"params"`
}

type txEnvelope struct {
	Tx struct {
		Hash            string          `json:"hash"`
		TransactionType string          `json:"TransactionType"`
		Account         string          `json:"Account"`
		Destination     string          `json:"Destination"`
		DestinationTag  *uint32         `json:"DestinationTag"`
		Amount          json.RawMessage `json:"Amount"`
		LedgerIndex     int64           `json:"ledger_index"`
		Date            int64           `json:"date"`
	} `json:"tx"`
	Meta struct {
		TransactionResult string `json:"TransactionResult"`
	} `json:"meta"`
	Validated bool `json:"validated"`
}

type accountTxResponse struct {
	Result struct {
		Account      string       `json:"account"`
		Transactions []txEnvelope `json:"transactions"`
		Status       string       `json:"status"`
		ErrorMessage string       `json:"error_message"`
		ErrorCode    string       `json:"error"`
	} `json:"result"`
}

// AccountTransactions fetches validated transactions newer than minLedger.
func (c *Client) AccountTransactions(ctx context.Context, account string, minLedger int64) ([]Entry, error) {
	if account == "" {
		return nil, errors.New("account address required")
	}
	if len(c.opts.Endpoints) == 0 {
		return nil, errors.New("no ledger endpoints configured")
	}

	reqPayload := accountTxRequest{
		Method: methodAccountTx,
		Params: []accountTxParams{{
			Account:        account,
			Limit:          c.opts.PageLimit,
			LedgerIndexMin: minLedger,
			LedgerIndexMax: -1,
		}},
	}

	body, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, endpoint := range c.opts.Endpoints {
		entries, callErr := c.callEndpoint(ctx, endpoint, body, account)
		if callErr == nil {
			return entries, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn().Err(callErr).Str("endpoint", endpoint).Str("account", account).
			Msg("ledger endpoint failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", endpoint, callErr))
	}

	return nil, fmt.Errorf("all ledger endpoints failed: %w", errors.Join(errs...))
}

func (c *Client) callEndpoint(ctx context.Context, endpoint string, body []byte, account string) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ledger api status %d: %s", resp.StatusCode, strings.TrimSpace(string(payloadBytes)))
	}

	var txRes accountTxResponse
	if err := json.Unmarshal(payloadBytes, &txRes); err != nil {
		return nil, fmt.Errorf("decode account_tx response: %w", err)
	}

	if txRes.Result.Status != "" && txRes.Result.Status != "success" {
		if txRes.Result.ErrorMessage != "" {
			return nil, fmt.Errorf("ledger api error: %s", txRes.Result.ErrorMessage)
		}
		return nil, fmt.Errorf("ledger api error: %s", txRes.Result.ErrorCode)
	}

	entries := make([]Entry, 0, len(txRes.Result.Transactions))
	for _, envelope := range txRes.Result.Transactions {
		entry, parseErr := normalizeEnvelope(envelope)
		if parseErr != nil {
			// Data errors never abort the batch.
			c.logger.Warn().Err(parseErr).Str("account", account).Str("hash", envelope.Tx.Hash).
				Msg("skipping malformed ledger entry")
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func normalizeEnvelope(envelope txEnvelope) (Entry, error) {
	tx := envelope.Tx
	if tx.Hash == "" {
		return Entry{}, errors.New("entry missing hash")
	}
	if tx.LedgerIndex <= 0 {
		return Entry{}, errors.New("entry missing ledger index")
	}

	amount, currency, err := parseAmount(tx.Amount)
	if err != nil {
		return Entry{}, fmt.Errorf("parse amount: %w", err)
	}

	entry := Entry{
		Hash:           tx.Hash,
		TxType:         tx.TransactionType,
		Account:        tx.Account,
		Destination:    tx.Destination,
		DestinationTag: tx.DestinationTag,
		Amount:         amount,
		Currency:       currency,
		LedgerIndex:    tx.LedgerIndex,
		ClosedAt:       time.Unix(tx.Date+ledgerEpochOffset, 0).UTC(),
		Validated:      envelope.Validated,
	}
	return entry, nil
}

type issuedAmount struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer"`
	Value    string `json:"value"`
}

// parseAmount decodes the two ledger amount encodings: a bare string of
// native drops, or an issued-currency object with a decimal value.
func parseAmount(raw json.RawMessage) (decimal.Decimal, string, error) {
	if len(raw) == 0 {
		return decimal.Decimal{}, "", errors.New("amount missing")
	}

	var drops string
	if err := json.Unmarshal(raw, &drops); err == nil {
		value, convErr := decimal.NewFromString(drops)
		if convErr != nil {
			return decimal.Decimal{}, "", fmt.Errorf("invalid drops value %q", drops)
		}
		return value.Div(decDropsPerUnit), "XRP", nil
	}

	var issued issuedAmount
	if err := json.Unmarshal(raw, &issued); err != nil {
		return decimal.Decimal{}, "", fmt.Errorf("unrecognised amount encoding: %s", string(raw))
	}
	if issued.Currency == "" || issued.Value == "" {
		return decimal.Decimal{}, "", errors.New("issued amount missing currency or value")
	}

	value, convErr := decimal.NewFromString(issued.Value)
	if convErr != nil {
		return decimal.Decimal{}, "", fmt.Errorf("invalid issued value %q", issued.Value)
	}
	return value, issued.Currency, nil
}

var _ TransactionFetcher = (*Client)(nil)
