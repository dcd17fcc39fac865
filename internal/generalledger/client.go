package generalledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prisonfinance/ledger-sync/internal/apperrors"
)

// Client is the external general ledger API.
type Client interface {
	FindAccountByReference(ctx context.Context, reference string) (*Account, error)
	CreateAccount(ctx context.Context, reference string) (*Account, error)
	FindSubAccount(ctx context.Context, parentReference, reference string) (*SubAccount, error)
	CreateSubAccount(ctx context.Context, parentID uuid.UUID, reference string) (*SubAccount, error)
	PostTransaction(ctx context.Context, req TransferRequest) (uuid.UUID, error)
}

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("general ledger %s %s returned status %d", e.Method, e.Path, e.StatusCode)
}

type HTTPClient struct {
	baseURL string
	http    *http.Client
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// do sends body as JSON and decodes a 2xx answer into out. found is false on
// 404; only lookups treat that as absence.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) (found bool, err error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return false, errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, errors.Wrapf(err, "general ledger %s %s", method, path)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode == http.StatusConflict:
		return false, errors.Wrapf(apperrors.ErrAlreadyExists, "general ledger %s %s", method, path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return false, &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, errors.Wrap(err, "decode response")
		}
	}
	return true, nil
}

func (c *HTTPClient) FindAccountByReference(ctx context.Context, reference string) (*Account, error) {
	var accounts []Account
	found, err := c.do(ctx, http.MethodGet, "/accounts?reference="+url.QueryEscape(reference), nil, &accounts)
	if err != nil || !found || len(accounts) == 0 {
		return nil, err
	}
	return &accounts[0], nil
}

func (c *HTTPClient) CreateAccount(ctx context.Context, reference string) (*Account, error) {
	var account Account
	found, err := c.do(ctx, http.MethodPost, "/accounts", map[string]string{"accountReference": reference}, &account)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound(http.MethodPost, "/accounts")
	}
	return &account, nil
}

func (c *HTTPClient) FindSubAccount(ctx context.Context, parentReference, reference string) (*SubAccount, error) {
	var subs []SubAccount
	path := fmt.Sprintf("/sub-accounts?accountReference=%s&reference=%s", url.QueryEscape(parentReference), url.QueryEscape(reference))
	found, err := c.do(ctx, http.MethodGet, path, nil, &subs)
	if err != nil || !found || len(subs) == 0 {
		return nil, err
	}
	return &subs[0], nil
}

func (c *HTTPClient) CreateSubAccount(ctx context.Context, parentID uuid.UUID, reference string) (*SubAccount, error) {
	var sub SubAccount
	path := "/accounts/" + parentID.String() + "/sub-accounts"
	found, err := c.do(ctx, http.MethodPost, path, map[string]string{"subAccountReference": reference}, &sub)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound(http.MethodPost, path)
	}
	return &sub, nil
}

func (c *HTTPClient) PostTransaction(ctx context.Context, req TransferRequest) (uuid.UUID, error) {
	var out struct {
		ID uuid.UUID `json:"id"`
	}
	found, err := c.do(ctx, http.MethodPost, "/transactions", req, &out)
	if err != nil {
		return uuid.Nil, err
	}
	if !found {
		return uuid.Nil, notFound(http.MethodPost, "/transactions")
	}
	return out.ID, nil
}

// notFound reports a 404 on a write, where absence is a failure.
func notFound(method, path string) error {
	return &StatusError{Method: method, Path: path, StatusCode: http.StatusNotFound}
}
