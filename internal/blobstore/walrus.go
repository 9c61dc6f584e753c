package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/sealpost/internal/common"
	"github.com/dmitrijs2005/sealpost/internal/netx"
)

const DefaultEpochs = 10

// WalrusStore talks to a Walrus publisher (writes) and aggregator (reads).
type WalrusStore struct {
	publisher  string
	aggregator string
	epochs     int
	client     *http.Client
}

type WalrusOption func(*WalrusStore)

func WithEpochs(n int) WalrusOption {
	return func(w *WalrusStore) { w.epochs = n }
}

func WithHTTPClient(c *http.Client) WalrusOption {
	return func(w *WalrusStore) { w.client = c }
}

func NewWalrusStore(publisherURL, aggregatorURL string, opts ...WalrusOption) *WalrusStore {
	w := &WalrusStore{
		publisher:  strings.TrimRight(publisherURL, "/"),
		aggregator: strings.TrimRight(aggregatorURL, "/"),
		epochs:     DefaultEpochs,
		client:     http.DefaultClient,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

type storeResponse struct {
	NewlyCreated *struct {
		BlobObject struct {
			BlobID string `json:"blobId"`
		} `json:"blobObject"`
	} `json:"newlyCreated"`
	AlreadyCertified *struct {
		BlobID string `json:"blobId"`
	} `json:"alreadyCertified"`
}

func (r *storeResponse) blobID() string {
	switch {
	case r.NewlyCreated != nil:
		return r.NewlyCreated.BlobObject.BlobID
	case r.AlreadyCertified != nil:
		return r.AlreadyCertified.BlobID
	}
	return ""
}

func (w *WalrusStore) Put(ctx context.Context, data []byte) (string, error) {
	if err := checkSize(data); err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/v1/blobs?epochs=%d", w.publisher, w.epochs)
	body, err := netx.Put(ctx, w.client, u, data, 64<<10)
	if err != nil {
		return "", fmt.Errorf("store blob: %w", err)
	}

	var resp storeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("store blob: decode response: %w", err)
	}
	id := resp.blobID()
	if id == "" {
		return "", errors.New("store blob: response carries no blob id")
	}
	return id, nil
}

func (w *WalrusStore) Get(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", common.ErrBlobNotFound)
	}

	b, err := netx.Get(ctx, w.client, w.aggregator+"/v1/blobs/"+url.PathEscape(id), MaxBlobSize)
	if err != nil {
		var se *netx.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", common.ErrBlobNotFound, id)
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return b, nil
}
