package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ippan/core/chainstate"
	"github.com/ippan/core/mempool"
	"github.com/ippan/core/metrics"
	"github.com/stretchr/testify/require"
)

func TestHandleGetAccountReturnsBalance(t *testing.T) {
	accounts := chainstate.NewAccountStore(nil)
	var addr chainstate.Address
	addr[0] = 7
	accounts.Credit(addr, 42)

	srv := NewServer(mempool.New(0, 0, metrics.NewRegistry()), accounts)
	rec := httptest.NewRecorder()
	srv.HandleGetAccount(rec, addr)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
}

func TestHandleGetAccountReturnsNotFoundForUnknownAddress(t *testing.T) {
	accounts := chainstate.NewAccountStore(nil)
	srv := NewServer(mempool.New(0, 0, metrics.NewRegistry()), accounts)

	var addr chainstate.Address
	rec := httptest.NewRecorder()
	srv.HandleGetAccount(rec, addr)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSubmitTxRejectsMalformedBody(t *testing.T) {
	accounts := chainstate.NewAccountStore(nil)
	srv := NewServer(mempool.New(0, 0, metrics.NewRegistry()), accounts)

	req := httptest.NewRequest(http.MethodPost, "/tx", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	srv.HandleSubmitTx(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealthReportsHealthy(t *testing.T) {
	srv := NewServer(nil, chainstate.NewAccountStore(nil))
	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
