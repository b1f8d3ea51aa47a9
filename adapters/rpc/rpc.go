// Package rpc implements the C9 read-only query and submission endpoint:
// a thin net/http surface translating JSON requests into mempool and
// chainstate calls, grounded on the teacher's api.Response envelope and
// health.Checker shape.
package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ippan/core/chainstate"
	"github.com/ippan/core/mempool"
)

// Response mirrors the teacher's api.Response envelope.
type Response struct {
	Success bool        `json:"success"`
	Result  interface{} `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, Response{Success: false, Error: err.Error()})
}

func writeSuccess(w http.ResponseWriter, result interface{}) {
	writeJSON(w, http.StatusOK, Response{Success: true, Result: result})
}

// AccountQuerier is the read-only surface the account-lookup endpoint
// needs; chainstate.AccountStore satisfies it directly.
type AccountQuerier interface {
	Account(addr chainstate.Address) (chainstate.Account, bool)
}

// Server exposes transaction submission and read-only account/health
// queries over HTTP. It holds no consensus state of its own; every method
// call is forwarded to the mempool or account store it was constructed
// with.
type Server struct {
	pool     *mempool.Pool
	accounts AccountQuerier
}

// NewServer constructs a Server over pool and accounts.
func NewServer(pool *mempool.Pool, accounts AccountQuerier) *Server {
	return &Server{pool: pool, accounts: accounts}
}

// submitRequest is the wire shape of a POST /tx submission: a transaction
// already signed by the client, encoded as its canonical fields.
type submitRequest struct {
	Version    byte             `json:"version"`
	Type       chainstate.TxType `json:"type"`
	From       chainstate.Address `json:"from"`
	To         chainstate.Address `json:"to"`
	Amount     chainstate.Amount  `json:"amount"`
	Nonce      uint64             `json:"nonce"`
	Fee        chainstate.Amount  `json:"fee"`
	Memo       []byte             `json:"memo"`
	Signature  [64]byte           `json:"signature"`
}

// ErrDecodeFailed wraps a malformed submission body.
var ErrDecodeFailed = errors.New("rpc: malformed transaction payload")

// HandleSubmitTx decodes a transaction submission and forwards it to the
// mempool; mempool.Pool.Add performs every admission check (signature,
// nonce, fee cap, solvency, size).
func (s *Server) HandleSubmitTx(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrDecodeFailed)
		return
	}

	tx := &chainstate.Transaction{
		Version: req.Version,
		Type:    req.Type,
		From:    req.From,
		To:      req.To,
		Amount:  req.Amount,
		Nonce:   req.Nonce,
		Fee:     req.Fee,
		Memo:    req.Memo,
	}
	copy(tx.Signature[:], req.Signature[:])
	if err := tx.ComputeID(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.pool.Add(tx, s.accounts); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeSuccess(w, map[string]string{"tx_id": chainstate.BlockID(tx.ID).String()})
}

// accountResponse is the JSON shape of a GET /account/{addr} response.
type accountResponse struct {
	Balance   chainstate.Amount `json:"balance"`
	NextNonce uint64            `json:"next_nonce"`
}

// HandleGetAccount looks up an address's balance and next nonce. addr is
// supplied by the caller (typically parsed from the URL path by whatever
// router wraps this handler).
func (s *Server) HandleGetAccount(w http.ResponseWriter, addr chainstate.Address) {
	acct, ok := s.accounts.Account(addr)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("rpc: unknown account"))
		return
	}
	writeSuccess(w, accountResponse{Balance: acct.Balance, NextNonce: acct.NextNonce})
}

// HandleHealth reports liveness; it never depends on consensus state so it
// always returns healthy once the process is serving requests at all.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]bool{"healthy": true})
}
