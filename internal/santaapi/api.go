// Package santaapi serves the gift-exchange backend over HTTP.
package santaapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/tos-network/gsanta/santa"
)

// Backend is the part of the core the API exposes.
type Backend interface {
	Model() *santa.ReadModel
	History() []santa.Record
	Stats() santa.Stats
	Status() *santa.Notifier
	RevealState(id string) santa.RevealState
	CheckAvailability(ctx context.Context) (bool, error)
	Refresh(ctx context.Context) error
	Submit(ctx context.Context, form santa.Form) (string, error)
	Reveal(ctx context.Context, id string) (santa.RevealResult, error)
}

const maxRequestBody = 1 << 16

type api struct {
	b   Backend
	log log.Logger
}

// NewHandler returns the HTTP handler for b. Cross-origin requests are
// accepted from the given origins.
func NewHandler(b Backend, corsOrigins []string) http.Handler {
	a := &api{b: b, log: log.New("module", "santaapi")}

	router := httprouter.New()
	router.GET("/records", a.records)
	router.GET("/records/:id", a.record) // also serves /records/mine
	router.GET("/stats", a.stats)
	router.GET("/status", a.status)
	router.GET("/availability", a.availability)
	router.POST("/refresh", a.refresh)
	router.POST("/records", a.submit)
	router.POST("/records/:id/reveal", a.reveal)

	if len(corsOrigins) == 0 {
		return router
	}
	c := cors.New(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
		MaxAge:         600,
	})
	return c.Handler(router)
}

// recordView is a record together with its reveal progress.
type recordView struct {
	santa.Record
	RevealState string `json:"revealState"`
}

func (a *api) records(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, a.b.Model().Records())
}

func (a *api) ownRecords(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, a.b.History())
}

func (a *api) record(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == "mine" {
		a.ownRecords(w, r, ps)
		return
	}
	rec, ok := a.b.Model().Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "record not found"})
		return
	}
	writeJSON(w, http.StatusOK, recordView{Record: rec, RevealState: a.b.RevealState(id).String()})
}

func (a *api) stats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, a.b.Stats())
}

func (a *api) status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, a.b.Status().Current())
}

func (a *api) availability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ok, err := a.b.CheckAvailability(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": ok})
}

func (a *api) refresh(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := a.b.Refresh(r.Context()); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.b.Model().Records())
}

func (a *api) submit(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var form santa.Form
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&form); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid form: " + err.Error()})
		return
	}
	id, err := a.b.Submit(r.Context(), form)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (a *api) reveal(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	res, err := a.b.Reveal(r.Context(), ps.ByName("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type errorResponse struct {
	Error string `json:"error"`
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, santa.ErrNotConnected):
		return http.StatusUnauthorized
	case errors.Is(err, santa.ErrSyncInProgress), errors.Is(err, santa.ErrSubmitInProgress),
		errors.Is(err, santa.ErrRevealInProgress):
		return http.StatusConflict
	case errors.Is(err, santa.ErrNotReady):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func (a *api) writeError(w http.ResponseWriter, err error) {
	code := statusCode(err)
	a.log.Debug("Request failed", "code", code, "err", err)
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// Serve runs an HTTP server for handler on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("HTTP server started", "endpoint", listener.Addr())

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(listener) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("HTTP server stopped", "endpoint", listener.Addr())
	return nil
}
