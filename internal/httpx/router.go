package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AngelCh415/campaign-dash/internal/config"
	"github.com/AngelCh415/campaign-dash/internal/ingest"
	"github.com/AngelCh415/campaign-dash/internal/metrics"
	"github.com/AngelCh415/campaign-dash/internal/models"
	"github.com/AngelCh415/campaign-dash/internal/parse"
	"github.com/AngelCh415/campaign-dash/internal/session"
	"github.com/AngelCh415/campaign-dash/internal/store"
	"github.com/AngelCh415/campaign-dash/internal/tabular"
	"github.com/AngelCh415/campaign-dash/internal/utils"
)

const maxUpload = 32 << 20

// Deps are the collaborators the HTTP surface needs. Checker may be nil, in
// which case every route is open. Otherwise everything except health, metrics
// and login needs a session token.
type Deps struct {
	Log        *slog.Logger
	ETL        *ingest.ETL
	Metrics    *metrics.Service
	Sessions   session.Store
	Checker    CredentialChecker
	SessionTTL time.Duration
	// Ready reports whether the service can take traffic; nil means always.
	Ready func(ctx context.Context) error
}

func NewRouter(d Deps) http.Handler {
	a := auth{checker: d.Checker, sessions: d.Sessions, ttl: d.SessionTTL}

	mux := chi.NewRouter()
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(d.Log))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(200)
		w.Write([]byte("ready"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	mux.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			User   string `json:"user"`
			Secret string `json:"secret"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body); err != nil {
			writeError(w, r, badRequest("login body: %v", err))
			return
		}
		tok, exp, err := a.login(r.Context(), body.User, body.Secret)
		if err != nil {
			writeError(w, r, err)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: tok, Path: "/", Expires: exp, HttpOnly: true, SameSite: http.SameSiteLaxMode})
		writeJSON(w, map[string]any{"token": tok, "expires_at": exp})
	})

	mux.Group(func(mr chi.Router) {
		mr.Use(a.require)

		mr.Get("/records", func(w http.ResponseWriter, r *http.Request) {
			page, err := d.Metrics.Records(r.URL.Query())
			if err != nil {
				writeError(w, r, badRequest("%v", err))
				return
			}
			writeJSON(w, page)
		})
		mr.Get("/report/campaigns", func(w http.ResponseWriter, r *http.Request) {
			rep, err := d.Metrics.Campaigns(r.URL.Query())
			if err != nil {
				writeError(w, r, badRequest("%v", err))
				return
			}
			writeJSON(w, rep)
		})
		mr.Get("/report/daily", func(w http.ResponseWriter, r *http.Request) {
			rep, err := d.Metrics.Daily(r.URL.Query())
			if err != nil {
				writeError(w, r, badRequest("%v", err))
				return
			}
			writeJSON(w, rep)
		})
		mr.Get("/session/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, d.ETL.Status(r.Context()))
		})

		mr.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
			if err := a.logout(r.Context(), tokenFrom(r)); err != nil {
				writeError(w, r, err)
				return
			}
			http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
			w.WriteHeader(http.StatusNoContent)
		})

		mr.Post("/store/reload", func(w http.ResponseWriter, r *http.Request) {
			st, err := d.ETL.Reload(r.Context())
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, map[string]any{"rows": st.Rows, "mapped": st.Mapped, "dropped": st.Dropped})
		})

		mr.Post("/import/workbook", func(w http.ResponseWriter, r *http.Request) {
			body, closeFn, err := uploadBody(w, r)
			if err != nil {
				writeError(w, r, err)
				return
			}
			defer closeFn()
			res, err := d.ETL.ImportWorkbook(r.Context(), body)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, map[string]any{"inserted": res.Inserted, "skipped": res.Discarded, "records": len(res.Records)})
		})

		mr.Post("/insights/sync", func(w http.ResponseWriter, r *http.Request) {
			rng, err := rangeFromQuery(r)
			if err != nil {
				writeError(w, r, err)
				return
			}
			res, err := d.ETL.SyncInsights(r.Context(), rng)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, map[string]any{"updated": res.Updated, "unmatched": res.Discarded, "records": len(res.Records)})
		})

		mr.Post("/export/run", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if day := q.Get("date"); day != "" {
				q.Set("from", day)
				q.Set("to", day)
			}
			f, err := metrics.FilterFromQuery(q)
			if err != nil {
				writeError(w, r, badRequest("%v", err))
				return
			}
			n, err := d.ETL.Export(r.Context(), f)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, map[string]any{"exported": n})
		})
	})

	return mux
}

// uploadBody returns the "file" part of a multipart form, or the raw body.
func uploadBody(w http.ResponseWriter, r *http.Request) (io.Reader, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		return r.Body, func() {}, nil
	}
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		return nil, nil, badRequest("multipart: %v", err)
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, badRequest("multipart: missing file part")
	}
	return f, func() { f.Close() }, nil
}

// rangeFromQuery reads since/until. Both empty means the whole history.
func rangeFromQuery(r *http.Request) (*models.DateRange, error) {
	q := r.URL.Query()
	rawSince, rawUntil := strings.TrimSpace(q.Get("since")), strings.TrimSpace(q.Get("until"))
	if rawSince == "" && rawUntil == "" {
		return nil, nil
	}
	since, until := parse.NormalizeDate(rawSince), parse.NormalizeDate(rawUntil)
	if since == "" || until == "" {
		return nil, badRequest("since and until must both be dates")
	}
	if since > until {
		return nil, badRequest("since %s is after until %s", since, until)
	}
	return &models.DateRange{Since: since, Until: until}, nil
}

type requestError struct{ msg string }

func (e requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return requestError{msg: fmt.Sprintf(format, args...)}
}

func statusFor(err error) int {
	var reqErr requestError
	var apiErr *ingest.APIError
	var remoteErr *store.RemoteError
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &reqErr),
		errors.Is(err, tabular.ErrWorkbookDecode),
		errors.Is(err, tabular.ErrEmptyWorkbook):
		return http.StatusBadRequest
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, config.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr), errors.As(err, &remoteErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error(), "rid": utils.RID(r.Context())})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	enc.Encode(v)
}
