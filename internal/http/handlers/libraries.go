package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/library"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/middleware"
)

const (
	opList = iota
	opSave
	opRemove
)

// LibraryList returns the full collection for one library kind, loading from
// whichever store the session identity selects.
func (a *App) LibraryList(w http.ResponseWriter, r *http.Request) {
	a.dispatchLibrary(w, r, opList)
}

// LibrarySave creates or updates one record, keyed by case-insensitive name.
func (a *App) LibrarySave(w http.ResponseWriter, r *http.Request) {
	a.dispatchLibrary(w, r, opSave)
}

// LibraryRemove deletes one record by id. Unknown ids are a no-op.
func (a *App) LibraryRemove(w http.ResponseWriter, r *http.Request) {
	a.dispatchLibrary(w, r, opRemove)
}

// dispatchLibrary routes the {kind} URL parameter to the matching typed
// library of the caller's session.
func (a *App) dispatchLibrary(w http.ResponseWriter, r *http.Request, op int) {
	sess := middleware.SessionFromContext(r.Context())
	if sess.Key() == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "X-Device-ID header or bearer token required")
		return
	}
	st := a.stateFor(sess)
	switch kind := chi.URLParam(r, "kind"); kind {
	case "characters":
		runLibraryOp(a, w, r, op, st.libs.Characters)
	case "environments":
		runLibraryOp(a, w, r, op, st.libs.Environments)
	case "brands":
		runLibraryOp(a, w, r, op, st.libs.Brands)
	case "styles":
		runLibraryOp(a, w, r, op, st.libs.Styles)
	case "photos":
		runLibraryOp(a, w, r, op, st.libs.Photos)
	case "scenes":
		runLibraryOp(a, w, r, op, st.libs.Scenes)
	default:
		a.error(w, http.StatusNotFound, "not_found", "unknown library kind")
	}
}

func runLibraryOp[T any, PT library.Record[T]](a *App, w http.ResponseWriter, r *http.Request, op int, lib *library.Library[T, PT]) {
	if _, err := lib.Load(r.Context()); err != nil {
		a.fail(w, err)
		return
	}
	switch op {
	case opList:
		records := lib.Records()
		if records == nil {
			records = []T{}
		}
		a.json(w, http.StatusOK, map[string]any{"items": records})
	case opSave:
		var rec T
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
			return
		}
		stored, err := lib.Save(r.Context(), rec)
		if err != nil {
			a.fail(w, err)
			return
		}
		a.json(w, http.StatusOK, stored)
	case opRemove:
		id := chi.URLParam(r, "id")
		if id == "" {
			a.error(w, http.StatusBadRequest, "bad_request", "id required")
			return
		}
		if err := lib.Remove(r.Context(), id); err != nil {
			a.fail(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		a.error(w, http.StatusNotFound, "not_found", "unknown library operation")
	}
}
