package relay

import "net/http"

const listNote = "Messages are delivered by the live subscription; this endpoint always returns an empty list"

// ListHandler answers the legacy listing path so old callers do not 404.
type ListHandler struct{}

func (ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"messages": []any{},
			"note":     listNote,
		})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed"})
	}
}
