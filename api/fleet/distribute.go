package fleet

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
)

type distributeRequest struct {
	BatchID string `json:"batch_id"`
}

// NewDistributeHandler serves POST /api/fleet/distribute. Requests must
// include an Authorization header with "Bearer <token>" when token is
// non-empty. An empty body runs under a generated batch id.
func NewDistributeHandler(f Fleet, token string) http.Handler {
	return byMethod(nil, requireToken(token, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req distributeRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil && err != io.EOF {
			http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.BatchID == "" {
			req.BatchID = "HTTP-" + uuid.NewString()
		}
		writeJSON(w, http.StatusOK, f.AutoDistribute(req.BatchID))
	})))
}
