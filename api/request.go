package api

import (
	"io"
	"net/http"

	"caoba.org/botcheck/pipeline"
	"github.com/google/uuid"
)

const TidHeader = "X-Botcheck-Tid"

type Request struct {
	Pipeline pipeline.Pipeline
}

// ProcessData runs the analysis pipeline on the raw POST body. The transaction id comes from
// the X-Botcheck-Tid header or is generated.
func (req *Request) ProcessData(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	logger := makeRequestLogger(r)

	if r.Method != http.MethodPost {
		logger.Err(nil).Int("status", http.StatusMethodNotAllowed).Msg("Only 'POST' method is allowed here")
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	msg, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Err(err).Int("status", http.StatusBadRequest).Msg("Could not read request body")
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	tid := r.Header.Get(TidHeader)
	if tid == "" {
		tid = uuid.NewString()
	}
	request := pipeline.Request{
		Tid:  tid,
		Text: string(msg),
	}
	logger.Info().Str("tid", request.Tid).Msg("Starting pipeline for request from API")
	resp := <-req.Pipeline(request)
	w.Header().Set(TidHeader, tid)
	_, _ = w.Write([]byte(resp))
	logger.Info().Int("status", http.StatusOK).Msg("Finished processing request")
}
