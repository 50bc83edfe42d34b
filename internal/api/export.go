package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ainova/novagate/internal/export"
	"github.com/ainova/novagate/internal/logx"
	"github.com/ainova/novagate/internal/metrics"
)

var renderFailure = map[string]string{
	"xlsx": "Failed to generate Excel file",
	"pdf":  "Failed to generate PDF file",
	"csv":  "Failed to generate CSV file",
}

// ExportHandler serves one download endpoint. The file is rendered in
// memory first so a failure can still be reported as JSON.
func ExportHandler(renderer export.Renderer, maxBody int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logx.Log.With().Str("request_id", chiMiddleware.GetReqID(r.Context())).Str("format", renderer.Format()).Logger()

		if maxBody > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			metrics.RecordExport(renderer.Format(), false)
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}
		req, err := export.ParseRequest(body, renderer.DefaultFilename())
		if err != nil {
			metrics.RecordExport(renderer.Format(), false)
			if errors.Is(err, export.ErrNoData) {
				writeError(w, http.StatusBadRequest, msgNoData)
			} else {
				writeError(w, http.StatusBadRequest, msgInvalidBody)
			}
			return
		}

		var buf bytes.Buffer
		if err := renderer.Render(&buf, req.Table); err != nil {
			log.Error().Err(err).Msg("render export")
			metrics.RecordExport(renderer.Format(), false)
			writeError(w, http.StatusInternalServerError, renderFailure[renderer.Format()])
			return
		}
		metrics.RecordExport(renderer.Format(), true)
		log.Info().Int("rows", len(req.Table.Rows)).Int("columns", len(req.Table.Columns)).Int("bytes", buf.Len()).Msg("export")

		w.Header().Set("Content-Type", renderer.ContentType())
		w.Header().Set("Content-Disposition", `attachment; filename="`+req.Filename+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		if _, err := buf.WriteTo(w); err != nil {
			log.Warn().Err(err).Msg("write export")
		}
	}
}
