package api

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/ainova/novagate/internal/logx"
	"github.com/ainova/novagate/internal/modes"
)

// BuildOpenAPI describes the public surface for the registered modes.
func BuildOpenAPI(reg *modes.Registry, version string) *openapi3.T {
	if version == "" {
		version = "dev"
	}
	modeEnum := make([]any, 0)
	for _, m := range reg.Modes() {
		modeEnum = append(modeEnum, m)
	}

	errSchema := openapi3.NewObjectSchema().WithProperty("error", openapi3.NewStringSchema())
	errResp := func(desc string) *openapi3.ResponseRef {
		return &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription(desc).WithJSONSchema(errSchema)}
	}

	genReq := openapi3.NewObjectSchema().
		WithProperty("model", openapi3.NewStringSchema()).
		WithProperty("prompt", openapi3.NewStringSchema()).
		WithProperty("mode", openapi3.NewStringSchema().WithEnum(modeEnum...)).
		WithProperty("stream", openapi3.NewBoolSchema()).
		WithRequired([]string{"mode"})

	generate := openapi3.NewOperation()
	generate.OperationID = "generate"
	generate.Summary = "Relay a prompt to the backend selected by mode"
	generate.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(genReq)}
	generate.Responses = openapi3.NewResponses(
		openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{Value: openapi3.NewResponse().
			WithDescription("Upstream output streamed as it arrives").
			WithContent(openapi3.NewContentWithSchema(openapi3.NewStringSchema(), []string{"application/x-ndjson", "application/json"}))}),
		openapi3.WithStatus(http.StatusBadRequest, errResp("Invalid request body or interaction mode")),
		openapi3.WithStatus(http.StatusInternalServerError, errResp("Upstream unreachable")),
		openapi3.WithStatus(http.StatusServiceUnavailable, errResp("Gateway draining")),
		openapi3.WithName("default", errResp("Upstream error passed through with its status").Value),
	)

	exportReq := openapi3.NewObjectSchema().
		WithProperty("data", openapi3.NewArraySchema().WithItems(openapi3.NewObjectSchema())).
		WithProperty("filename", openapi3.NewStringSchema()).
		WithRequired([]string{"data"})
	exportOp := func(id, summary, contentType string) *openapi3.Operation {
		op := openapi3.NewOperation()
		op.OperationID = id
		op.Summary = summary
		op.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(exportReq)}
		op.Responses = openapi3.NewResponses(
			openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{Value: openapi3.NewResponse().
				WithDescription("File attachment").
				WithContent(openapi3.NewContentWithSchema(openapi3.NewStringSchema().WithFormat("binary"), []string{contentType}))}),
			openapi3.WithStatus(http.StatusBadRequest, errResp("No tabular data provided")),
			openapi3.WithStatus(http.StatusInternalServerError, errResp("Rendering failed")),
		)
		return op
	}

	health := openapi3.NewOperation()
	health.OperationID = "health"
	health.Summary = "Query backend health"
	health.Responses = openapi3.NewResponses(
		openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{Value: openapi3.NewResponse().
			WithDescription("Backend healthy").
			WithJSONSchema(openapi3.NewObjectSchema().
				WithProperty("status", openapi3.NewStringSchema()).
				WithProperty("flask", openapi3.NewObjectSchema()))}),
		openapi3.WithStatus(http.StatusInternalServerError, &openapi3.ResponseRef{Value: openapi3.NewResponse().
			WithDescription("Backend unhealthy or unreachable").
			WithJSONSchema(openapi3.NewObjectSchema().
				WithProperty("status", openapi3.NewStringSchema()).
				WithProperty("error", openapi3.NewStringSchema()))}),
	)

	listModes := openapi3.NewOperation()
	listModes.OperationID = "listModes"
	listModes.Summary = "Registered interaction modes"
	listModes.Responses = openapi3.NewResponses(
		openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{Value: openapi3.NewResponse().
			WithDescription("Mode table").
			WithJSONSchema(openapi3.NewObjectSchema().WithProperty("modes", openapi3.NewArraySchema().WithItems(
				openapi3.NewObjectSchema().
					WithProperty("mode", openapi3.NewStringSchema()).
					WithProperty("backend", openapi3.NewStringSchema()).
					WithProperty("upstream", openapi3.NewStringSchema()).
					WithProperty("framing", openapi3.NewStringSchema().WithEnum("ndjson", "json")))))}),
	)

	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info:    &openapi3.Info{Title: "novagate", Version: version},
		Paths: openapi3.NewPaths(
			openapi3.WithPath("/api/generate", &openapi3.PathItem{Post: generate}),
			openapi3.WithPath("/api/download-csv", &openapi3.PathItem{Post: exportOp("downloadCSV", "Export records as CSV", "text/csv")}),
			openapi3.WithPath("/api/download-excel", &openapi3.PathItem{Post: exportOp("downloadExcel", "Export records as an Excel workbook", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")}),
			openapi3.WithPath("/api/download-pdf", &openapi3.PathItem{Post: exportOp("downloadPDF", "Export records as a PDF table", "application/pdf")}),
			openapi3.WithPath("/api/modes", &openapi3.PathItem{Get: listModes}),
			openapi3.WithPath("/health", &openapi3.PathItem{Get: health}),
		),
	}
}

// OpenAPIHandler serves the document built for reg.
func OpenAPIHandler(reg *modes.Registry, version string) http.HandlerFunc {
	doc, err := BuildOpenAPI(reg, version).MarshalJSON()
	if err != nil {
		panic(err)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(doc); err != nil {
			logx.Log.Error().Err(err).Msg("write openapi")
		}
	}
}

const swaggerPage = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8" />
  <title>novagate API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
  window.onload = () => {
    SwaggerUIBundle({
      url: 'openapi.json',
      dom_id: '#swagger-ui'
    });
  };
  </script>
</body>
</html>`

// SwaggerHandler serves a minimal Swagger UI.
func SwaggerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write([]byte(swaggerPage)); err != nil {
			logx.Log.Error().Err(err).Msg("write swagger page")
		}
	}
}
