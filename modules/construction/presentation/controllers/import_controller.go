package controllers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/buildflow/buildflow/modules/construction/domain/enums"
	"github.com/buildflow/buildflow/modules/construction/services/dataimport"
	"github.com/buildflow/buildflow/pkg/application"
	"github.com/buildflow/buildflow/pkg/composables"
	"github.com/buildflow/buildflow/pkg/configuration"
	"github.com/buildflow/buildflow/pkg/middleware"
)

const uploadField = "file"

type ImportController struct {
	importer *dataimport.Service
	opts     configuration.ImportOptions
	basePath string
}

func NewImportController(app application.Application, opts configuration.ImportOptions) application.Controller {
	return &ImportController{
		importer: app.Service(dataimport.Service{}).(*dataimport.Service),
		opts:     opts,
		basePath: "/api/import",
	}
}

func (c *ImportController) Key() string {
	return c.basePath
}

func (c *ImportController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(middleware.RequireUser())
	router.HandleFunc("", c.handleImport(dataimport.FormatUnknown)).Methods(http.MethodPost)
	router.HandleFunc("/excel", c.handleImport(dataimport.FormatWorkbook)).Methods(http.MethodPost)
	router.HandleFunc("/csv", c.handleImport(dataimport.FormatFlat)).Methods(http.MethodPost)
	router.HandleFunc("/plan", c.Plan).Methods(http.MethodPost)
	router.HandleFunc("/vocabulary", c.Vocabulary).Methods(http.MethodGet)
}

type importResponse struct {
	Message     string                  `json:"message"`
	RunID       string                  `json:"run_id"`
	Stats       dataimport.Counts       `json:"stats"`
	Skipped     int                     `json:"skipped"`
	DryRun      bool                    `json:"dry_run"`
	Diagnostics []dataimport.Diagnostic `json:"diagnostics"`
}

type upload struct {
	filename string
	data     []byte
	mime     string
}

var errUploadTooLarge = errors.New("upload exceeds the size limit")

// readUpload enforces the extension allow-list and the size limit before
// any byte reaches the importer.
func (c *ImportController) readUpload(w http.ResponseWriter, r *http.Request) (*upload, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, c.opts.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(c.opts.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, errUploadTooLarge
		}
		return nil, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err)
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("no file provided in field %q", uploadField)
	}
	defer func() { _ = file.Close() }()

	if header.Filename == "" {
		return nil, http.StatusBadRequest, errors.New("no file selected")
	}
	if !c.opts.Allowed(header.Filename) {
		return nil, http.StatusBadRequest, fmt.Errorf("file type not allowed, accepted: %s", strings.Join(c.opts.AllowedExtensions, ", "))
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(file, c.opts.MaxUploadSize+1))
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("read upload: %w", err)
	}
	if n > c.opts.MaxUploadSize {
		return nil, http.StatusRequestEntityTooLarge, errUploadTooLarge
	}
	return &upload{
		filename: header.Filename,
		data:     buf.Bytes(),
		mime:     mimetype.Detect(buf.Bytes()).String(),
	}, 0, nil
}

func importOptions(r *http.Request) (dataimport.Options, error) {
	var opts dataimport.Options
	if raw := strings.TrimSpace(r.FormValue("default_project_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return opts, errors.New("default_project_id must be a positive integer")
		}
		opts.DefaultProjectID = uint(id)
	}
	if raw := strings.TrimSpace(r.FormValue("dry_run")); raw != "" {
		dry, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, errors.New("dry_run must be a boolean")
		}
		opts.DryRun = dry
	}
	return opts, nil
}

func (c *ImportController) handleImport(want dataimport.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		up, status, err := c.readUpload(w, r)
		if err != nil {
			code := "INVALID_UPLOAD"
			if status == http.StatusRequestEntityTooLarge {
				code = "UPLOAD_TOO_LARGE"
			}
			writeAPIError(w, r, status, code, err.Error())
			return
		}
		opts, err := importOptions(r)
		if err != nil {
			writeAPIError(w, r, http.StatusBadRequest, "INVALID_UPLOAD", err.Error())
			return
		}
		got := dataimport.DetectFormat(up.filename, up.data)
		if want != dataimport.FormatUnknown && got != want {
			writeAPIError(w, r, http.StatusBadRequest, "INVALID_UPLOAD",
				fmt.Sprintf("%s is not a %s payload (detected %s)", up.filename, want, up.mime))
			return
		}
		composables.UseLogger(r.Context()).WithFields(logrus.Fields{
			"filename": up.filename,
			"mime":     up.mime,
			"bytes":    len(up.data),
			"dry_run":  opts.DryRun,
		}).Info("import upload received")

		var res *dataimport.Result
		switch want {
		case dataimport.FormatWorkbook:
			res, err = c.importer.ImportWorkbook(r.Context(), up.filename, up.data, opts)
		case dataimport.FormatFlat:
			res, err = c.importer.ImportFlatFile(r.Context(), up.filename, up.data, opts)
		default:
			res, err = c.importer.Import(r.Context(), up.filename, up.data, opts)
		}
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		message := "Import successful"
		if res.DryRun {
			message = "Dry run completed, nothing was saved"
		}
		diags := res.Diagnostics
		if diags == nil {
			diags = []dataimport.Diagnostic{}
		}
		writeJSON(w, http.StatusOK, importResponse{
			Message:     message,
			RunID:       res.RunID.String(),
			Stats:       res.Counts,
			Skipped:     res.Skipped(),
			DryRun:      res.DryRun,
			Diagnostics: diags,
		})
	}
}

func (c *ImportController) Plan(w http.ResponseWriter, r *http.Request) {
	up, status, err := c.readUpload(w, r)
	if err != nil {
		writeAPIError(w, r, status, "INVALID_UPLOAD", err.Error())
		return
	}
	plan, err := c.importer.Plan(r.Context(), up.filename, up.data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// Vocabulary lists the accepted spellings of every enum column.
func (c *ImportController) Vocabulary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, enums.Synonyms())
}
