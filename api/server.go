// Package api serves extraction and recurring-payment detection over HTTP.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/aqlanhadi/stmtscan/detector"
	"github.com/aqlanhadi/stmtscan/extractor"
	"github.com/aqlanhadi/stmtscan/extractor/common"
	"github.com/aqlanhadi/stmtscan/extractor/source"
	"github.com/aqlanhadi/stmtscan/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds the API server configuration
type Config struct {
	Port        string
	MaxUploadMB int64
	Source      source.Options
	Logger      zerolog.Logger
}

// DefaultConfig returns the default API configuration
func DefaultConfig() Config {
	return Config{
		Port:        ":8080",
		MaxUploadMB: 32,
		Logger:      zerolog.Nop(),
	}
}

// ConfigFromViper reads server.* and unidoc.* on top of the defaults.
func ConfigFromViper(log zerolog.Logger) Config {
	cfg := DefaultConfig()
	if port := viper.GetString("server.port"); port != "" {
		cfg.Port = ":" + strings.TrimPrefix(port, ":")
	}
	if mb := viper.GetInt64("server.max_upload_mb"); mb > 0 {
		cfg.MaxUploadMB = mb
	}
	cfg.Source = source.OptionsFromConfig()
	cfg.Logger = log
	return cfg
}

// Server represents the HTTP API server
type Server struct {
	config Config
	mux    *http.ServeMux
	log    zerolog.Logger
}

// New creates a new API server with the given configuration
func New(cfg Config) *Server {
	s := &Server{
		config: cfg,
		mux:    http.NewServeMux(),
		log:    logger.Component(cfg.Logger, "api"),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/extract", s.handleExtract)
	s.mux.HandleFunc("/detect", s.handleDetect)
	s.mux.HandleFunc("/health", s.handleHealth)
}

// Handler returns the http.Handler for the server
// This allows the server to be used with custom http.Server configurations
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the HTTP server (blocking)
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.config.Port).Msg("starting server")
	srv := &http.Server{
		Addr:              s.config.Port,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ExtractOptions holds the options for extraction
type ExtractOptions struct {
	StatementOnly   bool
	TransactionOnly bool
	TextOnly        bool
	Detect          bool
	Strategy        string
}

// parseExtractOptions reads flags from form values, falling back to the
// query string.
func (s *Server) parseExtractOptions(r *http.Request) ExtractOptions {
	flag := func(name string) bool {
		return r.FormValue(name) == "true" || r.URL.Query().Get(name) == "true"
	}
	return ExtractOptions{
		StatementOnly:   flag("statement_only"),
		TransactionOnly: flag("transaction_only"),
		TextOnly:        flag("text_only"),
		Detect:          flag("detect"),
		Strategy:        coalesce(r.FormValue("strategy"), r.URL.Query().Get("strategy"), extractor.Auto),
	}
}

// handleExtract accepts a multipart "file" upload, or a "text" field with
// pre-extracted text whose pages are separated by form feeds.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	log := logger.WithFields(s.log, map[string]interface{}{"request_id": uuid.NewString()})
	log.Debug().Str("remote", r.RemoteAddr).Msg("extract request")

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadMB<<20)
	if err := r.ParseMultipartForm(s.config.MaxUploadMB << 20); err != nil {
		log.Warn().Err(err).Msg("parsing multipart form")
		writeError(w, http.StatusBadRequest, "could not parse multipart form: "+err.Error(), "")
		return
	}

	name, src, err := s.readUpload(r)
	if err != nil {
		log.Warn().Err(err).Msg("reading upload")
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	opts := s.parseExtractOptions(r)

	if opts.TextOnly {
		s.handleTextOnly(w, name, src)
		return
	}

	pipeline, err := extractor.NewPipeline(log, opts.Strategy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	statement, err := pipeline.Extract(name, src)
	if err != nil {
		log.Info().Err(err).Str("source", name).Msg("extraction failed")
		writeExtractError(w, err)
		return
	}

	output := extractor.CreateFinalOutput(statement, opts.TransactionOnly, opts.StatementOnly)
	if !opts.Detect {
		writeJSON(w, http.StatusOK, output)
		return
	}

	d, err := detector.NewFromConfig(detector.Options{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"statement": output,
		"recurring": d.Detect(statement.Transactions),
	})
}

func (s *Server) readUpload(r *http.Request) (string, common.Source, error) {
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return "", nil, fmt.Errorf("could not read file: %w", err)
		}
		src, err := source.Read(bytes.NewReader(data), header.Filename, s.config.Source)
		if err != nil {
			return "", nil, err
		}
		return strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename)), src, nil
	case !errors.Is(err, http.ErrMissingFile):
		return "", nil, fmt.Errorf("could not get uploaded file: %w", err)
	}

	if text := r.FormValue("text"); text != "" {
		return coalesce(r.FormValue("name"), "upload"), source.FromText(text), nil
	}
	return "", nil, errors.New(`expected a "file" upload or a "text" field`)
}

func (s *Server) handleTextOnly(w http.ResponseWriter, name string, src common.Source) {
	pages := make([]string, 0, src.PageCount())
	for i := 0; i < src.PageCount(); i++ {
		text, err := src.PageText(i)
		if err != nil {
			writeExtractError(w, err)
			return
		}
		pages = append(pages, text)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filename": name,
		"pages":    pages,
	})
}

// DetectRequest is the body of POST /detect.
type DetectRequest struct {
	Transactions []common.Transaction `json:"transactions"`
	Mode         string               `json:"mode"`
	Fuzzy        bool                 `json:"fuzzy"`
	MerchantOnly bool                 `json:"merchant_only"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DetectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.config.MaxUploadMB<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "")
		return
	}

	var mode detector.Mode
	if req.Mode != "" {
		var err error
		if mode, err = detector.ParseMode(req.Mode); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "")
			return
		}
	}

	d, err := detector.NewFromConfig(detector.Options{Mode: mode, Fuzzy: req.Fuzzy, MerchantOnly: req.MerchantOnly})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"candidates": d.Detect(req.Transactions),
	})
}

// writeExtractError maps pipeline errors to status codes: 422 when the
// document was read but held no transactions, 400 when it could not be read.
func writeExtractError(w http.ResponseWriter, err error) {
	var noTx *common.NoTransactionsError
	switch {
	case errors.As(err, &noTx):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), noTx.Excerpt)
	case errors.Is(err, common.ErrNoTransactionsFound):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "")
	case errors.Is(err, common.ErrDocumentEmpty), errors.Is(err, common.ErrSourceRead):
		writeError(w, http.StatusBadRequest, err.Error(), "")
	default:
		writeError(w, http.StatusInternalServerError, err.Error(), "")
	}
}

func writeError(w http.ResponseWriter, status int, message, excerpt string) {
	body := map[string]string{"error": message}
	if excerpt != "" {
		body["excerpt"] = excerpt
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// coalesce returns the first non-empty string
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
