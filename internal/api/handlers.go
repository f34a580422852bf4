package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/seanblong/lexora/internal/ingest"
	"github.com/seanblong/lexora/internal/store"
	"github.com/seanblong/lexora/pkg/models"
)

const previewChars = 200

type queryRequest struct {
	Question string `json:"question"`
	NChunks  int    `json:"n_chunks"`
	DocType  string `json:"doc_type"`
}

type sourceMetadata struct {
	ChunkID     string `json:"chunk_id"`
	Source      string `json:"source"`
	DocType     string `json:"doc_type"`
	Chunk       int    `json:"chunk"`
	TotalChunks int    `json:"total_chunks"`
}

type sourceChunk struct {
	Text     string         `json:"text"`
	Metadata sourceMetadata `json:"metadata"`
	Distance float64        `json:"distance"`
}

type queryResponse struct {
	Answer         string        `json:"answer"`
	UsingDocuments bool          `json:"using_documents"`
	SourceChunks   []sourceChunk `json:"source_chunks"`
}

func output(res []models.SearchResult) []sourceChunk {
	out := make([]sourceChunk, 0, len(res))
	for _, r := range res {
		dist := r.Distance
		if math.IsNaN(dist) || math.IsInf(dist, 0) {
			dist = 0
		}
		out = append(out, sourceChunk{
			Text: r.Chunk.Text,
			Metadata: sourceMetadata{
				ChunkID:     r.Chunk.ID,
				Source:      r.Chunk.Source,
				DocType:     r.Chunk.DocType,
				Chunk:       r.Chunk.SequenceIndex,
				TotalChunks: r.Chunk.TotalChunks,
			},
			Distance: dist,
		})
	}
	return out
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	k := req.NChunks
	if k <= 0 {
		k = s.opts.DefaultK
	}

	start := time.Now()
	ans := s.search.Answer(r.Context(), req.Question, k, strings.TrimSpace(req.DocType))

	ev := hlog.FromRequest(r).Info()
	if ans.Failure != nil {
		ev = hlog.FromRequest(r).Warn().Err(ans.Failure)
	}
	ev.Int("k", k).
		Bool("using_documents", ans.UsingDocuments).
		Int("chunks", len(ans.SourceChunks)).
		Dur("dur", time.Since(start)).
		Msg("query served")

	writeJSON(w, r, http.StatusOK, queryResponse{
		Answer:         ans.Answer,
		UsingDocuments: ans.UsingDocuments,
		SourceChunks:   output(ans.SourceChunks),
	})
}

type summarizeRequest struct {
	Text     string `json:"text"`
	Question string `json:"question"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	summary, err := s.search.Summarize(r.Context(), req.Text, req.Question)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("summarize degraded")
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"summary": summary})
}

type uploadResponse struct {
	Status       string `json:"status"`
	Filename     string `json:"filename"`
	DocType      string `json:"doc_type"`
	ChunksStored int    `json:"chunks_stored"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "missing multipart file field \"file\"")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		writeError(w, r, http.StatusBadRequest, "invalid filename")
		return
	}
	if s.opts.Supported != nil && !s.opts.Supported(name) {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unsupported file type %q", filepath.Ext(name)))
		return
	}
	docType := strings.TrimSpace(r.FormValue("doc_type"))
	if docType == "" {
		docType = models.DefaultDocType
	}

	path, err := saveTemp(file, filepath.Ext(name))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to save upload")
		writeError(w, r, http.StatusInternalServerError, "failed to save upload")
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("path", path).Msg("failed to remove temp file")
		}
	}()

	n, err := s.uploader.Upload(r.Context(), path, name, docType)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("filename", name).Msg("upload failed")
		writeError(w, r, uploadStatus(err), err.Error())
		return
	}

	writeJSON(w, r, http.StatusOK, uploadResponse{
		Status:       "success",
		Filename:     name,
		DocType:      docType,
		ChunksStored: n,
	})
}

func saveTemp(src io.Reader, ext string) (string, error) {
	f, err := os.CreateTemp("", "lexora-upload-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func uploadStatus(err error) int {
	switch {
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	f := store.Filter{DocType: r.URL.Query().Get("doc_type")}
	n, err := s.store.Count(r.Context(), f)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("count failed")
		writeJSON(w, r, http.StatusOK, map[string]any{"total_chunks": 0, "error": err.Error()})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int{"total_chunks": n})
}

type documentEntry struct {
	ChunkID        string `json:"chunk_id"`
	Source         string `json:"source"`
	DocType        string `json:"doc_type"`
	ChunkNumber    int    `json:"chunk_number"`
	TextPreview    string `json:"text_preview"`
	FullTextLength int    `json:"full_text_length"`
}

type listResponse struct {
	TotalChunks int             `json:"total_chunks"`
	Showing     int             `json:"showing"`
	Documents   []documentEntry `json:"documents"`
	Error       string          `json:"error,omitempty"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", defaultListLimit)
	if !ok {
		return
	}
	f := store.Filter{DocType: r.URL.Query().Get("doc_type")}

	resp := listResponse{Documents: []documentEntry{}}
	total, err := s.store.Count(r.Context(), f)
	if err == nil {
		var chunks []models.Chunk
		chunks, err = s.store.List(r.Context(), limit, f)
		for _, c := range chunks {
			resp.Documents = append(resp.Documents, documentEntry{
				ChunkID:        c.ID,
				Source:         c.Source,
				DocType:        c.DocType,
				ChunkNumber:    c.SequenceIndex,
				TextPreview:    preview(c.Text),
				FullTextLength: len([]rune(c.Text)),
			})
		}
	}
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("list failed")
		resp = listResponse{Documents: []documentEntry{}, Error: err.Error()}
	} else {
		resp.TotalChunks = total
		resp.Showing = len(resp.Documents)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewChars {
		return text
	}
	return string(runes[:previewChars]) + "..."
}

func (s *Server) handleTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.store.ListTypes(r.Context())
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("list types failed")
		writeJSON(w, r, http.StatusOK, map[string]any{"document_types": []string{}, "count": 0, "error": err.Error()})
		return
	}
	if types == nil {
		types = []string{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"document_types": types, "count": len(types)})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	docType := r.URL.Query().Get("doc_type")
	if err := s.store.DeleteAll(r.Context(), store.Filter{DocType: docType}); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("clear failed")
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
		return
	}
	msg := "All documents cleared"
	if docType != "" {
		msg = fmt.Sprintf("All '%s' documents cleared", docType)
	}
	hlog.FromRequest(r).Info().Str("doc_type", docType).Msg("documents cleared")
	writeJSON(w, r, http.StatusOK, errorResponse{Status: "success", Message: msg})
}

func (s *Server) handleAnswers(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", defaultAnswersLimit)
	if !ok {
		return
	}
	recs, err := s.store.Answers(r.Context(), limit)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("answers failed")
		recs = nil
	}
	if recs == nil {
		recs = []models.AnswerRecord{}
	}
	writeJSON(w, r, http.StatusOK, recs)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// intParam reads a non-negative integer query parameter, writing a 400 on
// malformed input.
func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid %s %q", name, v))
		return 0, false
	}
	return n, true
}
