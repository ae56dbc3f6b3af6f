package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/loadnetwork/load-s3-agent/internal/agent/models"
	"github.com/loadnetwork/load-s3-agent/internal/agent/repositories/tagindex"
	"github.com/loadnetwork/load-s3-agent/internal/agent/services"
	"github.com/loadnetwork/load-s3-agent/internal/ans104"
	"github.com/loadnetwork/load-s3-agent/internal/common"
)

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "running",
		"version":          agentVersion,
		"data_protocol":    common.DataProtocolName,
		"uploader_address": s.uploaderAddr,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": map[string]int64{
			"total":   stats.Records.Total,
			"public":  stats.Records.Public,
			"private": stats.Records.Private,
		},
		"submitted": stats.Submitted,
	})
}

func (s *Server) handlePresign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	url, err := s.placement.PresignURL(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         id,
		"url":        url,
		"expires_in": int64(s.config.PresignExpiry.Seconds()),
	})
}

// handleUpload serves both ingestion routes. The signed header selects
// between a pre-signed envelope body and a raw payload the agent signs.
func (s *Server) handleUpload(private bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxObjectSize)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, http.StatusRequestEntityTooLarge, "SIZE_EXCEEDED", "upload body over the size cap")
				return
			}
			writeError(w, http.StatusBadRequest, "BAD_BODY", err.Error())
			return
		}

		placement := services.Placement{Visibility: models.VisibilityPublic}
		if private {
			placement.Visibility = models.VisibilityPrivate
			placement.BucketHint = r.Header.Get("x-bucket")
			placement.NameHint = r.Header.Get("x-name")
			placement.FolderHint = r.Header.Get("x-folder")
		}

		var res *services.PlaceResult
		if r.Header.Get("signed") == "true" {
			res, err = s.placement.UploadSigned(r.Context(), body, placement)
		} else {
			var pairs []tagindex.Pair
			if raw := r.Header.Get("x-tags"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
					writeError(w, http.StatusBadRequest, "BAD_TAGS", err.Error())
					return
				}
			}
			tags := make([]ans104.Tag, 0, len(pairs))
			for _, p := range pairs {
				tags = append(tags, ans104.Tag{Name: p.Key, Value: p.Value})
			}
			res, err = s.placement.UploadUnsigned(r.Context(), body, r.Header.Get("content-type"), tags, placement)
		}
		if err != nil {
			// A placed-but-unindexed item is durable; report it as created
			// with indexed false rather than as a failure.
			if errors.Is(err, common.ErrIndexIncomplete) && res != nil {
				writeJSON(w, http.StatusCreated, uploadResponse(res))
				return
			}
			s.writeServiceError(w, r, err)
			return
		}

		status := http.StatusCreated
		if !res.Created {
			status = http.StatusOK
		}
		writeJSON(w, status, uploadResponse(res))
	}
}

func uploadResponse(res *services.PlaceResult) map[string]any {
	return map[string]any{
		"id":         res.Item.ID(),
		"bucket":     res.Record.Bucket,
		"key":        res.Record.StorageKey,
		"size":       res.Record.Size,
		"visibility": res.Record.Visibility,
		"created":    res.Created,
		"indexed":    res.Indexed,
	}
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	receipt, err := s.migration.Submit(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "receipt": receipt})
}

type tagQueryRequest struct {
	Filters []tagindex.Pair `json:"filters"`
	First   int             `json:"first"`
	After   *string         `json:"after"`
}

func (s *Server) handleTagQuery(w http.ResponseWriter, r *http.Request) {
	var req tagQueryRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}

	page, err := s.query.Query(r.Context(), req.Filters, req.First, req.After)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": page.Items,
		"page_info": map[string]any{
			"has_next_page": page.HasNextPage,
			"next_cursor":   page.NextCursor,
		},
	})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrEmptyFilter),
		errors.Is(err, common.ErrInvalidPageSize),
		errors.Is(err, common.ErrInvalidCursor),
		errors.Is(err, common.ErrInvalidHint),
		errors.Is(err, ans104.ErrTruncated),
		errors.Is(err, ans104.ErrInvalidFieldLength),
		errors.Is(err, ans104.ErrUnsupportedVersion),
		errors.Is(err, ans104.ErrMalformed):
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, common.ErrNotEligible):
		writeError(w, http.StatusForbidden, "NOT_ELIGIBLE", err.Error())
	case errors.Is(err, common.ErrSizeExceeded):
		writeError(w, http.StatusRequestEntityTooLarge, "SIZE_EXCEEDED", err.Error())
	case errors.Is(err, common.ErrQuotaExceeded):
		writeError(w, http.StatusInsufficientStorage, "QUOTA_EXCEEDED", err.Error())
	case errors.Is(err, common.ErrBackendUnavailable),
		errors.Is(err, common.ErrSubmissionFailed):
		writeError(w, http.StatusBadGateway, "UPSTREAM_FAILED", err.Error())
	default:
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
