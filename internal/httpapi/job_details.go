package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MimeLyc/contextual-caption-translator/internal/jobs"
	"github.com/MimeLyc/contextual-caption-translator/internal/service"
	"github.com/MimeLyc/contextual-caption-translator/internal/subtitle"
)

const (
	defaultJobPreviewLimit = 80
	maxJobPreviewLimit     = 500
)

var errJobNotFound = errors.New("job not found")

type jobDetailResponse struct {
	Job           *jobs.TranslationJob `json:"job"`
	Video         *videoInfo           `json:"video,omitempty"`
	Progress      jobProgressResponse  `json:"progress"`
	Preview       []jobPreviewLine     `json:"preview"`
	PreviewOffset int                  `json:"preview_offset"`
	PreviewLimit  int                  `json:"preview_limit"`
}

type videoInfo struct {
	VideoID    string        `json:"video_id"`
	TrackID    string        `json:"track_id"`
	SourceLang string        `json:"lang"`
	Engine     string        `json:"engine"`
	State      service.State `json:"state"`
	Error      string        `json:"error,omitempty"`
}

type jobProgressResponse struct {
	TranslatedLines int     `json:"translated_lines"`
	FailedLines     int     `json:"failed_lines"`
	TotalLines      int     `json:"total_lines"`
	Percent         float64 `json:"percent"`
}

type jobPreviewLine struct {
	Index          int    `json:"index"`
	StartMs        int    `json:"start"`
	EndMs          int    `json:"end"`
	OriginalText   string `json:"original_text"`
	TranslatedText string `json:"translated_text"`
	TempFailed     bool   `json:"temp_failed,omitempty"`
}

func parseJobRoute(path string) (jobID string, ok bool) {
	trimmed := strings.Trim(strings.TrimPrefix(path, "/api/jobs/"), "/")
	if trimmed == "" || strings.Contains(trimmed, "/") {
		return "", false
	}
	rawID, err := url.PathUnescape(trimmed)
	if err != nil || strings.TrimSpace(rawID) == "" {
		return "", false
	}
	return rawID, true
}

func (s *Server) handleJobDetail(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseJobRoute(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	offset := parsePositiveIntWithDefault(r.URL.Query().Get("offset"), 0)
	limit := parsePositiveIntWithDefault(r.URL.Query().Get("limit"), defaultJobPreviewLimit)
	if limit <= 0 {
		limit = defaultJobPreviewLimit
	}
	if limit > maxJobPreviewLimit {
		limit = maxJobPreviewLimit
	}

	detail, err := s.buildJobDetail(r.Context(), jobID, offset, limit)
	if err != nil {
		switch {
		case errors.Is(err, errJobNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeServiceError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func parsePositiveIntWithDefault(raw string, def int) int {
	if strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func (s *Server) buildJobDetail(ctx context.Context, jobID string, offset int, limit int) (jobDetailResponse, error) {
	if s.queue == nil {
		return jobDetailResponse{}, errJobNotFound
	}
	job, ok := s.queue.Get(jobID)
	if !ok {
		return jobDetailResponse{}, errJobNotFound
	}

	detail := jobDetailResponse{
		Job:           job,
		Preview:       []jobPreviewLine{},
		PreviewOffset: offset,
		PreviewLimit:  limit,
	}

	status, err := s.captions.Status(ctx, job.Payload.VideoID)
	if err != nil {
		// the cache may have been cleared after the job finished
		if service.IsErrorType(err, service.ErrNotFound) {
			return detail, nil
		}
		return jobDetailResponse{}, err
	}

	detail.Video = &videoInfo{
		VideoID:    status.VideoID,
		TrackID:    status.TrackID,
		SourceLang: status.SourceLang,
		Engine:     status.Engine,
		State:      status.State,
		Error:      status.Error,
	}
	detail.Progress = progressResponse(status.Progress)
	detail.Preview = previewLines(status.Cues, offset, limit)
	return detail, nil
}

func progressResponse(p subtitle.Progress) jobProgressResponse {
	ret := jobProgressResponse{
		TranslatedLines: p.Done,
		FailedLines:     p.Failed,
		TotalLines:      p.Total,
	}
	if p.Total > 0 {
		ret.Percent = float64(p.Done) * 100 / float64(p.Total)
	}
	return ret
}

func previewLines(cues []subtitle.Cue, offset int, limit int) []jobPreviewLine {
	ret := []jobPreviewLine{}
	if offset >= len(cues) {
		return ret
	}
	end := offset + limit
	if end > len(cues) {
		end = len(cues)
	}
	for i := offset; i < end; i++ {
		cue := cues[i]
		ret = append(ret, jobPreviewLine{
			Index:          i,
			StartMs:        cue.StartMs,
			EndMs:          cue.EndMs,
			OriginalText:   cue.Text,
			TranslatedText: cue.Translation(),
			TempFailed:     cue.TempFailed,
		})
	}
	return ret
}
