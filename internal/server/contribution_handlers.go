package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/marigoldlabs/keepsake/backend/internal/contributions"
)

type contributionPayload struct {
	ID                string `json:"id"`
	PhotoID           string `json:"photoId"`
	URL               string `json:"url"`
	Note              string `json:"note"`
	Prompt            string `json:"prompt"`
	ContributorUserID string `json:"contributorUserId,omitempty"`
	ContributedAt     string `json:"contributedAt"`
}

type contributionListResponsePayload struct {
	Data   []contributionPayload `json:"data"`
	Total  int64                 `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

func toContributionPayload(contribution contributions.Contribution) contributionPayload {
	return contributionPayload{
		ID:                contribution.ID,
		PhotoID:           contribution.PhotoID,
		URL:               contribution.URL,
		Note:              contribution.Note,
		Prompt:            contribution.Prompt,
		ContributorUserID: contribution.ContributorUserID,
		ContributedAt:     contribution.ContributedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (h *httpHandler) handleListContributions(c *gin.Context) {
	limit, offset := parsePagination(c)
	items, total, err := h.contributions.List(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	payload := make([]contributionPayload, 0, len(items))
	for _, item := range items {
		payload = append(payload, toContributionPayload(item))
	}

	c.JSON(http.StatusOK, contributionListResponsePayload{Data: payload, Total: total, Limit: limit, Offset: offset})
}

func (h *httpHandler) handleSubmitContributions(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "multipart form expected")
		return
	}

	fileHeaders := form.File["files"]
	notes := form.Value["notes"]
	prompts := form.Value["prompts"]

	files := make([]contributions.FileUpload, 0, len(fileHeaders))
	for _, header := range fileHeaders {
		file, err := header.Open()
		if err != nil {
			h.logger.Warn("failed to open multipart file", zap.Error(err), zap.String("filename", header.Filename))
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "could not read uploaded file")
			return
		}
		defer file.Close()

		files = append(files, contributions.FileUpload{
			Reader:       file,
			Size:         header.Size,
			ContentType:  header.Header.Get("Content-Type"),
			OriginalName: header.Filename,
		})
	}

	contributorID := ""
	if user, ok := currentUser(c); ok {
		contributorID = user.ID
	}

	created, err := h.contributions.Submit(c.Request.Context(), c.Param("id"), files, notes, prompts, contributorID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	payload := make([]contributionPayload, 0, len(created))
	for _, item := range created {
		payload = append(payload, toContributionPayload(item))
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Contributions submitted successfully",
		"contributions": payload,
	})
}
