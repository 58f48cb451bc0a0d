package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/monday-task-gateway/internal/errors"
	"github.com/yukikurage/monday-task-gateway/internal/monday"
)

// PeopleHandler exposes the assignable-people roster so upstream
// layers can offer owner suggestions.
type PeopleHandler struct {
	people  *monday.PeopleDirectory
	boardID int64
}

// NewPeopleHandler creates a new PeopleHandler
func NewPeopleHandler(people *monday.PeopleDirectory, boardID int64) *PeopleHandler {
	return &PeopleHandler{people: people, boardID: boardID}
}

// ListPeople handles GET /api/people
func (h *PeopleHandler) ListPeople(c *gin.Context) {
	roster, err := h.people.AssignablePeople(c.Request.Context(), h.boardID)
	if err != nil {
		respondMondayError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"people": roster,
		"total":  len(roster),
	})
}

// respondMondayError maps monday client failures onto the gateway's
// error envelope.
func respondMondayError(c *gin.Context, err error) {
	if errors.Is(err, monday.ErrNoSubitemsColumn) || errors.Is(err, monday.ErrSubitemsBoardUnresolved) {
		apierrors.SchemaError(c, err.Error())
		return
	}

	var apiErr *monday.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case monday.ErrKindRateLimited:
			apierrors.RespondWithError(c, http.StatusTooManyRequests,
				apierrors.NewAPIError(apierrors.ErrCodeRateLimited, "monday.com rate limit reached, try again later"))
		case monday.ErrKindProxyAuth:
			apierrors.UpstreamUnavailable(c, "proxy authentication required, check proxy credentials")
		default:
			apierrors.UpstreamUnavailable(c, "")
		}
		return
	}

	apierrors.InternalError(c, "")
}
