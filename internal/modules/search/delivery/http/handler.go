package handler

import (
	"strconv"

	search "anoa.com/itdesk/internal/modules/search/service"
	"anoa.com/itdesk/pkg/biztime"
	"anoa.com/itdesk/pkg/response"
	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	searchService search.SearchService
}

func NewSearchHandler(searchService search.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

type ticketHit struct {
	ID           uint   `json:"id"`
	TicketNumber string `json:"ticket_number"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	Priority     string `json:"priority"`
	Category     string `json:"category"`
	UserName     string `json:"user_name"`
	CreatedAt    string `json:"created_at"`
	URL          string `json:"url"`
}

func (h *SearchHandler) SearchTickets(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	tickets, err := h.searchService.SearchTickets(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	hits := make([]ticketHit, 0, len(tickets))
	for _, t := range tickets {
		hits = append(hits, ticketHit{
			ID:           t.ID,
			TicketNumber: t.TicketNumber,
			Title:        t.Title,
			Status:       t.Status,
			Priority:     t.Priority,
			Category:     t.Category,
			UserName:     t.UserName,
			CreatedAt:    biztime.Format(t.CreatedAt),
			URL:          "/ticket/" + strconv.FormatUint(uint64(t.ID), 10),
		})
	}
	response.Success(c, hits)
}
