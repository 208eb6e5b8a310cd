package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"anoa.com/itdesk/internal/entity"
	ticketRepo "anoa.com/itdesk/internal/modules/ticket/repository"
	"anoa.com/itdesk/pkg/markdown"
	"github.com/meilisearch/meilisearch-go"
)

const (
	ticketsIndex = "tickets"
	defaultLimit = 20
	maxLimit     = 100
)

type SearchService interface {
	IndexTicket(ticket *entity.Ticket) error
	SearchTickets(ctx context.Context, query string, limit int) ([]*entity.Ticket, error)
}

type searchService struct {
	client     meilisearch.ServiceManager
	ticketRepo ticketRepo.Repository
	renderer   markdown.Renderer
	log        *slog.Logger
}

type ticketDoc struct {
	ID           uint   `json:"id"`
	TicketNumber string `json:"ticket_number"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Priority     string `json:"priority"`
	Status       string `json:"status"`
	UserName     string `json:"user_name"`
	UserID       uint   `json:"user_id"`
	CreatedAt    int64  `json:"created_at"`
}

// NewSearchService indexes into meilisearch when client is set. A nil client
// makes IndexTicket a no-op and SearchTickets fall back to a title match in
// the database.
func NewSearchService(client meilisearch.ServiceManager, ticketRepo ticketRepo.Repository, renderer markdown.Renderer, log *slog.Logger) SearchService {
	s := &searchService{
		client:     client,
		ticketRepo: ticketRepo,
		renderer:   renderer,
		log:        log.With("component", "search"),
	}
	if client != nil {
		s.initIndex()
	}
	return s
}

func (s *searchService) initIndex() {
	filterable := []any{"status", "category", "priority", "user_id"}
	if _, err := s.client.Index(ticketsIndex).UpdateFilterableAttributes(&filterable); err != nil {
		s.log.Warn("failed to update tickets filterable attributes", "error", err)
	}

	sortable := []string{"created_at"}
	if _, err := s.client.Index(ticketsIndex).UpdateSortableAttributes(&sortable); err != nil {
		s.log.Warn("failed to update tickets sortable attributes", "error", err)
	}
}

func (s *searchService) IndexTicket(ticket *entity.Ticket) error {
	if s.client == nil {
		return nil
	}

	doc := ticketDoc{
		ID:           ticket.ID,
		TicketNumber: ticket.TicketNumber,
		Title:        ticket.Title,
		Description:  s.renderer.PlainText(ticket.Description),
		Category:     ticket.Category,
		Priority:     ticket.Priority,
		Status:       ticket.Status,
		UserName:     ticket.UserName,
		CreatedAt:    ticket.CreatedAt.Unix(),
	}
	if ticket.UserID != nil {
		doc.UserID = *ticket.UserID
	}

	primaryKey := "id"
	task, err := s.client.Index(ticketsIndex).AddDocuments([]ticketDoc{doc}, &primaryKey)
	if err != nil {
		return fmt.Errorf("failed to index ticket %d: %w", ticket.ID, err)
	}
	s.log.Debug("ticket indexed", "ticket_id", ticket.ID, "task_uid", task.TaskUID)
	return nil
}

func (s *searchService) SearchTickets(ctx context.Context, query string, limit int) ([]*entity.Ticket, error) {
	query = strings.TrimSpace(query)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	if s.client == nil {
		return s.ticketRepo.List(ctx, ticketRepo.Filter{Search: query}, limit)
	}

	ids, err := s.searchIDs(query, limit)
	if err != nil {
		s.log.Warn("search engine query failed, using database", "error", err)
		return s.ticketRepo.List(ctx, ticketRepo.Filter{Search: query}, limit)
	}
	if len(ids) == 0 {
		return []*entity.Ticket{}, nil
	}

	tickets, err := s.ticketRepo.List(ctx, ticketRepo.Filter{IDs: ids}, 0)
	if err != nil {
		return nil, err
	}
	return orderByRank(tickets, ids), nil
}

func (s *searchService) searchIDs(query string, limit int) ([]uint, error) {
	raw, err := s.client.Index(ticketsIndex).SearchRaw(query, &meilisearch.SearchRequest{
		Limit:                int64(limit),
		AttributesToRetrieve: []string{"id"},
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Hits []struct {
			ID uint `json:"id"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(*raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	ids := make([]uint, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// orderByRank restores the engine's relevance order; tickets deleted since
// indexing are skipped.
func orderByRank(tickets []*entity.Ticket, ids []uint) []*entity.Ticket {
	byID := make(map[uint]*entity.Ticket, len(tickets))
	for _, t := range tickets {
		byID[t.ID] = t
	}
	out := make([]*entity.Ticket, 0, len(ids))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			out = append(out, t)
		}
	}
	return out
}
