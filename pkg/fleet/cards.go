package fleet

import (
	"context"
	"net/http"
	"net/url"
)

// Card is the fleet directory's view of a company card. The directory is
// authoritative for existence and identity metadata; reader-observed state
// stays local.
type Card struct {
	ID         string `json:"id,omitempty"`
	CardNumber string `json:"card_number"`
	Name       string `json:"name,omitempty"`
	ICCID      string `json:"iccid,omitempty"`
}

// ListCards fetches the company's card directory.
func (c *Client) ListCards(ctx context.Context, token, companyID string) ([]Card, error) {
	endpoint := c.companyPath(companyID, "tachograph-cards")
	var cards []Card
	if err := c.do(ctx, http.MethodGet, endpoint, token, nil, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// CreateCard adds a card record to the directory.
func (c *Client) CreateCard(ctx context.Context, token, companyID string, card Card) (*Card, error) {
	endpoint := c.companyPath(companyID, "tachograph-cards")
	var created Card
	if err := c.do(ctx, http.MethodPost, endpoint, token, card, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateCard replaces the directory record identified by card.ID.
func (c *Client) UpdateCard(ctx context.Context, token, companyID string, card Card) (*Card, error) {
	endpoint := c.companyPath(companyID, "tachograph-cards", url.PathEscape(card.ID))
	var updated Card
	if err := c.do(ctx, http.MethodPut, endpoint, token, card, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteCard removes the directory record.
func (c *Client) DeleteCard(ctx context.Context, token, companyID, cardID string) error {
	endpoint := c.companyPath(companyID, "tachograph-cards", url.PathEscape(cardID))
	return c.do(ctx, http.MethodDelete, endpoint, token, nil, nil)
}
