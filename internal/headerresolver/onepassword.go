package headerresolver

import (
	"context"
	"fmt"

	"github.com/1Password/connect-sdk-go/connect"
)

// OnePassword resolves one header's value from a field on a named item in
// a 1Password vault, reached through a Connect server. It is meant for
// long-lived credentials (API keys, service tokens) that should never be
// placed directly in a Config literal.
type OnePassword struct {
	client  connect.Client
	vaultID string
	header  string
	scheme  string // e.g. "Bearer"; "" means the raw field value is the header value

	itemTitle string
	fieldID   string
}

// OnePasswordConfig configures a Connect-backed resolver.
type OnePasswordConfig struct {
	Host      string // OP_CONNECT_HOST
	Token     string // OP_CONNECT_TOKEN
	VaultID   string // OP_VAULT_ID
	ItemTitle string
	FieldID   string
	Header    string
	Scheme    string
}

// NewOnePassword constructs a resolver against a running Connect server.
func NewOnePassword(cfg OnePasswordConfig) (*OnePassword, error) {
	if cfg.Host == "" || cfg.Token == "" || cfg.VaultID == "" {
		return nil, fmt.Errorf("1Password configuration incomplete: host, token, and vault_id are required")
	}
	if cfg.ItemTitle == "" || cfg.FieldID == "" || cfg.Header == "" {
		return nil, fmt.Errorf("1Password configuration incomplete: item_title, field_id, and header are required")
	}
	client := connect.NewClientWithUserAgent(cfg.Host, cfg.Token, "bulkfetch")
	return &OnePassword{
		client:    client,
		vaultID:   cfg.VaultID,
		header:    cfg.Header,
		scheme:    cfg.Scheme,
		itemTitle: cfg.ItemTitle,
		fieldID:   cfg.FieldID,
	}, nil
}

// Resolve fetches the configured item and returns its field value on the
// configured header, scheme-prefixed if configured.
func (o *OnePassword) Resolve(ctx context.Context, _ map[string]string) (map[string]string, error) {
	items, err := o.client.GetItemsByTitle(o.itemTitle, o.vaultID)
	if err != nil {
		return nil, fmt.Errorf("listing 1Password items: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("1Password item %q not found in vault %q", o.itemTitle, o.vaultID)
	}

	item, err := o.client.GetItem(items[0].ID, o.vaultID)
	if err != nil {
		return nil, fmt.Errorf("fetching 1Password item: %w", err)
	}

	for _, field := range item.Fields {
		if field.ID == o.fieldID {
			value := field.Value
			if o.scheme != "" {
				value = o.scheme + " " + value
			}
			return map[string]string{o.header: value}, nil
		}
	}
	return nil, fmt.Errorf("field %q not found on item %q", o.fieldID, o.itemTitle)
}
