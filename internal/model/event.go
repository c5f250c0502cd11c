package model

import (
	"encoding/json"
	"strings"
)

// EventRecord is one candidate event as produced by upstream search/extraction.
// The core reads it and never mutates it in place.
type EventRecord struct {
	Title       string  `json:"title"`                 // Event name
	Date        string  `json:"date"`                  // DD/MM/YYYY (free-form upstream)
	Time        string  `json:"time"`                  // e.g. "20h00", "14h às 22h", "20:00"
	VenueName   string  `json:"venue_name"`            // Venue display name
	Address     string  `json:"address,omitempty"`     // Street address (optional)
	Price       string  `json:"price,omitempty"`       // "Free", "Consult" or a numeric price
	Description string  `json:"description"`           // Free-text description
	TicketLink  *string `json:"ticket_link,omitempty"` // Purchase/info URL (nullable)
	Category    string  `json:"category"`              // Category label
	IsRecurring bool    `json:"is_recurring"`          // Recurring/continuous event

	// Upstream classification signals
	Excluded  bool     `json:"excluded,omitempty"`  // Flagged by upstream filtering as an excluded category
	Adherence *float64 `json:"adherence,omitempty"` // Upstream classification confidence (0-10)
}

// Link returns the ticket link with a scheme, or "" when absent
func (e EventRecord) Link() string {
	if e.TicketLink == nil {
		return ""
	}
	return NormalizeLink(*e.TicketLink)
}

// NormalizeLink trims a link and adds https:// to scheme-less links such as
// "www.sympla.com.br/evento/x-1". Anything that does not look like a host
// is returned trimmed and unchanged.
func NormalizeLink(raw string) string {
	link := strings.TrimSpace(raw)
	if link == "" || strings.Contains(link, "://") || strings.ContainsAny(link, " \t") {
		return link
	}
	host, _, _ := strings.Cut(link, "/")
	host, _, _ = strings.Cut(host, "?")
	if !strings.Contains(host, ".") || strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") {
		return link
	}
	return "https://" + link
}

// MissingRequired lists required fields that are empty.
// Required: title, date, venue_name, description.
func (e EventRecord) MissingRequired() []string {
	var missing []string
	if strings.TrimSpace(e.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(e.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(e.VenueName) == "" {
		missing = append(missing, "venue_name")
	}
	if strings.TrimSpace(e.Description) == "" {
		missing = append(missing, "description")
	}
	return missing
}

// fieldAliases maps a canonical JSON key to the keys upstream agents emit for it
var fieldAliases = map[string][]string{
	"title":       {"title", "titulo", "nome", "event_name"},
	"date":        {"date", "data", "dia"},
	"time":        {"time", "horario", "hora"},
	"venue_name":  {"venue_name", "local", "venue", "lugar"},
	"address":     {"address", "endereco"},
	"price":       {"price", "preco", "valor", "ticket_price"},
	"description": {"description", "descricao", "resumo", "desc"},
	"ticket_link": {"ticket_link", "link_ingresso", "link", "url"},
	"category":    {"category", "categoria", "tipo"},
}

// UnmarshalJSON decodes an event accepting the field aliases used by the
// upstream agents. Unknown keys are ignored; malformed values fail the decode.
func (e *EventRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	lookup := func(canonical string) json.RawMessage {
		for _, alias := range fieldAliases[canonical] {
			if v, ok := raw[alias]; ok && string(v) != "null" && string(v) != `""` {
				return v
			}
		}
		return nil
	}

	str := func(canonical string, dst *string) error {
		v := lookup(canonical)
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, dst)
	}

	var out EventRecord
	for canonical, dst := range map[string]*string{
		"title":       &out.Title,
		"date":        &out.Date,
		"time":        &out.Time,
		"venue_name":  &out.VenueName,
		"address":     &out.Address,
		"price":       &out.Price,
		"description": &out.Description,
		"category":    &out.Category,
	} {
		if err := str(canonical, dst); err != nil {
			return err
		}
	}

	if v := lookup("ticket_link"); v != nil {
		var link string
		if err := json.Unmarshal(v, &link); err != nil {
			return err
		}
		link = strings.TrimSpace(link)
		switch strings.ToLower(link) {
		case "", "null", "none":
		default:
			out.TicketLink = &link
		}
	}

	if v, ok := raw["is_recurring"]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &out.IsRecurring); err != nil {
			return err
		}
	}
	if v, ok := raw["excluded"]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &out.Excluded); err != nil {
			return err
		}
	}
	if v, ok := raw["adherence"]; ok && string(v) != "null" {
		var a float64
		if err := json.Unmarshal(v, &a); err != nil {
			return err
		}
		out.Adherence = &a
	}

	*e = out
	return nil
}

// Decision is the final accept/reject outcome for an event
type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
)

// RejectionReason classifies why an event was rejected
type RejectionReason string

const (
	ReasonInvalidDate      RejectionReason = "InvalidDate"
	ReasonIncompleteRecord RejectionReason = "IncompleteRecord"
	ReasonDateMismatch     RejectionReason = "DateMismatch"
	ReasonDuplicate        RejectionReason = "Duplicate"
)

// LinkKind classifies an event link
type LinkKind string

const (
	LinkNone     LinkKind = "none"     // No link present
	LinkGeneric  LinkKind = "generic"  // Listing/index page
	LinkSpecific LinkKind = "specific" // Page about one event
)
