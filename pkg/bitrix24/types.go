package bitrix24

import (
	"encoding/json"
	"strconv"
)

// Request describes one logical remote call. It is immutable once created.
type Request struct {
	// Method is the logical remote method, e.g. "crm.lead.list".
	Method string

	// Body is the JSON-encodable payload. Nil means a GET call.
	Body any

	// Priority orders the call in the dispatcher queue when priority
	// dispatch is enabled. Higher runs earlier; out-of-range values are
	// clamped.
	Priority int
}

// Entity is a dynamic CRM record mapping field names to values.
type Entity map[string]any

// ID returns the integer ID field of the record. The portal serializes IDs
// as JSON strings or numbers depending on the method.
func (e Entity) ID() (int, bool) {
	raw, ok := e["ID"]
	if !ok {
		return 0, false
	}

	switch v := raw.(type) {
	case string:
		id, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}

		return id, true
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// StringField returns a string-typed field value.
func (e Entity) StringField(name string) string {
	if v, ok := e[name].(string); ok {
		return v
	}

	return ""
}

// ListOptions narrows and orders list calls. A nil options value lists
// everything from offset zero.
type ListOptions struct {
	// Select limits the returned fields; empty returns the default set.
	Select []string `json:"select,omitempty"`

	// Filter matches records, e.g. {">OPPORTUNITY": 1000, "STATUS_ID": "NEW"}.
	Filter map[string]any `json:"filter,omitempty"`

	// Order maps field names to "ASC" or "DESC".
	Order map[string]string `json:"order,omitempty"`

	// Start is the paging offset as returned in a previous page's Next.
	Start int `json:"start"`
}

// ListResult is one page of a listing.
type ListResult struct {
	Items []Entity

	// Total is the full match count reported by the portal.
	Total int

	// Next is the offset of the following page; valid only when HasMore.
	Next int

	// HasMore reports whether another page exists.
	HasMore bool
}

// Field describes one entity field from a crm.*.fields schema.
type Field struct {
	Type        string `json:"type"        yaml:"type"`
	IsRequired  bool   `json:"isRequired"  yaml:"isRequired"`
	IsReadOnly  bool   `json:"isReadOnly"  yaml:"isReadOnly"`
	IsImmutable bool   `json:"isImmutable" yaml:"isImmutable"`
	IsMultiple  bool   `json:"isMultiple"  yaml:"isMultiple"`
	IsDynamic   bool   `json:"isDynamic"   yaml:"isDynamic"`
	Title       string `json:"title"       yaml:"title"`
}

// MethodResponse is the portal's standard response envelope.
type MethodResponse struct {
	Result json.RawMessage `json:"result"`
	Total  int             `json:"total,omitempty"`
	Next   *int            `json:"next,omitempty"`
	Time   *CallTiming     `json:"time,omitempty"`
}

// CallTiming is the server-side timing block attached to every response.
type CallTiming struct {
	Start      float64 `json:"start"`
	Finish     float64 `json:"finish"`
	Duration   float64 `json:"duration"`
	Processing float64 `json:"processing"`
	DateStart  string  `json:"date_start"`
	DateFinish string  `json:"date_finish"`
}

// DecodeResponse parses a raw call result into the standard envelope.
func DecodeResponse(raw json.RawMessage) (*MethodResponse, error) {
	var resp MethodResponse

	err := json.Unmarshal(raw, &resp)
	if err != nil {
		return nil, err
	}

	return &resp, nil
}
