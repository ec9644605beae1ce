package chi

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/semdex/internal/domain"
	dombatch "github.com/kailas-cloud/semdex/internal/domain/batch"
	"github.com/kailas-cloud/semdex/internal/domain/explain"
	"github.com/kailas-cloud/semdex/internal/domain/item"
	"github.com/kailas-cloud/semdex/internal/domain/predicate"
	"github.com/kailas-cloud/semdex/internal/domain/query"
	"github.com/kailas-cloud/semdex/internal/domain/schema"
)

// ErrorCode is the machine-readable error code in an error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest          ErrorCode = "bad_request"
	CodeUnauthorized        ErrorCode = "unauthorized"
	CodeValidationFailed    ErrorCode = "validation_failed"
	CodeNormalizationFailed ErrorCode = "normalization_failed"
	CodeInvalidQuery        ErrorCode = "invalid_query"
	CodeInvalidSchema       ErrorCode = "invalid_schema"
	CodeNotFound            ErrorCode = "not_found"
	CodeFieldNotFound       ErrorCode = "field_not_found"
	CodeAlreadyExists       ErrorCode = "already_exists"
	CodeDuplicateContent    ErrorCode = "duplicate_content"
	CodeInternalError       ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type itemResponse struct {
	ID          string            `json:"id"`
	Text        string            `json:"text"`
	Descriptor  map[string]string `json:"descriptor"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	ContentHash string            `json:"content_hash"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func itemToResponse(it item.Indexed) itemResponse {
	return itemResponse{
		ID:          it.ID(),
		Text:        it.Text(),
		Descriptor:  it.Descriptor().Fields(),
		Metadata:    it.Metadata(),
		ContentHash: it.ContentHash(),
		CreatedAt:   it.CreatedAt().UTC(),
		UpdatedAt:   it.UpdatedAt().UTC(),
	}
}

func itemsToResponse(items []item.Indexed) []itemResponse {
	out := make([]itemResponse, len(items))
	for i, it := range items {
		out[i] = itemToResponse(it)
	}
	return out
}

type addItemRequest struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Descriptor map[string]string `json:"descriptor"`
	Metadata   map[string]any    `json:"metadata"`
}

type updateItemRequest struct {
	Text       *string           `json:"text"`
	Descriptor map[string]string `json:"descriptor"`
	Metadata   map[string]any    `json:"metadata"`
}

type listItemsResponse struct {
	Items  []itemResponse `json:"items"`
	Total  int            `json:"total"`
	Offset int            `json:"offset"`
	Limit  int            `json:"limit"`
}

type batchAddRequest struct {
	Items []addItemRequest `json:"items"`
}

type batchRemoveRequest struct {
	IDs []string `json:"ids"`
}

type batchResultItem struct {
	Position int            `json:"position"`
	ID       string         `json:"id,omitempty"`
	Status   string         `json:"status"`
	Error    *ErrorResponse `json:"error,omitempty"`
}

type batchResponse struct {
	Items     []batchResultItem `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

func batchToResponse(results []dombatch.Result) batchResponse {
	items := make([]batchResultItem, len(results))
	for i, r := range results {
		items[i] = batchResultItem{Position: r.Position(), ID: r.ID(), Status: string(r.Status())}
		if r.Err() != nil {
			items[i].Error = &ErrorResponse{Code: errorCode(r.Err()), Message: safeDomainMessage(r.Err())}
		}
	}
	succeeded, failed := dombatch.Counts(results)
	return batchResponse{Items: items, Succeeded: succeeded, Failed: failed}
}

type normalizeRequest struct {
	Value      *string           `json:"value"`
	Descriptor map[string]string `json:"descriptor"`
}

type normalizeResponse struct {
	Value      string            `json:"value,omitempty"`
	Path       []string          `json:"path,omitempty"`
	Depth      int               `json:"depth,omitempty"`
	Descriptor map[string]string `json:"descriptor,omitempty"`
}

type validateRequest struct {
	Descriptor map[string]string `json:"descriptor"`
	Partial    bool              `json:"partial"`
}

type schemaField struct {
	Name        string `json:"name"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

type schemaResponse struct {
	Version  string        `json:"version"`
	Versions []string      `json:"versions"`
	Fields   []schemaField `json:"fields"`
}

type valueNode struct {
	Label    string      `json:"label"`
	Children []valueNode `json:"children,omitempty"`
}

type fieldResponse struct {
	schemaField
	Prefix  string      `json:"prefix,omitempty"`
	Options []string    `json:"options"`
	Values  []string    `json:"values"`
	Tree    []valueNode `json:"tree"`
}

func treeToResponse(nodes []*schema.Node) []valueNode {
	out := make([]valueNode, len(nodes))
	for i, n := range nodes {
		out[i] = valueNode{Label: n.Label(), Children: treeToResponse(n.Children())}
		if len(out[i].Children) == 0 {
			out[i].Children = nil
		}
	}
	return out
}

type sortRequest struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

type queryRequest struct {
	Where        *predicateRequest `json:"where"`
	Sort         []sortRequest     `json:"sort"`
	Offset       int               `json:"offset"`
	Limit        int               `json:"limit"`
	CustomFields []string          `json:"custom_fields"`
	// Distribution lists descriptor fields to count across all matches.
	Distribution []string `json:"distribution"`
}

type queryResponse struct {
	Items        []itemResponse            `json:"items"`
	Total        int                       `json:"total"`
	Explanation  string                    `json:"explanation"`
	Distribution []query.FieldDistribution `json:"distribution,omitempty"`
}

type explainRequest struct {
	queryRequest
	ID string `json:"id"`
}

type explainResponse struct {
	ID      string        `json:"id"`
	Matched bool          `json:"matched"`
	Text    string        `json:"text"`
	Trace   explain.Trace `json:"trace"`
}

// predicateRequest is the JSON form of a predicate tree.
type predicateRequest struct {
	Op            string             `json:"op"`
	Field         string             `json:"field,omitempty"`
	Value         any                `json:"value,omitempty"`
	Values        []string           `json:"values,omitempty"`
	Exact         bool               `json:"exact,omitempty"`
	Min           *int               `json:"min,omitempty"`
	Max           *int               `json:"max,omitempty"`
	CaseSensitive bool               `json:"case_sensitive,omitempty"`
	Key           string             `json:"key,omitempty"`
	Time          string             `json:"time,omitempty"`
	Inclusive     bool               `json:"inclusive,omitempty"`
	Children      []predicateRequest `json:"children,omitempty"`
}

// Predicate operators accepted in a query body.
const (
	opAnd             = "and"
	opOr              = "or"
	opNot             = "not"
	opFieldEquals     = "field_equals"
	opFieldIn         = "field_in"
	opFieldStartsWith = "field_starts_with"
	opHierarchy       = "hierarchy"
	opDepth           = "depth"
	opTextContains    = "text_contains"
	opMetadataEquals  = "metadata_equals"
	opMetadataExists  = "metadata_exists"
	opCreatedAfter    = "created_after"
	opCreatedBefore   = "created_before"
	opUpdatedAfter    = "updated_after"
	opUpdatedBefore   = "updated_before"
)

func (p predicateRequest) toDomain() (predicate.Predicate, error) {
	switch p.Op {
	case opAnd, opOr:
		// An empty and matches everything; an empty or matches nothing.
		children := make([]predicate.Predicate, len(p.Children))
		for i, c := range p.Children {
			child, err := c.toDomain()
			if err != nil {
				return predicate.Predicate{}, err
			}
			children[i] = child
		}
		if p.Op == opAnd {
			return predicate.And(children...), nil
		}
		return predicate.Or(children...), nil
	case opNot:
		if len(p.Children) != 1 {
			return predicate.Predicate{}, queryErr("not takes exactly one child")
		}
		child, err := p.Children[0].toDomain()
		if err != nil {
			return predicate.Predicate{}, err
		}
		return predicate.Not(child), nil
	case opFieldEquals:
		v, err := p.stringValue()
		if err != nil {
			return predicate.Predicate{}, err
		}
		return predicate.FieldEquals(p.Field, v), nil
	case opFieldIn:
		return predicate.FieldIn(p.Field, p.Values...), nil
	case opFieldStartsWith:
		v, err := p.stringValue()
		if err != nil {
			return predicate.Predicate{}, err
		}
		return predicate.FieldStartsWith(p.Field, v), nil
	case opHierarchy:
		v, err := p.stringValue()
		if err != nil {
			return predicate.Predicate{}, err
		}
		return predicate.HierarchyMatches(p.Field, v, p.Exact), nil
	case opDepth:
		lo, hi := predicate.Unbounded, predicate.Unbounded
		if p.Min != nil {
			lo = *p.Min
		}
		if p.Max != nil {
			hi = *p.Max
		}
		return predicate.HierarchyDepth(p.Field, lo, hi), nil
	case opTextContains:
		v, err := p.stringValue()
		if err != nil {
			return predicate.Predicate{}, err
		}
		return predicate.TextContains(v, p.CaseSensitive), nil
	case opMetadataEquals:
		return predicate.MetadataEquals(p.Key, p.Value), nil
	case opMetadataExists:
		return predicate.MetadataExists(p.Key), nil
	case opCreatedAfter, opCreatedBefore, opUpdatedAfter, opUpdatedBefore:
		return p.timePredicate()
	case "":
		return predicate.Predicate{}, queryErr("predicate op is required")
	default:
		return predicate.Predicate{}, queryErr(fmt.Sprintf("unknown predicate op %q", p.Op))
	}
}

func (p predicateRequest) stringValue() (string, error) {
	s, ok := p.Value.(string)
	if !ok {
		return "", &domain.QueryError{Field: p.Field, Msg: p.Op + " requires a string value"}
	}
	return s, nil
}

func (p predicateRequest) timePredicate() (predicate.Predicate, error) {
	t, err := time.Parse(time.RFC3339, p.Time)
	if err != nil {
		return predicate.Predicate{}, queryErr(fmt.Sprintf("%s: time must be RFC 3339, got %q", p.Op, p.Time))
	}
	switch p.Op {
	case opCreatedAfter:
		return predicate.CreatedAfter(t, p.Inclusive), nil
	case opCreatedBefore:
		return predicate.CreatedBefore(t, p.Inclusive), nil
	case opUpdatedAfter:
		return predicate.UpdatedAfter(t, p.Inclusive), nil
	default:
		return predicate.UpdatedBefore(t, p.Inclusive), nil
	}
}

func queryErr(msg string) error {
	return &domain.QueryError{Msg: msg}
}

// buildQuery turns a request body into a checked query against version.
func buildQuery(req queryRequest, version *schema.Version) (query.Query, error) {
	b := query.NewBuilder(query.WithSchema(version), query.WithCustomFields(req.CustomFields...))
	if req.Where != nil {
		p, err := req.Where.toDomain()
		if err != nil {
			return query.Query{}, err
		}
		b.Where(p)
	}
	for _, s := range req.Sort {
		dir := query.Asc
		switch s.Direction {
		case "", string(query.Asc):
		case string(query.Desc):
			dir = query.Desc
		default:
			return query.Query{}, queryErr(fmt.Sprintf("sort direction must be asc or desc, got %q", s.Direction))
		}
		b.OrderBy(s.Field, dir)
	}
	if req.Limit < 0 {
		return query.Query{}, queryErr(fmt.Sprintf("limit must be >= 0, got %d", req.Limit))
	}
	return b.Offset(req.Offset).Limit(req.Limit).Build()
}
