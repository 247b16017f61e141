// Package chesspresenter turns service results and errors into the wire
// DTOs of pkg/chessdto.
package chesspresenter

import (
	corechess "github.com/vitoskycl/web-chess/internal/chess"
	"github.com/vitoskycl/web-chess/internal/msgcat"
	"github.com/vitoskycl/web-chess/pkg/chessdto"
)

const (
	CodeNoFile           = "no_file"
	CodeBadRequest       = "bad_request"
	CodeNotFound         = "not_found"
	CodeMethodNotAllowed = "method_not_allowed"
)

// Presenter renders user messages from the catalog. A nil catalog falls
// back to the error text.
type Presenter struct {
	catalog *msgcat.Catalog
}

func NewPresenter(catalog *msgcat.Catalog) *Presenter {
	return &Presenter{catalog: catalog}
}

// Error maps err onto the domain error taxonomy.
func (p *Presenter) Error(err error) chessdto.DomainError {
	if err == nil {
		return chessdto.DomainError{}
	}
	code := corechess.ErrorCode(err)
	return chessdto.DomainError{
		Code:      code,
		Message:   p.message(code, nil, err.Error()),
		Retryable: corechess.Retryable(err),
	}
}

// Failure builds an error that did not come from the service, such as a
// missing upload or an unknown route.
func (p *Presenter) Failure(code string, data any) chessdto.DomainError {
	return chessdto.DomainError{Code: code, Message: p.message(code, data, code)}
}

func (p *Presenter) message(code string, data any, fallback string) string {
	if p == nil {
		return fallback
	}
	return p.catalog.Text("error."+code, data, fallback)
}
