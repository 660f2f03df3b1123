package httpadapter

import (
	"net/http"

	"github.com/mhxia/finsight/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrReportNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrUnsupportedFile):
		return http.StatusUnsupportedMediaType
	case domain.IsKind(err, domain.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
