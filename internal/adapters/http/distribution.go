package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ogurasousui/gallon-quota/internal/core/distribution"
	"github.com/ogurasousui/gallon-quota/internal/core/validation"
)

type scanResponse struct {
	Success  bool              `json:"success"`
	Employee *employeeSnapshot `json:"employee,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// handleIndex は配布画面の初期状態を返します。
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, pageProps{})
}

// handleLookup は社員 ID で社員を照会します。未登録・無効はどちらも 200 で error を返します。
func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	values, ok := decodeValues(w, r, distribution.FieldExternalID)
	if !ok {
		return
	}

	result, err := s.distribution.Lookup(r.Context(), distribution.LookupInput{
		ExternalID: values.Get(distribution.FieldExternalID),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, pageProps{
		Employee: newEmployeeSnapshot(result.Employee),
		Error:    textPtr(result.Message),
	})
}

// handleTake はガロンを配布します。業務上の失敗も 200 で返し、残量不足の場合は社員情報も含めます。
func (s *Server) handleTake(w http.ResponseWriter, r *http.Request) {
	values, ok := decodeValues(w, r, distribution.FieldExternalID)
	if !ok {
		return
	}

	gallons, err := parseGallons(values)
	if err != nil {
		if strings.TrimSpace(values.Get(distribution.FieldExternalID)) == "" {
			err = errors.Join(validation.New(distribution.FieldExternalID, distribution.ErrInvalidExternalID, "Employee ID is required."), err)
		}
		writeValidation(w, err)
		return
	}

	result, err := s.distribution.Distribute(r.Context(), distribution.DistributeInput{
		ExternalID: values.Get(distribution.FieldExternalID),
		Gallons:    gallons,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, pageProps{
		Employee: newEmployeeSnapshot(result.Employee),
		Success:  textPtr(result.SuccessMessage()),
		Error:    textPtr(result.ErrorMessage()),
	})
}

// handleScan はスキャナ端末向けの照会 API です。見つからない場合は 404 を返します。
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	values, ok := decodeValues(w, r, distribution.FieldExternalID)
	if !ok {
		return
	}

	result, err := s.distribution.Lookup(r.Context(), distribution.LookupInput{
		ExternalID: values.Get(distribution.FieldExternalID),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if result.Outcome != distribution.OutcomeFound {
		writeJSON(w, http.StatusNotFound, scanResponse{Success: false, Message: result.Message})
		return
	}
	writeJSON(w, http.StatusOK, scanResponse{Success: true, Employee: newEmployeeSnapshot(result.Employee)})
}

func parseGallons(values url.Values) (int, error) {
	raw := strings.TrimSpace(values.Get(distribution.FieldGallons))
	if raw == "" {
		return 0, validation.New(distribution.FieldGallons, distribution.ErrInvalidGallons, "Number of gallons is required.")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validation.New(distribution.FieldGallons, distribution.ErrInvalidGallons, "Number of gallons must be a whole number.")
	}
	return n, nil
}
