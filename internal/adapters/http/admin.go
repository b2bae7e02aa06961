package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ogurasousui/gallon-quota/internal/adapters/export"
	"github.com/ogurasousui/gallon-quota/internal/core/employee"
	"github.com/ogurasousui/gallon-quota/internal/core/validation"
)

var errInvalidActive = errors.New("http: invalid is_active")

var employeeStringFields = []string{
	employee.FieldExternalID,
	employee.FieldName,
	employee.FieldDepartment,
	employee.FieldPosition,
}

type listEmployeesResponse struct {
	Employees     []adminEmployee `json:"employees"`
	NextPageToken string          `json:"next_page_token"`
}

type showEmployeeResponse struct {
	Employee     adminEmployee      `json:"employee"`
	Transactions []adminTransaction `json:"transactions"`
}

// handleListEmployees は管理画面の社員一覧を返します。無効化された社員も含みます。
func (s *Server) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	in := employee.ListEmployeesInput{
		PageToken: q.Get("page_token"),
		Query:     q.Get("q"),
	}
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid request.")
			return
		}
		in.PageSize = n
	}
	if _, ok := q["active"]; ok {
		active, err := parseBool(q, "active", errInvalidActive)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid request.")
			return
		}
		in.Active = active
	}

	result, err := s.employees.ListEmployees(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := listEmployeesResponse{
		Employees:     make([]adminEmployee, 0, len(result.Employees)),
		NextPageToken: result.NextPageToken,
	}
	for _, e := range result.Employees {
		out.Employees = append(out.Employees, newAdminEmployee(e, s.location))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	values, ok := decodeValues(w, r, employeeStringFields...)
	if !ok {
		return
	}

	var errs []error
	monthly, ok, err := parseInt(values, employee.FieldMonthlyQuota, "Monthly quota", employee.ErrInvalidMonthlyQuota)
	switch {
	case err != nil:
		errs = append(errs, err)
	case !ok:
		errs = append(errs, validation.New(employee.FieldMonthlyQuota, employee.ErrInvalidMonthlyQuota, "Monthly quota is required."))
	}
	active, err := parseBool(values, "is_active", errInvalidActive)
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		writeValidation(w, errors.Join(errs...))
		return
	}

	created, err := s.employees.CreateEmployee(r.Context(), employee.CreateEmployeeInput{
		ExternalID:   values.Get(employee.FieldExternalID),
		Name:         values.Get(employee.FieldName),
		Department:   optionalString(values, employee.FieldDepartment),
		Position:     optionalString(values, employee.FieldPosition),
		MonthlyQuota: monthly,
		IsActive:     active,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newAdminEmployee(created, s.location))
}

// handleShowEmployee は社員詳細と直近の配布履歴を返します。
func (s *Server) handleShowEmployee(w http.ResponseWriter, r *http.Request) {
	found, err := s.employees.GetEmployee(r.Context(), employee.GetEmployeeInput{ID: chi.URLParam(r, "id")})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	recent, err := s.history.History(r.Context(), found.ID, s.recentTransactions)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, showEmployeeResponse{
		Employee:     newAdminEmployee(found, s.location),
		Transactions: newAdminTransactions(recent, s.location),
	})
}

func (s *Server) handleUpdateEmployee(w http.ResponseWriter, r *http.Request) {
	values, ok := decodeValues(w, r, employeeStringFields...)
	if !ok {
		return
	}

	in, err := updateInputFrom(chi.URLParam(r, "id"), values)
	if err != nil {
		writeValidation(w, err)
		return
	}

	updated, err := s.employees.UpdateEmployee(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newAdminEmployee(updated, s.location))
}

func (s *Server) handleDeleteEmployee(w http.ResponseWriter, r *http.Request) {
	if err := s.employees.DeleteEmployee(r.Context(), employee.DeleteEmployeeInput{ID: chi.URLParam(r, "id")}); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExportTransactions は社員の全配布履歴を xlsx で返します。
func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	found, err := s.employees.GetEmployee(r.Context(), employee.GetEmployeeInput{ID: chi.URLParam(r, "id")})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	items, err := s.history.History(r.Context(), found.ID, 0)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteTransactions(&buf, found, items); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(found)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// updateInputFrom は送信されたキーだけを更新対象にします。
func updateInputFrom(id string, values url.Values) (employee.UpdateEmployeeInput, error) {
	in := employee.UpdateEmployeeInput{
		ID:         id,
		ExternalID: optionalString(values, employee.FieldExternalID),
		Name:       optionalString(values, employee.FieldName),
	}
	if _, ok := values[employee.FieldDepartment]; ok {
		in.DepartmentSet = true
		in.Department = optionalString(values, employee.FieldDepartment)
	}
	if _, ok := values[employee.FieldPosition]; ok {
		in.PositionSet = true
		in.Position = optionalString(values, employee.FieldPosition)
	}

	var errs []error
	if monthly, ok, err := parseInt(values, employee.FieldMonthlyQuota, "Monthly quota", employee.ErrInvalidMonthlyQuota); err != nil {
		errs = append(errs, err)
	} else if ok {
		in.MonthlyQuota = &monthly
	}
	if current, ok, err := parseInt(values, employee.FieldCurrentQuota, "Current quota", employee.ErrInvalidCurrentQuota); err != nil {
		errs = append(errs, err)
	} else if ok {
		in.CurrentQuota = &current
	}
	active, err := parseBool(values, "is_active", errInvalidActive)
	if err != nil {
		errs = append(errs, err)
	}
	in.IsActive = active

	if len(errs) > 0 {
		return in, errors.Join(errs...)
	}
	return in, nil
}
