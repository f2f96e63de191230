package http

import (
	"net/http"

	"expenses/internal/core"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	f, err := ParseListFilter(r.URL.Query())
	if err != nil {
		ServiceErrorResponse(r, err, "Invalid filter").Write(w)
		return
	}

	items, err := s.svc.List(r.Context(), f)
	if err != nil {
		ServiceErrorResponse(r, err, "Error fetching expenses").Write(w)
		return
	}
	NewJSONResponse().Data(items).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		ServiceErrorResponse(r, err, "Error fetching expense").Write(w)
		return
	}

	e, err := s.svc.Get(r.Context(), id)
	if err != nil {
		ServiceErrorResponse(r, err, "Error fetching expense").Write(w)
		return
	}
	NewJSONResponse().Data(e).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	in, err := ParseExpenseInput(w, r)
	if err != nil {
		ServiceErrorResponse(r, err, "Error creating expense").Write(w)
		return
	}

	e, err := s.svc.Create(r.Context(), in)
	if err != nil {
		ServiceErrorResponse(r, err, "Error creating expense").Write(w)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Data(e).
		Message("Expense created successfully").
		Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		ServiceErrorResponse(r, err, "Error updating expense").Write(w)
		return
	}
	in, err := ParseExpenseInput(w, r)
	if err != nil {
		ServiceErrorResponse(r, err, "Error updating expense").Write(w)
		return
	}

	e, err := s.svc.Update(r.Context(), id, in)
	if err != nil {
		ServiceErrorResponse(r, err, "Error updating expense").Write(w)
		return
	}
	NewJSONResponse().Data(e).Message("Expense updated successfully").Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		ServiceErrorResponse(r, err, "Error deleting expense").Write(w)
		return
	}

	e, err := s.svc.Delete(r.Context(), id)
	if err != nil {
		ServiceErrorResponse(r, err, "Error deleting expense").Write(w)
		return
	}
	NewJSONResponse().Data(e).Message("Expense deleted successfully").Write(w)
}

func (s *Server) handleClearExpenses(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearAll(r.Context()); err != nil {
		ServiceErrorResponse(r, err, "Error clearing expenses").Write(w)
		return
	}
	NewJSONResponse().Message("All expenses cleared").Write(w)
}

func (s *Server) handleImportExpenses(w http.ResponseWriter, r *http.Request) {
	batch, err := ParseImportBatch(w, r)
	if err != nil {
		ServiceErrorResponse(r, err, "Error importing expenses").Write(w)
		return
	}

	n, err := s.svc.ImportBulk(r.Context(), batch)
	if err != nil {
		ServiceErrorResponse(r, err, "Error importing expenses").Write(w)
		return
	}
	NewJSONResponse().
		Data(map[string]int{"imported": n}).
		Message("Expenses imported successfully").
		Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(core.Categories).Write(w)
}
