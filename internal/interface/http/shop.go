package http

import (
	"net/http"

	"github.com/classquest/classroom-hub/internal/application/command"
	"github.com/classquest/classroom-hub/internal/domain/student"
)

type itemRequest struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description" validate:"max=200"`
	Price       int    `json:"price" validate:"gte=0"`
	Slot        string `json:"slot" validate:"avatar_slot"`
	ImageRef    string `json:"image_ref" validate:"max=500"`

	// Stock omitted means unlimited.
	Stock *int `json:"stock" validate:"omitempty,gte=0"`
}

type purchaseRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Equip     bool   `json:"equip"`
}

func (c itemRequest) command(classID string) command.ItemCommand {
	return command.ItemCommand{
		ClassID:     classID,
		Name:        c.Name,
		Description: c.Description,
		Price:       c.Price,
		Slot:        student.Slot(c.Slot),
		ImageRef:    c.ImageRef,
		Stock:       c.Stock,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SHOP HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListItems handles GET /api/v1/classes/{classID}/shop/items
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Queries.Catalog.Items(r.Context(), r.PathValue("classID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, items, &ResponseMeta{TotalCount: len(items)})
}

// handleCreateItem handles POST /api/v1/classes/{classID}/shop/items
func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	it, err := s.deps.Commands.Catalog.CreateItem(r.Context(), req.command(r.PathValue("classID")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, it)
}

// handleUpdateItem handles PUT /api/v1/shop/items/{id}
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	it, err := s.deps.Commands.Catalog.UpdateItem(r.Context(), r.PathValue("id"), req.command(""))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, it)
}

// handleDeleteItem handles DELETE /api/v1/shop/items/{id}
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Commands.Catalog.DeleteItem(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePurchase handles POST /api/v1/shop/items/{id}/purchases
func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Commands.Shop.Purchase(r.Context(), command.PurchaseItemCommand{
		ItemID:        r.PathValue("id"),
		StudentID:     req.StudentID,
		Equip:         req.Equip,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]any{
		"purchase": res.Purchase,
		"item":     res.Item,
		"student":  res.Student,
		"equipped": res.Equipped,
	})
}

// handleListPurchases handles GET /api/v1/classes/{classID}/purchases
func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := s.deps.Queries.Catalog.Purchases(r.Context(), r.PathValue("classID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, purchases, &ResponseMeta{TotalCount: len(purchases)})
}
