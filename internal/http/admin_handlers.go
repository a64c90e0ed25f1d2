package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/robertarktes/bus-seat-booking/internal/admin"
	"github.com/robertarktes/bus-seat-booking/internal/catalog"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
)

func actor(r *http.Request) admin.Actor {
	a := admin.Actor{IP: clientIP(r), UserAgent: r.UserAgent()}
	if c := claimsFrom(r.Context()); c != nil {
		a.AdminID = c.AdminID
		a.Email = c.Email
	}
	return a
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handlers) AdminBookings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, domain.NewValidationError("limit", "must be a non-negative number"))
			return
		}
		limit = n
	}
	bs, err := h.admin.Bookings(r.Context(), domain.Status(r.URL.Query().Get("status")), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bs})
}

type approveRequest struct {
	PaymentReference string `json:"payment_reference"`
}

func (h *Handlers) AdminApprove(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req approveRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	b, err := h.admin.Approve(r.Context(), actor(r), id, req.PaymentReference)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handlers) AdminReject(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.admin.Reject(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handlers) AdminDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.admin.Delete(r.Context(), actor(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) AdminToggleSeat(w http.ResponseWriter, r *http.Request) {
	n, err := seatParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	seat, err := h.admin.ToggleSeat(r.Context(), actor(r), n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, seat)
}

func (h *Handlers) AdminReleaseSeat(w http.ResponseWriter, r *http.Request) {
	n, err := seatParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	seat, err := h.admin.ReleaseSeat(r.Context(), actor(r), n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, seat)
}

func (h *Handlers) AdminPickupPoints(w http.ResponseWriter, r *http.Request) {
	ps, err := h.admin.PickupPoints(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pickup_points": ps})
}

func (h *Handlers) AdminCreatePickupPoint(w http.ResponseWriter, r *http.Request) {
	var in catalog.PickupPointInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.admin.CreatePickupPoint(r.Context(), actor(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handlers) AdminUpdatePickupPoint(w http.ResponseWriter, r *http.Request) {
	var in catalog.PickupPointInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.admin.UpdatePickupPoint(r.Context(), actor(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) AdminDeletePickupPoint(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.DeletePickupPoint(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) AdminDestinations(w http.ResponseWriter, r *http.Request) {
	ds, err := h.admin.Destinations(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"destinations": ds})
}

func (h *Handlers) AdminCreateDestination(w http.ResponseWriter, r *http.Request) {
	var in catalog.DestinationInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.admin.CreateDestination(r.Context(), actor(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handlers) AdminUpdateDestination(w http.ResponseWriter, r *http.Request) {
	var in catalog.DestinationInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.admin.UpdateDestination(r.Context(), actor(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handlers) AdminDeleteDestination(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.DeleteDestination(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) AdminStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.admin.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handlers) AdminActivity(w http.ResponseWriter, r *http.Request) {
	es, err := h.admin.Activity(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": es})
}

// AdminExport streams every booking as a CSV attachment.
func (h *Handlers) AdminExport(w http.ResponseWriter, r *http.Request) {
	name := "bookings-" + time.Now().UTC().Format("2006-01-02") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if _, err := h.admin.ExportCSV(r.Context(), actor(r), w); err != nil {
		LoggerFrom(r.Context()).WithError(err).Error("csv export failed")
	}
}

func (h *Handlers) AdminReconciliations(w http.ResponseWriter, r *http.Request) {
	unresolvedOnly := r.URL.Query().Get("all") != "true"
	rs, err := h.admin.Reconciliations(r.Context(), unresolvedOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reconciliations": rs})
}

func (h *Handlers) AdminResolveReconciliation(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.admin.ResolveReconciliation(r.Context(), actor(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) AdminExpire(w http.ResponseWriter, r *http.Request) {
	n, err := h.admin.RunExpiry(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"expired": n})
}
